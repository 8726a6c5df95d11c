package dbclient

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"tablereader/internal/domain"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// buildMySQLDSN constructs a MySQL DSN from a DatabaseConnection.
func buildMySQLDSN(conn *domain.DatabaseConnection, password string) string {
	port := conn.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = conn.Username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(conn.Host, strconv.Itoa(port))
	cfg.DBName = conn.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	if conn.SSLMode == "require" {
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN()
}

// buildPostgresDSN constructs a Postgres connection string from a DatabaseConnection.
func buildPostgresDSN(conn *domain.DatabaseConnection, password string) string {
	port := conn.Port
	if port == 0 {
		port = 5432
	}
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		conn.Host, port, pqQuote(conn.Username), pqQuote(password), pqQuote(conn.Database), sslMode,
	)
}

// pqQuote quotes a keyword/value connection parameter when it needs it.
func pqQuote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// buildSQLiteDSN opens an external SQLite file read-only with a busy timeout.
func buildSQLiteDSN(conn *domain.DatabaseConnection) string {
	return "file:" + conn.Host + "?mode=ro&_pragma=busy_timeout(5000)"
}

func newSQLiteConnector(conn *domain.DatabaseConnection) (*sqlConnector, error) {
	return newSQLConnector("sqlite", buildSQLiteDSN(conn))
}

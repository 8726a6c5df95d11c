// Package dbclient connects to external databases that database sources
// read from.
package dbclient

import (
	"context"

	"tablereader/internal/domain"
	"tablereader/internal/errors"
)

// DefaultFetchSize is the batch size used when a caller passes a size <= 0.
const DefaultFetchSize = 500

// QueryPage is a batch of rows fetched from a query cursor.
type QueryPage struct {
	Columns      []string `json:"columns"`
	Rows         [][]any  `json:"rows"`
	TotalFetched int      `json:"totalFetched"` // total rows fetched so far
	HasMore      bool     `json:"hasMore"`      // cursor has more rows
}

// SchemaInfo lists the tables of a database.
type SchemaInfo struct {
	Tables []TableInfo `json:"tables"`
}

// TableInfo describes a table/collection.
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// ColumnInfo describes a column/field.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Cursor is an open read query. Every cursor must be closed.
type Cursor interface {
	// Columns returns the column names known so far. For document stores
	// the set grows as batches are fetched.
	Columns() []string

	// FetchBatch reads up to n rows. A page with HasMore false is the last.
	FetchBatch(ctx context.Context, n int) (*QueryPage, error)

	Close() error
}

// Connector abstracts read access to an external database.
type Connector interface {
	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// Query opens a cursor for a read query. Writes are rejected.
	Query(ctx context.Context, query string) (Cursor, error)

	// Introspect returns the tables and columns of the database.
	Introspect(ctx context.Context) (*SchemaInfo, error)

	// Close closes the connection and any open cursors.
	Close() error
}

// NewConnector creates a Connector for the given database connection.
// The password must be provided separately (from SecretStore).
func NewConnector(conn *domain.DatabaseConnection, password string) (Connector, error) {
	switch conn.Driver {
	case domain.DatabaseDriverSQLite:
		return newSQLiteConnector(conn)
	case domain.DatabaseDriverMySQL:
		return newSQLConnector("mysql", buildMySQLDSN(conn, password))
	case domain.DatabaseDriverPostgres:
		return newSQLConnector("postgres", buildPostgresDSN(conn, password))
	case domain.DatabaseDriverMongoDB:
		return newMongoConnector(conn, password)
	default:
		return nil, errors.Configurationf("unsupported driver: %s", conn.Driver)
	}
}

package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"tablereader/internal/domain"
	"tablereader/internal/errors"
)

// DBConnectionStore manages database connection records in SQLite.
type DBConnectionStore struct {
	db *DB
}

// NewDBConnectionStore creates a new DBConnectionStore.
func NewDBConnectionStore(db *DB) *DBConnectionStore {
	return &DBConnectionStore{db: db}
}

const connectionColumns = `id, name, driver, host, port, database_name, username, ssl_mode, extra_json, created_at, updated_at`

func scanConnection(sc interface{ Scan(...any) error }, c *domain.DatabaseConnection) error {
	return sc.Scan(&c.ID, &c.Name, &c.Driver, &c.Host, &c.Port, &c.Database, &c.Username, &c.SSLMode, &c.ExtraJSON, &c.CreatedAt, &c.UpdatedAt)
}

// CreateConnection inserts c, assigning an ID if it has none.
func (s *DBConnectionStore) CreateConnection(c *domain.DatabaseConnection) error {
	if _, ok := domain.ParseDatabaseDriver(string(c.Driver)); !ok {
		return errors.Configurationf("unsupported driver: %s", c.Driver)
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ExtraJSON == "" {
		c.ExtraJSON = "{}"
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.Conn().Exec(
		`INSERT INTO db_connections (`+connectionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Driver, c.Host, c.Port, c.Database, c.Username, c.SSLMode, c.ExtraJSON, c.CreatedAt, c.UpdatedAt,
	)
	return errors.Wrapf(err, "create connection %s", c.Name)
}

// GetConnection looks a connection up by ID or, failing that, by name.
func (s *DBConnectionStore) GetConnection(idOrName string) (*domain.DatabaseConnection, error) {
	row := s.db.Conn().QueryRow(
		`SELECT `+connectionColumns+` FROM db_connections WHERE id = ? OR name = ?
		 ORDER BY id = ? DESC LIMIT 1`, idOrName, idOrName, idOrName,
	)
	c := &domain.DatabaseConnection{}
	err := scanConnection(row, c)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("database connection not found: %s", idOrName)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get connection")
	}
	return c, nil
}

func (s *DBConnectionStore) ListConnections() ([]domain.DatabaseConnection, error) {
	rows, err := s.db.Conn().Query(`SELECT ` + connectionColumns + ` FROM db_connections ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "list connections")
	}
	defer rows.Close()

	var conns []domain.DatabaseConnection
	for rows.Next() {
		var c domain.DatabaseConnection
		if err := scanConnection(rows, &c); err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

func (s *DBConnectionStore) UpdateConnection(c *domain.DatabaseConnection) error {
	c.UpdatedAt = time.Now()
	res, err := s.db.Conn().Exec(
		`UPDATE db_connections SET name=?, driver=?, host=?, port=?, database_name=?, username=?, ssl_mode=?, extra_json=?, updated_at=?
		 WHERE id=?`,
		c.Name, c.Driver, c.Host, c.Port, c.Database, c.Username, c.SSLMode, c.ExtraJSON, c.UpdatedAt, c.ID,
	)
	return mustAffect(res, err, "database connection", c.ID)
}

func (s *DBConnectionStore) DeleteConnection(id string) error {
	res, err := s.db.Conn().Exec(`DELETE FROM db_connections WHERE id = ?`, id)
	return mustAffect(res, err, "database connection", id)
}

// mustAffect turns an update that touched no row into a not-found error.
func mustAffect(res sql.Result, err error, what, id string) error {
	if err != nil {
		return errors.Wrapf(err, "%s %s", what, id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFoundf("%s not found: %s", what, id)
	}
	return nil
}

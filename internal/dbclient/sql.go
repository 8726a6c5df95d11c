package dbclient

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tablereader/internal/errors"
	"tablereader/internal/logger"
)

// sqlConnector is the shared implementation for MySQL, Postgres, and SQLite.
type sqlConnector struct {
	driverName string
	db         *sql.DB
	log        *zap.SugaredLogger

	mu      sync.Mutex
	cursors map[*sqlCursor]struct{}
}

// newSQLConnector opens a pooled connection for the given driver.
func newSQLConnector(driverName, dsn string) (*sqlConnector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driverName)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)
	return wrapDB(driverName, db), nil
}

// NewSQLConnector wraps an already opened database handle. driverName
// selects the dialect used for introspection ("sqlite", "mysql", "postgres").
func NewSQLConnector(driverName string, db *sql.DB) Connector {
	return wrapDB(driverName, db)
}

func wrapDB(driverName string, db *sql.DB) *sqlConnector {
	return &sqlConnector{
		driverName: driverName,
		db:         db,
		log:        logger.ComponentLogger("dbclient.sql").With(logger.FieldDriver, driverName),
		cursors:    make(map[*sqlCursor]struct{}),
	}
}

func (c *sqlConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.db.PingContext(ctx)
}

// isReadQuery detects if a query is a read (SELECT, WITH, SHOW, DESCRIBE, EXPLAIN, PRAGMA, VALUES).
func isReadQuery(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "EXPLAIN", "PRAGMA", "VALUES"} {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}

func (c *sqlConnector) Query(ctx context.Context, query string) (Cursor, error) {
	if !isReadQuery(query) {
		return nil, errors.WithHint(
			errors.Configurationf("query is not a read query: %q", abbreviate(query, 40)),
			"database sources only accept SELECT-like statements")
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "columns")
	}

	cur := &sqlCursor{conn: c, rows: rows, columns: cols}
	c.mu.Lock()
	c.cursors[cur] = struct{}{}
	c.mu.Unlock()
	c.log.Debugw("cursor opened", "columns", len(cols))
	return cur, nil
}

func abbreviate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// sqlCursor streams rows from one open *sql.Rows.
type sqlCursor struct {
	conn    *sqlConnector
	rows    *sql.Rows
	columns []string
	fetched int
	done    bool
}

func (cur *sqlCursor) Columns() []string { return cur.columns }

func (cur *sqlCursor) FetchBatch(ctx context.Context, n int) (*QueryPage, error) {
	if n <= 0 {
		n = DefaultFetchSize
	}
	page := &QueryPage{Columns: cur.columns, TotalFetched: cur.fetched}
	if cur.done {
		return page, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(err)
	}

	numCols := len(cur.columns)
	for len(page.Rows) < n && cur.rows.Next() {
		values := make([]any, numCols)
		ptrs := make([]any, numCols)
		for j := range values {
			ptrs[j] = &values[j]
		}
		if err := cur.rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		for j, v := range values {
			values[j] = formatValue(v)
		}
		page.Rows = append(page.Rows, values)
	}

	cur.fetched += len(page.Rows)
	page.TotalFetched = cur.fetched
	page.HasMore = len(page.Rows) == n

	if !page.HasMore {
		err := cur.rows.Err()
		cur.Close()
		if err != nil {
			return nil, errors.Wrap(err, "iterate")
		}
	}
	return page, nil
}

func (cur *sqlCursor) Close() error {
	cur.done = true
	cur.conn.mu.Lock()
	delete(cur.conn.cursors, cur)
	cur.conn.mu.Unlock()
	return cur.rows.Close()
}

// formatValue turns driver byte slices into strings. Other values, including
// time.Time, are passed through for the type mapper.
func formatValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func (c *sqlConnector) Introspect(ctx context.Context) (*SchemaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch c.driverName {
	case "sqlite":
		return c.introspectSQLite(ctx)
	default:
		return c.introspectInfoSchema(ctx)
	}
}

// introspectInfoSchema works for MySQL and Postgres via INFORMATION_SCHEMA.
func (c *sqlConnector) introspectInfoSchema(ctx context.Context) (*SchemaInfo, error) {
	tablesQuery := `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = DATABASE() ORDER BY TABLE_NAME`
	columnsQuery := `SELECT COLUMN_NAME, DATA_TYPE FROM INFORMATION_SCHEMA.COLUMNS
			 WHERE TABLE_NAME = ? ORDER BY ORDINAL_POSITION`
	if c.driverName == "postgres" {
		tablesQuery = `SELECT table_name FROM information_schema.tables
		 WHERE table_schema = current_schema() ORDER BY table_name`
		columnsQuery = `SELECT column_name, data_type FROM information_schema.columns
			 WHERE table_name = $1 ORDER BY ordinal_position`
	}

	tableNames, err := c.listNames(ctx, tablesQuery)
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}

	schema := &SchemaInfo{}
	for _, tbl := range tableNames {
		cols, err := c.listColumns(ctx, columnsQuery, tbl)
		if err != nil {
			c.log.Warnw("list columns failed", "table", tbl, logger.FieldError, err)
		}
		schema.Tables = append(schema.Tables, TableInfo{Name: tbl, Columns: cols})
	}
	return schema, nil
}

// introspectSQLite uses sqlite_master + pragma_table_info.
func (c *sqlConnector) introspectSQLite(ctx context.Context) (*SchemaInfo, error) {
	tableNames, err := c.listNames(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}

	schema := &SchemaInfo{}
	for _, tbl := range tableNames {
		cols, err := c.listColumns(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, tbl)
		if err != nil {
			c.log.Warnw("list columns failed", "table", tbl, logger.FieldError, err)
		}
		schema.Tables = append(schema.Tables, TableInfo{Name: tbl, Columns: cols})
	}
	return schema, nil
}

func (c *sqlConnector) listNames(ctx context.Context, query string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c *sqlConnector) listColumns(ctx context.Context, query, table string) ([]ColumnInfo, error) {
	rows, err := c.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var ci ColumnInfo
		if err := rows.Scan(&ci.Name, &ci.Type); err != nil {
			return nil, err
		}
		cols = append(cols, ci)
	}
	return cols, rows.Err()
}

func (c *sqlConnector) Close() error {
	c.mu.Lock()
	open := make([]*sqlCursor, 0, len(c.cursors))
	for cur := range c.cursors {
		open = append(open, cur)
	}
	c.mu.Unlock()
	for _, cur := range open {
		cur.Close()
	}
	if err := c.db.Close(); err != nil {
		return errors.Wrapf(err, "close %s", c.driverName)
	}
	return nil
}

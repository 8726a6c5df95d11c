package sources

import (
	"context"
	"io"

	"go.uber.org/zap"

	"tablereader/internal/convert"
	"tablereader/internal/dbclient"
	"tablereader/internal/errors"
	"tablereader/internal/logger"
	"tablereader/internal/read"
	"tablereader/internal/table"
)

// ── Database Source ────────────────────────────────────────
// Each item is a query run against one stored connection. SQL connections
// take SELECT-like statements, MongoDB connections take a JSON query
// document.

const (
	OptConnection = "connection"
	OptFetchSize  = "fetch_size"
)

// ConnectorProvider hands out live connectors by connection ID.
type ConnectorProvider interface {
	Connector(ctx context.Context, connID string) (dbclient.Connector, error)
}

// Database reads query results.
type Database struct {
	h     table.TypeHierarchy
	conns ConnectorProvider
	log   *zap.SugaredLogger
}

func NewDatabase(h table.TypeHierarchy, conns ConnectorProvider) *Database {
	return &Database{h: h, conns: conns, log: logger.ComponentLogger("sources.database")}
}

func (s *Database) Spec() Spec {
	return Spec{
		Type:  "database",
		Label: "Database Query",
		Item:  "read query (SQL, or a JSON query document for MongoDB)",
		Options: []Option{
			{Key: OptConnection, Label: "Connection", Required: true, Help: "ID of a stored database connection"},
			{Key: OptFetchSize, Label: "Fetch Size", Default: "500", Help: "Rows fetched per round trip"},
		},
	}
}

func (s *Database) ReadSpec(ctx context.Context, source string, cfg read.Config) (table.TableSpec, error) {
	r, err := s.open(ctx, source, cfg)
	if err != nil {
		return table.TableSpec{}, err
	}
	defer r.Close()

	b := read.NewSpecBuilder(s.h, convert.GuessType, nil)
	spec, err := read.SampleSpec(ctx, r, b, cfg.SpecLimit)
	if err != nil {
		return table.TableSpec{}, errors.Wrap(err, "read spec of query")
	}
	return withNames(spec, r.cursor.Columns()), nil
}

func (s *Database) Read(ctx context.Context, source string, cfg read.Config) (read.Read, error) {
	return s.open(ctx, source, cfg)
}

func (s *Database) open(ctx context.Context, query string, cfg read.Config) (*cursorRead, error) {
	if err := requireOptions(s.Spec(), cfg); err != nil {
		return nil, err
	}
	fetchSize, err := intOption(cfg, OptFetchSize, dbclient.DefaultFetchSize)
	if err != nil {
		return nil, err
	}
	connID := cfg.Option(OptConnection, "")
	conn, err := s.conns.Connector(ctx, connID)
	if err != nil {
		return nil, err
	}
	cursor, err := conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	s.log.Debugw("query opened", "connection", connID, "columns", len(cursor.Columns()))
	return &cursorRead{ctx: ctx, cursor: cursor, fetchSize: fetchSize}, nil
}

// cursorRead serves the rows of a cursor one by one, fetching in batches.
type cursorRead struct {
	ctx       context.Context
	cursor    dbclient.Cursor
	fetchSize int
	page      *dbclient.QueryPage
	pos       int
	exhausted bool
}

func (c *cursorRead) Next() (read.RandomAccessible, error) {
	for c.page == nil || c.pos >= len(c.page.Rows) {
		if c.exhausted {
			return nil, io.EOF
		}
		page, err := c.cursor.FetchBatch(c.ctx, c.fetchSize)
		if err != nil {
			return nil, err
		}
		c.page, c.pos = page, 0
		c.exhausted = !page.HasMore
	}
	row := c.page.Rows[c.pos]
	c.pos++
	return read.Row(row), nil
}

func (c *cursorRead) Close() error { return c.cursor.Close() }

package read_test

import (
	"context"
	"io"
	"sync"

	"tablereader/internal/convert"
	"tablereader/internal/errors"
	"tablereader/internal/read"
	"tablereader/internal/table"
)

type memTable struct {
	names []string
	rows  []read.Row
}

// memReader serves in-memory tables and records how it is used.
type memReader struct {
	mu        sync.Mutex
	tables    map[string]memTable
	specReads int
	opened    int
	closed    int
}

func newMemReader(tables map[string]memTable) *memReader {
	return &memReader{tables: tables}
}

func (r *memReader) ReadSpec(ctx context.Context, source string, cfg read.Config) (table.TableSpec, error) {
	r.mu.Lock()
	r.specReads++
	r.mu.Unlock()
	t, ok := r.tables[source]
	if !ok {
		return table.TableSpec{}, errors.NotFoundf("source %s", source)
	}
	b := read.NewSpecBuilder(table.DefaultHierarchy(), convert.GuessType, t.names)
	return read.SampleSpec(ctx, &memRead{rows: t.rows}, b, cfg.SpecLimit)
}

func (r *memReader) Read(_ context.Context, source string, _ read.Config) (read.Read, error) {
	t, ok := r.tables[source]
	if !ok {
		return nil, errors.NotFoundf("source %s", source)
	}
	r.mu.Lock()
	r.opened++
	r.mu.Unlock()
	return &memRead{rows: t.rows, onClose: func() {
		r.mu.Lock()
		r.closed++
		r.mu.Unlock()
	}}, nil
}

type memRead struct {
	rows    []read.Row
	pos     int
	onClose func()
}

func (m *memRead) Next() (read.RandomAccessible, error) {
	if m.pos >= len(m.rows) {
		return nil, io.EOF
	}
	row := m.rows[m.pos]
	m.pos++
	return row, nil
}

func (m *memRead) Close() error {
	if m.onClose != nil {
		m.onClose()
	}
	return nil
}

func (m *memRead) EstimatedSize() int64 { return int64(len(m.rows)) }

func (m *memRead) ReadBytes() int64 { return int64(m.pos) }

func newFactory(r read.TableReader) *read.MultiTableReadFactory {
	return read.NewMultiTableReadFactory(r, table.DefaultHierarchy(), convert.Default())
}

// collect gathers pushed rows.
type collect struct {
	rows []read.OutputRow
}

func (c *collect) Push(row read.OutputRow) error {
	c.rows = append(c.rows, row)
	return nil
}

func scenarioTables() map[string]memTable {
	return map[string]memTable{
		"a.csv": {names: []string{"id", "name"}, rows: []read.Row{{"1", "ann"}, {"2", "bob"}}},
		"b.csv": {names: []string{"id", "name"}, rows: []read.Row{{"3", "cid"}}},
		"c.csv": {names: []string{"id", "name", "extra"}, rows: []read.Row{{"4", "dan", "1.5"}}},
	}
}

var scenarioGroup = read.SourceGroup{ID: "scenario", Items: []string{"a.csv", "b.csv", "c.csv"}}

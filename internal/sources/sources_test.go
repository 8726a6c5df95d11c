package sources_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablereader/internal/convert"
	"tablereader/internal/dbclient"
	"tablereader/internal/errors"
	"tablereader/internal/read"
	"tablereader/internal/sources"
	"tablereader/internal/table"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func cfgWith(opts map[string]string) read.Config {
	cfg := read.DefaultConfig()
	cfg.Options = opts
	return cfg
}

func drain(t *testing.T, r read.Read) []read.Row {
	t.Helper()
	defer r.Close()
	var rows []read.Row
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, row.(read.Row))
	}
}

// ── CSV ────────────────────────────────────────────────────

func TestCSVReadSpec(t *testing.T) {
	p := writeFile(t, t.TempDir(), "a.csv", "id,name,score,note\n1,ann,2.5,\n2,,3,\n")
	src := sources.NewCSV(table.DefaultHierarchy())

	spec, err := src.ReadSpec(context.Background(), p, read.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "[id:int, name:string, score:double, note:?]", spec.String())

	r, err := src.Read(context.Background(), p, read.DefaultConfig())
	require.NoError(t, err)
	rows := drain(t, r)
	require.Len(t, rows, 2)
	assert.Equal(t, read.Row{"2", nil, "3", nil}, rows[1])
}

func TestCSVOptions(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "b.csv", "# exported\n1;true\n2;false\n")
	src := sources.NewCSV(table.DefaultHierarchy())

	spec, err := src.ReadSpec(context.Background(), p, cfgWith(map[string]string{
		sources.OptDelimiter: ";",
		sources.OptHasHeader: "false",
		sources.OptComment:   "#",
	}))
	require.NoError(t, err)
	assert.Equal(t, "[Column0:int, Column1:boolean]", spec.WithDefaultNames().String())

	for _, opts := range []map[string]string{
		{sources.OptDelimiter: ";;"},
		{sources.OptHasHeader: "maybe"},
	} {
		_, err := src.ReadSpec(context.Background(), p, cfgWith(opts))
		require.Error(t, err)
		assert.True(t, errors.IsConfiguration(err), "%v", opts)
	}
}

func TestCSVSpecLimit(t *testing.T) {
	p := writeFile(t, t.TempDir(), "c.csv", "v\n1\nx\n")
	src := sources.NewCSV(table.DefaultHierarchy())

	cfg := read.DefaultConfig()
	cfg.SpecLimit = 1
	spec, err := src.ReadSpec(context.Background(), p, cfg)
	require.NoError(t, err)
	assert.Equal(t, "[v:int]", spec.String())

	cfg.SpecLimit = 0
	spec, err = src.ReadSpec(context.Background(), p, cfg)
	require.NoError(t, err)
	assert.Equal(t, "[v:string]", spec.String())
}

func TestCSVMissingFile(t *testing.T) {
	src := sources.NewCSV(table.DefaultHierarchy())
	_, err := src.Read(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), read.DefaultConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// ── JSON ───────────────────────────────────────────────────

func TestJSONReadSpecAndRows(t *testing.T) {
	p := writeFile(t, t.TempDir(), "a.json",
		`[{"a": 1, "b": "x"}, {"b": "y", "c": true, "d": {"k": [1, 2]}, "a": null}]`)
	src := sources.NewJSON(table.DefaultHierarchy())

	spec, err := src.ReadSpec(context.Background(), p, read.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "[a:int, b:string, c:boolean, d:string]", spec.String())

	r, err := src.Read(context.Background(), p, read.DefaultConfig())
	require.NoError(t, err)
	rows := drain(t, r)
	require.Len(t, rows, 2)
	assert.Equal(t, read.Row{json.Number("1"), "x"}, rows[0])
	assert.Equal(t, read.Row{nil, "y", true, `{"k":[1,2]}`}, rows[1])
}

func TestJSONDataPath(t *testing.T) {
	p := writeFile(t, t.TempDir(), "b.json", `{"data": {"items": [{"n": 1.5}]}}`)
	src := sources.NewJSON(table.DefaultHierarchy())

	spec, err := src.ReadSpec(context.Background(), p, cfgWith(map[string]string{sources.OptDataPath: "data.items"}))
	require.NoError(t, err)
	assert.Equal(t, "[n:double]", spec.String())

	_, err = src.ReadSpec(context.Background(), p, cfgWith(map[string]string{sources.OptDataPath: "data.rows"}))
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))

	_, err = src.ReadSpec(context.Background(), p, read.DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err), "root is not an array")
}

// ── HTTP ───────────────────────────────────────────────────

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/items":
			assert.Equal(t, "Bearer t0k", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"data": [{"id": 1, "name": "ann"}, {"id": 2.5}]}`)
		default:
			http.Error(w, "gone", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := sources.NewHTTP(table.DefaultHierarchy())
	cfg := cfgWith(map[string]string{
		sources.OptDataPath: "data",
		sources.OptHeaders:  `{"Authorization": "Bearer t0k"}`,
	})

	spec, err := src.ReadSpec(context.Background(), srv.URL+"/items", cfg)
	require.NoError(t, err)
	assert.Equal(t, "[id:double, name:string]", spec.String())

	r, err := src.Read(context.Background(), srv.URL+"/items", cfg)
	require.NoError(t, err)
	rows := drain(t, r)
	require.Len(t, rows, 2)
	assert.Equal(t, read.Row{json.Number("1"), "ann"}, rows[0])

	_, err = src.ReadSpec(context.Background(), srv.URL+"/missing", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 404")

	_, err = src.ReadSpec(context.Background(), srv.URL+"/items", cfgWith(map[string]string{sources.OptHeaders: "nope"}))
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

// ── Database ───────────────────────────────────────────────

type connProvider struct {
	conn dbclient.Connector
}

func (p connProvider) Connector(_ context.Context, id string) (dbclient.Connector, error) {
	if id != "warehouse" {
		return nil, errors.NotFoundf("connection %s", id)
	}
	return p.conn, nil
}

func TestDatabaseSource(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	src := sources.NewDatabase(table.DefaultHierarchy(), connProvider{conn: dbclient.NewSQLConnector("postgres", db)})

	const q = "SELECT id, name, total FROM orders"
	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "name", "total"}).
			AddRow(int64(1), "ann", 9.5).
			AddRow(int64(2), nil, 3.0)
	}
	mock.ExpectQuery(q).WillReturnRows(rows())
	mock.ExpectQuery(q).WillReturnRows(rows())

	cfg := cfgWith(map[string]string{sources.OptConnection: "warehouse", sources.OptFetchSize: "1"})
	spec, err := src.ReadSpec(context.Background(), q, cfg)
	require.NoError(t, err)
	assert.Equal(t, "[id:int, name:string, total:double]", spec.String())

	r, err := src.Read(context.Background(), q, cfg)
	require.NoError(t, err)
	got := drain(t, r)
	assert.Equal(t, []read.Row{{int64(1), "ann", 9.5}, {int64(2), nil, 3.0}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseSourceOptions(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	src := sources.NewDatabase(table.DefaultHierarchy(), connProvider{conn: dbclient.NewSQLConnector("postgres", db)})

	_, err = src.ReadSpec(context.Background(), "SELECT 1", read.DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err), "connection is required")

	_, err = src.ReadSpec(context.Background(), "SELECT 1", cfgWith(map[string]string{
		sources.OptConnection: "warehouse", sources.OptFetchSize: "-3",
	}))
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))

	_, err = src.ReadSpec(context.Background(), "SELECT 1", cfgWith(map[string]string{sources.OptConnection: "other"}))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

// ── Registry ───────────────────────────────────────────────

func TestRegistry(t *testing.T) {
	r := sources.Default(table.DefaultHierarchy(), connProvider{})

	var types []string
	for _, s := range r.List() {
		types = append(types, s.Type)
	}
	assert.Equal(t, []string{"csv", "database", "http", "json"}, types)

	s, err := r.Get("csv")
	require.NoError(t, err)
	assert.Equal(t, "CSV File", s.Spec().Label)

	_, err = r.Get("parquet")
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))

	noDB := sources.Default(table.DefaultHierarchy(), nil)
	assert.Len(t, noDB.List(), 3)
}

// ── Multi-source read over files ───────────────────────────

func TestMultiSourceCSVUnion(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "id,name\n1,ann\n")
	b := writeFile(t, dir, "b.csv", "id,score\n2,1.5\n3,\n")

	factory := read.NewMultiTableReadFactory(sources.NewCSV(table.DefaultHierarchy()), table.DefaultHierarchy(), convert.Default())
	group := read.SourceGroup{ID: "files", Items: []string{a, b}}
	staged, err := factory.Create(context.Background(), group, read.DefaultConfig(), nil, nil)
	require.NoError(t, err)
	m, err := staged.WithoutTransformation(group)
	require.NoError(t, err)

	var names []string
	for _, c := range m.OutputSpec() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"id", "name", "score"}, names)

	var out []read.OutputRow
	stats, err := m.FillRowOutput(context.Background(), read.RowOutputFunc(func(row read.OutputRow) error {
		out = append(out, row)
		return nil
	}), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Rows)
	require.Len(t, out, 3)
	assert.Equal(t, read.OutputRow{Key: "Row0", Values: []any{int32(1), "ann", nil}}, out[0])
	assert.Equal(t, read.OutputRow{Key: "Row1", Values: []any{int32(2), nil, 1.5}}, out[1])
	assert.Equal(t, read.OutputRow{Key: "Row2", Values: []any{int32(3), nil, nil}}, out[2])
}

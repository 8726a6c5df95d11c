package read

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablereader/internal/errors"
	"tablereader/internal/table"
	"tablereader/internal/transform"
)

func TestIndexMapper(t *testing.T) {
	out := []transform.OutputColumn{
		{Name: "B", Source: table.Column("b", table.TypeInt)},
		{Name: "missing", Source: table.Column("z", table.TypeInt)},
		{Name: "first", Source: table.Column("Column0", table.TypeInt)},
	}
	m := NewIndexMapper(out, table.NewTableSpec(table.Column("", table.TypeInt), table.Column("b", table.TypeInt)))

	assert.Equal(t, 3, m.Size())
	idx, ok := m.Map(0)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.False(t, m.HasMapping(1))
	assert.True(t, m.HasMapping(2))

	assert.Equal(t, []any{"y", nil, "x"}, m.Apply(Row{"x", "y"}))
	// short rows are padded
	assert.Equal(t, []any{nil, nil, "x"}, m.Apply(Row{"x"}))
}

func TestEmptyCheck(t *testing.T) {
	raw, err := table.NewRawSpec([]table.TableSpec{
		table.NewTableSpec(table.Column("a", table.TypeInt), table.EmptyColumn("b")),
	}, table.DefaultHierarchy())
	require.NoError(t, err)
	paths := map[table.ExternalType]transform.DataType{table.TypeInt: "IntCell", table.TypeString: "StringCell"}
	tt, err := transform.NewFactory(stubPaths(paths)).CreateNew(raw, transform.Config{SkipEmptyColumns: true})
	require.NoError(t, err)

	source := raw.Union
	check := NewEmptyCheck(tt, source, 50)
	assert.NoError(t, check.Check(Row{"1", ""}))
	assert.NoError(t, check.Check(Row{"1", nil}))
	assert.NoError(t, check.Check(Row{"1"}))
	assert.NoError(t, check.Check(Row{"1", "  "}))
	assert.NoError(t, check.Check(Row{"1", []byte("")}))
	err = check.Check(Row{"1", "boo"})
	require.Error(t, err)
	assert.True(t, errors.IsConsistency(err))
	assert.Contains(t, err.Error(), "first 50 rows")

	noSkip, err := transform.NewFactory(stubPaths(paths)).CreateNew(raw, transform.Config{})
	require.NoError(t, err)
	assert.NoError(t, NewEmptyCheck(noSkip, source, 50).Check(Row{"1", "boo"}))
}

type stubPaths map[table.ExternalType]transform.DataType

func (s stubPaths) DefaultProductionPath(t table.ExternalType) (transform.ProductionPath, error) {
	d, ok := s[t]
	if !ok {
		return transform.ProductionPath{}, errors.Newf("no path for %s", t)
	}
	return transform.ProductionPath{Source: t, Destination: d}, nil
}

func (s stubPaths) AvailableProductionPaths(t table.ExternalType) []transform.ProductionPath {
	p, err := s.DefaultProductionPath(t)
	if err != nil {
		return nil
	}
	return []transform.ProductionPath{p}
}

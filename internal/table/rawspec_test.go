package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablereader/internal/errors"
)

func scenarioSpecs() []TableSpec {
	return []TableSpec{
		NewTableSpec(Column("id", TypeInt), Column("name", TypeString)),
		NewTableSpec(Column("id", TypeInt), Column("name", TypeString)),
		NewTableSpec(Column("id", TypeInt), Column("name", TypeString), Column("extra", TypeDouble)),
	}
}

func TestNewRawSpecUnionAndIntersection(t *testing.T) {
	raw, err := NewRawSpec(scenarioSpecs(), DefaultHierarchy())
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "extra"}, raw.Union.Names())
	assert.Equal(t, []string{"id", "name"}, raw.Intersection.Names())
	assert.Equal(t, Column("extra", TypeDouble), raw.Union.Column(2))
}

func TestNewRawSpecResolvesTypes(t *testing.T) {
	specs := []TableSpec{
		NewTableSpec(Column("a", TypeInt), EmptyColumn("b"), EmptyColumn("c")),
		NewTableSpec(Column("a", TypeLong), Column("b", TypeBoolean), EmptyColumn("c")),
	}
	raw, err := NewRawSpec(specs, DefaultHierarchy())
	require.NoError(t, err)

	assert.Equal(t, Column("a", TypeLong), raw.Union.Column(0))
	assert.Equal(t, Column("b", TypeBoolean), raw.Union.Column(1))
	c := raw.Union.Column(2)
	assert.False(t, c.HasType)
	// untyped columns still take part in the intersection
	assert.Equal(t, []string{"a", "b", "c"}, raw.Intersection.Names())
}

func TestNewRawSpecIntersectionIsSubsetOfUnion(t *testing.T) {
	specs := []TableSpec{
		NewTableSpec(Column("x", TypeInt), Column("y", TypeInt), Column("z", TypeInt)),
		NewTableSpec(Column("z", TypeDouble), Column("w", TypeString), Column("x", TypeInt)),
		NewTableSpec(Column("x", TypeString), Column("q", TypeInt), Column("z", TypeInt)),
	}
	raw, err := NewRawSpec(specs, DefaultHierarchy())
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y", "z", "w", "q"}, raw.Union.Names())
	assert.Equal(t, []string{"x", "z"}, raw.Intersection.Names())
	for _, c := range raw.Intersection.Columns() {
		idx := raw.Union.IndexOf(c.Name)
		require.GreaterOrEqual(t, idx, 0)
		assert.Equal(t, raw.Union.Column(idx), c)
		for _, s := range specs {
			assert.True(t, s.Contains(c.Name))
		}
	}
	assert.Equal(t, TypeString, raw.Union.Column(0).Type)
	assert.Equal(t, TypeDouble, raw.Union.Column(2).Type)
}

func TestNewRawSpecMatchesDefaultNames(t *testing.T) {
	specs := []TableSpec{
		NewTableSpec(Column("", TypeInt), Column("b", TypeInt)),
		NewTableSpec(Column("", TypeLong)),
	}
	raw, err := NewRawSpec(specs, DefaultHierarchy())
	require.NoError(t, err)
	assert.Equal(t, []string{"Column0", "b"}, raw.Union.Names())
	assert.Equal(t, []string{"Column0"}, raw.Intersection.Names())
	assert.Equal(t, TypeLong, raw.Union.Column(0).Type)
}

func TestNewRawSpecWithoutSources(t *testing.T) {
	_, err := NewRawSpec(nil, DefaultHierarchy())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSpecs))
	assert.True(t, errors.IsConfiguration(err))
}

func TestSpecMergeModes(t *testing.T) {
	h := DefaultHierarchy()

	union, err := Union.Merge(scenarioSpecs(), h)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "extra"}, union.Names())

	inter, err := Intersection.Merge(scenarioSpecs(), h)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, inter.Names())

	_, err = FailOnDifferingSpecs.Merge(scenarioSpecs(), h)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "columns vary across files")
	assert.Contains(t, err.Error(), "has 3")

	same := []TableSpec{scenarioSpecs()[0], scenarioSpecs()[1]}
	merged, err := FailOnDifferingSpecs.Merge(same, h)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, merged.Names())
}

func TestSpecMergeModeDifferingNames(t *testing.T) {
	specs := []TableSpec{
		NewTableSpec(Column("a", TypeInt), Column("b", TypeInt)),
		NewTableSpec(Column("a", TypeInt), Column("c", TypeInt)),
	}
	err := CheckIdenticalColumns(specs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "c"`)
}

func TestIntersectionMergeFailsWithoutCommonColumns(t *testing.T) {
	specs := []TableSpec{
		NewTableSpec(Column("a", TypeInt)),
		NewTableSpec(Column("b", TypeInt)),
	}
	_, err := Intersection.Merge(specs, DefaultHierarchy())
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "no common columns")
}

func TestMergeModesAgreeWithRawSpecOnSingleSource(t *testing.T) {
	h := DefaultHierarchy()
	single := []TableSpec{NewTableSpec(Column("a", TypeInt), EmptyColumn("b"))}
	raw, err := NewRawSpec(single, h)
	require.NoError(t, err)

	for _, m := range []SpecMergeMode{Union, Intersection, FailOnDifferingSpecs} {
		merged, err := m.Merge(single, h)
		require.NoError(t, err)
		assert.True(t, merged.Equal(FilterModeFor(m).RelevantSpec(raw)), "mode %s", m)
	}

	for _, m := range []SpecMergeMode{Union, Intersection, FailOnDifferingSpecs} {
		_, err := m.Merge(nil, h)
		assert.True(t, errors.Is(err, ErrNoSpecs), "mode %s", m)
	}
}

func TestParseModes(t *testing.T) {
	m, err := ParseSpecMergeMode("intersection")
	require.NoError(t, err)
	assert.Equal(t, Intersection, m)

	m, err = ParseSpecMergeMode("")
	require.NoError(t, err)
	assert.Equal(t, Union, m)

	_, err = ParseSpecMergeMode("sometimes")
	assert.True(t, errors.IsConfiguration(err))

	f, err := ParseColumnFilterMode("union")
	require.NoError(t, err)
	assert.Equal(t, FilterUnion, f)
	_, err = ParseColumnFilterMode("")
	assert.Error(t, err)
}

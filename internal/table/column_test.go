package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithDefaultNames(t *testing.T) {
	spec := NewTableSpec(
		Column("id", TypeInt),
		Column("", TypeString),
		Column("id", TypeLong),
		EmptyColumn(" "),
		Column("id", TypeInt),
	)

	named := spec.WithDefaultNames()

	assert.Equal(t, []string{"id", "Column1", "id (#1)", "Column3", "id (#2)"}, named.Names())
	assert.Equal(t, TypeLong, named.Column(2).Type)
	assert.False(t, named.Column(3).HasType)
	// the receiver is left untouched
	assert.Equal(t, "", spec.Column(1).Name)
}

func TestTableSpecAccessors(t *testing.T) {
	spec := NewTableSpec(Column("a", TypeInt), EmptyColumn("b"))

	assert.Equal(t, 2, spec.Size())
	assert.Equal(t, 1, spec.IndexOf("b"))
	assert.Equal(t, -1, spec.IndexOf("c"))
	assert.True(t, spec.Contains("a"))
	assert.Equal(t, "[a:int, b:?]", spec.String())

	cols := spec.Columns()
	cols[0].Name = "changed"
	assert.Equal(t, "a", spec.Column(0).Name)

	typed := spec.Filter(func(c TypedColumnSpec) bool { return c.HasType })
	assert.Equal(t, []string{"a"}, typed.Names())

	assert.True(t, spec.Equal(NewTableSpec(Column("a", TypeInt), EmptyColumn("b"))))
	assert.False(t, spec.Equal(NewTableSpec(Column("a", TypeLong), EmptyColumn("b"))))
}

func TestIsMissing(t *testing.T) {
	for _, tok := range []any{nil, "", " \t", []byte(nil), []byte(" ")} {
		assert.True(t, IsMissing(tok), "%q", tok)
	}
	for _, tok := range []any{"x", []byte("0"), 0, false} {
		assert.False(t, IsMissing(tok), "%v", tok)
	}
}

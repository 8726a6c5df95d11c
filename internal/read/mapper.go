package read

import (
	"strconv"

	"tablereader/internal/errors"
	"tablereader/internal/table"
	"tablereader/internal/transform"
)

// IndexMapper maps output column indexes to the column indexes of one
// source. Output columns the source lacks have no mapping and read as nil.
type IndexMapper struct {
	raw []int
}

// NewIndexMapper matches the output columns against the default-named spec
// of one source.
func NewIndexMapper(out []transform.OutputColumn, source table.TableSpec) *IndexMapper {
	named := source.WithDefaultNames()
	m := &IndexMapper{raw: make([]int, len(out))}
	for i, c := range out {
		m.raw[i] = named.IndexOf(c.Source.Name)
	}
	return m
}

// Size is the number of output columns.
func (m *IndexMapper) Size() int { return len(m.raw) }

// Map returns the source index of an output column.
func (m *IndexMapper) Map(outputIdx int) (int, bool) {
	idx := m.raw[outputIdx]
	return idx, idx >= 0
}

func (m *IndexMapper) HasMapping(outputIdx int) bool {
	return m.raw[outputIdx] >= 0
}

// Apply returns the tokens of row in output order. Rows shorter than the
// source spec are padded with nil.
func (m *IndexMapper) Apply(row RandomAccessible) []any {
	out := make([]any, len(m.raw))
	for i, idx := range m.raw {
		if idx >= 0 && idx < row.Size() {
			out[i] = row.Get(idx)
		}
	}
	return out
}

// EmptyCheck guards the columns that spec inference found empty and that
// were therefore skipped.
type EmptyCheck struct {
	indices []int
	names   []string
	limit   int
}

// NewEmptyCheck returns a check for the columns of source that are untyped
// in tt's raw spec. It checks nothing unless tt skips empty columns.
func NewEmptyCheck(tt *transform.TableTransformation, source table.TableSpec, specLimit int) EmptyCheck {
	c := EmptyCheck{limit: specLimit}
	if !tt.SkipEmptyColumns() {
		return c
	}
	union := tt.RawSpec().Union
	for i, col := range source.WithDefaultNames().Columns() {
		idx := union.IndexOf(col.Name)
		if idx >= 0 && !union.Column(idx).HasType {
			c.indices = append(c.indices, i)
			c.names = append(c.names, col.Name)
		}
	}
	return c
}

// Check fails if row holds a value in one of the empty columns.
func (c EmptyCheck) Check(row RandomAccessible) error {
	for i, idx := range c.indices {
		if idx < row.Size() && !table.IsMissing(row.Get(idx)) {
			scanned := "all rows"
			if c.limit > 0 {
				scanned = "the first " + strconv.Itoa(c.limit) + " rows"
			}
			return errors.WithHint(
				errors.Consistencyf("column %q was falsely considered empty after scanning %s", c.names[i], scanned),
				"disable skipping empty columns or raise the number of rows scanned for the spec")
		}
	}
	return nil
}

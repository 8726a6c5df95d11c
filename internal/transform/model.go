package transform

import (
	"sort"

	"tablereader/internal/errors"
	"tablereader/internal/table"
)

// ColumnTransformation describes what happens to one raw column.
type ColumnTransformation struct {
	ExternalSpec table.TypedColumnSpec `json:"external_spec"`
	Path         ProductionPath        `json:"path"`
	Keep         bool                  `json:"keep"`
	Position     int                   `json:"position"`
	Name         string                `json:"name"`
}

// OriginalName is the raw column name the transformation is keyed by.
func (c ColumnTransformation) OriginalName() string { return c.ExternalSpec.Name }

// UnknownColumnsTransformation is the policy for columns that appear in a
// later read but have no ColumnTransformation yet. Position is the slot new
// columns are inserted at.
type UnknownColumnsTransformation struct {
	Position   int      `json:"position"`
	Keep       bool     `json:"keep"`
	ForceType  bool     `json:"force_type"`
	ForcedType DataType `json:"forced_type,omitempty"`
}

// Options holds the fields of a TableTransformation.
type Options struct {
	RawSpec          table.RawSpec
	Columns          []ColumnTransformation
	FilterMode       table.ColumnFilterMode
	Unknown          UnknownColumnsTransformation
	EnforceTypes     bool
	SkipEmptyColumns bool
}

// TableTransformation maps the columns of a RawSpec to output columns. It is
// immutable; every edit returns a new value.
type TableTransformation struct {
	raw              table.RawSpec
	columns          []ColumnTransformation
	byName           map[string]int
	filterMode       table.ColumnFilterMode
	unknown          UnknownColumnsTransformation
	enforceTypes     bool
	skipEmptyColumns bool
}

// New validates o and builds a TableTransformation from it.
//
// Every union column (every typed one if empty columns are skipped) must have
// exactly one transformation whose external spec matches it, and the
// positions of the transformations together with the unknown slot must be a
// permutation of [0, len(Columns)].
func New(o Options) (*TableTransformation, error) {
	if _, err := table.ParseColumnFilterMode(string(o.FilterMode)); err != nil {
		return nil, err
	}
	cols := make([]ColumnTransformation, len(o.Columns))
	copy(cols, o.Columns)

	n := len(cols)
	seenPos := make([]bool, n+1)
	claim := func(pos int, what string) error {
		if pos < 0 || pos > n {
			return errors.Configurationf("position %d of %s is outside [0, %d]", pos, what, n)
		}
		if seenPos[pos] {
			return errors.Configurationf("position %d of %s is already taken", pos, what)
		}
		seenPos[pos] = true
		return nil
	}
	if err := claim(o.Unknown.Position, "the unknown columns"); err != nil {
		return nil, err
	}

	byName := make(map[string]int, n)
	for _, c := range cols {
		name := c.OriginalName()
		if _, dup := byName[name]; dup {
			return nil, errors.Configurationf("column %q is transformed more than once", name)
		}
		byName[name] = 0
		idx := o.RawSpec.Union.IndexOf(name)
		if idx < 0 {
			return nil, errors.Configurationf("transformed column %q is not part of the table", name)
		}
		if o.RawSpec.Union.Column(idx) != c.ExternalSpec {
			return nil, errors.Configurationf("transformed column %s does not match the table column %s",
				c.ExternalSpec, o.RawSpec.Union.Column(idx))
		}
		if err := claim(c.Position, "column "+name); err != nil {
			return nil, err
		}
	}
	for _, c := range o.RawSpec.Union.Columns() {
		if o.SkipEmptyColumns && !c.HasType {
			continue
		}
		if _, ok := byName[c.Name]; !ok {
			return nil, errors.Configurationf("column %q has no transformation", c.Name)
		}
	}

	sort.Slice(cols, func(i, j int) bool { return cols[i].Position < cols[j].Position })
	for i, c := range cols {
		byName[c.OriginalName()] = i
	}
	return &TableTransformation{
		raw:              o.RawSpec,
		columns:          cols,
		byName:           byName,
		filterMode:       o.FilterMode,
		unknown:          o.Unknown,
		enforceTypes:     o.EnforceTypes,
		skipEmptyColumns: o.SkipEmptyColumns,
	}, nil
}

// Options returns a copy of the fields, suitable for building a modified
// transformation with New.
func (t *TableTransformation) Options() Options {
	return Options{
		RawSpec:          t.raw,
		Columns:          t.Columns(),
		FilterMode:       t.filterMode,
		Unknown:          t.unknown,
		EnforceTypes:     t.enforceTypes,
		SkipEmptyColumns: t.skipEmptyColumns,
	}
}

func (t *TableTransformation) RawSpec() table.RawSpec { return t.raw }
func (t *TableTransformation) FilterMode() table.ColumnFilterMode { return t.filterMode }
func (t *TableTransformation) Unknown() UnknownColumnsTransformation { return t.unknown }
func (t *TableTransformation) EnforceTypes() bool { return t.enforceTypes }
func (t *TableTransformation) SkipEmptyColumns() bool { return t.skipEmptyColumns }
func (t *TableTransformation) Size() int { return len(t.columns) }

// Columns returns the column transformations ordered by position.
func (t *TableTransformation) Columns() []ColumnTransformation {
	cols := make([]ColumnTransformation, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// Column returns the transformation of the named raw column.
func (t *TableTransformation) Column(originalName string) (ColumnTransformation, bool) {
	idx, ok := t.byName[originalName]
	if !ok {
		return ColumnTransformation{}, false
	}
	return t.columns[idx], true
}

// Equal reports whether both transformations agree in every field.
func (t *TableTransformation) Equal(o *TableTransformation) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !t.raw.Equal(o.raw) || t.filterMode != o.filterMode || t.unknown != o.unknown ||
		t.enforceTypes != o.enforceTypes || t.skipEmptyColumns != o.skipEmptyColumns ||
		len(t.columns) != len(o.columns) {
		return false
	}
	for i := range t.columns {
		if t.columns[i] != o.columns[i] {
			return false
		}
	}
	return true
}

// RelevantColumns is the part of the raw spec that may reach the output.
func (t *TableTransformation) RelevantColumns() table.TableSpec {
	relevant := t.filterMode.RelevantSpec(t.raw)
	if t.skipEmptyColumns {
		relevant = relevant.Filter(func(c table.TypedColumnSpec) bool { return c.HasType })
	}
	return relevant
}

// OutputColumn is one column of the table a read produces.
type OutputColumn struct {
	Name   string
	Type   DataType
	Source table.TypedColumnSpec
	Path   ProductionPath
}

// OutputColumns returns the kept relevant columns in position order.
func (t *TableTransformation) OutputColumns() ([]OutputColumn, error) {
	relevant := t.RelevantColumns()
	var out []OutputColumn
	names := make(map[string]string)
	for _, c := range t.columns {
		if !c.Keep || !relevant.Contains(c.OriginalName()) {
			continue
		}
		if prev, dup := names[c.Name]; dup {
			return nil, errors.WithHint(
				errors.Configurationf("columns %q and %q are both named %q in the output", prev, c.OriginalName(), c.Name),
				"rename one of the columns")
		}
		names[c.Name] = c.OriginalName()
		out = append(out, OutputColumn{
			Name:   c.Name,
			Type:   c.Path.Destination,
			Source: c.ExternalSpec,
			Path:   c.Path,
		})
	}
	return out, nil
}

package table

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// IsMissing reports whether a raw token carries no value: nil, or a
// string or byte slice that is blank.
func IsMissing(tok any) bool {
	switch v := tok.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []byte:
		return len(bytes.TrimSpace(v)) == 0
	}
	return false
}

// ExternalType is a reader-specific type tag such as "int" or "string".
// It is opaque to the framework; a TypeHierarchy gives it meaning.
type ExternalType string

// Built-in external types produced by the bundled readers.
const (
	TypeBoolean  ExternalType = "boolean"
	TypeInt      ExternalType = "int"
	TypeLong     ExternalType = "long"
	TypeDouble   ExternalType = "double"
	TypeDateTime ExternalType = "datetime"
	TypeString   ExternalType = "string"
)

// TypedColumnSpec describes one column of one source.
// HasType is false when the column was observed but no non-missing value
// was seen, in which case Type carries no information.
type TypedColumnSpec struct {
	Name    string       `json:"name"`
	Type    ExternalType `json:"type"`
	HasType bool         `json:"hasType"`
}

// Column returns a typed column spec.
func Column(name string, t ExternalType) TypedColumnSpec {
	return TypedColumnSpec{Name: name, Type: t, HasType: true}
}

// EmptyColumn returns the spec of a column without any observed value.
func EmptyColumn(name string) TypedColumnSpec {
	return TypedColumnSpec{Name: name}
}

func (c TypedColumnSpec) String() string {
	if !c.HasType {
		return c.Name + ":?"
	}
	return c.Name + ":" + string(c.Type)
}

// TableSpec is the ordered column list of one source. The zero value is an
// empty spec. TableSpec values are immutable; accessors return copies.
type TableSpec struct {
	columns []TypedColumnSpec
}

// NewTableSpec creates a TableSpec from the given columns.
func NewTableSpec(cols ...TypedColumnSpec) TableSpec {
	c := make([]TypedColumnSpec, len(cols))
	copy(c, cols)
	return TableSpec{columns: c}
}

// Size returns the number of columns.
func (s TableSpec) Size() int { return len(s.columns) }

// Column returns the column at idx.
func (s TableSpec) Column(idx int) TypedColumnSpec { return s.columns[idx] }

// Columns returns a copy of the columns.
func (s TableSpec) Columns() []TypedColumnSpec {
	c := make([]TypedColumnSpec, len(s.columns))
	copy(c, s.columns)
	return c
}

// Names returns the column names in order.
func (s TableSpec) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// IndexOf returns the position of the named column or -1.
func (s TableSpec) IndexOf(name string) int {
	for i, c := range s.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Contains reports whether a column with the given name exists.
func (s TableSpec) Contains(name string) bool { return s.IndexOf(name) >= 0 }

// Equal reports whether both specs have the same columns in the same order.
func (s TableSpec) Equal(o TableSpec) bool {
	if len(s.columns) != len(o.columns) {
		return false
	}
	for i := range s.columns {
		if s.columns[i] != o.columns[i] {
			return false
		}
	}
	return true
}

// Filter returns the columns for which keep returns true.
func (s TableSpec) Filter(keep func(TypedColumnSpec) bool) TableSpec {
	var cols []TypedColumnSpec
	for _, c := range s.columns {
		if keep(c) {
			cols = append(cols, c)
		}
	}
	return TableSpec{columns: cols}
}

func (s TableSpec) String() string {
	parts := make([]string, len(s.columns))
	for i, c := range s.columns {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// DefaultColumnName is the name given to an unnamed column at idx.
func DefaultColumnName(idx int) string {
	return "Column" + strconv.Itoa(idx)
}

// WithDefaultNames names unnamed columns after their position and makes
// duplicate names unique by appending " (#n)". Column matching across sources
// always happens on the result of this function.
func (s TableSpec) WithDefaultNames() TableSpec {
	cols := make([]TypedColumnSpec, len(s.columns))
	used := make(map[string]bool, len(s.columns))
	for i, c := range s.columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = DefaultColumnName(i)
		}
		if used[name] {
			base := name
			for n := 1; used[name]; n++ {
				name = fmt.Sprintf("%s (#%d)", base, n)
			}
		}
		used[name] = true
		c.Name = name
		cols[i] = c
	}
	return TableSpec{columns: cols}
}

package table

import (
	"tablereader/internal/errors"
)

// RawSpec holds the union and the intersection of the columns read from a
// set of sources, before any user transformation. Intersection columns are a
// subset of the union columns and appear in union order.
type RawSpec struct {
	Union        TableSpec `json:"union"`
	Intersection TableSpec `json:"intersection"`
}

// ErrNoSpecs is returned when a merge is attempted over zero sources.
var ErrNoSpecs = errors.AsConfiguration(errors.New("no table specs to merge"))

// NewRawSpec merges per-source specs. Column identity is the name after
// default-name assignment. Types of equally named columns are joined with h;
// a union column has a type iff at least one source observed a value for it.
func NewRawSpec(specs []TableSpec, h TypeHierarchy) (RawSpec, error) {
	if len(specs) == 0 {
		return RawSpec{}, ErrNoSpecs
	}
	named := make([]TableSpec, len(specs))
	for i, s := range specs {
		named[i] = s.WithDefaultNames()
	}

	resolvers := make(map[string]TypeResolver)
	var order []string
	common := make(map[string]bool, named[0].Size())
	for _, c := range named[0].columns {
		common[c.Name] = true
	}

	for _, spec := range named {
		// names of common that this spec has not shown yet
		missing := make(map[string]bool, len(common))
		for name := range common {
			missing[name] = true
		}
		for _, c := range spec.columns {
			r, ok := resolvers[c.Name]
			if !ok {
				r = h.CreateResolver()
				resolvers[c.Name] = r
				order = append(order, c.Name)
			}
			delete(missing, c.Name)
			if c.HasType {
				r.Accept(c.Type)
			}
		}
		for name := range missing {
			delete(common, name)
		}
	}

	union := make([]TypedColumnSpec, len(order))
	var intersection []TypedColumnSpec
	for i, name := range order {
		r := resolvers[name]
		union[i] = TypedColumnSpec{Name: name, Type: r.MostSpecificType(), HasType: r.HasType()}
		if common[name] {
			intersection = append(intersection, union[i])
		}
	}
	return RawSpec{
		Union:        TableSpec{columns: union},
		Intersection: TableSpec{columns: intersection},
	}, nil
}

// Equal reports whether both raw specs are identical.
func (r RawSpec) Equal(o RawSpec) bool {
	return r.Union.Equal(o.Union) && r.Intersection.Equal(o.Intersection)
}

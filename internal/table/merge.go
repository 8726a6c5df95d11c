package table

import (
	"strings"

	"tablereader/internal/errors"
)

// SpecMergeMode is the legacy policy deciding how the specs of several
// sources combine into one.
type SpecMergeMode string

const (
	FailOnDifferingSpecs SpecMergeMode = "FAIL_ON_DIFFERING_SPECS"
	Union                SpecMergeMode = "UNION"
	Intersection         SpecMergeMode = "INTERSECTION"
)

// ParseSpecMergeMode parses a merge mode name, case-insensitively.
func ParseSpecMergeMode(s string) (SpecMergeMode, error) {
	switch m := SpecMergeMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case FailOnDifferingSpecs, Union, Intersection:
		return m, nil
	case "":
		return Union, nil
	default:
		return "", errors.Configurationf("unknown spec merge mode %q", s)
	}
}

// Merge combines specs according to the mode. Types are always resolved
// with h the same way NewRawSpec resolves them.
func (m SpecMergeMode) Merge(specs []TableSpec, h TypeHierarchy) (TableSpec, error) {
	raw, err := NewRawSpec(specs, h)
	if err != nil {
		return TableSpec{}, err
	}
	switch m {
	case FailOnDifferingSpecs:
		if err := checkIdenticalColumns(specs); err != nil {
			return TableSpec{}, err
		}
		return raw.Union, nil
	case Intersection:
		if raw.Intersection.Size() == 0 {
			return TableSpec{}, errors.WithHint(
				errors.Configurationf("no common columns across sources"),
				"use the union of columns instead")
		}
		return raw.Intersection, nil
	case Union:
		return raw.Union, nil
	default:
		return TableSpec{}, errors.Configurationf("unknown spec merge mode %q", string(m))
	}
}

// CheckIdenticalColumns fails unless every spec has the column count and
// the column names of the first one.
func CheckIdenticalColumns(specs []TableSpec) error {
	if len(specs) == 0 {
		return ErrNoSpecs
	}
	return checkIdenticalColumns(specs)
}

func checkIdenticalColumns(specs []TableSpec) error {
	first := specs[0].WithDefaultNames()
	for i := 1; i < len(specs); i++ {
		s := specs[i].WithDefaultNames()
		if s.Size() != first.Size() {
			return errors.WithHint(
				errors.Configurationf("columns vary across files: source 0 has %d columns but source %d has %d",
					first.Size(), i, s.Size()),
				"use the union or intersection of columns instead")
		}
		for _, c := range s.columns {
			if !first.Contains(c.Name) {
				return errors.WithHint(
					errors.Configurationf("columns vary across files: column %q of source %d is not present in source 0",
						c.Name, i),
					"use the union or intersection of columns instead")
			}
		}
	}
	return nil
}

// ColumnFilterMode selects which part of a RawSpec is authoritative for the
// output of a table transformation.
type ColumnFilterMode string

const (
	FilterUnion        ColumnFilterMode = "UNION"
	FilterIntersection ColumnFilterMode = "INTERSECTION"
)

// ParseColumnFilterMode parses a filter mode name, case-insensitively.
func ParseColumnFilterMode(s string) (ColumnFilterMode, error) {
	switch m := ColumnFilterMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case FilterUnion, FilterIntersection:
		return m, nil
	default:
		return "", errors.Configurationf("unknown column filter mode %q", s)
	}
}

// RelevantSpec returns the part of raw selected by the mode.
func (m ColumnFilterMode) RelevantSpec(raw RawSpec) TableSpec {
	if m == FilterIntersection {
		return raw.Intersection
	}
	return raw.Union
}

// FilterModeFor maps a legacy merge mode onto a column filter mode.
func FilterModeFor(m SpecMergeMode) ColumnFilterMode {
	if m == Intersection {
		return FilterIntersection
	}
	return FilterUnion
}

package transform

import (
	"slices"

	"tablereader/internal/errors"
	"tablereader/internal/table"
)

func (t *TableTransformation) withColumn(originalName string, edit func(*ColumnTransformation) error) (*TableTransformation, error) {
	idx, ok := t.byName[originalName]
	if !ok {
		return nil, errors.NotFoundf("column %q", originalName)
	}
	o := t.Options()
	if err := edit(&o.Columns[idx]); err != nil {
		return nil, err
	}
	return New(o)
}

// Rename sets the output name of a column.
func (t *TableTransformation) Rename(originalName, name string) (*TableTransformation, error) {
	if name == "" {
		return nil, errors.Configurationf("column %q cannot be renamed to an empty name", originalName)
	}
	return t.withColumn(originalName, func(c *ColumnTransformation) error {
		c.Name = name
		return nil
	})
}

// Retype switches a column to the path from its external type to dest.
func (t *TableTransformation) Retype(paths ProductionPathProvider, originalName string, dest DataType) (*TableTransformation, error) {
	return t.withColumn(originalName, func(c *ColumnTransformation) error {
		p, ok := findPath(paths, c.ExternalSpec.Type, dest)
		if !ok {
			return errors.Configurationf("column %q of type %s cannot be converted to %s",
				originalName, c.ExternalSpec.Type, dest)
		}
		c.Path = p
		return nil
	})
}

// SetKeep includes or excludes a column from the output.
func (t *TableTransformation) SetKeep(originalName string, keep bool) (*TableTransformation, error) {
	return t.withColumn(originalName, func(c *ColumnTransformation) error {
		c.Keep = keep
		return nil
	})
}

// Move places a column at pos, shifting the columns in between.
func (t *TableTransformation) Move(originalName string, pos int) (*TableTransformation, error) {
	idx, ok := t.byName[originalName]
	if !ok {
		return nil, errors.NotFoundf("column %q", originalName)
	}
	return t.move(idx, pos)
}

// MoveUnknown places the unknown column slot at pos.
func (t *TableTransformation) MoveUnknown(pos int) (*TableTransformation, error) {
	return t.move(-1, pos)
}

// move reorders the slots (column indexes, -1 for the unknown slot) and
// renumbers them densely.
func (t *TableTransformation) move(slot, pos int) (*TableTransformation, error) {
	n := len(t.columns)
	if pos < 0 || pos > n {
		return nil, errors.Configurationf("position %d is outside [0, %d]", pos, n)
	}
	slots := make([]int, n+1)
	for i, c := range t.columns {
		slots[c.Position] = i
	}
	slots[t.unknown.Position] = -1

	from := slices.Index(slots, slot)
	slots = slices.Delete(slots, from, from+1)
	slots = slices.Insert(slots, pos, slot)

	o := t.Options()
	for p, s := range slots {
		if s == -1 {
			o.Unknown.Position = p
			continue
		}
		o.Columns[s].Position = p
	}
	return New(o)
}

// WithEnforceTypes toggles whether type changes must keep the configured
// output type.
func (t *TableTransformation) WithEnforceTypes(enforce bool) (*TableTransformation, error) {
	o := t.Options()
	o.EnforceTypes = enforce
	return New(o)
}

// WithFilterMode selects whether the union or the intersection of the
// source columns is output. Column positions are left as they are.
func (t *TableTransformation) WithFilterMode(mode table.ColumnFilterMode) (*TableTransformation, error) {
	if err := checkRelevant(mode, t.raw); err != nil {
		return nil, err
	}
	o := t.Options()
	o.FilterMode = mode
	return New(o)
}

// WithUnknownColumns changes the policy for new columns. The slot position
// is left as is.
func (t *TableTransformation) WithUnknownColumns(keep, forceType bool, forcedType DataType) (*TableTransformation, error) {
	if forceType && forcedType == "" {
		return nil, errors.Configurationf("a forced type is required when forcing the type of unknown columns")
	}
	o := t.Options()
	o.Unknown.Keep = keep
	o.Unknown.ForceType = forceType
	o.Unknown.ForcedType = forcedType
	if !forceType {
		o.Unknown.ForcedType = ""
	}
	return New(o)
}

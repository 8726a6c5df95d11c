package read

import (
	"slices"
	"strconv"

	"tablereader/internal/errors"
	"tablereader/internal/settings"
	"tablereader/internal/table"
	"tablereader/internal/transform"
)

// TableSpecConfig is the persisted result of configuring a read: the specs
// of the sources it was configured with and the transformation built on
// them.
type TableSpecConfig struct {
	group           SourceGroup
	individualSpecs []table.TableSpec
	transformation  *transform.TableTransformation
}

// NewTableSpecConfig binds specs (one per group item) and a transformation.
func NewTableSpecConfig(group SourceGroup, specs []table.TableSpec, tt *transform.TableTransformation) (*TableSpecConfig, error) {
	if len(specs) != len(group.Items) {
		return nil, errors.Newf("%d specs for %d sources", len(specs), len(group.Items))
	}
	return &TableSpecConfig{
		group:           SourceGroup{ID: group.ID, Items: slices.Clone(group.Items)},
		individualSpecs: slices.Clone(specs),
		transformation:  tt,
	}, nil
}

// IsConfiguredWith reports whether the config was created for group.
func (c *TableSpecConfig) IsConfiguredWith(group SourceGroup) bool {
	return c.group.Equal(group)
}

func (c *TableSpecConfig) SourceGroup() SourceGroup { return c.group }

func (c *TableSpecConfig) Transformation() *transform.TableTransformation { return c.transformation }

func (c *TableSpecConfig) RawSpec() table.RawSpec { return c.transformation.RawSpec() }

// WithTransformation returns a copy of c with tt in place of its
// transformation. tt must be built on the same raw spec.
func (c *TableSpecConfig) WithTransformation(tt *transform.TableTransformation) (*TableSpecConfig, error) {
	if !tt.RawSpec().Equal(c.RawSpec()) {
		return nil, errors.Configurationf("transformation was built for other source specs")
	}
	return NewTableSpecConfig(c.group, c.individualSpecs, tt)
}

// Spec returns the spec read from item.
func (c *TableSpecConfig) Spec(item string) (table.TableSpec, bool) {
	idx := slices.Index(c.group.Items, item)
	if idx < 0 {
		return table.TableSpec{}, false
	}
	return c.individualSpecs[idx], true
}

// OutputColumns returns the columns a read with this config produces.
func (c *TableSpecConfig) OutputColumns() ([]transform.OutputColumn, error) {
	return c.transformation.OutputColumns()
}

// ProductionPaths returns the production path of every output column.
func (c *TableSpecConfig) ProductionPaths() ([]transform.ProductionPath, error) {
	cols, err := c.OutputColumns()
	if err != nil {
		return nil, err
	}
	paths := make([]transform.ProductionPath, len(cols))
	for i, col := range cols {
		paths[i] = col.Path
	}
	return paths, nil
}

// Settings keys.
const (
	keySourceGroupID   = "source_group_id"
	keyItems           = "items"
	keyIndividualSpecs = "individual_specs"
	keyTransformation  = "transformation"
	keyFilterMode      = "filter_mode"
	keyEnforceTypes    = "enforce_types"
	keySkipEmpty       = "skip_empty_columns"
	keyUnknown         = "unknown"
	keyPosition        = "position"
	keyKeep            = "keep"
	keyForceType       = "force_type"
	keyForcedType      = "forced_type"
	keyColumns         = "columns"
	keyNames           = "names"
	keyTypes           = "types"
	keyHasTypes        = "has_types"
	keyPaths           = "paths"
	keyPositions       = "positions"
	keyOutputNames     = "output_names"
)

// Save writes c to t.
func (c *TableSpecConfig) Save(t *settings.Tree) {
	t.SetString(keySourceGroupID, c.group.ID)
	t.SetStrings(keyItems, c.group.Items)
	specs := t.AddTree(keyIndividualSpecs)
	for i, s := range c.individualSpecs {
		saveSpec(specs.AddTree(strconv.Itoa(i)), s)
	}

	tt := c.transformation
	tr := t.AddTree(keyTransformation)
	tr.SetString(keyFilterMode, string(tt.FilterMode()))
	tr.SetBool(keyEnforceTypes, tt.EnforceTypes())
	tr.SetBool(keySkipEmpty, tt.SkipEmptyColumns())
	u := tt.Unknown()
	ut := tr.AddTree(keyUnknown)
	ut.SetInt(keyPosition, int64(u.Position))
	ut.SetBool(keyKeep, u.Keep)
	ut.SetBool(keyForceType, u.ForceType)
	ut.SetString(keyForcedType, string(u.ForcedType))

	cols := tt.Columns()
	specCols := make([]table.TypedColumnSpec, len(cols))
	paths := make([]string, len(cols))
	keep := make([]string, len(cols))
	positions := make([]string, len(cols))
	outputNames := make([]string, len(cols))
	for i, col := range cols {
		specCols[i] = col.ExternalSpec
		paths[i] = col.Path.Key()
		keep[i] = strconv.FormatBool(col.Keep)
		positions[i] = strconv.Itoa(col.Position)
		outputNames[i] = col.Name
	}
	ct := tr.AddTree(keyColumns)
	saveSpec(ct, table.NewTableSpec(specCols...))
	ct.SetStrings(keyPaths, paths)
	ct.SetStrings(keyKeep, keep)
	ct.SetStrings(keyPositions, positions)
	ct.SetStrings(keyOutputNames, outputNames)
}

func saveSpec(t *settings.Tree, s table.TableSpec) {
	names := make([]string, s.Size())
	types := make([]string, s.Size())
	hasTypes := make([]string, s.Size())
	for i, c := range s.Columns() {
		names[i] = c.Name
		types[i] = string(c.Type)
		hasTypes[i] = strconv.FormatBool(c.HasType)
	}
	t.SetStrings(keyNames, names)
	t.SetStrings(keyTypes, types)
	t.SetStrings(keyHasTypes, hasTypes)
}

// LoadTableSpecConfig reads a config written by Save. Every array length,
// type and production path is validated before any object is built.
func LoadTableSpecConfig(t *settings.Tree, h table.TypeHierarchy, paths PathRegistry) (*TableSpecConfig, error) {
	cfg, err := loadTableSpecConfig(t, h, paths)
	if err != nil {
		return nil, errors.Wrap(errors.AsConfiguration(err), "invalid table spec config")
	}
	return cfg, nil
}

func loadTableSpecConfig(t *settings.Tree, h table.TypeHierarchy, paths PathRegistry) (*TableSpecConfig, error) {
	id, err := t.GetString(keySourceGroupID)
	if err != nil {
		return nil, err
	}
	items, err := t.GetStrings(keyItems)
	if err != nil {
		return nil, err
	}
	specsTree, err := t.GetTree(keyIndividualSpecs)
	if err != nil {
		return nil, err
	}
	if n := len(specsTree.Keys()); n != len(items) {
		return nil, errors.Newf("%d individual specs for %d items", n, len(items))
	}
	specs := make([]table.TableSpec, len(items))
	for i := range items {
		st, err := specsTree.GetTree(strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		if specs[i], err = loadSpec(st, h); err != nil {
			return nil, errors.Wrapf(err, "spec of %s", items[i])
		}
	}

	tr, err := t.GetTree(keyTransformation)
	if err != nil {
		return nil, err
	}
	mode, err := tr.GetString(keyFilterMode)
	if err != nil {
		return nil, err
	}
	filterMode, err := table.ParseColumnFilterMode(mode)
	if err != nil {
		return nil, err
	}
	enforce, err := tr.GetBool(keyEnforceTypes)
	if err != nil {
		return nil, err
	}
	skipEmpty, err := tr.GetBool(keySkipEmpty)
	if err != nil {
		return nil, err
	}
	unknown, err := loadUnknown(tr)
	if err != nil {
		return nil, err
	}
	cols, err := loadColumns(tr, h, paths)
	if err != nil {
		return nil, err
	}

	raw, err := table.NewRawSpec(specs, h)
	if err != nil {
		return nil, err
	}
	tt, err := transform.New(transform.Options{
		RawSpec:          raw,
		Columns:          cols,
		FilterMode:       filterMode,
		Unknown:          unknown,
		EnforceTypes:     enforce,
		SkipEmptyColumns: skipEmpty,
	})
	if err != nil {
		return nil, err
	}
	return NewTableSpecConfig(SourceGroup{ID: id, Items: items}, specs, tt)
}

func loadSpec(t *settings.Tree, h table.TypeHierarchy) (table.TableSpec, error) {
	names, err := t.GetStrings(keyNames)
	if err != nil {
		return table.TableSpec{}, err
	}
	types, err := t.GetStrings(keyTypes)
	if err != nil {
		return table.TableSpec{}, err
	}
	hasTypes, err := t.GetStrings(keyHasTypes)
	if err != nil {
		return table.TableSpec{}, err
	}
	if len(types) != len(names) || len(hasTypes) != len(names) {
		return table.TableSpec{}, errors.Newf("spec arrays differ in length: %d names, %d types, %d flags",
			len(names), len(types), len(hasTypes))
	}
	cols := make([]table.TypedColumnSpec, len(names))
	for i, name := range names {
		has, err := strconv.ParseBool(hasTypes[i])
		if err != nil {
			return table.TableSpec{}, errors.Wrapf(err, "has-type flag of column %q", name)
		}
		typ := table.ExternalType(types[i])
		if has && !h.Supports(typ) {
			return table.TableSpec{}, errors.Newf("column %q has unknown type %q", name, typ)
		}
		cols[i] = table.TypedColumnSpec{Name: name, Type: typ, HasType: has}
	}
	return table.NewTableSpec(cols...), nil
}

func loadUnknown(tr *settings.Tree) (transform.UnknownColumnsTransformation, error) {
	var u transform.UnknownColumnsTransformation
	ut, err := tr.GetTree(keyUnknown)
	if err != nil {
		return u, err
	}
	pos, err := ut.GetInt(keyPosition)
	if err != nil {
		return u, err
	}
	if u.Keep, err = ut.GetBool(keyKeep); err != nil {
		return u, err
	}
	if u.ForceType, err = ut.GetBool(keyForceType); err != nil {
		return u, err
	}
	u.Position = int(pos)
	u.ForcedType = transform.DataType(ut.StringOr(keyForcedType, ""))
	return u, nil
}

func loadColumns(tr *settings.Tree, h table.TypeHierarchy, registry PathRegistry) ([]transform.ColumnTransformation, error) {
	ct, err := tr.GetTree(keyColumns)
	if err != nil {
		return nil, err
	}
	spec, err := loadSpec(ct, h)
	if err != nil {
		return nil, err
	}
	n := spec.Size()
	arrays := make(map[string][]string)
	for _, key := range []string{keyPaths, keyKeep, keyPositions, keyOutputNames} {
		arr, err := ct.GetStrings(key)
		if err != nil {
			return nil, err
		}
		if len(arr) != n {
			return nil, errors.Newf("%s has %d entries for %d columns", key, len(arr), n)
		}
		arrays[key] = arr
	}

	cols := make([]transform.ColumnTransformation, n)
	for i, ext := range spec.Columns() {
		path, ok := registry.Lookup(arrays[keyPaths][i])
		if !ok {
			return nil, errors.Newf("column %q uses unknown production path %q", ext.Name, arrays[keyPaths][i])
		}
		keep, err := strconv.ParseBool(arrays[keyKeep][i])
		if err != nil {
			return nil, errors.Wrapf(err, "keep flag of column %q", ext.Name)
		}
		pos, err := strconv.Atoi(arrays[keyPositions][i])
		if err != nil {
			return nil, errors.Wrapf(err, "position of column %q", ext.Name)
		}
		cols[i] = transform.ColumnTransformation{
			ExternalSpec: ext,
			Path:         path,
			Keep:         keep,
			Position:     pos,
			Name:         arrays[keyOutputNames][i],
		}
	}
	return cols, nil
}

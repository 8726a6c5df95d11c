package transform

import (
	"tablereader/internal/errors"
	"tablereader/internal/table"
)

// Config holds the reader settings the factory depends on.
type Config struct {
	SpecMergeMode    table.SpecMergeMode
	SkipEmptyColumns bool
}

// Factory creates TableTransformations for raw specs, either from scratch or
// by reconciling an existing transformation with a changed raw spec. Its
// results depend only on its inputs.
type Factory struct {
	paths ProductionPathProvider
}

func NewFactory(paths ProductionPathProvider) *Factory {
	return &Factory{paths: paths}
}

// Create reconciles existing with raw, or creates a new transformation if
// existing is nil.
func (f *Factory) Create(raw table.RawSpec, cfg Config, existing *TableTransformation) (*TableTransformation, error) {
	if existing == nil {
		return f.CreateNew(raw, cfg)
	}
	return f.CreateFromExisting(raw, cfg, existing)
}

// CreateNew keeps every column in union order with its default production
// path and appends the unknown column slot.
func (f *Factory) CreateNew(raw table.RawSpec, cfg Config) (*TableTransformation, error) {
	mode := table.FilterModeFor(cfg.SpecMergeMode)
	if err := checkRelevant(mode, raw); err != nil {
		return nil, err
	}
	unknown := UnknownColumnsTransformation{Keep: true}

	var cols []ColumnTransformation
	for _, c := range raw.Union.Columns() {
		if cfg.SkipEmptyColumns && !c.HasType {
			continue
		}
		ct, err := f.createColumn(c, len(cols), unknown)
		if err != nil {
			return nil, err
		}
		ct.Keep = true
		cols = append(cols, ct)
	}
	unknown.Position = len(cols)

	return New(Options{
		RawSpec:          raw,
		Columns:          cols,
		FilterMode:       mode,
		Unknown:          unknown,
		EnforceTypes:     true,
		SkipEmptyColumns: cfg.SkipEmptyColumns,
	})
}

type relevantTransformation struct {
	spec     table.TypedColumnSpec
	existing ColumnTransformation
}

// CreateFromExisting adapts existing to raw.
//
// Columns still relevant under the existing filter mode keep their relative
// order, names and keep flags. Columns without a transformation are inserted
// as one batch where the unknown slot used to be, and the slot moves behind
// them. Columns that vanished from raw are dropped.
//
// In intersection mode, columns outside the intersection count as unknown
// and are inserted at the slot again, so running this on the raw spec that
// existing was built from can still change positions when the slot is not
// last. Callers skip it while the raw spec is unchanged.
func (f *Factory) CreateFromExisting(raw table.RawSpec, cfg Config, existing *TableTransformation) (*TableTransformation, error) {
	mode := existing.FilterMode()
	if err := checkRelevant(mode, raw); err != nil {
		return nil, err
	}
	skipEmpty := cfg.SkipEmptyColumns
	relevantColumns := mode.RelevantSpec(raw)
	if skipEmpty {
		relevantColumns = relevantColumns.Filter(func(c table.TypedColumnSpec) bool { return c.HasType })
	}

	// existing.Columns is ordered by position
	var relevant []relevantTransformation
	known := make(map[string]bool)
	for _, ct := range existing.Columns() {
		idx := relevantColumns.IndexOf(ct.OriginalName())
		if idx < 0 {
			continue
		}
		relevant = append(relevant, relevantTransformation{spec: relevantColumns.Column(idx), existing: ct})
		known[ct.OriginalName()] = true
	}

	oldUnknown := existing.Unknown()
	insertUnknownsAt := len(relevant)
	for i, r := range relevant {
		if r.existing.Position >= oldUnknown.Position {
			insertUnknownsAt = i
			break
		}
	}

	var unknowns []table.TypedColumnSpec
	for _, c := range raw.Union.Columns() {
		if skipEmpty && !c.HasType {
			continue
		}
		if !known[c.Name] {
			unknowns = append(unknowns, c)
		}
	}

	cols := make([]ColumnTransformation, 0, len(relevant)+len(unknowns))
	adapt := func(r relevantTransformation) error {
		ct, err := f.adaptExisting(r.spec, r.existing, len(cols), existing.EnforceTypes())
		if err != nil {
			return err
		}
		cols = append(cols, ct)
		return nil
	}
	for _, r := range relevant[:insertUnknownsAt] {
		if err := adapt(r); err != nil {
			return nil, err
		}
	}
	for _, c := range unknowns {
		ct, err := f.createColumn(c, len(cols), oldUnknown)
		if err != nil {
			return nil, err
		}
		cols = append(cols, ct)
	}
	unknown := oldUnknown
	unknown.Position = len(cols)
	for _, r := range relevant[insertUnknownsAt:] {
		// the unknown slot sits before these
		ct, err := f.adaptExisting(r.spec, r.existing, len(cols)+1, existing.EnforceTypes())
		if err != nil {
			return nil, err
		}
		cols = append(cols, ct)
	}

	return New(Options{
		RawSpec:          raw,
		Columns:          cols,
		FilterMode:       mode,
		Unknown:          unknown,
		EnforceTypes:     existing.EnforceTypes(),
		SkipEmptyColumns: skipEmpty,
	})
}

// adaptExisting carries a transformation over to a column whose external
// type may have changed.
func (f *Factory) adaptExisting(spec table.TypedColumnSpec, existing ColumnTransformation, pos int, enforceTypes bool) (ColumnTransformation, error) {
	path := existing.Path
	if spec.HasType && spec.Type != existing.ExternalSpec.Type {
		if enforceTypes {
			p, ok := findPath(f.paths, spec.Type, existing.Path.Destination)
			if !ok {
				return ColumnTransformation{}, errors.WithHint(
					errors.Configurationf("the type of column %q changed from %s to %s, which cannot be converted to the configured type %s",
						spec.Name, existing.ExternalSpec.Type, spec.Type, existing.Path.Destination),
					"change the type of the column or disable enforce types")
			}
			path = p
		} else {
			p, err := f.defaultPath(spec)
			if err != nil {
				return ColumnTransformation{}, err
			}
			path = p
		}
	}
	return ColumnTransformation{
		ExternalSpec: spec,
		Path:         path,
		Keep:         existing.Keep,
		Position:     pos,
		Name:         existing.Name,
	}, nil
}

// createColumn builds the transformation of a column seen for the first time.
func (f *Factory) createColumn(spec table.TypedColumnSpec, pos int, unknown UnknownColumnsTransformation) (ColumnTransformation, error) {
	var path ProductionPath
	forced := false
	if unknown.ForceType {
		path, forced = findPath(f.paths, spec.Type, unknown.ForcedType)
	}
	if !forced {
		p, err := f.defaultPath(spec)
		if err != nil {
			return ColumnTransformation{}, err
		}
		path = p
	}
	return ColumnTransformation{
		ExternalSpec: spec,
		Path:         path,
		Keep:         unknown.Keep,
		Position:     pos,
		Name:         spec.Name,
	}, nil
}

func (f *Factory) defaultPath(spec table.TypedColumnSpec) (ProductionPath, error) {
	p, err := f.paths.DefaultProductionPath(spec.Type)
	if err != nil {
		return ProductionPath{}, errors.Wrapf(errors.AsConfiguration(err), "column %q", spec.Name)
	}
	return p, nil
}

func checkRelevant(mode table.ColumnFilterMode, raw table.RawSpec) error {
	if mode == table.FilterIntersection && raw.Intersection.Size() == 0 {
		return errors.WithHint(
			errors.Configurationf("no common columns across sources"),
			"use the union of columns instead")
	}
	return nil
}

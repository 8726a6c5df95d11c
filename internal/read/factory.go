package read

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tablereader/internal/errors"
	"tablereader/internal/logger"
	"tablereader/internal/table"
	"tablereader/internal/transform"
)

// MultiTableReadFactory creates reads over source groups for one kind of
// TableReader.
type MultiTableReadFactory struct {
	reader     TableReader
	hierarchy  table.TypeHierarchy
	paths      PathRegistry
	transforms *transform.Factory
	log        *zap.SugaredLogger
}

func NewMultiTableReadFactory(reader TableReader, h table.TypeHierarchy, paths PathRegistry) *MultiTableReadFactory {
	return &MultiTableReadFactory{
		reader:     reader,
		hierarchy:  h,
		paths:      paths,
		transforms: transform.NewFactory(paths),
		log:        logger.ComponentLogger("read.multi"),
	}
}

// Create reads the spec of every source in group and merges them. previous
// is the config of an earlier run, or nil. Specs are always read again, so
// sources whose columns changed since previous was saved are noticed: the
// stored transformation is reused as is while the merged spec is unchanged
// and reconciled with the new specs otherwise.
//
// Spec conflicts are reported here, before any row is read.
func (f *MultiTableReadFactory) Create(ctx context.Context, group SourceGroup, cfg Config, previous *TableSpecConfig, monitor ProgressMonitor) (*StagedMultiTableRead, error) {
	monitor = monitorOrNop(monitor)
	start := time.Now()
	specs := make([]table.TableSpec, len(group.Items))
	for i, item := range group.Items {
		if err := ctx.Err(); err != nil {
			return nil, errors.Canceled(err)
		}
		monitor.SetProgress(float64(i)/float64(len(group.Items)), "reading spec of "+item)
		spec, err := f.reader.ReadSpec(ctx, item, cfg)
		if err != nil {
			if errors.IsCanceled(err) {
				return nil, errors.Canceled(err)
			}
			return nil, errors.Wrapf(err, "read spec of %s", item)
		}
		specs[i] = spec.WithDefaultNames()
	}
	monitor.SetProgress(1, "specs read")

	if cfg.FailsOnDifferingSpecs() {
		if err := table.CheckIdenticalColumns(specs); err != nil {
			return nil, err
		}
	}
	raw, err := table.NewRawSpec(specs, f.hierarchy)
	if err != nil {
		return nil, err
	}
	f.log.Debugw("Specs merged",
		logger.FieldSource, group.ID,
		logger.FieldCount, len(specs),
		"union", raw.Union.String(),
		"intersection", raw.Intersection.String(),
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	s := &StagedMultiTableRead{
		factory:  f,
		group:    group,
		cfg:      cfg,
		specs:    specs,
		raw:      raw,
		previous: previous,
	}
	// fail fast on transformation conflicts
	if _, err := s.transformation(nil); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateFromConfig builds a read directly from a persisted config without
// reading any spec. Rows are mapped by the stored source specs, so the
// caller must know the sources did not change since spec was saved.
func (f *MultiTableReadFactory) CreateFromConfig(group SourceGroup, cfg Config, spec *TableSpecConfig) (*MultiTableRead, error) {
	if !spec.IsConfiguredWith(group) {
		return nil, errors.Configurationf("table spec config was created for another set of sources")
	}
	return f.newMultiTableRead(spec, cfg)
}

// StagedMultiTableRead holds the merged specs of a source group and turns
// them into a MultiTableRead once the transformation is known.
type StagedMultiTableRead struct {
	factory  *MultiTableReadFactory
	group    SourceGroup
	cfg      Config
	specs    []table.TableSpec
	raw      table.RawSpec
	previous *TableSpecConfig
}

// RawSpec returns the union and intersection of the source specs.
func (s *StagedMultiTableRead) RawSpec() table.RawSpec { return s.raw }

// IsValidFor reports whether the staged read was created for group.
func (s *StagedMultiTableRead) IsValidFor(group SourceGroup) bool {
	return s.group.Equal(group)
}

// WithoutTransformation materialises the read with the transformation of
// the previous config, reconciled with the current specs if needed, or a
// new default transformation.
func (s *StagedMultiTableRead) WithoutTransformation(group SourceGroup) (*MultiTableRead, error) {
	return s.materialize(group, nil)
}

// WithTransformation materialises the read with tt, reconciled with the
// current specs if tt was built for other ones.
func (s *StagedMultiTableRead) WithTransformation(group SourceGroup, tt *transform.TableTransformation) (*MultiTableRead, error) {
	if tt == nil {
		return nil, errors.New("nil table transformation")
	}
	return s.materialize(group, tt)
}

func (s *StagedMultiTableRead) materialize(group SourceGroup, tt *transform.TableTransformation) (*MultiTableRead, error) {
	if !s.IsValidFor(group) {
		return nil, errors.Configurationf("staged read of %s used for source group %s", s.group.ID, group.ID)
	}
	tt, err := s.transformation(tt)
	if err != nil {
		return nil, err
	}
	spec, err := NewTableSpecConfig(s.group, s.specs, tt)
	if err != nil {
		return nil, err
	}
	return s.factory.newMultiTableRead(spec, s.cfg)
}

func (s *StagedMultiTableRead) transformation(tt *transform.TableTransformation) (*transform.TableTransformation, error) {
	tcfg := s.cfg.TransformationConfig()
	fromPrevious := tt == nil && s.previous != nil
	if fromPrevious {
		tt = s.previous.Transformation()
	}
	if tt == nil {
		return s.factory.transforms.CreateNew(s.raw, tcfg)
	}

	// the merge mode of the read settings wins over the one stored. A union
	// is set before reconciling, an intersection once the new specs are in.
	mode := table.FilterModeFor(tcfg.SpecMergeMode)
	retarget := fromPrevious && tt.FilterMode() != mode
	var err error
	if retarget && mode == table.FilterUnion {
		if tt, err = tt.WithFilterMode(mode); err != nil {
			return nil, err
		}
		retarget = false
	}
	if !tt.RawSpec().Equal(s.raw) || tt.SkipEmptyColumns() != tcfg.SkipEmptyColumns {
		if tt, err = s.factory.transforms.CreateFromExisting(s.raw, tcfg, tt); err != nil {
			return nil, err
		}
		s.factory.log.Debugw("Table transformation reconciled with changed specs",
			logger.FieldSource, s.group.ID, "union", s.raw.Union.String())
	}
	if retarget {
		return tt.WithFilterMode(mode)
	}
	return tt, nil
}

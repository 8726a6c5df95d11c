package read

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"tablereader/internal/errors"
	"tablereader/internal/logger"
	"tablereader/internal/transform"
)

// MultiTableRead reads the sources of a group one after another into a
// single table.
type MultiTableRead struct {
	reader  TableReader
	spec    *TableSpecConfig
	cfg     Config
	columns []transform.OutputColumn
	types   transform.TypeMapper
	log     *zap.SugaredLogger
}

func (f *MultiTableReadFactory) newMultiTableRead(spec *TableSpecConfig, cfg Config) (*MultiTableRead, error) {
	cols, err := spec.OutputColumns()
	if err != nil {
		return nil, err
	}
	paths := make([]transform.ProductionPath, len(cols))
	for i, c := range cols {
		paths[i] = c.Path
	}
	types, err := f.paths.NewTypeMapper(paths)
	if err != nil {
		return nil, err
	}
	return &MultiTableRead{
		reader:  f.reader,
		spec:    spec,
		cfg:     cfg,
		columns: cols,
		types:   types,
		log:     f.log,
	}, nil
}

// OutputSpec returns the columns of the produced table.
func (m *MultiTableRead) OutputSpec() []transform.OutputColumn {
	return append([]transform.OutputColumn(nil), m.columns...)
}

// TableSpecConfig returns the config to persist for later runs.
func (m *MultiTableRead) TableSpecConfig() *TableSpecConfig { return m.spec }

func (m *MultiTableRead) individualReader(idx int) *IndividualTableReader {
	item := m.spec.group.Items[idx]
	source := m.spec.individualSpecs[idx]
	return &IndividualTableReader{
		source:  item,
		columns: m.columns,
		mapper:  NewIndexMapper(m.columns, source),
		types:   m.types,
		empty:   NewEmptyCheck(m.spec.transformation, source, m.cfg.SpecLimit),
		cfg:     m.cfg,
		log:     m.log,
	}
}

// FillRowOutput pushes the rows of every source to out, in source order.
// It stops at the first error; rows pushed before stay pushed.
func (m *MultiTableRead) FillRowOutput(ctx context.Context, out RowOutput, monitor ProgressMonitor) (Stats, error) {
	monitor = monitorOrNop(monitor)
	start := time.Now()
	items := m.spec.group.Items
	stats := Stats{}
	keys := &rowCounter{}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, errors.Canceled(err)
		}
		base := float64(i) / float64(len(items))
		monitor.SetProgress(base, "reading "+item)
		progress := func(f float64) {
			monitor.SetProgress(base+f/float64(len(items)), "reading "+item)
		}
		if err := m.fillSource(ctx, i, out, keys, &stats, progress); err != nil {
			return stats, err
		}
		stats.Sources++
	}
	monitor.SetProgress(1, "done")
	m.log.Infow("Read finished",
		logger.FieldSource, m.spec.group.ID,
		logger.FieldCount, stats.Rows,
		"skipped", stats.SkippedRows,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return stats, nil
}

// fillSource reads one source; the Read is closed on every path.
func (m *MultiTableRead) fillSource(ctx context.Context, idx int, out RowOutput, keys *rowCounter, stats *Stats, progress func(float64)) (err error) {
	item := m.spec.group.Items[idx]
	read, err := m.reader.Read(ctx, item, m.cfg)
	if err != nil {
		return errors.Wrapf(err, "open %s", item)
	}
	defer func() {
		if cerr := read.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", item)
		}
	}()
	return m.individualReader(idx).Fill(ctx, read, out, keys, stats, progress)
}

// CreatePreviewIterator returns an iterator over the output rows, opening
// each source only when the previous one is exhausted. Content errors end
// the iteration.
func (m *MultiTableRead) CreatePreviewIterator(ctx context.Context) *PreviewIterator {
	return &PreviewIterator{ctx: ctx, m: m, keys: &rowCounter{}}
}

// PreviewIterator yields output rows one at a time. Next returns io.EOF
// after the last row. Close releases the current source.
type PreviewIterator struct {
	ctx     context.Context
	m       *MultiTableRead
	keys    *rowCounter
	idx     int
	current Read
	reader  *IndividualTableReader
	buf     []OutputRow
	stats   Stats
}

func (p *PreviewIterator) Next() (OutputRow, error) {
	for {
		if err := p.ctx.Err(); err != nil {
			return OutputRow{}, errors.Canceled(err)
		}
		if len(p.buf) > 0 {
			row := p.buf[0]
			p.buf = p.buf[1:]
			return row, nil
		}
		if p.current == nil {
			if p.idx >= len(p.m.spec.group.Items) {
				return OutputRow{}, io.EOF
			}
			item := p.m.spec.group.Items[p.idx]
			read, err := p.m.reader.Read(p.ctx, item, p.m.cfg)
			if err != nil {
				return OutputRow{}, errors.Wrapf(err, "open %s", item)
			}
			p.current = read
			p.reader = p.m.individualReader(p.idx)
			p.idx++
		}
		// pull a single row through the individual reader
		one := &singleRowRead{Read: p.current}
		err := p.reader.Fill(p.ctx, one, RowOutputFunc(func(row OutputRow) error {
			p.buf = append(p.buf, row)
			return nil
		}), p.keys, &p.stats, func(float64) {})
		if err != nil {
			return OutputRow{}, err
		}
		if one.exhausted {
			if err := p.closeCurrent(); err != nil {
				return OutputRow{}, err
			}
		}
	}
}

func (p *PreviewIterator) closeCurrent() error {
	if p.current == nil {
		return nil
	}
	err := p.current.Close()
	p.current = nil
	return err
}

func (p *PreviewIterator) Close() error {
	return p.closeCurrent()
}

// singleRowRead lets one row through and then reports EOF without
// closing the underlying read.
type singleRowRead struct {
	Read
	done      bool
	exhausted bool
}

func (s *singleRowRead) Next() (RandomAccessible, error) {
	if s.done {
		return nil, io.EOF
	}
	s.done = true
	row, err := s.Read.Next()
	if err == io.EOF {
		s.exhausted = true
	}
	return row, err
}

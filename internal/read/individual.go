package read

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"tablereader/internal/errors"
	"tablereader/internal/logger"
	"tablereader/internal/transform"
)

// OutputRow is one row of the unified table.
type OutputRow struct {
	Key    string `json:"key"`
	Values []any  `json:"values"`
}

// RowOutput receives the rows of a read.
type RowOutput interface {
	Push(row OutputRow) error
}

// RowOutputFunc adapts a function to RowOutput.
type RowOutputFunc func(row OutputRow) error

func (f RowOutputFunc) Push(row OutputRow) error { return f(row) }

// ContentError reports a value that could not be converted to the type of
// its column. It is always marked with errors.ErrContent.
type ContentError struct {
	RowKey string
	Source string
	Column string
	Value  any
	Err    error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("row %s of %s: value %v in column %q: %v", e.RowKey, e.Source, e.Value, e.Column, e.Err)
}

func (e *ContentError) Unwrap() error { return e.Err }

func newContentError(rowKey, source string, columns []transform.OutputColumn, err error) error {
	ce := &ContentError{RowKey: rowKey, Source: source, Err: err}
	var ve *transform.ValueError
	if errors.As(err, &ve) {
		ce.Column = columns[ve.Index].Name
		ce.Value = ve.Value
	}
	return errors.Mark(ce, errors.ErrContent)
}

// rowCounter hands out the global row keys of a read.
type rowCounter struct{ next int64 }

func (c *rowCounter) key(row RandomAccessible) string {
	n := c.next
	c.next++
	if k, ok := row.(KeyedRow); ok && k.Key != "" {
		return k.Key
	}
	return "Row" + strconv.FormatInt(n, 10)
}

// IndividualTableReader turns the raw rows of one source into output rows.
type IndividualTableReader struct {
	source  string
	columns []transform.OutputColumn
	mapper  *IndexMapper
	types   transform.TypeMapper
	empty   EmptyCheck
	cfg     Config
	log     *zap.SugaredLogger
}

// Fill pushes every row of read to out. Content errors abort the read if
// configured so; otherwise the row is skipped and counted in stats.
func (r *IndividualTableReader) Fill(ctx context.Context, read Read, out RowOutput, keys *rowCounter, stats *Stats, progress func(float64)) error {
	interval := r.cfg.checkInterval()
	sized, _ := read.(ProgressAware)
	for n := 0; ; n++ {
		if n%interval == 0 {
			if err := ctx.Err(); err != nil {
				return errors.Canceled(err)
			}
			if sized != nil && sized.EstimatedSize() > 0 {
				progress(float64(sized.ReadBytes()) / float64(sized.EstimatedSize()))
			}
		}

		row, err := read.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", r.source)
		}

		key := keys.key(row)
		if err := r.empty.Check(row); err != nil {
			return errors.Wrapf(err, "row %s of %s", key, r.source)
		}
		values, err := r.types.Map(r.mapper.Apply(row))
		if err != nil {
			cerr := newContentError(key, r.source, r.columns, err)
			if r.cfg.FailOnContentErrors {
				return cerr
			}
			r.log.Warnw("Skipping row with unconvertible value",
				logger.FieldRowKey, key,
				logger.FieldSource, r.source,
				logger.FieldError, err)
			stats.addContentError(cerr)
			continue
		}
		if err := out.Push(OutputRow{Key: key, Values: values}); err != nil {
			return errors.Wrapf(err, "push row %s", key)
		}
		stats.Rows++
	}
}

// maxRecordedContentErrors bounds Stats.ContentErrors.
const maxRecordedContentErrors = 100

// Stats summarises a finished read.
type Stats struct {
	Rows          int64   `json:"rows"`
	Sources       int     `json:"sources"`
	SkippedRows   int64   `json:"skipped_rows"`
	ContentErrors []error `json:"-"`
}

func (s *Stats) addContentError(err error) {
	s.SkippedRows++
	if len(s.ContentErrors) < maxRecordedContentErrors {
		s.ContentErrors = append(s.ContentErrors, err)
	}
}

package sources

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"unicode/utf8"

	"go.uber.org/zap"

	"tablereader/internal/convert"
	"tablereader/internal/errors"
	"tablereader/internal/logger"
	"tablereader/internal/read"
	"tablereader/internal/table"
)

// ── CSV File Source ─────────────────────────────────────────
// Reads a local CSV file. Every cell is a string token; empty cells are
// missing values.

const (
	OptDelimiter = "delimiter"
	OptHasHeader = "has_header"
	OptComment   = "comment"
)

// CSV reads CSV files.
type CSV struct {
	h   table.TypeHierarchy
	log *zap.SugaredLogger
}

func NewCSV(h table.TypeHierarchy) *CSV {
	return &CSV{h: h, log: logger.ComponentLogger("sources.csv")}
}

func (s *CSV) Spec() Spec {
	return Spec{
		Type:  "csv",
		Label: "CSV File",
		Item:  "path to a CSV file",
		Options: []Option{
			{Key: OptDelimiter, Label: "Delimiter", Default: ",", Help: "Column delimiter (default: comma)"},
			{Key: OptHasHeader, Label: "Has Header", Default: "true", Help: "Whether the first row contains column names"},
			{Key: OptComment, Label: "Comment", Help: "Lines starting with this character are ignored"},
		},
	}
}

func (s *CSV) ReadSpec(ctx context.Context, source string, cfg read.Config) (table.TableSpec, error) {
	r, err := s.open(source, cfg)
	if err != nil {
		return table.TableSpec{}, err
	}
	defer r.Close()

	b := read.NewSpecBuilder(s.h, convert.GuessType, r.header)
	spec, err := read.SampleSpec(ctx, r, b, cfg.SpecLimit)
	if err != nil {
		return table.TableSpec{}, errors.Wrapf(err, "read spec of %s", source)
	}
	s.log.Debugw("spec read", logger.FieldSource, source, "spec", spec.String())
	return spec, nil
}

func (s *CSV) Read(_ context.Context, source string, cfg read.Config) (read.Read, error) {
	return s.open(source, cfg)
}

func (s *CSV) open(path string, cfg read.Config) (*csvRead, error) {
	delim, hasHeader, comment, err := csvOptions(cfg)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat file")
	}

	reader := csv.NewReader(f)
	reader.Comma = delim
	reader.Comment = comment
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	r := &csvRead{f: f, r: reader, size: st.Size(), source: path}
	if hasHeader {
		header, err := reader.Read()
		if err != nil && err != io.EOF {
			f.Close()
			return nil, errors.Wrapf(err, "read header of %s", path)
		}
		r.header = header
	}
	return r, nil
}

func csvOptions(cfg read.Config) (delim rune, hasHeader bool, comment rune, err error) {
	delim, err = singleRune(cfg.Option(OptDelimiter, ","), OptDelimiter)
	if err != nil {
		return
	}
	if c := cfg.Option(OptComment, ""); c != "" {
		if comment, err = singleRune(c, OptComment); err != nil {
			return
		}
	}
	hasHeader, perr := strconv.ParseBool(cfg.Option(OptHasHeader, "true"))
	if perr != nil {
		err = errors.Configurationf("option %s must be true or false, got %q", OptHasHeader, cfg.Option(OptHasHeader, ""))
	}
	return
}

func singleRune(s, key string) (rune, error) {
	if s == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '\r' || r == '\n' || r == '"' {
		return 0, errors.Configurationf("option %s must be a single character, got %q", key, s)
	}
	return r, nil
}

// csvRead streams the records of one file.
type csvRead struct {
	f      *os.File
	r      *csv.Reader
	header []string
	size   int64
	source string
}

func (c *csvRead) Next() (read.RandomAccessible, error) {
	rec, err := c.r.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", c.source)
	}
	row := make(read.Row, len(rec))
	for i, v := range rec {
		if v != "" {
			row[i] = v
		}
	}
	return row, nil
}

func (c *csvRead) Close() error { return c.f.Close() }

func (c *csvRead) EstimatedSize() int64 { return c.size }

func (c *csvRead) ReadBytes() int64 { return c.r.InputOffset() }

package service

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"

	"tablereader/internal/errors"
	"tablereader/internal/read"
	"tablereader/internal/transform"
)

// Format is the encoding of written rows.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// RowKeyColumn is the header of the row key column in written output.
const RowKeyColumn = "row_key"

// ParseFormat accepts "csv", "jsonl" and "ndjson".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "csv":
		return FormatCSV, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	}
	return "", errors.Configurationf("unknown output format %q", s)
}

// FormatFor picks the format from a file extension, CSV by default.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL
	}
	return FormatCSV
}

// RowWriter encodes output rows. It implements read.RowOutput.
type RowWriter struct {
	format  Format
	columns []transform.OutputColumn
	buf     *bufio.Writer
	csv     *csv.Writer
	rows    int64
}

// NewRowWriter writes the header (for CSV) and returns the writer. Close
// flushes it.
func NewRowWriter(w io.Writer, format Format, columns []transform.OutputColumn) (*RowWriter, error) {
	rw := &RowWriter{format: format, columns: columns, buf: bufio.NewWriter(w)}
	if format == FormatCSV {
		rw.csv = csv.NewWriter(rw.buf)
		header := make([]string, 0, len(columns)+1)
		header = append(header, RowKeyColumn)
		for _, c := range columns {
			header = append(header, c.Name)
		}
		if err := rw.csv.Write(header); err != nil {
			return nil, errors.Wrap(err, "write header")
		}
	}
	return rw, nil
}

func (w *RowWriter) Push(row read.OutputRow) error {
	w.rows++
	if w.format == FormatCSV {
		rec := make([]string, 0, len(row.Values)+1)
		rec = append(rec, row.Key)
		for _, v := range row.Values {
			rec = append(rec, FormatValue(v))
		}
		return w.csv.Write(rec)
	}

	var b bytes.Buffer
	b.WriteByte('{')
	writeField(&b, RowKeyColumn, row.Key)
	for i, v := range row.Values {
		b.WriteByte(',')
		if t, ok := v.(time.Time); ok {
			v = FormatValue(t)
		}
		writeField(&b, w.columns[i].Name, v)
	}
	b.WriteString("}\n")
	_, err := w.buf.Write(b.Bytes())
	return err
}

func writeField(b *bytes.Buffer, name string, v any) {
	k, _ := json.Marshal(name)
	b.Write(k)
	b.WriteByte(':')
	val, err := json.Marshal(v)
	if err != nil {
		val, _ = json.Marshal(FormatValue(v))
	}
	b.Write(val)
}

// Rows returns the number of rows written.
func (w *RowWriter) Rows() int64 { return w.rows }

func (w *RowWriter) Close() error {
	if w.csv != nil {
		w.csv.Flush()
		if err := w.csv.Error(); err != nil {
			return err
		}
	}
	return w.buf.Flush()
}

// FormatValue renders a cell for text output. Missing values are empty.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		if val.Nanosecond() == 0 {
			return val.Format("2006-01-02T15:04:05")
		}
		return val.Format("2006-01-02T15:04:05.999999999")
	default:
		return cast.ToString(val)
	}
}

package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"tablereader/internal/convert"
	"tablereader/internal/errors"
	"tablereader/internal/logger"
	"tablereader/internal/read"
	"tablereader/internal/table"
)

// ── JSON File Source ────────────────────────────────────────
// Reads an array of objects from a local JSON file. Object keys become
// columns in the order they are first seen.

const OptDataPath = "data_path"

// JSON reads JSON files.
type JSON struct {
	h   table.TypeHierarchy
	log *zap.SugaredLogger
}

func NewJSON(h table.TypeHierarchy) *JSON {
	return &JSON{h: h, log: logger.ComponentLogger("sources.json")}
}

func (s *JSON) Spec() Spec {
	return Spec{
		Type:  "json",
		Label: "JSON File",
		Item:  "path to a JSON file",
		Options: []Option{
			{Key: OptDataPath, Label: "Data Path", Help: "Dot-separated path to the array (e.g., 'data.items'). Leave empty if root is an array."},
		},
	}
}

func (s *JSON) ReadSpec(ctx context.Context, source string, cfg read.Config) (table.TableSpec, error) {
	r, err := s.open(source, cfg)
	if err != nil {
		return table.TableSpec{}, err
	}
	defer r.Close()

	spec, err := sampleJSONSpec(ctx, s.h, r, cfg)
	if err != nil {
		return table.TableSpec{}, err
	}
	s.log.Debugw("spec read", logger.FieldSource, source, "spec", spec.String())
	return spec, nil
}

func sampleJSONSpec(ctx context.Context, h table.TypeHierarchy, r *jsonRead, cfg read.Config) (table.TableSpec, error) {
	b := read.NewSpecBuilder(h, convert.GuessType, nil)
	spec, err := read.SampleSpec(ctx, r, b, cfg.SpecLimit)
	if err != nil {
		return table.TableSpec{}, errors.Wrapf(err, "read spec of %s", r.source)
	}
	return withNames(spec, r.columns), nil
}

func (s *JSON) Read(_ context.Context, source string, cfg read.Config) (read.Read, error) {
	return s.open(source, cfg)
}

func (s *JSON) open(path string, cfg read.Config) (*jsonRead, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}
	return newJSONRead(data, path, cfg)
}

// newJSONRead starts streaming the array found at the configured data path.
func newJSONRead(data []byte, path string, cfg read.Config) (*jsonRead, error) {
	array, err := navigate(data, cfg.Option(OptDataPath, ""))
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}

	dec := json.NewDecoder(bytes.NewReader(array))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, errors.Configurationf("%s: expected an array of objects", path)
	}
	return &jsonRead{
		dec:    dec,
		index:  map[string]int{},
		size:   int64(len(data)),
		offset: int64(len(data) - len(array)),
		source: path,
	}, nil
}

// navigate returns the raw JSON found at the dot-separated path.
func navigate(data []byte, path string) (json.RawMessage, error) {
	current := json.RawMessage(bytes.TrimSpace(data))
	if path == "" {
		return current, nil
	}
	for _, part := range strings.Split(path, ".") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(current, &obj); err != nil {
			return nil, errors.Configurationf("invalid data path: %q is not inside an object", part)
		}
		next, ok := obj[part]
		if !ok {
			return nil, errors.Configurationf("invalid data path: %q not found", part)
		}
		current = next
	}
	return current, nil
}

// jsonRead streams the objects of one array.
type jsonRead struct {
	dec     *json.Decoder
	columns []string
	index   map[string]int
	size    int64
	offset  int64
	source  string
}

func (j *jsonRead) Next() (read.RandomAccessible, error) {
	if !j.dec.More() {
		return nil, io.EOF
	}
	keys, values, err := decodeObject(j.dec)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", j.source)
	}
	for _, k := range keys {
		if _, ok := j.index[k]; !ok {
			j.index[k] = len(j.columns)
			j.columns = append(j.columns, k)
		}
	}
	row := make(read.Row, len(j.columns))
	for i, k := range keys {
		row[j.index[k]] = values[i]
	}
	return row, nil
}

func (j *jsonRead) Close() error { return nil }

func (j *jsonRead) EstimatedSize() int64 { return j.size }

func (j *jsonRead) ReadBytes() int64 { return j.offset + j.dec.InputOffset() }

// decodeObject reads one object keeping its key order. Nested objects and
// arrays are kept as compact JSON text.
func decodeObject(dec *json.Decoder) ([]string, []any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.Newf("expected an object, got %v", tok)
	}
	var keys []string
	var values []any
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		v, err := scalar(raw)
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}

func scalar(raw json.RawMessage) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && (raw[0] == '{' || raw[0] == '[') {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		return buf.String(), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// withNames names the columns of spec. Columns without a sampled row are
// added untyped.
func withNames(spec table.TableSpec, names []string) table.TableSpec {
	cols := spec.Columns()
	for i, name := range names {
		if i < len(cols) {
			cols[i].Name = name
		} else {
			cols = append(cols, table.EmptyColumn(name))
		}
	}
	return table.NewTableSpec(cols...)
}

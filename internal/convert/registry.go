// Package convert provides the built-in production paths and the type
// mapper that applies them to raw tokens.
package convert

import (
	"encoding/json"
	"sync"

	"tablereader/internal/errors"
	"tablereader/internal/table"
	"tablereader/internal/transform"
)

// Output cell types of the built-in paths.
const (
	BooleanCell       transform.DataType = "BooleanCell"
	IntCell           transform.DataType = "IntCell"
	LongCell          transform.DataType = "LongCell"
	DoubleCell        transform.DataType = "DoubleCell"
	LocalDateTimeCell transform.DataType = "LocalDateTimeCell"
	StringCell        transform.DataType = "StringCell"
)

// Converter turns one non-empty token into a value of the destination type.
type Converter func(token any) (any, error)

// Registry is a ProductionPathProvider and TypeMapperFactory backed by an
// explicit map from external type to its conversions. The first path
// registered for an external type is its default.
type Registry struct {
	mu         sync.RWMutex
	paths      map[table.ExternalType][]transform.ProductionPath
	converters map[transform.ProductionPath]Converter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		paths:      make(map[table.ExternalType][]transform.ProductionPath),
		converters: make(map[transform.ProductionPath]Converter),
	}
}

// Default returns a registry with the paths of the built-in external types.
func Default() *Registry {
	r := NewRegistry()
	r.Register(table.TypeInt, IntCell, toInt)
	r.Register(table.TypeInt, LongCell, toLong)
	r.Register(table.TypeInt, DoubleCell, toDouble)
	r.Register(table.TypeInt, StringCell, toString)
	r.Register(table.TypeLong, LongCell, toLong)
	r.Register(table.TypeLong, DoubleCell, toDouble)
	r.Register(table.TypeLong, StringCell, toString)
	r.Register(table.TypeDouble, DoubleCell, toDouble)
	r.Register(table.TypeDouble, StringCell, toString)
	r.Register(table.TypeBoolean, BooleanCell, toBoolean)
	r.Register(table.TypeBoolean, StringCell, toString)
	r.Register(table.TypeDateTime, LocalDateTimeCell, toDateTime)
	r.Register(table.TypeDateTime, StringCell, toString)
	r.Register(table.TypeString, StringCell, toString)
	return r
}

// Register adds or replaces the conversion from src to dst.
func (r *Registry) Register(src table.ExternalType, dst transform.DataType, conv Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := transform.ProductionPath{Source: src, Destination: dst}
	if _, exists := r.converters[p]; !exists {
		r.paths[src] = append(r.paths[src], p)
	}
	r.converters[p] = conv
}

func (r *Registry) DefaultProductionPath(t table.ExternalType) (transform.ProductionPath, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := r.paths[t]
	if len(paths) == 0 {
		return transform.ProductionPath{}, errors.Configurationf("no production path registered for type %s", t)
	}
	return paths[0], nil
}

func (r *Registry) AvailableProductionPaths(t table.ExternalType) []transform.ProductionPath {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]transform.ProductionPath(nil), r.paths[t]...)
}

// Lookup resolves a persisted path key to a registered path.
func (r *Registry) Lookup(key string) (transform.ProductionPath, bool) {
	p, err := transform.ParseProductionPath(key)
	if err != nil {
		return transform.ProductionPath{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.converters[p]
	return p, ok
}

// NewTypeMapper returns a mapper converting the i-th token with paths[i].
func (r *Registry) NewTypeMapper(paths []transform.ProductionPath) (transform.TypeMapper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := &typeMapper{paths: paths, converters: make([]Converter, len(paths))}
	for i, p := range paths {
		conv, ok := r.converters[p]
		if !ok {
			return nil, errors.Configurationf("production path %s is not registered", p)
		}
		m.converters[i] = conv
	}
	return m, nil
}

type typeMapper struct {
	paths      []transform.ProductionPath
	converters []Converter
}

// Map converts tokens. Missing tokens become nil.
func (m *typeMapper) Map(tokens []any) ([]any, error) {
	if len(tokens) != len(m.converters) {
		return nil, errors.Newf("expected %d tokens, got %d", len(m.converters), len(tokens))
	}
	out := make([]any, len(tokens))
	for i, tok := range tokens {
		if n, ok := tok.(json.Number); ok {
			tok = string(n)
		}
		if table.IsMissing(tok) {
			continue
		}
		v, err := m.converters[i](tok)
		if err != nil {
			return nil, &transform.ValueError{Index: i, Value: tok, Path: m.paths[i], Err: err}
		}
		out[i] = v
	}
	return out, nil
}

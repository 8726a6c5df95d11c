// Package read orchestrates reading several sources into one table: it
// infers and merges the source specs, reconciles the column transformation
// and streams the mapped rows.
package read

import (
	"context"
	"slices"

	"tablereader/internal/table"
	"tablereader/internal/transform"
)

// RandomAccessible is one raw row.
type RandomAccessible interface {
	Size() int
	Get(idx int) any
}

// Row is a RandomAccessible over a slice of tokens.
type Row []any

func (r Row) Size() int { return len(r) }

func (r Row) Get(idx int) any { return r[idx] }

// KeyedRow is a row that carries its own row key.
type KeyedRow struct {
	Key string
	Row
}

// Read is the token stream of one source. Next returns io.EOF once the
// source is exhausted. Close must be called on every path.
type Read interface {
	Next() (RandomAccessible, error)
	Close() error
}

// ProgressAware is implemented by reads that know how far they got.
type ProgressAware interface {
	// EstimatedSize returns the total size in bytes, or -1 if unknown.
	EstimatedSize() int64
	ReadBytes() int64
}

// TableReader reads single sources. ReadSpec must report every column of
// the source, without filtering.
type TableReader interface {
	ReadSpec(ctx context.Context, source string, cfg Config) (table.TableSpec, error)
	Read(ctx context.Context, source string, cfg Config) (Read, error)
}

// SourceGroup identifies an ordered set of sources read as one table.
type SourceGroup struct {
	ID    string   `json:"id"`
	Items []string `json:"items"`
}

// Equal reports whether both groups have the same identity and items.
func (g SourceGroup) Equal(o SourceGroup) bool {
	return g.ID == o.ID && slices.Equal(g.Items, o.Items)
}

// PathRegistry provides production paths and type mappers and resolves
// persisted path keys.
type PathRegistry interface {
	transform.ProductionPathProvider
	transform.TypeMapperFactory
	Lookup(key string) (transform.ProductionPath, bool)
}

// ProgressMonitor receives the fraction of work done, between 0 and 1.
type ProgressMonitor interface {
	SetProgress(fraction float64, message string)
}

// ProgressFunc adapts a function to ProgressMonitor.
type ProgressFunc func(fraction float64, message string)

func (f ProgressFunc) SetProgress(fraction float64, message string) { f(fraction, message) }

type noProgress struct{}

func (noProgress) SetProgress(float64, string) {}

func monitorOrNop(m ProgressMonitor) ProgressMonitor {
	if m == nil {
		return noProgress{}
	}
	return m
}

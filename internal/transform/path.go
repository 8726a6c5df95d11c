package transform

import (
	"strings"

	"tablereader/internal/errors"
	"tablereader/internal/table"
)

// DataType identifies an output cell type.
type DataType string

// ProductionPath is one conversion strategy from an external type to an
// output cell type.
type ProductionPath struct {
	Source      table.ExternalType `json:"source"`
	Destination DataType           `json:"destination"`
}

const pathSeparator = "->"

// Key is the persisted identity of the path.
func (p ProductionPath) Key() string {
	return string(p.Source) + pathSeparator + string(p.Destination)
}

func (p ProductionPath) String() string { return p.Key() }

// IsZero reports whether p is the zero path.
func (p ProductionPath) IsZero() bool { return p.Source == "" && p.Destination == "" }

// ParseProductionPath parses a key produced by Key. It does not check that
// the path is registered anywhere.
func ParseProductionPath(key string) (ProductionPath, error) {
	src, dst, ok := strings.Cut(key, pathSeparator)
	if !ok || src == "" || dst == "" {
		return ProductionPath{}, errors.Configurationf("malformed production path %q", key)
	}
	return ProductionPath{Source: table.ExternalType(src), Destination: DataType(dst)}, nil
}

// ProductionPathProvider knows which conversions exist for the external
// types of a reader.
type ProductionPathProvider interface {
	// DefaultProductionPath fails if no path is registered for t.
	DefaultProductionPath(t table.ExternalType) (ProductionPath, error)
	AvailableProductionPaths(t table.ExternalType) []ProductionPath
}

// findPath returns the path from t to dest, if the provider has one.
func findPath(p ProductionPathProvider, t table.ExternalType, dest DataType) (ProductionPath, bool) {
	for _, path := range p.AvailableProductionPaths(t) {
		if path.Destination == dest {
			return path, true
		}
	}
	return ProductionPath{}, false
}

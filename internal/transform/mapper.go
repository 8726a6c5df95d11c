package transform

import "fmt"

// TypeMapper converts a row of raw tokens into output values, one
// production path per token.
type TypeMapper interface {
	Map(tokens []any) ([]any, error)
}

// TypeMapperFactory builds a TypeMapper for an ordered set of paths.
type TypeMapperFactory interface {
	NewTypeMapper(paths []ProductionPath) (TypeMapper, error)
}

// ValueError is returned by a TypeMapper when one token cannot be converted.
type ValueError struct {
	Index int
	Value any
	Path  ProductionPath
	Err   error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("value %v at index %d is not convertible via %s: %v", e.Value, e.Index, e.Path, e.Err)
}

func (e *ValueError) Unwrap() error { return e.Err }

package read

import (
	"context"
	"io"

	"tablereader/internal/errors"
	"tablereader/internal/table"
)

// GuessFunc returns the external type of a token, or false if the token
// carries no type.
type GuessFunc func(tok any) (table.ExternalType, bool)

// SpecBuilder infers a TableSpec from sample rows. Rows wider than the
// known names add unnamed columns.
type SpecBuilder struct {
	h         table.TypeHierarchy
	guess     GuessFunc
	names     []string
	resolvers []table.TypeResolver
}

func NewSpecBuilder(h table.TypeHierarchy, guess GuessFunc, names []string) *SpecBuilder {
	b := &SpecBuilder{h: h, guess: guess}
	for _, n := range names {
		b.addColumn(n)
	}
	return b
}

func (b *SpecBuilder) addColumn(name string) {
	b.names = append(b.names, name)
	b.resolvers = append(b.resolvers, b.h.CreateResolver())
}

// Accept feeds the tokens of one row to the column resolvers.
func (b *SpecBuilder) Accept(row RandomAccessible) {
	for len(b.names) < row.Size() {
		b.addColumn("")
	}
	for i := 0; i < row.Size(); i++ {
		if t, ok := b.guess(row.Get(i)); ok {
			b.resolvers[i].Accept(t)
		}
	}
}

// Spec returns the columns seen so far. Columns without any typed value
// are reported untyped.
func (b *SpecBuilder) Spec() table.TableSpec {
	cols := make([]table.TypedColumnSpec, len(b.names))
	for i, name := range b.names {
		r := b.resolvers[i]
		if r.HasType() {
			cols[i] = table.Column(name, r.MostSpecificType())
		} else {
			cols[i] = table.EmptyColumn(name)
		}
	}
	return table.NewTableSpec(cols...)
}

// SampleSpec reads up to limit rows (all if limit <= 0) from read into b
// and returns the resulting spec. It does not close read.
func SampleSpec(ctx context.Context, read Read, b *SpecBuilder, limit int) (table.TableSpec, error) {
	for n := 0; limit <= 0 || n < limit; n++ {
		if n%DefaultCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return table.TableSpec{}, errors.Canceled(err)
			}
		}
		row, err := read.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return table.TableSpec{}, err
		}
		b.Accept(row)
	}
	return b.Spec(), nil
}

package table

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHierarchyJoin(t *testing.T) {
	h := DefaultHierarchy()

	tests := []struct {
		a, b ExternalType
		want ExternalType
	}{
		{TypeInt, TypeInt, TypeInt},
		{TypeInt, TypeLong, TypeLong},
		{TypeLong, TypeInt, TypeLong},
		{TypeInt, TypeDouble, TypeDouble},
		{TypeInt, TypeBoolean, TypeString},
		{TypeDateTime, TypeDouble, TypeString},
		{TypeInt, "geometry", TypeString},
	}
	for _, tt := range tests {
		t.Run(string(tt.a)+"+"+string(tt.b), func(t *testing.T) {
			assert.Equal(t, tt.want, h.Join(tt.a, tt.b))
		})
	}
}

func TestResolverWithoutTypes(t *testing.T) {
	r := DefaultHierarchy().CreateResolver()
	assert.False(t, r.HasType())
	assert.Equal(t, TypeString, r.MostSpecificType())
}

func TestResolverOrderIndependent(t *testing.T) {
	h := DefaultHierarchy()
	types := []ExternalType{TypeInt, TypeLong, TypeInt, TypeDouble, TypeInt}
	want := TypeDouble

	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]ExternalType(nil), types...)
		rnd.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		r := h.CreateResolver()
		for _, typ := range shuffled {
			r.Accept(typ)
		}
		require.True(t, r.HasType())
		require.Equal(t, want, r.MostSpecificType(), "order %v", shuffled)
	}
}

func TestResolverUnknownTypeJoinsToRoot(t *testing.T) {
	r := DefaultHierarchy().CreateResolver()
	r.Accept("blob")
	assert.Equal(t, TypeString, r.MostSpecificType())
}

func TestNewTreeHierarchyRejectsBrokenTrees(t *testing.T) {
	_, err := NewTreeHierarchy("top", map[ExternalType]ExternalType{"a": "b", "b": "a"})
	assert.Error(t, err)

	_, err = NewTreeHierarchy("top", map[ExternalType]ExternalType{"a": "nowhere"})
	assert.Error(t, err)

	_, err = NewTreeHierarchy("top", map[ExternalType]ExternalType{"top": "a"})
	assert.Error(t, err)

	h, err := NewTreeHierarchy("top", map[ExternalType]ExternalType{"a": "top", "b": "a"})
	require.NoError(t, err)
	assert.Equal(t, ExternalType("a"), h.Join("a", "b"))
	assert.Equal(t, ExternalType("top"), h.Root())
}

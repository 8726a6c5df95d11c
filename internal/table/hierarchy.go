package table

import (
	"tablereader/internal/errors"
)

// TypeResolver accumulates the external types observed for one logical
// column and yields their join. Accept calls commute.
type TypeResolver interface {
	Accept(t ExternalType)
	// MostSpecificType returns the join of all accepted types, or the
	// hierarchy's top type if nothing was accepted.
	MostSpecificType() ExternalType
	HasType() bool
}

// TypeHierarchy is a partial order over the external types of a reader.
type TypeHierarchy interface {
	CreateResolver() TypeResolver
	Supports(t ExternalType) bool
}

// TreeHierarchy is a TypeHierarchy whose order is a tree: every type has one
// parent and the join of two types is their lowest common ancestor. Types the
// tree does not know join to the root.
type TreeHierarchy struct {
	root   ExternalType
	parent map[ExternalType]ExternalType
	depth  map[ExternalType]int
}

// NewTreeHierarchy builds a hierarchy from child -> parent edges. Every chain
// of parents must end at root.
func NewTreeHierarchy(root ExternalType, parents map[ExternalType]ExternalType) (*TreeHierarchy, error) {
	h := &TreeHierarchy{
		root:   root,
		parent: make(map[ExternalType]ExternalType, len(parents)),
		depth:  map[ExternalType]int{root: 0},
	}
	for child, parent := range parents {
		if child == root {
			return nil, errors.Newf("root type %q cannot have a parent", root)
		}
		h.parent[child] = parent
	}
	for child := range h.parent {
		if _, err := h.depthOf(child, len(h.parent)+1); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *TreeHierarchy) depthOf(t ExternalType, budget int) (int, error) {
	if d, ok := h.depth[t]; ok {
		return d, nil
	}
	if budget == 0 {
		return 0, errors.Newf("type hierarchy contains a cycle at %q", t)
	}
	p, ok := h.parent[t]
	if !ok {
		return 0, errors.Newf("type %q does not lead to root %q", t, h.root)
	}
	d, err := h.depthOf(p, budget-1)
	if err != nil {
		return 0, err
	}
	h.depth[t] = d + 1
	return d + 1, nil
}

// DefaultHierarchy returns the hierarchy of the built-in external types:
// int < long < double < string, boolean < string, datetime < string.
func DefaultHierarchy() *TreeHierarchy {
	h, err := NewTreeHierarchy(TypeString, map[ExternalType]ExternalType{
		TypeDouble:   TypeString,
		TypeLong:     TypeDouble,
		TypeInt:      TypeLong,
		TypeBoolean:  TypeString,
		TypeDateTime: TypeString,
	})
	if err != nil {
		panic(err)
	}
	return h
}

// Root returns the top type.
func (h *TreeHierarchy) Root() ExternalType { return h.root }

// Supports reports whether t is part of the tree.
func (h *TreeHierarchy) Supports(t ExternalType) bool {
	_, ok := h.depth[t]
	return ok
}

// Join returns the lowest common ancestor of a and b.
func (h *TreeHierarchy) Join(a, b ExternalType) ExternalType {
	if !h.Supports(a) || !h.Supports(b) {
		return h.root
	}
	da, db := h.depth[a], h.depth[b]
	for da > db {
		a = h.parent[a]
		da--
	}
	for db > da {
		b = h.parent[b]
		db--
	}
	for a != b {
		a, b = h.parent[a], h.parent[b]
	}
	return a
}

// CreateResolver returns a fresh resolver.
func (h *TreeHierarchy) CreateResolver() TypeResolver {
	return &treeResolver{h: h}
}

type treeResolver struct {
	h       *TreeHierarchy
	current ExternalType
	seen    bool
}

func (r *treeResolver) Accept(t ExternalType) {
	if !r.seen {
		r.seen = true
		if r.h.Supports(t) {
			r.current = t
		} else {
			r.current = r.h.root
		}
		return
	}
	r.current = r.h.Join(r.current, t)
}

func (r *treeResolver) MostSpecificType() ExternalType {
	if !r.seen {
		return r.h.root
	}
	return r.current
}

func (r *treeResolver) HasType() bool { return r.seen }

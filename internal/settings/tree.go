// Package settings implements the ordered key/value tree reader
// configurations are persisted in.
package settings

import (
	"tablereader/internal/errors"
)

// Tree is an ordered map from keys to strings, string arrays, booleans,
// integers and nested trees. Keys keep their insertion order; setting an
// existing key replaces its value in place.
type Tree struct {
	keys   []string
	values map[string]any
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{values: make(map[string]any)}
}

func (t *Tree) set(key string, v any) {
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = v
}

func (t *Tree) SetString(key, v string) { t.set(key, v) }

func (t *Tree) SetStrings(key string, v []string) {
	t.set(key, append([]string{}, v...))
}

func (t *Tree) SetBool(key string, v bool) { t.set(key, v) }

func (t *Tree) SetInt(key string, v int64) { t.set(key, v) }

// AddTree creates a child tree under key, replacing any previous value.
func (t *Tree) AddTree(key string) *Tree {
	child := New()
	t.set(key, child)
	return child
}

// Keys returns the keys in insertion order.
func (t *Tree) Keys() []string {
	return append([]string(nil), t.keys...)
}

func (t *Tree) Has(key string) bool {
	_, ok := t.values[key]
	return ok
}

// Remove deletes key if present.
func (t *Tree) Remove(key string) {
	if _, ok := t.values[key]; !ok {
		return
	}
	delete(t.values, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

func get[T any](t *Tree, key, kind string) (T, error) {
	var zero T
	v, ok := t.values[key]
	if !ok {
		return zero, errors.Configurationf("setting %q is missing", key)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, errors.Configurationf("setting %q is not a %s", key, kind)
	}
	return typed, nil
}

func (t *Tree) GetString(key string) (string, error) { return get[string](t, key, "string") }

func (t *Tree) GetStrings(key string) ([]string, error) {
	v, err := get[[]string](t, key, "string array")
	if err != nil {
		return nil, err
	}
	return append([]string{}, v...), nil
}

func (t *Tree) GetBool(key string) (bool, error) { return get[bool](t, key, "boolean") }

func (t *Tree) GetInt(key string) (int64, error) { return get[int64](t, key, "integer") }

func (t *Tree) GetTree(key string) (*Tree, error) { return get[*Tree](t, key, "settings tree") }

// StringOr returns the string under key or def if the key is absent or of
// another kind. The Or getters read optional settings.
func (t *Tree) StringOr(key, def string) string {
	if v, err := t.GetString(key); err == nil {
		return v
	}
	return def
}

func (t *Tree) BoolOr(key string, def bool) bool {
	if v, err := t.GetBool(key); err == nil {
		return v
	}
	return def
}

func (t *Tree) IntOr(key string, def int64) int64 {
	if v, err := t.GetInt(key); err == nil {
		return v
	}
	return def
}

// Equal reports whether both trees hold the same keys in the same order
// with equal values.
func (t *Tree) Equal(o *Tree) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.keys) != len(o.keys) {
		return false
	}
	for i, k := range t.keys {
		if o.keys[i] != k {
			return false
		}
		if !valueEqual(t.values[k], o.values[k]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case []string:
		bv, ok := b.([]string)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case *Tree:
		bv, ok := b.(*Tree)
		return ok && av.Equal(bv)
	default:
		return a == b
	}
}

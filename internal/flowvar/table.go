package flowvar

import (
	"slices"
	"sync"

	"tablereader/internal/errors"
	"tablereader/internal/settings"
)

// EventKind says how a Table changed.
type EventKind string

const (
	Added   EventKind = "added"
	Removed EventKind = "removed"
	Updated EventKind = "updated"
	Moved   EventKind = "moved"
)

// Event describes one change of a Table. Index is the variable's index
// after the change, or before it for Removed.
type Event struct {
	Kind     EventKind
	Index    int
	Variable Variable
}

// Table is an ordered, editable set of uniquely named variables. Changes
// are reported to subscribers synchronously, after the table lock is
// released.
type Table struct {
	mu          sync.Mutex
	vars        []Variable
	subscribers map[int]func(Event)
	nextSub     int
}

// NewTable validates vars and returns a table holding them.
func NewTable(vars ...Variable) (*Table, error) {
	t := &Table{subscribers: make(map[int]func(Event))}
	for _, v := range vars {
		if err := t.check(v, -1); err != nil {
			return nil, err
		}
		t.vars = append(t.vars, v)
	}
	return t, nil
}

// check validates v as the variable at idx (-1 for a new one).
func (t *Table) check(v Variable, idx int) error {
	if err := v.Validate(); err != nil {
		return err
	}
	for i, other := range t.vars {
		if i != idx && other.Name == v.Name {
			return errors.Configurationf("flow variable %q already exists", v.Name)
		}
	}
	return nil
}

func (t *Table) indexOf(name string) int {
	return slices.IndexFunc(t.vars, func(v Variable) bool { return v.Name == name })
}

// Subscribe registers fn for change events and returns a function that
// removes it again.
func (t *Table) Subscribe(fn func(Event)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	t.subscribers[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subscribers, id)
	}
}

// edit runs fn under the lock and notifies subscribers of the event it
// returns.
func (t *Table) edit(fn func() (Event, error)) error {
	t.mu.Lock()
	ev, err := fn()
	var subs []func(Event)
	if err == nil {
		ids := make([]int, 0, len(t.subscribers))
		for id := range t.subscribers {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			subs = append(subs, t.subscribers[id])
		}
	}
	t.mu.Unlock()
	if err != nil {
		return err
	}
	for _, s := range subs {
		s(ev)
	}
	return nil
}

func (t *Table) Add(v Variable) error {
	return t.edit(func() (Event, error) {
		if err := t.check(v, -1); err != nil {
			return Event{}, err
		}
		t.vars = append(t.vars, v)
		return Event{Kind: Added, Index: len(t.vars) - 1, Variable: v}, nil
	})
}

// Set adds v or replaces the variable of the same name.
func (t *Table) Set(v Variable) error {
	t.mu.Lock()
	exists := t.indexOf(v.Name) >= 0
	t.mu.Unlock()
	if exists {
		return t.Update(v.Name, v)
	}
	return t.Add(v)
}

// Update replaces the variable called name; v may rename it.
func (t *Table) Update(name string, v Variable) error {
	return t.edit(func() (Event, error) {
		idx := t.indexOf(name)
		if idx < 0 {
			return Event{}, errors.NotFoundf("flow variable %q", name)
		}
		if err := t.check(v, idx); err != nil {
			return Event{}, err
		}
		t.vars[idx] = v
		return Event{Kind: Updated, Index: idx, Variable: v}, nil
	})
}

func (t *Table) Remove(name string) error {
	return t.edit(func() (Event, error) {
		idx := t.indexOf(name)
		if idx < 0 {
			return Event{}, errors.NotFoundf("flow variable %q", name)
		}
		v := t.vars[idx]
		t.vars = slices.Delete(t.vars, idx, idx+1)
		return Event{Kind: Removed, Index: idx, Variable: v}, nil
	})
}

// Move places the variable called name at idx.
func (t *Table) Move(name string, idx int) error {
	return t.edit(func() (Event, error) {
		from := t.indexOf(name)
		if from < 0 {
			return Event{}, errors.NotFoundf("flow variable %q", name)
		}
		if idx < 0 || idx >= len(t.vars) {
			return Event{}, errors.Configurationf("index %d is outside [0, %d)", idx, len(t.vars))
		}
		v := t.vars[from]
		t.vars = slices.Insert(slices.Delete(t.vars, from, from+1), idx, v)
		return Event{Kind: Moved, Index: idx, Variable: v}, nil
	})
}

// Get returns the variable called name.
func (t *Table) Get(name string) (Variable, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.indexOf(name)
	if idx < 0 {
		return Variable{}, false
	}
	return t.vars[idx], true
}

// Variables returns a copy of the variables in order.
func (t *Table) Variables() []Variable {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.vars)
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.vars)
}

// Save writes the variables to tree as three parallel arrays.
func (t *Table) Save(tree *settings.Tree) {
	vars := t.Variables()
	names := make([]string, len(vars))
	types := make([]string, len(vars))
	values := make([]string, len(vars))
	for i, v := range vars {
		names[i], types[i], values[i] = v.Name, string(v.Type), v.Value
	}
	tree.SetStrings("names", names)
	tree.SetStrings("types", types)
	tree.SetStrings("values", values)
}

// Load reads a table written by Save.
func Load(tree *settings.Tree) (*Table, error) {
	names, err := tree.GetStrings("names")
	if err != nil {
		return nil, err
	}
	types, err := tree.GetStrings("types")
	if err != nil {
		return nil, err
	}
	values, err := tree.GetStrings("values")
	if err != nil {
		return nil, err
	}
	if len(types) != len(names) || len(values) != len(names) {
		return nil, errors.Configurationf("flow variable arrays differ in length: %d names, %d types, %d values",
			len(names), len(types), len(values))
	}
	vars := make([]Variable, len(names))
	for i := range names {
		typ, err := ParseType(types[i])
		if err != nil {
			return nil, err
		}
		vars[i] = Variable{Name: names[i], Type: typ, Value: values[i]}
	}
	return NewTable(vars...)
}

// Package sources holds the concrete single-source table readers.
package sources

import (
	"sort"
	"strconv"
	"sync"

	"tablereader/internal/errors"
	"tablereader/internal/read"
	"tablereader/internal/table"
)

// ── Source ──────────────────────────────────────────────────
// A Source reads one kind of item (a file path, a query) as a table.
// Reader specific settings travel in read.Config.Options.

// Option describes a single reader option.
type Option struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
	Help     string `json:"help,omitempty"`
}

// Spec describes a source type and the options it understands.
type Spec struct {
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	Item    string   `json:"item"` // what one item of a source group is
	Options []Option `json:"options"`
}

// Source is a TableReader with a self description.
type Source interface {
	read.TableReader
	Spec() Spec
}

// ── Registry ───────────────────────────────────────────────

// Registry maps source types to readers.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}}
}

// Default returns a registry with the file, HTTP and database sources.
// conns may be nil when no database connections are configured.
func Default(h table.TypeHierarchy, conns ConnectorProvider) *Registry {
	r := NewRegistry()
	r.Register(NewCSV(h))
	r.Register(NewJSON(h))
	r.Register(NewHTTP(h))
	if conns != nil {
		r.Register(NewDatabase(h, conns))
	}
	return r
}

// Register adds s under its spec type, replacing any previous source.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Spec().Type] = s
}

// Get returns the source of the given type.
func (r *Registry) Get(typ string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[typ]
	if !ok {
		return nil, errors.WithHintf(errors.Configurationf("unknown source type: %q", typ),
			"known types: %v", r.typesLocked())
	}
	return s, nil
}

// List returns the specs of all registered sources ordered by type.
func (r *Registry) List() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]Spec, 0, len(r.sources))
	for _, s := range r.sources {
		specs = append(specs, s.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Type < specs[j].Type })
	return specs
}

func (r *Registry) typesLocked() []string {
	types := make([]string, 0, len(r.sources))
	for t := range r.sources {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// requireOptions fails if any required option of spec is unset in cfg.
func requireOptions(spec Spec, cfg read.Config) error {
	for _, o := range spec.Options {
		if o.Required && cfg.Option(o.Key, "") == "" {
			return errors.Configurationf("%s source requires option %q", spec.Type, o.Key)
		}
	}
	return nil
}

func intOption(cfg read.Config, key string, def int) (int, error) {
	v := cfg.Option(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.Configurationf("option %s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

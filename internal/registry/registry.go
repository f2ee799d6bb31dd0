// Package registry implements loom.ProviderRegistry: a two-level map of
// category -> name -> instance, distinct from the Container's
// type-keyed graph and grounded on the teacher's component_registry.go
// (a single-level name->*Component map) generalized to the spec's
// two-level, category-partitioned shape.
package registry

import (
	"sync"

	"github.com/toutaio/loom/internal/errs"
	"github.com/toutaio/loom/pkg/loom"
)

type entry struct {
	name     string
	instance any
}

// Registry is the concrete loom.ProviderRegistry implementation.
type Registry struct {
	mu         sync.RWMutex
	categories map[loom.Category][]entry
	sealed     bool
}

var _ loom.ProviderRegistry = (*Registry)(nil)

// New builds a Registry pre-seeded with loom.DefaultCategories.
func New() *Registry {
	r := &Registry{categories: make(map[loom.Category][]entry)}
	for _, cat := range loom.DefaultCategories() {
		r.categories[cat] = nil
	}
	return r
}

// Seal prevents further AddCategory calls. Bootstrap seals the
// registry once component registration completes (spec §4.4: "the set
// of valid categories is fixed after construction").
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// AddCategory registers a new category. Fails once the registry has
// been sealed.
func (r *Registry) AddCategory(category loom.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return errs.New(errs.CodeConfigError, "provider registry is sealed, cannot add categories", nil).
			WithContext("category", string(category))
	}
	if _, exists := r.categories[category]; exists {
		return nil
	}
	r.categories[category] = nil
	return nil
}

// Register stores instance under (category, name).
func (r *Registry) Register(category loom.Category, name string, instance any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, known := r.categories[category]
	if !known {
		return errs.UnknownCategory(string(category))
	}
	for _, e := range entries {
		if e.name == name {
			return errs.DuplicateProvider(string(category), name)
		}
	}
	r.categories[category] = append(entries, entry{name: name, instance: instance})
	return nil
}

// Get returns the instance registered under (category, name).
func (r *Registry) Get(category loom.Category, name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.categories[category] {
		if e.name == name {
			return e.instance, true
		}
	}
	return nil, false
}

// ByCategory returns every provider registered in category, in
// registration order.
func (r *Registry) ByCategory(category loom.Category) []loom.NamedProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.categories[category]
	out := make([]loom.NamedProvider, len(entries))
	for i, e := range entries {
		out[i] = loom.NamedProvider{Name: e.name, Instance: e.instance}
	}
	return out
}

// Categories returns every known category, in no particular order.
func (r *Registry) Categories() []loom.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]loom.Category, 0, len(r.categories))
	for cat := range r.categories {
		out = append(out, cat)
	}
	return out
}

// CountIn returns the number of providers registered in category.
func (r *Registry) CountIn(category loom.Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.categories[category])
}

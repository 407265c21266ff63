package dataset

import (
	"fmt"
	"slices"
	"sort"
)

// Registry maps dataset names to their descriptions.
type Registry struct {
	datasets map[string]*Dataset
}

// NewRegistry creates a registry holding ds.
// Panics on a duplicate name or a dataset without a wire format.
func NewRegistry(ds ...*Dataset) *Registry {
	r := &Registry{datasets: make(map[string]*Dataset, len(ds))}
	for _, d := range ds {
		r.Register(d)
	}
	return r
}

// Register adds d. Panics if the name is already taken.
func (r *Registry) Register(d *Dataset) {
	if _, exists := r.datasets[d.Name]; exists {
		panic(fmt.Sprintf("dataset registry: %q already registered", d.Name))
	}
	if d.Wire == nil {
		panic(fmt.Sprintf("dataset registry: %q has no wire format", d.Name))
	}
	if d.Identity == "" {
		panic(fmt.Sprintf("dataset registry: %q has no identity field", d.Name))
	}
	if !slices.Contains(d.Fields(), d.Identity) {
		panic(fmt.Sprintf("dataset registry: %q identity %q is not a column", d.Name, d.Identity))
	}
	r.datasets[d.Name] = d
}

// Lookup returns the dataset registered under name.
func (r *Registry) Lookup(name string) (*Dataset, error) {
	d, ok := r.datasets[name]
	if !ok {
		return nil, fmt.Errorf("dataset registry: no dataset named %q", name)
	}
	return d, nil
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.datasets))
	for name := range r.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin returns a registry holding the movies and super heroes datasets.
func Builtin() *Registry {
	return NewRegistry(Movies(), SuperHeroes())
}

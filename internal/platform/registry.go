package platform

import "sort"

// Registry is the set of repository names present on the mirror platform
// when the snapshot was taken.
type Registry struct {
	names map[string]struct{}
	// Limit is the listing bound used for the snapshot; zero means unknown.
	Limit int
	// Truncated reports that the listing hit Limit and may be incomplete.
	Truncated bool
}

// NewRegistry builds a registry snapshot from names.
func NewRegistry(names ...string) *Registry {
	r := &Registry{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		r.names[n] = struct{}{}
	}
	return r
}

// Has reports whether name existed when the snapshot was taken.
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.names[name]
	return ok
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Names returns the snapshot sorted by name.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.names))
	for n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

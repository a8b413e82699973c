package core

// Registry is the set of category labels known to a user at call time.
// The zero value is an empty registry, which accepts every category.
type Registry struct {
	names map[Category]struct{}
	order []Category
}

// NewRegistry builds a registry from labels, skipping blanks and duplicates.
// Income is always known.
func NewRegistry(labels ...string) Registry {
	r := Registry{names: map[Category]struct{}{}}
	for _, l := range labels {
		c, err := NewCategory(l)
		if err != nil {
			continue
		}
		r.add(c)
	}
	if len(r.order) > 0 {
		r.add(Income)
	}
	return r
}

func (r *Registry) add(c Category) {
	if _, ok := r.names[c]; ok {
		return
	}
	r.names[c] = struct{}{}
	r.order = append(r.order, c)
}

// Len returns the number of known categories.
func (r Registry) Len() int {
	return len(r.order)
}

// Contains reports whether c is known. An empty registry knows everything.
func (r Registry) Contains(c Category) bool {
	if len(r.order) == 0 {
		return true
	}
	_, ok := r.names[c]
	return ok
}

// Names returns the known categories in insertion order.
func (r Registry) Names() []Category {
	return append([]Category(nil), r.order...)
}

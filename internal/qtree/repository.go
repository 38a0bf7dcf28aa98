package qtree

import "sort"

// Entity is anything the repository can index
type Entity interface {
	Rect() Rect
	Collidable() bool
}

// Repository keeps a set of entities and a quadtree over their rectangles in
// step. Callers must call UpdateActor whenever an entity's rectangle changes;
// nothing re-reads positions behind their back.
type Repository[T Entity] struct {
	tree  *Quadtree
	items map[string]T
}

// NewRepository creates an empty repository over bounds
func NewRepository[T Entity](bounds Bounds, maxLevel int) *Repository[T] {
	return &Repository[T]{
		tree:  New(bounds, maxLevel),
		items: make(map[string]T),
	}
}

// Set stores e under id. It returns false, storing nothing, when e lies
// outside the world.
func (r *Repository[T]) Set(id string, e T) bool {
	if !r.tree.AddActor(id, e.Rect()) {
		delete(r.items, id)
		return false
	}
	r.items[id] = e
	return true
}

// Delete removes id from the repository and its tree
func (r *Repository[T]) Delete(id string) {
	delete(r.items, id)
	r.tree.RemoveActor(id)
}

// UpdateActor re-indexes id from e's current rectangle. It returns false when
// e left the world; the entity is then no longer held by the repository.
func (r *Repository[T]) UpdateActor(id string, e T) bool {
	if !r.tree.UpdateActor(id, e.Rect()) {
		delete(r.items, id)
		return false
	}
	r.items[id] = e
	return true
}

// Get returns the entity stored under id
func (r *Repository[T]) Get(id string) (T, bool) {
	e, ok := r.items[id]
	return e, ok
}

// IDs returns all ids in sorted order
func (r *Repository[T]) IDs() []string {
	ids := make([]string, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of stored entities
func (r *Repository[T]) Len() int {
	return len(r.items)
}

// Tree exposes the underlying index for read-only use
func (r *Repository[T]) Tree() *Quadtree {
	return r.tree
}

// Package qtree is the spatial index used for collision detection.
//
// A Quadtree is a linear (array backed) quadtree: slot i holds the ids whose
// rectangle fits inside cell i but inside none of its children. A nil slot
// means nothing is stored at or below that cell. Every non-nil slot has a
// non-nil parent, which lets traversals skip whole empty subtrees.
package qtree

import (
	"sort"

	"github.com/sirupsen/logrus"
)

type cell map[string]struct{}

type entry struct {
	idx  int
	rect Rect
}

// Quadtree indexes string ids by rectangle over fixed world bounds
type Quadtree struct {
	bounds   Bounds
	maxLevel int
	depth    int // deepest level currently allocated
	cells    []cell
	index    map[string]entry
}

// New creates an empty tree. maxLevel is the subdivision depth used to encode
// rectangles; storage grows towards it lazily.
func New(bounds Bounds, maxLevel int) *Quadtree {
	if maxLevel < 0 {
		maxLevel = 0
	}
	if maxLevel > MaxSupportedLevel {
		maxLevel = MaxSupportedLevel
	}
	return &Quadtree{
		bounds:   bounds,
		maxLevel: maxLevel,
		cells:    make([]cell, Offset(1)),
		index:    make(map[string]entry),
	}
}

// Bounds returns the world bounds the tree was built over
func (t *Quadtree) Bounds() Bounds { return t.bounds }

// MaxLevel returns the encoding depth
func (t *Quadtree) MaxLevel() int { return t.maxLevel }

// Depth returns the deepest level currently allocated
func (t *Quadtree) Depth() int { return t.depth }

// Len returns the length of the backing array
func (t *Quadtree) Len() int { return len(t.cells) }

// Count returns how many ids are indexed
func (t *Quadtree) Count() int { return len(t.index) }

// AddActor indexes id at r. It returns false when r lies fully outside the
// world, in which case any previous entry for id is removed.
func (t *Quadtree) AddActor(id string, r Rect) bool {
	level, code, ok := t.bounds.RectToCell(r, t.maxLevel)
	if !ok {
		t.RemoveActor(id)
		return false
	}
	if _, exists := t.index[id]; exists {
		t.RemoveActor(id)
	}
	t.insert(id, Offset(level)+code, r)
	return true
}

// UpdateActor moves id to the cell matching r. It returns false when r left
// the world and the id was dropped from the index.
func (t *Quadtree) UpdateActor(id string, r Rect) bool {
	level, code, ok := t.bounds.RectToCell(r, t.maxLevel)
	if !ok {
		t.RemoveActor(id)
		return false
	}
	target := Offset(level) + code
	if e, exists := t.index[id]; exists {
		if e.idx == target {
			t.index[id] = entry{idx: target, rect: r}
			return true
		}
		t.RemoveActor(id)
	}
	t.insert(id, target, r)
	return true
}

// RemoveActor drops id from the index and prunes cells left empty
func (t *Quadtree) RemoveActor(id string) {
	e, ok := t.index[id]
	if !ok {
		log.WithField("id", id).Debug("remove of unknown actor")
		return
	}
	delete(t.index, id)
	c := t.cells[e.idx]
	delete(c, id)
	if len(c) == 0 {
		t.prune(e.idx)
	}
}

// LinearIndex returns the slot currently holding id
func (t *Quadtree) LinearIndex(id string) (int, bool) {
	e, ok := t.index[id]
	if !ok {
		log.WithField("id", id).Debug("lookup of unknown actor")
		return 0, false
	}
	return e.idx, true
}

// RectOf returns the rectangle id was last indexed with
func (t *Quadtree) RectOf(id string) (Rect, bool) {
	e, ok := t.index[id]
	return e.rect, ok
}

// Cell returns a sorted copy of the ids stored at slot i. A nil result means
// the slot is null or out of range; an empty, non-nil result is a
// pass-through node.
func (t *Quadtree) Cell(i int) []string {
	if i < 0 || i >= len(t.cells) || t.cells[i] == nil {
		return nil
	}
	return sortedIDs(t.cells[i])
}

// IDs returns every indexed id in sorted order
func (t *Quadtree) IDs() []string {
	ids := make([]string, 0, len(t.index))
	for id := range t.index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (t *Quadtree) insert(id string, idx int, r Rect) {
	for idx >= len(t.cells) {
		t.expand()
	}
	t.materialize(idx)
	t.cells[idx][id] = struct{}{}
	t.index[id] = entry{idx: idx, rect: r}
}

// materialize makes idx and all of its ancestors non-nil
func (t *Quadtree) materialize(idx int) {
	for {
		if t.cells[idx] != nil {
			return
		}
		t.cells[idx] = make(cell)
		if idx == 0 {
			return
		}
		idx = Parent(idx)
	}
}

// prune nulls idx and walks up while cells are empty and childless
func (t *Quadtree) prune(idx int) {
	for {
		c := t.cells[idx]
		if c == nil || len(c) > 0 || t.hasChildren(idx) {
			return
		}
		t.cells[idx] = nil
		if idx == 0 {
			return
		}
		idx = Parent(idx)
	}
}

func (t *Quadtree) hasChildren(idx int) bool {
	for k := 0; k < 4; k++ {
		j := Child(idx, k)
		if j >= len(t.cells) {
			return false
		}
		if t.cells[j] != nil {
			return true
		}
	}
	return false
}

// expand allocates one more level. Existing slots keep their indices.
func (t *Quadtree) expand() {
	if t.depth >= t.maxLevel {
		return
	}
	t.depth++
	grown := make([]cell, Offset(t.depth+1))
	copy(grown, t.cells)
	t.cells = grown
	log.WithFields(logrus.Fields{"depth": t.depth, "slots": len(grown)}).Debug("quadtree expanded")
}

func (t *Quadtree) get(i int) cell {
	if i >= len(t.cells) {
		return nil
	}
	return t.cells[i]
}

func sortedIDs(c cell) []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

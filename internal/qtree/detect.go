package qtree

import (
	"errors"
	"sort"

	"github.com/sirupsen/logrus"
)

// ErrIncomparable is returned when two trees do not share cell addressing
var ErrIncomparable = errors.New("qtree: trees built over different bounds or depth")

// Pairs maps an id from the first tree to the overlapping ids of the second
type Pairs map[string][]string

// Count returns the number of pairs
func (p Pairs) Count() int {
	n := 0
	for _, bs := range p {
		n += len(bs)
	}
	return n
}

// CheckComparable reports whether ta and tb can be walked in lockstep
func CheckComparable(ta, tb *Quadtree) error {
	if ta.bounds != tb.bounds || ta.maxLevel != tb.maxLevel {
		return ErrIncomparable
	}
	return nil
}

type item struct {
	id   string
	rect Rect
}

// frame is one node of the walk; pushedA/pushedB record how many ids the node
// added to the ancestor stacks so leaving it pops the same amount
type frame struct {
	idx     int
	next    int
	pushedA int
	pushedB int
}

// walker holds the state of a single Overlaps call
type walker struct {
	ta, tb *Quadtree
	ancA   []item
	ancB   []item
	frames []frame
	out    Pairs
	limit  int
}

// Overlaps returns every pair (a in ta, b in tb) whose indexed rectangles
// overlap. Each pair appears once. The trees must be comparable; callers
// that cannot guarantee it should use CheckComparable first.
func Overlaps(ta, tb *Quadtree) Pairs {
	w := &walker{ta: ta, tb: tb, out: make(Pairs)}
	w.limit = len(ta.cells)
	if len(tb.cells) > w.limit {
		w.limit = len(tb.cells)
	}
	w.run()
	for a := range w.out {
		sort.Strings(w.out[a])
	}
	return w.out
}

func (w *walker) run() {
	w.enter(0)
	for len(w.frames) > 0 {
		top := &w.frames[len(w.frames)-1]
		if top.next == 4 {
			w.ancA = w.ancA[:len(w.ancA)-top.pushedA]
			w.ancB = w.ancB[:len(w.ancB)-top.pushedB]
			w.frames = w.frames[:len(w.frames)-1]
			continue
		}
		child := Child(top.idx, top.next)
		top.next++
		if child < w.limit {
			w.enter(child)
		}
	}
}

// enter tests node idx and, if its subtree can still produce pairs, pushes a
// frame for it
func (w *walker) enter(idx int) {
	ca := w.ta.get(idx)
	cb := w.tb.get(idx)
	if ca == nil && (cb == nil || len(w.ancA) == 0) {
		return
	}
	if cb == nil && len(w.ancB) == 0 {
		return
	}

	itemsA := w.items(w.ta, ca)
	itemsB := w.items(w.tb, cb)
	w.test(itemsA, itemsB)
	w.test(itemsA, w.ancB)
	w.test(w.ancA, itemsB)

	w.ancA = append(w.ancA, itemsA...)
	w.ancB = append(w.ancB, itemsB...)
	w.frames = append(w.frames, frame{idx: idx, pushedA: len(itemsA), pushedB: len(itemsB)})
}

func (w *walker) items(t *Quadtree, c cell) []item {
	if len(c) == 0 {
		return nil
	}
	out := make([]item, 0, len(c))
	for id := range c {
		out = append(out, item{id: id, rect: t.index[id].rect})
	}
	return out
}

func (w *walker) test(as, bs []item) {
	for _, a := range as {
		for _, b := range bs {
			if Overlap(a.rect, b.rect) {
				w.out[a.id] = append(w.out[a.id], b.id)
			}
		}
	}
}

// DetectOverlap calls onOverlap once for every overlapping pair between ra and
// rb where both entities still exist and are collidable. Pairs are delivered
// sorted by (idA, idB). Passing the same repository twice reports each
// unordered pair once and never pairs an entity with itself.
func DetectOverlap[A, B Entity](ra *Repository[A], rb *Repository[B], onOverlap func(idA string, a A, idB string, b B)) {
	if err := CheckComparable(ra.tree, rb.tree); err != nil {
		log.WithFields(logrus.Fields{
			"bounds_a": ra.tree.bounds, "bounds_b": rb.tree.bounds,
			"max_level_a": ra.tree.maxLevel, "max_level_b": rb.tree.maxLevel,
		}).Warn(err.Error())
		return
	}
	same := ra.tree == rb.tree

	pairs := Overlaps(ra.tree, rb.tree)
	keys := make([]string, 0, len(pairs))
	for idA := range pairs {
		keys = append(keys, idA)
	}
	sort.Strings(keys)

	for _, idA := range keys {
		for _, idB := range pairs[idA] {
			if same && idA >= idB {
				continue
			}
			a, ok := ra.Get(idA)
			if !ok {
				continue
			}
			b, ok := rb.Get(idB)
			if !ok {
				continue
			}
			if !a.Collidable() || !b.Collidable() {
				continue
			}
			onOverlap(idA, a, idB, b)
		}
	}
}

// Package orderedlist implements an indexable, bidirectional probabilistic
// skiplist keyed by (axis value, id). It backs the cross-link AOI variant,
// one instance per axis.
package orderedlist

import (
	"math/rand"

	"github.com/orbitgrid/aoi/internal/spatial/unit"
)

// maxLevel bounds the node level, sufficient for expected O(log n) lookups
// up to roughly 2^14 entries.
const maxLevel = 14

// LevelSource supplies the fair-coin draws used for level generation. Tests
// inject a scripted source to get deterministic structural output; the
// demo layer seeds one from math/rand.
type LevelSource interface {
	// Bool returns the result of one fair-coin flip.
	Bool() bool
}

// randSource adapts math/rand.Rand to LevelSource.
type randSource struct{ r *rand.Rand }

// NewRandSource returns a LevelSource backed by a seeded math/rand.Rand.
func NewRandSource(seed int64) LevelSource {
	return &randSource{r: rand.New(rand.NewSource(seed))}
}

func (s *randSource) Bool() bool { return s.r.Intn(2) == 0 }

// Key orders units along one axis: the axis value first, id as tie-break.
type Key func(u *unit.Unit) float64

// node is one skiplist node. Sentinels carry data == nil.
type node struct {
	data  *unit.Unit
	level int
	nexts []*node
	prevs []*node
}

// List is one bidirectional skiplist instance, bound to a single axis via
// its Key function.
type List struct {
	key   Key
	level LevelSource
	head  *node
	tail  *node
}

// New returns an empty list ordered by key, drawing node levels from src.
func New(key Key, src LevelSource) *List {
	head := &node{level: maxLevel, nexts: make([]*node, maxLevel), prevs: make([]*node, maxLevel)}
	tail := &node{level: maxLevel, nexts: make([]*node, maxLevel), prevs: make([]*node, maxLevel)}
	for l := 0; l < maxLevel; l++ {
		head.nexts[l] = tail
		tail.prevs[l] = head
	}
	return &List{key: key, level: src, head: head, tail: tail}
}

// Handle is the opaque node reference returned by Insert and accepted by
// Erase/Next/Prev/ForeachForward/ForeachBackward.
type Handle = *node

func (l *List) randomLevel() int {
	level := 1
	for level < maxLevel && l.level.Bool() {
		level++
	}
	return level
}

// less reports whether a sorts strictly before b under (key, id).
func (l *List) less(a, b *unit.Unit) bool {
	ka, kb := l.key(a), l.key(b)
	if ka != kb {
		return ka < kb
	}
	return a.ID < b.ID
}

// greater reports whether a sorts strictly after b under (key, id).
func (l *List) greater(a, b *unit.Unit) bool {
	return l.less(b, a)
}

// findLastLess descends from the head's top level, recording in prevs the
// last node visited at each level whose data is not greater than data (i.e.
// the node immediately before where data belongs).
func (l *List) findLastLess(data *unit.Unit, prevs []*node) *node {
	p := l.head
	level := p.level - 1
	for level >= 0 {
		next := p.nexts[level]
		if next != l.tail && l.greater(data, next.data) {
			p = next
			level = p.level
		} else {
			prevs[level] = p
		}
		level--
	}
	return p
}

// Insert places u at its sorted position and returns a handle to the new
// node. Expected O(log n).
func (l *List) Insert(u *unit.Unit) Handle {
	n := &node{data: u, level: l.randomLevel()}
	n.nexts = make([]*node, n.level)
	n.prevs = make([]*node, n.level)
	l.link(n)
	return n
}

// link inserts an existing node object into the list at its current data's
// sorted position, reusing the node's level. Used both by Insert and by
// Reinsert (position updates that must preserve handle identity).
func (l *List) link(n *node) {
	prevs := make([]*node, maxLevel)
	l.findLastLess(n.data, prevs)

	for lvl := 0; lvl < n.level; lvl++ {
		n.nexts[lvl] = prevs[lvl].nexts[lvl]
		prevs[lvl].nexts[lvl] = n
		n.nexts[lvl].prevs[lvl] = n
		n.prevs[lvl] = prevs[lvl]
	}
}

// Erase unlinks h without deallocating it. The node's own forward/backward
// arrays are cleared so it cannot be mistaken for still-linked, but its
// level and data survive, allowing Reinsert to relink the same handle.
func (l *List) Erase(h Handle) {
	for lvl := 0; lvl < h.level; lvl++ {
		h.prevs[lvl].nexts[lvl] = h.nexts[lvl]
		h.nexts[lvl].prevs[lvl] = h.prevs[lvl]
		h.prevs[lvl] = nil
		h.nexts[lvl] = nil
	}
}

// Reinsert relinks a previously-Erase'd handle at its data's current sorted
// position, without drawing a new level. This is what lets a position
// update reuse the same handle object across the mutation.
func (l *List) Reinsert(h Handle) {
	l.link(h)
}

// Next returns the successor of h at level 0, or the tail sentinel.
func (l *List) Next(h Handle) Handle { return h.nexts[0] }

// Prev returns the predecessor of h at level 0, or the head sentinel.
func (l *List) Prev(h Handle) Handle { return h.prevs[0] }

// VisitFunc is called once per unit during a walk; returning false stops
// the walk early.
type VisitFunc func(u *unit.Unit) bool

// ForeachForward walks from start towards the tail at level 0, calling
// visit on each node's data until visit returns false or the tail is
// reached.
func (l *List) ForeachForward(start Handle, visit VisitFunc) {
	p := start
	for p != l.tail {
		if !visit(p.data) {
			break
		}
		p = p.nexts[0]
	}
}

// ForeachBackward walks from start towards the head at level 0, calling
// visit on each node's data until visit returns false or the head is
// reached.
func (l *List) ForeachBackward(start Handle, visit VisitFunc) {
	p := start
	for p != l.head {
		if !visit(p.data) {
			break
		}
		p = p.prevs[0]
	}
}

// Package quadtree implements the quadtree AOI backend: a point quadtree
// with capacity-triggered split, bounded depth, and an intrusive
// doubly-linked bucket per leaf for O(1) erase.
package quadtree

import "github.com/orbitgrid/aoi/internal/spatial/unit"

// MaxDepth bounds how deep a leaf may split. Beyond this depth, a leaf
// keeps accepting units into its bucket regardless of capacity.
const MaxDepth = 5

// Box is an axis-aligned rectangle using closed intervals: a point exactly
// on an edge or corner is contained. This matches the source's boundary
// semantics, which is what makes the first-match-wins quadrant tie-break
// below well defined.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// Contains reports whether (x, y) lies within b, inclusive of the boundary.
func (b Box) Contains(x, y float64) bool {
	return x >= b.X1 && x <= b.X2 && y >= b.Y1 && y <= b.Y2
}

// Intersects reports whether b and o overlap. The comparison is strict, so
// boxes that merely touch along an edge do not intersect.
func (b Box) Intersects(o Box) bool {
	return maxf(b.X1, o.X1) < minf(b.X2, o.X2) && maxf(b.Y1, o.Y1) < minf(b.Y2, o.Y2)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// bucketEntry is the intrusive doubly-linked node wrapping one unit inside
// a leaf's bucket.
type bucketEntry struct {
	u    *unit.Unit
	prev *bucketEntry
	next *bucketEntry
	leaf *node
}

// node is one quadtree node: either an internal node with four children,
// or a leaf with a bucket.
type node struct {
	box      Box
	depth    int
	leaf     bool
	children [4]*node // order: NW, NE, SW, SE

	// head/tail are sentinels bracketing the intrusive bucket list; empty
	// iff head.next == tail.
	head *bucketEntry
	tail *bucketEntry
}

func newLeaf(box Box, depth int) *node {
	n := &node{box: box, depth: depth, leaf: true}
	n.head = &bucketEntry{}
	n.tail = &bucketEntry{}
	n.head.next = n.tail
	n.tail.prev = n.head
	return n
}

func (n *node) empty() bool { return n.head.next == n.tail }

func (n *node) append(e *bucketEntry) {
	last := n.tail.prev
	last.next = e
	e.prev = last
	e.next = n.tail
	n.tail.prev = e
	e.leaf = n
}

func (n *node) unlink(e *bucketEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
	e.leaf = nil
}

// Backend is the quadtree AOI variant.
type Backend struct {
	root *node
}

// New returns an empty quadtree backend covering [0, width] x [0, height].
func New(width, height float64) *Backend {
	return &Backend{root: newLeaf(Box{X1: 0, Y1: 0, X2: width, Y2: height}, 0)}
}

// AddUnit inserts u into the tree, splitting leaves as necessary.
func (b *Backend) AddUnit(u *unit.Unit) {
	b.insert(b.root, u)
}

func (b *Backend) insert(n *node, u *unit.Unit) {
	for {
		if n.leaf && (n.empty() || n.depth >= MaxDepth) {
			e := &bucketEntry{u: u}
			n.append(e)
			u.Handle = e
			return
		}
		if n.leaf {
			b.split(n)
		}
		n = b.childFor(n, u.X, u.Y)
	}
}

// split converts a full, non-max-depth leaf into an internal node with
// four children and redistributes its bucket.
func (b *Backend) split(n *node) {
	midX := (n.box.X1 + n.box.X2) / 2
	midY := (n.box.Y1 + n.box.Y2) / 2
	childDepth := n.depth + 1

	nw := newLeaf(Box{X1: n.box.X1, Y1: midY, X2: midX, Y2: n.box.Y2}, childDepth)
	ne := newLeaf(Box{X1: midX, Y1: midY, X2: n.box.X2, Y2: n.box.Y2}, childDepth)
	sw := newLeaf(Box{X1: n.box.X1, Y1: n.box.Y1, X2: midX, Y2: midY}, childDepth)
	se := newLeaf(Box{X1: midX, Y1: n.box.Y1, X2: n.box.X2, Y2: midY}, childDepth)
	n.children = [4]*node{nw, ne, sw, se}

	old := make([]*unit.Unit, 0)
	for e := n.head.next; e != n.tail; e = e.next {
		old = append(old, e.u)
	}
	n.head.next = n.tail
	n.tail.prev = n.head

	n.leaf = false
	for _, u := range old {
		b.insert(b.childFor(n, u.X, u.Y), u)
	}
}

// childFor returns the first child (in NW, NE, SW, SE order) whose box
// contains (x, y). Boundary points touching more than one quadrant resolve
// to whichever comes first in that order.
func (b *Backend) childFor(n *node, x, y float64) *node {
	for _, c := range n.children {
		if c.box.Contains(x, y) {
			return c
		}
	}
	// Unreachable for any (x, y) within n.box, since the four children's
	// boxes exactly tile n.box under closed-interval Contains.
	return n.children[0]
}

// RemoveUnit unlinks u from its leaf bucket in O(1). Empty leaves are left
// in place rather than merged back into their parent.
func (b *Backend) RemoveUnit(u *unit.Unit) {
	e := u.Handle.(*bucketEntry)
	e.leaf.unlink(e)
	u.Handle = nil
}

// UpdateUnit removes and reinserts u at its new position. The quadtree has
// no cheaper in-place relocation: a move may cross quadrant boundaries, so
// the destination leaf must be recomputed from the root.
func (b *Backend) UpdateUnit(u *unit.Unit, x, y float64) {
	b.RemoveUnit(u)
	u.X = x
	u.Y = y
	b.AddUnit(u)
}

// search recurses into any child whose box overlaps box, collecting every
// unit inside box at the leaves. The overlap test is closed (a child that
// only touches box along an edge is still visited), because a unit lying
// on that shared edge is inside box under closed-interval Contains.
func (b *Backend) search(n *node, box Box, out map[int]*unit.Unit) {
	if n.box.X1 > box.X2 || box.X1 > n.box.X2 || n.box.Y1 > box.Y2 || box.Y1 > n.box.Y2 {
		return
	}
	if !n.leaf {
		for _, c := range n.children {
			b.search(c, box, out)
		}
		return
	}
	for e := n.head.next; e != n.tail; e = e.next {
		if box.Contains(e.u.X, e.u.Y) {
			out[e.u.ID] = e.u
		}
	}
}

// FindNearbyUnit returns every unit (excluding u itself) whose Chebyshev
// distance to u is at most rng.
func (b *Backend) FindNearbyUnit(u *unit.Unit, rng float64) map[int]*unit.Unit {
	box := Box{
		X1: maxf(0, u.X-rng),
		Y1: maxf(0, u.Y-rng),
		X2: minf(b.root.box.X2, u.X+rng),
		Y2: minf(b.root.box.Y2, u.Y+rng),
	}
	res := make(map[int]*unit.Unit)
	b.search(b.root, box, res)
	delete(res, u.ID)
	return res
}

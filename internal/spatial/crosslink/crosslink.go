// Package crosslink implements the cross-linked ordered-list AOI backend:
// two bidirectional skiplists, one keyed by x, one by y, pruned by axis
// range on query.
package crosslink

import (
	"github.com/orbitgrid/aoi/internal/spatial/orderedlist"
	"github.com/orbitgrid/aoi/internal/spatial/unit"
)

// handle is the backend-specific reference stashed on unit.Unit.Handle:
// one skiplist node per axis.
type handle struct {
	x orderedlist.Handle
	y orderedlist.Handle
}

// Backend is the cross-link AOI variant.
type Backend struct {
	xList *orderedlist.List
	yList *orderedlist.List
}

// New returns an empty cross-link backend, drawing skiplist levels from
// levelSrc.
func New(levelSrc orderedlist.LevelSource) *Backend {
	return &Backend{
		xList: orderedlist.New(func(u *unit.Unit) float64 { return u.X }, levelSrc),
		yList: orderedlist.New(func(u *unit.Unit) float64 { return u.Y }, levelSrc),
	}
}

// AddUnit inserts u into both axis lists and records its handle.
func (b *Backend) AddUnit(u *unit.Unit) {
	h := &handle{}
	h.x = b.xList.Insert(u)
	h.y = b.yList.Insert(u)
	u.Handle = h
}

// UpdateUnit erases u's existing nodes, mutates its position, and reinserts
// the same node objects at their new sorted position. The handle's
// identity never changes.
func (b *Backend) UpdateUnit(u *unit.Unit, x, y float64) {
	h := u.Handle.(*handle)
	b.xList.Erase(h.x)
	b.yList.Erase(h.y)
	u.X = x
	u.Y = y
	b.xList.Reinsert(h.x)
	b.yList.Reinsert(h.y)
}

// RemoveUnit unlinks u from both axis lists.
func (b *Backend) RemoveUnit(u *unit.Unit) {
	h := u.Handle.(*handle)
	b.xList.Erase(h.x)
	b.yList.Erase(h.y)
	u.Handle = nil
}

// FindNearbyUnit returns every unit (excluding u itself) whose Chebyshev
// distance to u is at most rng.
func (b *Backend) FindNearbyUnit(u *unit.Unit, rng float64) map[int]*unit.Unit {
	h := u.Handle.(*handle)

	xSet := make(map[int]*unit.Unit)
	collectX := func(other *unit.Unit) bool {
		if absf(u.X-other.X) > rng {
			return false
		}
		xSet[other.ID] = other
		return true
	}
	b.xList.ForeachForward(b.xList.Next(h.x), collectX)
	b.xList.ForeachBackward(b.xList.Prev(h.x), collectX)

	res := make(map[int]*unit.Unit)
	collectY := func(other *unit.Unit) bool {
		if absf(u.Y-other.Y) > rng {
			return false
		}
		if _, ok := xSet[other.ID]; ok {
			res[other.ID] = other
		}
		return true
	}
	b.yList.ForeachForward(b.yList.Next(h.y), collectY)
	b.yList.ForeachBackward(b.yList.Prev(h.y), collectY)

	delete(res, u.ID)
	return res
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

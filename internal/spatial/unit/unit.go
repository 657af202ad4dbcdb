// Package unit defines the entity type shared by every spatial backend and
// by the subscription-delta engine. It exists on its own so that backend
// packages (orderedlist, crosslink, quadtree, towergrid) and the facade
// package can all depend on a single entity definition without importing
// each other.
package unit

import "sort"

// Handle is the opaque back-reference a backend attaches to a Unit so that
// it can erase or relocate the unit in O(log n) or O(1) without a lookup.
// Each backend defines its own concrete handle type; Handle carries no
// methods because C4/C5 never need to inspect it, only to hold it and pass
// it back to the owning backend.
type Handle interface{}

// Unit is one tracked point entity.
type Unit struct {
	ID int
	X  float64
	Y  float64

	// Subscribers holds the ids currently visible to this unit. It is
	// owned and mutated exclusively by the delta engine (package delta).
	Subscribers map[int]struct{}

	// Handle is the backend-specific position reference. Exactly one
	// backend owns a given Unit at a time, so there is only one handle
	// field rather than one per backend kind.
	Handle Handle
}

// New returns a unit with an empty subscriber set and no handle.
func New(id int, x, y float64) *Unit {
	return &Unit{
		ID:          id,
		X:           x,
		Y:           y,
		Subscribers: make(map[int]struct{}),
	}
}

// IDs returns the subscriber set's members as a slice, sorted ascending,
// giving a reproducible iteration order where ranging over the map would
// not.
func (u *Unit) IDs() []int {
	ids := make([]int, 0, len(u.Subscribers))
	for id := range u.Subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Package delta implements the subscription-delta engine: given an
// entity's old and new neighbor sets, it computes enter/leave sets and
// fires enter/leave callbacks in a deterministic order while maintaining
// the per-entity subscriber-set invariant.
//
// This package is independent of which spatial backend produced new_set;
// it is parameterized entirely by the sets it is handed.
package delta

import "github.com/orbitgrid/aoi/internal/spatial/unit"

// Callback is fired once per enter/leave transition. meID is the entity
// the transition is reported to; otherID is the entity crossing the
// boundary.
type Callback func(meID, otherID int)

// Engine applies subscription transitions for one entity at a time.
type Engine struct {
	OnEnter Callback
	OnLeave Callback
}

// New returns an Engine that fires onEnter/onLeave on every transition.
func New(onEnter, onLeave Callback) *Engine {
	return &Engine{OnEnter: onEnter, OnLeave: onLeave}
}

// Lookup resolves a still-registered entity id to its Unit. The facade
// passes its entity map; the delta engine needs it to reach entities that
// are leaving self's neighborhood (they appear only by id in self's stored
// subscriber set, not in newSet).
type Lookup func(id int) *unit.Unit

// Apply transitions self from its current subscriber set to newSet, firing
// enter callbacks for entities gained and leave callbacks for entities
// lost, in ascending-id order within each phase, and mutating both sides
// of every affected pair's subscriber set.
//
// Callers that need enter-only or leave-only semantics (AddUnit,
// RemoveUnit) pass a newSet that already excludes the other phase.
func (e *Engine) Apply(self *unit.Unit, newSet map[int]*unit.Unit, lookup Lookup) {
	oldSet := self.Subscribers

	var enterIDs, leaveIDs []int
	for id := range newSet {
		if _, ok := oldSet[id]; !ok {
			enterIDs = append(enterIDs, id)
		}
	}
	for id := range oldSet {
		if _, ok := newSet[id]; !ok {
			leaveIDs = append(leaveIDs, id)
		}
	}
	sortInts(enterIDs)
	sortInts(leaveIDs)

	// self's own subscriber set is set to its final value up front, as in
	// the source: by the time the loops below run, self already reflects
	// newSet, so the loops only update the other side of each pair.
	self.Subscribers = newSubscriberSet(newSet, self.ID)

	for _, id := range enterIDs {
		other := newSet[id]
		e.OnEnter(other.ID, self.ID)
		other.Subscribers[self.ID] = struct{}{}
		e.OnEnter(self.ID, other.ID)
	}

	for _, id := range leaveIDs {
		other := lookup(id)
		e.OnLeave(id, self.ID)
		if other != nil {
			delete(other.Subscribers, self.ID)
		}
		e.OnLeave(self.ID, id)
	}
}

// newSubscriberSet copies newSet's ids into a fresh subscriber set,
// excluding self (the delta engine never records self-subscription; see
// invariant 3 of the data model).
func newSubscriberSet(newSet map[int]*unit.Unit, selfID int) map[int]struct{} {
	out := make(map[int]struct{}, len(newSet))
	for id := range newSet {
		if id == selfID {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}

func sortInts(ids []int) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

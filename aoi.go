// Package aoi implements an Area-of-Interest index: a spatial structure
// that tracks mobile point entities on a bounded 2D rectangle and, for
// each entity, maintains the set of other entities within a fixed
// Chebyshev-distance visibility radius, firing enter/leave callbacks as
// that set changes.
//
// Three interchangeable backends implement the spatial query at the core
// of the index: a cross-linked pair of ordered lists, a quadtree, and a
// uniform grid ("tower"). All three produce identical neighbor sets for
// identical input; they differ only in their performance characteristics.
// Pick one at construction with NewCrosslinkIndex, NewQuadtreeIndex, or
// NewTowerIndex.
//
// The index is single-threaded and non-reentrant: public methods must run
// to completion before the next is called, and callbacks must not call
// back into the index that invoked them. A violation of the latter panics
// rather than silently corrupting subscription state.
package aoi

import (
	"errors"
	"fmt"

	"github.com/orbitgrid/aoi/internal/delta"
	"github.com/orbitgrid/aoi/internal/spatial/crosslink"
	"github.com/orbitgrid/aoi/internal/spatial/orderedlist"
	"github.com/orbitgrid/aoi/internal/spatial/quadtree"
	"github.com/orbitgrid/aoi/internal/spatial/towergrid"
	"github.com/orbitgrid/aoi/internal/spatial/unit"
)

// Sentinel errors for every programmer-contract violation the index
// detects. See package doc and the error handling design for policy.
var (
	ErrInvalidConfig = errors.New("aoi: invalid config")
	ErrOutOfBounds   = errors.New("aoi: position out of bounds")
	ErrDuplicateID   = errors.New("aoi: duplicate id")
	ErrUnknownID     = errors.New("aoi: unknown id")
	ErrReentrant     = errors.New("aoi: reentrant call into index")
)

// Callback is invoked synchronously with only the two integer ids
// involved in a visibility transition.
type Callback func(meID, otherID int)

// backend is the capability set every spatial variant implements. The
// facade and the delta engine are written once against this interface and
// never need to know which concrete backend is active.
type backend interface {
	AddUnit(u *unit.Unit)
	UpdateUnit(u *unit.Unit, x, y float64)
	RemoveUnit(u *unit.Unit)
	FindNearbyUnit(u *unit.Unit, rng float64) map[int]*unit.Unit
}

// Index is the AOI facade (C5): it owns the entity map and world bounds,
// forwards mutations to the selected backend, and drives the subscription
// delta engine.
type Index struct {
	width, height float64
	radius        float64

	backend  backend
	engine   *delta.Engine
	entities map[int]*unit.Unit

	busy bool
}

func validateConfig(width, height, radius float64, onEnter, onLeave Callback) error {
	if width < 0 || height < 0 || radius < 0 {
		return fmt.Errorf("%w: width=%v height=%v radius=%v must be >= 0", ErrInvalidConfig, width, height, radius)
	}
	if onEnter == nil || onLeave == nil {
		return fmt.Errorf("%w: onEnter and onLeave callbacks must be non-nil", ErrInvalidConfig)
	}
	return nil
}

func newIndex(width, height, radius float64, b backend, onEnter, onLeave Callback) *Index {
	idx := &Index{
		width:    width,
		height:   height,
		radius:   radius,
		backend:  b,
		entities: make(map[int]*unit.Unit),
	}
	idx.engine = delta.New(
		func(meID, otherID int) { onEnter(meID, otherID) },
		func(meID, otherID int) { onLeave(meID, otherID) },
	)
	return idx
}

// NewCrosslinkIndex constructs an Index backed by the cross-linked
// ordered-list variant (two C1 lists). levelSrc supplies the skiplist's
// level draws; pass orderedlist.NewRandSource(seed) for a seeded
// pseudo-random source (the same seed gives the same levels), or a
// scripted LevelSource for tests.
func NewCrosslinkIndex(width, height, radius float64, levelSrc orderedlist.LevelSource, onEnter, onLeave Callback) (*Index, error) {
	if err := validateConfig(width, height, radius, onEnter, onLeave); err != nil {
		return nil, err
	}
	return newIndex(width, height, radius, crosslink.New(levelSrc), onEnter, onLeave), nil
}

// NewQuadtreeIndex constructs an Index backed by the quadtree variant.
func NewQuadtreeIndex(width, height, radius float64, onEnter, onLeave Callback) (*Index, error) {
	if err := validateConfig(width, height, radius, onEnter, onLeave); err != nil {
		return nil, err
	}
	return newIndex(width, height, radius, quadtree.New(width, height), onEnter, onLeave), nil
}

// NewTowerIndex constructs an Index backed by the uniform-grid variant.
func NewTowerIndex(width, height, radius float64, onEnter, onLeave Callback) (*Index, error) {
	if err := validateConfig(width, height, radius, onEnter, onLeave); err != nil {
		return nil, err
	}
	return newIndex(width, height, radius, towergrid.New(width, height, radius), onEnter, onLeave), nil
}

// Width returns the world's x extent.
func (idx *Index) Width() float64 { return idx.width }

// Height returns the world's y extent.
func (idx *Index) Height() float64 { return idx.height }

// enter marks the index busy for the duration of a public call, panicking
// if a call is already in progress — the contract in §5 forbids callbacks
// re-entering the index, and a panic here surfaces the violation at the
// point of misuse instead of leaving subscription state half-updated.
func (idx *Index) enter() {
	if idx.busy {
		panic(ErrReentrant)
	}
	idx.busy = true
}

func (idx *Index) leaveBusy() {
	idx.busy = false
}

func (idx *Index) validatePosition(x, y float64) error {
	if x < 0 || x > idx.width || y < 0 || y > idx.height {
		return fmt.Errorf("%w: (%v, %v) outside [0,%v] x [0,%v]", ErrOutOfBounds, x, y, idx.width, idx.height)
	}
	return nil
}

func (idx *Index) lookup(id int) *unit.Unit {
	return idx.entities[id]
}

// AddUnit creates a new entity at (x, y), inserts it into the active
// backend, and fires enter callbacks for every unit already within range.
func (idx *Index) AddUnit(id int, x, y float64) error {
	idx.enter()
	defer idx.leaveBusy()

	if _, exists := idx.entities[id]; exists {
		return fmt.Errorf("%w: id=%d", ErrDuplicateID, id)
	}
	if err := idx.validatePosition(x, y); err != nil {
		return err
	}

	u := unit.New(id, x, y)
	idx.backend.AddUnit(u)
	idx.entities[id] = u

	newSet := idx.backend.FindNearbyUnit(u, idx.radius)
	idx.engine.Apply(u, newSet, idx.lookup)
	return nil
}

// UpdateUnit moves an existing entity to (x, y), recomputes its neighbor
// set, and fires the resulting enter/leave callbacks. A call with (x, y)
// exactly equal to the unit's current position is a guaranteed no-op: it
// returns immediately without touching the backend or firing any
// callback, regardless of which backend is active.
func (idx *Index) UpdateUnit(id int, x, y float64) error {
	idx.enter()
	defer idx.leaveBusy()

	u, ok := idx.entities[id]
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrUnknownID, id)
	}
	if err := idx.validatePosition(x, y); err != nil {
		return err
	}
	if u.X == x && u.Y == y {
		return nil
	}

	idx.backend.UpdateUnit(u, x, y)

	newSet := idx.backend.FindNearbyUnit(u, idx.radius)
	idx.engine.Apply(u, newSet, idx.lookup)
	return nil
}

// RemoveUnit fires leave callbacks for every remaining subscriber, then
// erases the entity from the backend and the entity map.
func (idx *Index) RemoveUnit(id int) error {
	idx.enter()
	defer idx.leaveBusy()

	u, ok := idx.entities[id]
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrUnknownID, id)
	}

	idx.engine.Apply(u, map[int]*unit.Unit{}, idx.lookup)
	idx.backend.RemoveUnit(u)
	delete(idx.entities, id)
	return nil
}

// FindNearbyUnit returns the ids of every entity (excluding id itself)
// within rng of id's current position, independent of the index's
// configured visibility radius.
func (idx *Index) FindNearbyUnit(id int, rng float64) (map[int]struct{}, error) {
	idx.enter()
	defer idx.leaveBusy()

	u, ok := idx.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%d", ErrUnknownID, id)
	}

	found := idx.backend.FindNearbyUnit(u, rng)
	out := make(map[int]struct{}, len(found))
	for otherID := range found {
		out[otherID] = struct{}{}
	}
	return out, nil
}

// GetSubscribeSet returns the ids currently visible to id.
func (idx *Index) GetSubscribeSet(id int) (map[int]struct{}, error) {
	idx.enter()
	defer idx.leaveBusy()

	u, ok := idx.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%d", ErrUnknownID, id)
	}

	out := make(map[int]struct{}, len(u.Subscribers))
	for otherID := range u.Subscribers {
		out[otherID] = struct{}{}
	}
	return out, nil
}

package crosslink

import (
	"testing"

	"github.com/orbitgrid/aoi/internal/spatial/orderedlist"
	"github.com/orbitgrid/aoi/internal/spatial/unit"
)

func ids(set map[int]*unit.Unit) map[int]bool {
	out := make(map[int]bool, len(set))
	for id := range set {
		out[id] = true
	}
	return out
}

func TestFindNearbyUnitChebyshevBox(t *testing.T) {
	b := New(orderedlist.NewRandSource(1))

	a := unit.New(1, 1, 1)
	b2 := unit.New(2, 2, 2)
	c := unit.New(3, 10, 10)
	for _, u := range []*unit.Unit{a, b2, c} {
		b.AddUnit(u)
	}

	got := ids(b.FindNearbyUnit(a, 4))
	if len(got) != 1 || !got[2] {
		t.Fatalf("got %v, want {2}", got)
	}

	got = ids(b.FindNearbyUnit(c, 4))
	if len(got) != 0 {
		t.Fatalf("got %v, want {}", got)
	}
}

func TestUpdateUnitPreservesHandleAcrossAxes(t *testing.T) {
	b := New(orderedlist.NewRandSource(2))

	a := unit.New(1, 1, 1)
	other := unit.New(2, 50, 50)
	b.AddUnit(a)
	b.AddUnit(other)
	h := a.Handle.(*handle)
	hx, hy := h.x, h.y

	b.UpdateUnit(a, 49, 49)
	if a.X != 49 || a.Y != 49 {
		t.Fatalf("position not updated: %+v", a)
	}
	if a.Handle.(*handle) != h || h.x != hx || h.y != hy {
		t.Fatal("UpdateUnit replaced the unit's handle or its axis nodes")
	}

	got := ids(b.FindNearbyUnit(a, 4))
	if len(got) != 1 || !got[2] {
		t.Fatalf("got %v, want {2}", got)
	}
}

func TestRemoveUnitDropsFromBothAxisLists(t *testing.T) {
	b := New(orderedlist.NewRandSource(3))

	a := unit.New(1, 1, 1)
	other := unit.New(2, 2, 2)
	b.AddUnit(a)
	b.AddUnit(other)
	b.RemoveUnit(other)

	got := ids(b.FindNearbyUnit(a, 4))
	if len(got) != 0 {
		t.Fatalf("got %v, want {} after removal", got)
	}
}

func TestBoundaryDistanceIncluded(t *testing.T) {
	b := New(orderedlist.NewRandSource(4))

	a := unit.New(1, 0, 0)
	other := unit.New(2, 4, 4)
	b.AddUnit(a)
	b.AddUnit(other)

	got := ids(b.FindNearbyUnit(a, 4))
	if !got[2] {
		t.Fatalf("boundary point at exactly R should be included, got %v", got)
	}
}

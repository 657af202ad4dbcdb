package delta

import (
	"testing"

	"github.com/orbitgrid/aoi/internal/spatial/unit"
)

type event struct {
	kind      string
	me, other int
}

func recordingEngine(events *[]event) *Engine {
	return New(
		func(me, other int) { *events = append(*events, event{"enter", me, other}) },
		func(me, other int) { *events = append(*events, event{"leave", me, other}) },
	)
}

func TestApplyAddFiresEnterBothDirections(t *testing.T) {
	var events []event
	e := recordingEngine(&events)

	self := unit.New(1, 0, 0)
	other := unit.New(2, 1, 1)
	entities := map[int]*unit.Unit{1: self, 2: other}
	lookup := func(id int) *unit.Unit { return entities[id] }

	e.Apply(self, map[int]*unit.Unit{2: other}, lookup)

	want := []event{{"enter", 2, 1}, {"enter", 1, 2}}
	if len(events) != len(want) {
		t.Fatalf("got %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("got %v, want %v", events, want)
		}
	}
	if _, ok := self.Subscribers[2]; !ok {
		t.Fatal("self should subscribe to other")
	}
	if _, ok := other.Subscribers[1]; !ok {
		t.Fatal("other should subscribe to self")
	}
}

func TestApplyRemoveFiresLeaveBothDirections(t *testing.T) {
	var events []event
	e := recordingEngine(&events)

	self := unit.New(1, 0, 0)
	other := unit.New(2, 1, 1)
	self.Subscribers[2] = struct{}{}
	other.Subscribers[1] = struct{}{}
	entities := map[int]*unit.Unit{1: self, 2: other}
	lookup := func(id int) *unit.Unit { return entities[id] }

	e.Apply(self, map[int]*unit.Unit{}, lookup)

	want := []event{{"leave", 2, 1}, {"leave", 1, 2}}
	if len(events) != len(want) {
		t.Fatalf("got %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("got %v, want %v", events, want)
		}
	}
	if len(self.Subscribers) != 0 {
		t.Fatal("self should have no subscribers after full leave")
	}
	if _, ok := other.Subscribers[1]; ok {
		t.Fatal("other should no longer subscribe to self")
	}
}

func TestApplyNoopProducesNoCallbacks(t *testing.T) {
	var events []event
	e := recordingEngine(&events)

	self := unit.New(1, 0, 0)
	other := unit.New(2, 1, 1)
	self.Subscribers[2] = struct{}{}
	other.Subscribers[1] = struct{}{}
	entities := map[int]*unit.Unit{1: self, 2: other}
	lookup := func(id int) *unit.Unit { return entities[id] }

	e.Apply(self, map[int]*unit.Unit{2: other}, lookup)

	if len(events) != 0 {
		t.Fatalf("expected zero callbacks for an unchanged neighbor set, got %v", events)
	}
}

func TestApplyOrdersByAscendingID(t *testing.T) {
	var events []event
	e := recordingEngine(&events)

	self := unit.New(1, 0, 0)
	a := unit.New(5, 1, 1)
	b := unit.New(3, 1, 1)
	c := unit.New(9, 1, 1)
	entities := map[int]*unit.Unit{1: self, 5: a, 3: b, 9: c}
	lookup := func(id int) *unit.Unit { return entities[id] }

	e.Apply(self, map[int]*unit.Unit{5: a, 3: b, 9: c}, lookup)

	var enterOthers []int
	for _, ev := range events {
		if ev.kind == "enter" && ev.me == self.ID {
			enterOthers = append(enterOthers, ev.other)
		}
	}
	want := []int{3, 5, 9}
	if len(enterOthers) != len(want) {
		t.Fatalf("got %v, want %v", enterOthers, want)
	}
	for i := range want {
		if enterOthers[i] != want[i] {
			t.Fatalf("got %v, want %v", enterOthers, want)
		}
	}
}

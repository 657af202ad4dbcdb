package aoi

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/orbitgrid/aoi/internal/spatial/orderedlist"
)

// recorder captures every enter/leave callback fired during a test so
// scenarios can assert on the exact sequence, per §8's concrete scenarios.
type recorder struct {
	enters [][2]int
	leaves [][2]int
}

func (r *recorder) onEnter(me, other int) { r.enters = append(r.enters, [2]int{me, other}) }
func (r *recorder) onLeave(me, other int) { r.leaves = append(r.leaves, [2]int{me, other}) }

func containsPair(pairs [][2]int, a, b int) bool {
	for _, p := range pairs {
		if p[0] == a && p[1] == b {
			return true
		}
	}
	return false
}

// newIndexes constructs one Index per backend, all sharing identical
// construction parameters, for table-driven scenario and property tests.
func newIndexes(t *testing.T, width, height, radius float64, r *recorder) map[string]*Index {
	t.Helper()
	indexes := make(map[string]*Index)

	cl, err := NewCrosslinkIndex(width, height, radius, orderedlist.NewRandSource(42), r.onEnter, r.onLeave)
	if err != nil {
		t.Fatalf("NewCrosslinkIndex: %v", err)
	}
	indexes["crosslink"] = cl

	qt, err := NewQuadtreeIndex(width, height, radius, r.onEnter, r.onLeave)
	if err != nil {
		t.Fatalf("NewQuadtreeIndex: %v", err)
	}
	indexes["quadtree"] = qt

	tw, err := NewTowerIndex(width, height, radius, r.onEnter, r.onLeave)
	if err != nil {
		t.Fatalf("NewTowerIndex: %v", err)
	}
	indexes["tower"] = tw

	return indexes
}

func TestScenariosS1throughS6(t *testing.T) {
	for name, mk := range map[string]func(t *testing.T) *Index{
		"crosslink": func(t *testing.T) *Index {
			idx, err := NewCrosslinkIndex(64, 64, 4, orderedlist.NewRandSource(1), func(int, int) {}, func(int, int) {})
			if err != nil {
				t.Fatal(err)
			}
			return idx
		},
		"quadtree": func(t *testing.T) *Index {
			idx, err := NewQuadtreeIndex(64, 64, 4, func(int, int) {}, func(int, int) {})
			if err != nil {
				t.Fatal(err)
			}
			return idx
		},
		"tower": func(t *testing.T) *Index {
			idx, err := NewTowerIndex(64, 64, 4, func(int, int) {}, func(int, int) {})
			if err != nil {
				t.Fatal(err)
			}
			return idx
		},
	} {
		t.Run(name, func(t *testing.T) {
			var r recorder
			idx := mk(t)
			idx.engine.OnEnter = r.onEnter
			idx.engine.OnLeave = r.onLeave

			// S1
			mustAdd(t, idx, 1, 1.0, 1.0)
			mustAdd(t, idx, 2, 2.0, 2.0)
			if !containsPair(r.enters, 1, 2) || !containsPair(r.enters, 2, 1) {
				t.Fatalf("S1: expected mutual enter 1<->2, got %v", r.enters)
			}

			// S2
			r.enters, r.leaves = nil, nil
			mustAdd(t, idx, 3, 10.0, 10.0)
			if len(r.enters) != 0 {
				t.Fatalf("S2: expected no enters, got %v", r.enters)
			}
			assertSubscribers(t, idx, 1, []int{2})
			assertSubscribers(t, idx, 2, []int{1})
			assertSubscribers(t, idx, 3, []int{})

			// S3
			r.enters, r.leaves = nil, nil
			mustUpdate(t, idx, 3, 5.0, 5.0)
			for _, pair := range [][2]int{{3, 2}, {2, 3}, {3, 1}, {1, 3}} {
				if !containsPair(r.enters, pair[0], pair[1]) {
					t.Fatalf("S3: expected enter %v, got %v", pair, r.enters)
				}
			}
			assertSubscribers(t, idx, 1, []int{2, 3})
			assertSubscribers(t, idx, 2, []int{1, 3})
			assertSubscribers(t, idx, 3, []int{1, 2})

			// S4
			r.enters, r.leaves = nil, nil
			mustUpdate(t, idx, 1, 60.0, 60.0)
			for _, pair := range [][2]int{{1, 2}, {2, 1}, {1, 3}, {3, 1}} {
				if !containsPair(r.leaves, pair[0], pair[1]) {
					t.Fatalf("S4: expected leave %v, got %v", pair, r.leaves)
				}
			}
			assertSubscribers(t, idx, 1, []int{})
			assertSubscribers(t, idx, 2, []int{3})
			assertSubscribers(t, idx, 3, []int{2})

			// S5
			r.enters, r.leaves = nil, nil
			if err := idx.RemoveUnit(2); err != nil {
				t.Fatalf("S5: RemoveUnit: %v", err)
			}
			for _, pair := range [][2]int{{2, 3}, {3, 2}} {
				if !containsPair(r.leaves, pair[0], pair[1]) {
					t.Fatalf("S5: expected leave %v, got %v", pair, r.leaves)
				}
			}
			assertSubscribers(t, idx, 1, []int{})
			assertSubscribers(t, idx, 3, []int{})
		})
	}
}

func TestScenarioS6BoundaryInclusion(t *testing.T) {
	var r recorder
	idx, err := NewQuadtreeIndex(64, 64, 4, r.onEnter, r.onLeave)
	if err != nil {
		t.Fatal(err)
	}

	mustAdd(t, idx, 1, 0, 0)
	mustAdd(t, idx, 2, 4, 4)
	if !containsPair(r.enters, 1, 2) || !containsPair(r.enters, 2, 1) {
		t.Fatalf("expected mutual enter at exactly distance R, got %v", r.enters)
	}

	r.enters, r.leaves = nil, nil
	mustUpdate(t, idx, 2, 4.001, 4)
	if !containsPair(r.leaves, 1, 2) || !containsPair(r.leaves, 2, 1) {
		t.Fatalf("expected mutual leave once past R, got %v", r.leaves)
	}
}

func TestIdempotentNoopUpdateProducesNoCallbacks(t *testing.T) {
	for name, idx := range newIndexes(t, 64, 64, 4, &recorder{}) {
		t.Run(name, func(t *testing.T) {
			var r recorder
			idx.engine.OnEnter = r.onEnter
			idx.engine.OnLeave = r.onLeave

			mustAdd(t, idx, 1, 5, 5)
			mustAdd(t, idx, 2, 6, 6)
			r.enters, r.leaves = nil, nil

			if err := idx.UpdateUnit(1, 5, 5); err != nil {
				t.Fatalf("UpdateUnit no-op: %v", err)
			}
			if len(r.enters) != 0 || len(r.leaves) != 0 {
				t.Fatalf("expected zero callbacks for same-position update, got enters=%v leaves=%v", r.enters, r.leaves)
			}
		})
	}
}

func TestConstructorRejectsInvalidConfig(t *testing.T) {
	noop := func(int, int) {}
	if _, err := NewQuadtreeIndex(-1, 10, 1, noop, noop); err == nil {
		t.Fatal("expected error for negative width")
	}
	if _, err := NewQuadtreeIndex(10, 10, -1, noop, noop); err == nil {
		t.Fatal("expected error for negative radius")
	}
	if _, err := NewQuadtreeIndex(10, 10, 1, nil, noop); err == nil {
		t.Fatal("expected error for nil onEnter")
	}
}

func TestDuplicateAndUnknownIDErrors(t *testing.T) {
	idx, err := NewQuadtreeIndex(64, 64, 4, func(int, int) {}, func(int, int) {})
	if err != nil {
		t.Fatal(err)
	}
	mustAdd(t, idx, 1, 0, 0)
	if err := idx.AddUnit(1, 1, 1); err == nil {
		t.Fatal("expected duplicate id error")
	}
	if err := idx.UpdateUnit(2, 0, 0); err == nil {
		t.Fatal("expected unknown id error on update")
	}
	if err := idx.RemoveUnit(2); err == nil {
		t.Fatal("expected unknown id error on remove")
	}
}

func TestOutOfBoundsRejected(t *testing.T) {
	idx, err := NewQuadtreeIndex(64, 64, 4, func(int, int) {}, func(int, int) {})
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.AddUnit(1, 65, 0); err == nil {
		t.Fatal("expected out-of-bounds error")
	}
}

// TestBackendEquivalenceUnderRandomMutations drives all three backends
// through the same pseudo-random sequence of add/update/remove operations,
// checks after each step that no unit subscribes to itself or to an absent
// id and that every subscription is reciprocated and within range, and
// finally checks the final-state backend equivalence from testable
// property 4.
func TestBackendEquivalenceUnderRandomMutations(t *testing.T) {
	const width, height, radius = 64.0, 64.0, 4.0
	const numEntities = 12
	const numOps = 400

	rng := rand.New(rand.NewSource(7))
	ops := make([]func(idx *Index), 0, numOps)
	alive := map[int]bool{}

	for i := 0; i < numOps; i++ {
		id := rng.Intn(numEntities) + 1
		switch {
		case !alive[id]:
			x, y := rng.Float64()*width, rng.Float64()*height
			alive[id] = true
			ops = append(ops, func(idx *Index) { _ = idx.AddUnit(id, x, y) })
		case rng.Intn(3) == 0:
			alive[id] = false
			ops = append(ops, func(idx *Index) { _ = idx.RemoveUnit(id) })
		default:
			x, y := rng.Float64()*width, rng.Float64()*height
			ops = append(ops, func(idx *Index) { _ = idx.UpdateUnit(id, x, y) })
		}
	}

	indexes := newIndexes(t, width, height, radius, &recorder{})
	for _, idx := range indexes {
		for _, op := range ops {
			op(idx)
			checkInvariants(t, idx, radius)
		}
	}

	// Compare final subscriber sets across all three backends.
	var names []string
	for name := range indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	reference := finalSubscriberSets(t, indexes[names[0]])
	for _, name := range names[1:] {
		got := finalSubscriberSets(t, indexes[name])
		if !equalSubscriberSets(reference, got) {
			t.Fatalf("backend %q diverged from %q: got %v, want %v", name, names[0], got, reference)
		}
	}
}

func finalSubscriberSets(t *testing.T, idx *Index) map[int]map[int]bool {
	t.Helper()
	out := make(map[int]map[int]bool)
	for id, u := range idx.entities {
		set := make(map[int]bool, len(u.Subscribers))
		for other := range u.Subscribers {
			set[other] = true
		}
		out[id] = set
	}
	return out
}

func equalSubscriberSets(a, b map[int]map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for id, setA := range a {
		setB, ok := b[id]
		if !ok || len(setA) != len(setB) {
			return false
		}
		for other := range setA {
			if !setB[other] {
				return false
			}
		}
	}
	return true
}

func checkInvariants(t *testing.T, idx *Index, radius float64) {
	t.Helper()
	for id, u := range idx.entities {
		if _, self := u.Subscribers[id]; self {
			t.Fatalf("invariant 3 violated: %d subscribes to itself", id)
		}
		for otherID := range u.Subscribers {
			other, ok := idx.entities[otherID]
			if !ok {
				t.Fatalf("invariant 1 violated: %d subscribes to absent id %d", id, otherID)
			}
			if _, reciprocal := other.Subscribers[id]; !reciprocal {
				t.Fatalf("invariant 2 violated: %d->%d not reciprocated", id, otherID)
			}
			dx, dy := absf(u.X-other.X), absf(u.Y-other.Y)
			if dx > radius || dy > radius {
				t.Fatalf("invariant 2 violated: %d and %d are subscribed but out of range (%v,%v)", id, otherID, dx, dy)
			}
		}
	}
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func mustAdd(t *testing.T, idx *Index, id int, x, y float64) {
	t.Helper()
	if err := idx.AddUnit(id, x, y); err != nil {
		t.Fatalf("AddUnit(%d, %v, %v): %v", id, x, y, err)
	}
}

func mustUpdate(t *testing.T, idx *Index, id int, x, y float64) {
	t.Helper()
	if err := idx.UpdateUnit(id, x, y); err != nil {
		t.Fatalf("UpdateUnit(%d, %v, %v): %v", id, x, y, err)
	}
}

func assertSubscribers(t *testing.T, idx *Index, id int, want []int) {
	t.Helper()
	got, err := idx.GetSubscribeSet(id)
	if err != nil {
		t.Fatalf("GetSubscribeSet(%d): %v", id, err)
	}
	if len(got) != len(want) {
		t.Fatalf("GetSubscribeSet(%d) = %v, want %v", id, got, want)
	}
	for _, w := range want {
		if _, ok := got[w]; !ok {
			t.Fatalf("GetSubscribeSet(%d) = %v, want %v", id, got, want)
		}
	}
}

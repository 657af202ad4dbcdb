package world

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/orbitgrid/aoi/internal/config"
	"github.com/orbitgrid/aoi/internal/spatial/orderedlist"
)

func testWorld(t *testing.T, backend string) *World {
	t.Helper()
	cfg := config.WorldConfig{
		Width:      64,
		Height:     64,
		AOIRadius:  4,
		Backend:    backend,
		TickRateMs: 10,
	}
	w, err := New(cfg, zap.NewNop(), orderedlist.NewRandSource(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestSpawnAssignsUniqueIDs(t *testing.T) {
	w := testWorld(t, "quadtree")

	a, err := w.Spawn("client-a", 1, 1)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	b, err := w.Spawn("client-b", 2, 2)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %d and %d", a.ID, b.ID)
	}
	if got, ok := w.EntityForClient("client-a"); !ok || got != a.ID {
		t.Fatalf("EntityForClient(client-a) = %d, %v, want %d, true", got, ok, a.ID)
	}
}

func TestSpawnPublishesEnterForNearbyUnits(t *testing.T) {
	w := testWorld(t, "quadtree")

	a, _ := w.Spawn("client-a", 1, 1)
	_, _ = w.Spawn("client-b", 2, 2)

	seenEnter := 0
	deadline := time.After(time.Second)
	for seenEnter < 2 { // (a sees b) and (b sees a)
		select {
		case evt := <-w.Broadcast():
			if evt.Kind == EventEnter {
				seenEnter++
			}
		case <-deadline:
			t.Fatalf("timed out waiting for enter events, got %d", seenEnter)
		}
	}

	subs, err := w.SubscribersOf(a.ID)
	if err != nil {
		t.Fatalf("SubscribersOf: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscriber for a, got %d", len(subs))
	}
}

func TestTickLoopAppliesQueuedMoves(t *testing.T) {
	w := testWorld(t, "tower")

	a, _ := w.Spawn("client-a", 0, 0)
	w.drainBroadcast()

	w.SubmitMove(a.ID, 40, 40, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.TickLoop(ctx) }()

	deadline := time.After(time.Second)
	for {
		select {
		case evt := <-w.Broadcast():
			if evt.Kind == EventMove && evt.SelfID == a.ID {
				cancel()
				<-done
				return
			}
		case <-deadline:
			cancel()
			<-done
			t.Fatal("timed out waiting for move event")
		}
	}
}

// drainBroadcast discards any buffered events without blocking, so tests
// that only care about a later event don't need to account for earlier
// enter/leave noise.
func (w *World) drainBroadcast() {
	for {
		select {
		case <-w.broadcast:
		default:
			return
		}
	}
}

func TestDespawnRemovesEntity(t *testing.T) {
	w := testWorld(t, "crosslink")

	a, _ := w.Spawn("client-a", 1, 1)
	if err := w.Despawn(a.ID); err != nil {
		t.Fatalf("Despawn: %v", err)
	}
	if w.EntityCount() != 0 {
		t.Fatalf("expected 0 entities after despawn, got %d", w.EntityCount())
	}
	if _, ok := w.EntityForClient("client-a"); ok {
		t.Fatal("expected client-a to be unmapped after despawn")
	}
}

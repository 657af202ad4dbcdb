// Package world wraps an aoi.Index in a tick-driven simulation loop,
// generalizing the teacher's SpatialEngine/TickManager pair
// (internal/engine/engine.go, internal/engine/tick/tick.go) from a
// velocity/client-prediction game loop down to what the AOI core actually
// needs: entities move by absolute position, and the only state a World
// entity carries beyond the core Unit's (id, x, y) is what the gateway
// needs to address a connected client (ClientID) and render interpolated
// motion (Velocity, LastSequence), mirroring the teacher's
// internal/engine/entity.Entity.
package world

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orbitgrid/aoi"
	"github.com/orbitgrid/aoi/internal/config"
	"github.com/orbitgrid/aoi/internal/spatial/orderedlist"
)

// Vector2 is a plain 2D point, used for position and velocity alike.
type Vector2 struct {
	X, Y float64
}

// Entity is the demo-layer record for one spawned unit: the core aoi.Index
// already tracks (id, x, y, subscribers) internally, but the gateway needs
// to know which client owns the entity and at what velocity to render it,
// neither of which the core Unit carries.
type Entity struct {
	ID           int
	ClientID     string
	Position     Vector2
	Velocity     Vector2
	LastSequence uint64
}

// EventKind names the kind of world.Event published on the broadcast
// channel.
type EventKind string

const (
	EventSpawn   EventKind = "spawn"
	EventEnter   EventKind = "enter"
	EventLeave   EventKind = "leave"
	EventMove    EventKind = "move"
	EventDespawn EventKind = "despawn"
)

// Event is one broadcast-worthy occurrence: a subscription transition (
// Enter/Leave, in which case OtherID is populated) or a position change (
// Move/Despawn, in which case X/Y reflect the entity's new or last-known
// position).
type Event struct {
	Kind    EventKind
	SelfID  int
	OtherID int
	X, Y    float64
}

type moveIntent struct {
	entityID int
	x, y     float64
	sequence uint64
}

// World owns one aoi.Index plus the demo bookkeeping layered on top of it.
// Spawn/Despawn run synchronously (the teacher's handleSpawnRequest/
// readPump-defer call SpawnEntity/RemoveEntity directly, not through a
// buffered intent); only movement intents are tick-batched, mirroring the
// teacher's movementBuffer drained once per processTick.
type World struct {
	cfg    config.WorldConfig
	logger *zap.Logger
	index  *aoi.Index

	tickRate time.Duration

	mu        sync.RWMutex
	entities  map[int]*Entity
	clientMap map[string]int
	nextID    int

	moves     chan moveIntent
	broadcast chan Event
	auditSink func(Event)

	shutdown chan struct{}
	wg       sync.WaitGroup

	currentTick uint64
}

// SetAuditSink registers fn to be called synchronously, in addition to the
// broadcast channel, for every event the world publishes. fn must not
// block or call back into the World: it runs under the world lock. A
// typical sink pushes the event onto its own buffered channel and returns
// immediately, persisting asynchronously (see cmd/server).
func (w *World) SetAuditSink(fn func(Event)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.auditSink = fn
}

// New constructs a World backed by the backend named in cfg.Backend (one
// of "crosslink", "quadtree", "tower"). levelSrc is only consulted for the
// crosslink backend; pass orderedlist.NewRandSource(seed) for a real
// deployment, or a scripted source in tests.
func New(cfg config.WorldConfig, logger *zap.Logger, levelSrc orderedlist.LevelSource) (*World, error) {
	w := &World{
		cfg:       cfg,
		logger:    logger,
		tickRate:  time.Duration(cfg.TickRateMs) * time.Millisecond,
		entities:  make(map[int]*Entity),
		clientMap: make(map[string]int),
		nextID:    1,
		moves:     make(chan moveIntent, 1024),
		broadcast: make(chan Event, 1024),
		shutdown:  make(chan struct{}),
	}

	onEnter := func(selfID, otherID int) { w.publish(Event{Kind: EventEnter, SelfID: selfID, OtherID: otherID}) }
	onLeave := func(selfID, otherID int) { w.publish(Event{Kind: EventLeave, SelfID: selfID, OtherID: otherID}) }

	var idx *aoi.Index
	var err error
	switch cfg.Backend {
	case "crosslink":
		idx, err = aoi.NewCrosslinkIndex(cfg.Width, cfg.Height, cfg.AOIRadius, levelSrc, onEnter, onLeave)
	case "quadtree":
		idx, err = aoi.NewQuadtreeIndex(cfg.Width, cfg.Height, cfg.AOIRadius, onEnter, onLeave)
	case "tower":
		idx, err = aoi.NewTowerIndex(cfg.Width, cfg.Height, cfg.AOIRadius, onEnter, onLeave)
	default:
		return nil, fmt.Errorf("world: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("world: construct index: %w", err)
	}
	w.index = idx

	return w, nil
}

// publish drops the event rather than blocking if the broadcast buffer is
// full, matching the teacher's "buffer full, drop and warn" policy for
// per-client send channels.
func (w *World) publish(evt Event) {
	select {
	case w.broadcast <- evt:
	default:
		w.logger.Warn("world broadcast buffer full, dropping event", zap.String("kind", string(evt.Kind)))
	}
	if w.auditSink != nil {
		w.auditSink(evt)
	}
}

// Broadcast returns the channel of events the gateway should fan out to
// connected clients.
func (w *World) Broadcast() <-chan Event { return w.broadcast }

// Spawn creates a new entity for clientID at (x, y) and returns its
// record, which carries the assigned id. Runs synchronously under the world lock, satisfying the
// index's single-threaded, non-reentrant contract.
func (w *World) Spawn(clientID string, x, y float64) (*Entity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++

	if err := w.index.AddUnit(id, x, y); err != nil {
		return nil, fmt.Errorf("world: spawn: %w", err)
	}

	ent := &Entity{ID: id, ClientID: clientID, Position: Vector2{X: x, Y: y}}
	w.entities[id] = ent
	if clientID != "" {
		w.clientMap[clientID] = id
	}

	w.publish(Event{Kind: EventSpawn, SelfID: id, X: x, Y: y})
	w.logger.Info("entity spawned", zap.Int("entity_id", id), zap.String("client_id", clientID),
		zap.Float64("x", x), zap.Float64("y", y))
	return ent, nil
}

// Despawn removes entityID from the index and the world's bookkeeping.
// The index itself fires leave callbacks for every remaining subscriber
// before RemoveUnit returns.
func (w *World) Despawn(entityID int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.despawnLocked(entityID)
}

func (w *World) despawnLocked(entityID int) error {
	ent, ok := w.entities[entityID]
	if !ok {
		return fmt.Errorf("world: despawn: unknown entity %d", entityID)
	}

	if err := w.index.RemoveUnit(entityID); err != nil {
		return fmt.Errorf("world: despawn: %w", err)
	}

	delete(w.entities, entityID)
	if ent.ClientID != "" {
		delete(w.clientMap, ent.ClientID)
	}

	w.publish(Event{Kind: EventDespawn, SelfID: entityID, X: ent.Position.X, Y: ent.Position.Y})
	w.logger.Info("entity despawned", zap.Int("entity_id", entityID))
	return nil
}

// SubmitMove enqueues a move intent for the next tick. Non-blocking: if
// the queue is full the intent is dropped and logged, matching the
// teacher's ProcessMovementIntent buffering policy.
func (w *World) SubmitMove(entityID int, x, y float64, sequence uint64) {
	select {
	case w.moves <- moveIntent{entityID: entityID, x: x, y: y, sequence: sequence}:
	default:
		w.logger.Warn("world move queue full, dropping intent", zap.Int("entity_id", entityID))
	}
}

// EntityForClient resolves a connected client to its spawned entity id.
func (w *World) EntityForClient(clientID string) (int, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.clientMap[clientID]
	return id, ok
}

// EntityCount returns the number of entities currently tracked.
func (w *World) EntityCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entities)
}

// SubscribersOf returns the ids currently visible to entityID, for the
// gateway to resolve who should receive a move broadcast.
func (w *World) SubscribersOf(entityID int) (map[int]struct{}, error) {
	return w.index.GetSubscribeSet(entityID)
}

// TickLoop runs the world's fixed-rate tick on the calling goroutine until
// ctx is cancelled or Shutdown is called, draining queued move intents and
// applying them to the index once per tick.
func (w *World) TickLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.tickRate)
	defer ticker.Stop()

	w.wg.Add(1)
	defer w.wg.Done()

	w.logger.Info("world tick loop started", zap.Duration("tick_rate", w.tickRate))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("world tick loop shutting down")
			return ctx.Err()
		case <-w.shutdown:
			w.logger.Info("world tick loop shutting down")
			return nil
		case <-ticker.C:
			w.currentTick++
			w.processTick(w.currentTick)
		}
	}
}

// Shutdown stops TickLoop and waits for it to return.
func (w *World) Shutdown() {
	close(w.shutdown)
	w.wg.Wait()
}

func (w *World) processTick(tick uint64) {
	start := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()

drain:
	for {
		select {
		case intent := <-w.moves:
			w.applyMoveLocked(intent)
		default:
			break drain
		}
	}

	duration := time.Since(start)
	if duration > w.tickRate/2 {
		w.logger.Warn("world tick processing slow",
			zap.Uint64("tick", tick),
			zap.Duration("duration", duration),
			zap.Duration("tick_rate", w.tickRate),
		)
	}
}

func (w *World) applyMoveLocked(intent moveIntent) {
	ent, ok := w.entities[intent.entityID]
	if !ok {
		return
	}
	if intent.sequence <= ent.LastSequence && ent.LastSequence != 0 {
		return
	}

	if err := w.index.UpdateUnit(intent.entityID, intent.x, intent.y); err != nil {
		w.logger.Warn("move intent rejected", zap.Int("entity_id", intent.entityID), zap.Error(err))
		return
	}

	ent.Velocity = Vector2{X: intent.x - ent.Position.X, Y: intent.y - ent.Position.Y}
	ent.Position = Vector2{X: intent.x, Y: intent.y}
	ent.LastSequence = intent.sequence

	w.publish(Event{Kind: EventMove, SelfID: intent.entityID, X: intent.x, Y: intent.y})
}

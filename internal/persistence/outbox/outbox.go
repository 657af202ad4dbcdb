// Package outbox generalizes the teacher's internal/persistence/outbox
// package: a ticker-driven batch processor that drains unprocessed rows
// from the postgres audit trail and dispatches each to a registered
// handler keyed by event type.
package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orbitgrid/aoi/internal/persistence/postgres"
)

// Handler processes one audit event. entityID/otherID are 0 when the
// underlying column was NULL (spawn/despawn events have no otherID).
type Handler func(ctx context.Context, entityID, otherID int) error

// Processor polls the audit trail and dispatches unprocessed events to
// registered handlers.
type Processor struct {
	pg     *postgres.Client
	logger *zap.Logger

	mu         sync.RWMutex
	handlers   map[string]Handler
	bufferSize int
	running    bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// New returns a Processor that batches up to 100 events per poll.
func New(pg *postgres.Client, logger *zap.Logger) *Processor {
	return &Processor{
		pg:         pg,
		logger:     logger,
		handlers:   make(map[string]Handler),
		bufferSize: 100,
		stop:       make(chan struct{}),
	}
}

// RegisterHandler installs handler for eventType, overwriting any previous
// registration.
func (p *Processor) RegisterHandler(eventType string, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[eventType] = handler
	p.logger.Info("registered outbox handler", zap.String("event_type", eventType))
}

// Start begins the poll loop on its own goroutine.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("outbox: processor already running")
	}
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(ctx)

	p.logger.Info("outbox processor started")
	return nil
}

// Stop halts the poll loop and waits for it to return.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stop)
	p.wg.Wait()
	p.logger.Info("outbox processor stopped")
}

func (p *Processor) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

func (p *Processor) processBatch(ctx context.Context) {
	events, err := p.pg.UnprocessedEvents(ctx, p.bufferSize)
	if err != nil {
		p.logger.Error("failed to fetch unprocessed events", zap.Error(err))
		return
	}
	if len(events) == 0 {
		return
	}

	p.logger.Debug("processing outbox batch", zap.Int("count", len(events)))

	for _, evt := range events {
		if err := p.dispatch(ctx, evt); err != nil {
			p.logger.Error("failed to process outbox event",
				zap.Int64("event_id", evt.ID), zap.String("event_type", evt.EventType), zap.Error(err))
			continue
		}
		if err := p.pg.MarkProcessed(ctx, evt.ID); err != nil {
			p.logger.Error("failed to mark event processed", zap.Int64("event_id", evt.ID), zap.Error(err))
		}
	}
}

func (p *Processor) dispatch(ctx context.Context, evt *postgres.LifecycleEvent) error {
	p.mu.RLock()
	handler, ok := p.handlers[evt.EventType]
	p.mu.RUnlock()

	if !ok {
		p.logger.Warn("no handler registered for event type", zap.String("event_type", evt.EventType))
		return nil
	}

	if err := handler(ctx, evt.EntityID, evt.OtherID); err != nil {
		return fmt.Errorf("handler failed: %w", err)
	}

	p.logger.Debug("processed outbox event", zap.Int64("event_id", evt.ID), zap.String("event_type", evt.EventType))
	return nil
}

// RegisterDefaultHandlers installs log-only handlers for every lifecycle
// event type the postgres package defines, a sensible default for a demo
// deployment with no downstream consumer configured.
func (p *Processor) RegisterDefaultHandlers() {
	p.RegisterHandler(postgres.EventUnitSpawned, func(ctx context.Context, entityID, otherID int) error {
		p.logger.Info("unit spawned", zap.Int("entity_id", entityID))
		return nil
	})
	p.RegisterHandler(postgres.EventUnitDespawned, func(ctx context.Context, entityID, otherID int) error {
		p.logger.Info("unit despawned", zap.Int("entity_id", entityID))
		return nil
	})
	p.RegisterHandler(postgres.EventSubscriptionEntered, func(ctx context.Context, entityID, otherID int) error {
		p.logger.Info("subscription entered", zap.Int("entity_id", entityID), zap.Int("other_id", otherID))
		return nil
	})
	p.RegisterHandler(postgres.EventSubscriptionLeft, func(ctx context.Context, entityID, otherID int) error {
		p.logger.Info("subscription left", zap.Int("entity_id", entityID), zap.Int("other_id", otherID))
		return nil
	})
}

// Stats reports the processor's current configuration for diagnostics.
func (p *Processor) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	events := make([]string, 0, len(p.handlers))
	for eventType := range p.handlers {
		events = append(events, eventType)
	}

	return map[string]interface{}{
		"running":           p.running,
		"handlers":          len(p.handlers),
		"buffer_size":       p.bufferSize,
		"registered_events": events,
	}
}

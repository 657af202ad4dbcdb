// Package postgres generalizes the teacher's internal/persistence/postgres
// package into an audit trail of AOI lifecycle events (unit_spawned,
// unit_despawned, subscription_entered, subscription_left) rather than the
// teacher's game-state snapshot/session tables, over pgx's pool type.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/orbitgrid/aoi/internal/config"
)

// Client wraps a pgx connection pool scoped to the audit trail schema.
type Client struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// LifecycleEvent is one row of the audit_events table: a single
// enter/leave/spawn/despawn occurrence, recorded for later inspection.
type LifecycleEvent struct {
	ID        int64     `json:"id"`
	EventType string    `json:"event_type"`
	EntityID  int       `json:"entity_id"`
	OtherID   int       `json:"other_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Processed bool      `json:"processed"`
}

// Event type constants recorded to the audit trail.
const (
	EventUnitSpawned         = "unit_spawned"
	EventUnitDespawned       = "unit_despawned"
	EventSubscriptionEntered = "subscription_entered"
	EventSubscriptionLeft    = "subscription_left"
)

// New connects to cfg, verifies the connection, and initializes the audit
// trail schema if it does not already exist.
func New(cfg config.PostgresConfig, logger *zap.Logger) (*Client, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName,
	)

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifetime) * time.Second

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	client := &Client{pool: pool, logger: logger}
	if err := client.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("postgres: init schema: %w", err)
	}
	return client, nil
}

// Close releases the connection pool.
func (c *Client) Close() { c.pool.Close() }

func (c *Client) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id SERIAL PRIMARY KEY,
			event_type VARCHAR(50) NOT NULL,
			entity_id INTEGER NOT NULL,
			other_id INTEGER,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			processed BOOLEAN DEFAULT FALSE,
			processed_at TIMESTAMP WITH TIME ZONE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_entity_id ON audit_events(entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_processed ON audit_events(processed, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type)`,
	}

	for _, q := range queries {
		if _, err := c.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("exec schema query: %w", err)
		}
	}

	c.logger.Info("audit trail schema initialized")
	return nil
}

// RecordEvent inserts one audit row. otherID is 0 for spawn/despawn events.
func (c *Client) RecordEvent(ctx context.Context, eventType string, entityID, otherID int) error {
	query := `INSERT INTO audit_events (event_type, entity_id, other_id) VALUES ($1, $2, $3)`

	var otherArg interface{}
	if otherID != 0 {
		otherArg = otherID
	}

	if _, err := c.pool.Exec(ctx, query, eventType, entityID, otherArg); err != nil {
		return fmt.Errorf("postgres: record event: %w", err)
	}
	return nil
}

// UnprocessedEvents returns up to limit audit rows not yet marked
// processed, oldest first.
func (c *Client) UnprocessedEvents(ctx context.Context, limit int) ([]*LifecycleEvent, error) {
	query := `
		SELECT id, event_type, entity_id, COALESCE(other_id, 0), created_at, processed
		FROM audit_events
		WHERE processed = FALSE
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := c.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []*LifecycleEvent
	for rows.Next() {
		var e LifecycleEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.EntityID, &e.OtherID, &e.CreatedAt, &e.Processed); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		events = append(events, &e)
	}
	return events, nil
}

// MarkProcessed flags eventID as handled.
func (c *Client) MarkProcessed(ctx context.Context, eventID int64) error {
	query := `UPDATE audit_events SET processed = TRUE, processed_at = NOW() WHERE id = $1`
	if _, err := c.pool.Exec(ctx, query, eventID); err != nil {
		return fmt.Errorf("postgres: mark processed: %w", err)
	}
	return nil
}

// CleanupOlderThan deletes processed rows older than olderThan.
func (c *Client) CleanupOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `DELETE FROM audit_events WHERE processed = TRUE AND created_at < NOW() - INTERVAL '1 second' * $1`
	result, err := c.pool.Exec(ctx, query, int64(olderThan.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("postgres: cleanup: %w", err)
	}
	c.logger.Info("cleaned up processed audit events", zap.Int64("deleted", result.RowsAffected()))
	return result.RowsAffected(), nil
}

// Stats reports pool utilization and table row counts. The teacher's
// equivalent (GetStats) declared its return map twice in the same scope,
// an actual compile error; this version declares it once.
func (c *Client) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	poolStats := c.pool.Stat()
	stats["total_connections"] = poolStats.TotalConns()
	stats["idle_connections"] = poolStats.IdleConns()
	stats["acquired_connections"] = poolStats.AcquiredConns()

	var count int64
	if err := c.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&count); err != nil {
		c.logger.Warn("failed to get audit_events count", zap.Error(err))
	} else {
		stats["audit_events_count"] = count
	}

	return stats, nil
}

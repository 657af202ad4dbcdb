// Package redis generalizes the teacher's internal/persistence/redis
// package, scoped strictly to ephemeral demo-client presence: which
// clients are currently connected and when they last heartbeat. AOI
// subscription state itself never touches Redis; it lives only in the
// in-memory aoi.Index (see the spec's Non-goals on persistence for the
// core).
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/orbitgrid/aoi/internal/config"
)

// Client wraps a go-redis client scoped to presence/session bookkeeping.
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// Presence is the JSON value stored per connected client.
type Presence struct {
	ClientID string    `json:"client_id"`
	EntityID int       `json:"entity_id"`
	LastSeen time.Time `json:"last_seen"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
}

const (
	presenceTTL  = 5 * time.Minute
	sessionsKey  = "aoi:active_sessions"
	sessionsTTL  = 10 * time.Minute
	heartbeatTTL = 30 * time.Second
)

// New connects to cfg.Addr and verifies the connection with a bounded
// ping before returning.
func New(cfg config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: connect: %w", err)
	}

	return &Client{rdb: rdb, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

func presenceKey(clientID string) string { return fmt.Sprintf("aoi:presence:%s", clientID) }
func heartbeatKey(clientID string) string { return fmt.Sprintf("aoi:heartbeat:%s", clientID) }

// UpdatePresence records that clientID is connected, controlling entityID
// at (x, y).
func (c *Client) UpdatePresence(ctx context.Context, clientID string, entityID int, x, y float64) error {
	p := Presence{ClientID: clientID, EntityID: entityID, LastSeen: time.Now(), X: x, Y: y}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: marshal presence: %w", err)
	}

	if err := c.rdb.Set(ctx, presenceKey(clientID), data, presenceTTL).Err(); err != nil {
		return fmt.Errorf("redis: set presence: %w", err)
	}

	if err := c.rdb.SAdd(ctx, sessionsKey, clientID).Err(); err != nil {
		c.logger.Warn("failed to add to active sessions", zap.Error(err))
	}
	c.rdb.Expire(ctx, sessionsKey, sessionsTTL)

	return nil
}

// GetPresence returns clientID's last recorded presence, or nil if absent.
func (c *Client) GetPresence(ctx context.Context, clientID string) (*Presence, error) {
	data, err := c.rdb.Get(ctx, presenceKey(clientID)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: get presence: %w", err)
	}

	var p Presence
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("redis: unmarshal presence: %w", err)
	}
	return &p, nil
}

// RemovePresence erases clientID's presence and session membership.
func (c *Client) RemovePresence(ctx context.Context, clientID string) error {
	if err := c.rdb.Del(ctx, presenceKey(clientID)).Err(); err != nil {
		return fmt.Errorf("redis: delete presence: %w", err)
	}
	if err := c.rdb.SRem(ctx, sessionsKey, clientID).Err(); err != nil {
		c.logger.Warn("failed to remove from active sessions", zap.Error(err))
	}
	return nil
}

// UpdateHeartbeat refreshes clientID's liveness marker.
func (c *Client) UpdateHeartbeat(ctx context.Context, clientID string) error {
	if err := c.rdb.Set(ctx, heartbeatKey(clientID), time.Now().Unix(), heartbeatTTL).Err(); err != nil {
		return fmt.Errorf("redis: update heartbeat: %w", err)
	}
	return nil
}

// IsClientAlive reports whether clientID's heartbeat key has not expired.
func (c *Client) IsClientAlive(ctx context.Context, clientID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, heartbeatKey(clientID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: check heartbeat: %w", err)
	}
	return n > 0, nil
}

// ActiveSessions returns every client id currently marked active.
func (c *Client) ActiveSessions(ctx context.Context) ([]string, error) {
	members, err := c.rdb.SMembers(ctx, sessionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list active sessions: %w", err)
	}
	return members, nil
}

// CleanupStaleSessions removes presence/session state for any client whose
// heartbeat has expired.
func (c *Client) CleanupStaleSessions(ctx context.Context) (int, error) {
	sessions, err := c.ActiveSessions(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, clientID := range sessions {
		alive, err := c.IsClientAlive(ctx, clientID)
		if err != nil {
			c.logger.Warn("failed to check client liveness", zap.String("client_id", clientID), zap.Error(err))
			continue
		}
		if alive {
			continue
		}
		if err := c.RemovePresence(ctx, clientID); err != nil {
			c.logger.Warn("failed to remove stale presence", zap.String("client_id", clientID), zap.Error(err))
			continue
		}
		removed++
	}

	c.logger.Info("stale session cleanup complete", zap.Int("removed", removed))
	return removed, nil
}

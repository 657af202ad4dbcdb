// Package gateway generalizes the teacher's internal/gateway/gateway.go:
// a websocket front end that upgrades incoming HTTP connections, runs a
// read pump and a write pump per client (ping/pong keepalive, read/write
// deadlines), and fans a world.World's broadcast channel out as
// JSON-encoded protocol messages to the clients whose entities subscribe
// to each event's entity. Inbound "move"
// messages are forwarded to the world as move intents.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/orbitgrid/aoi/internal/config"
	"github.com/orbitgrid/aoi/internal/protocol"
	"github.com/orbitgrid/aoi/internal/world"
)

var (
	ErrConnectionClosed = errors.New("gateway: connection closed")
	ErrMessageTooLarge  = errors.New("gateway: message too large")
)

// PresenceTracker records which demo clients are currently connected.
// *redis.Client satisfies this interface; it is expressed as a local
// interface so the gateway does not need to import the redis package
// directly, and so tests can supply a fake.
type PresenceTracker interface {
	UpdatePresence(ctx context.Context, clientID string, entityID int, x, y float64) error
	RemovePresence(ctx context.Context, clientID string) error
}

// Gateway upgrades HTTP connections to websockets and bridges them to a
// world.World.
type Gateway struct {
	config   config.GatewayConfig
	world    *world.World
	codec    *protocol.Codec
	logger   *zap.Logger
	presence PresenceTracker

	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  map[string]*client
	nextConn uint64

	shutdown chan struct{}
	wg       sync.WaitGroup
}

type client struct {
	id        string
	conn      *websocket.Conn
	sendChan  chan []byte
	closeChan chan struct{}
	closeOnce sync.Once
}

// New constructs a Gateway bridging cfg's websocket endpoint to w.
func New(cfg config.GatewayConfig, w *world.World, logger *zap.Logger) *Gateway {
	return &Gateway{
		config:   cfg,
		world:    w,
		codec:    protocol.NewCodec(),
		logger:   logger,
		clients:  make(map[string]*client),
		shutdown: make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			EnableCompression: cfg.EnableCompression,
		},
	}
}

// SetPresenceTracker wires an optional presence store; if nil (the
// default), gateway connects/disconnects simply skip presence tracking.
func (g *Gateway) SetPresenceTracker(p PresenceTracker) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.presence = p
}

// Start serves the websocket endpoint until ctx is cancelled, then shuts
// the HTTP server down within a bounded window.
func (g *Gateway) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.handleWebSocket)

	server := &http.Server{
		Addr:    g.config.BindAddr,
		Handler: mux,
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.logger.Info("gateway starting", zap.String("addr", g.config.BindAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			g.logger.Error("gateway server error", zap.Error(err))
		}
	}()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.broadcastLoop()
	}()

	<-ctx.Done()
	g.logger.Info("gateway shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Shutdown closes every connected client and waits for the read/write
// pumps and the broadcast loop to return.
func (g *Gateway) Shutdown(ctx context.Context) error {
	close(g.shutdown)

	g.mu.Lock()
	for _, c := range g.clients {
		c.close()
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	g.mu.Lock()
	g.nextConn++
	id := fmt.Sprintf("client-%d", g.nextConn)
	c := &client{id: id, conn: conn, sendChan: make(chan []byte, 256), closeChan: make(chan struct{})}
	g.clients[id] = c
	g.mu.Unlock()

	g.logger.Info("client connected", zap.String("client_id", id))

	ent, err := g.world.Spawn(id, 0, 0)
	if err != nil {
		g.logger.Error("failed to spawn entity for client", zap.String("client_id", id), zap.Error(err))
		c.close()
		return
	}

	if g.presence != nil {
		if err := g.presence.UpdatePresence(r.Context(), id, ent.ID, 0, 0); err != nil {
			g.logger.Warn("failed to record presence", zap.String("client_id", id), zap.Error(err))
		}
	}

	g.wg.Add(2)
	go g.readPump(c)
	go g.writePump(c, ent.ID)
}

func (g *Gateway) readPump(c *client) {
	defer g.wg.Done()
	defer func() {
		c.close()
		g.mu.Lock()
		delete(g.clients, c.id)
		g.mu.Unlock()

		if entityID, ok := g.world.EntityForClient(c.id); ok {
			if err := g.world.Despawn(entityID); err != nil {
				g.logger.Warn("failed to despawn on disconnect", zap.String("client_id", c.id), zap.Error(err))
			}
		}
		if g.presence != nil {
			if err := g.presence.RemovePresence(context.Background(), c.id); err != nil {
				g.logger.Warn("failed to clear presence", zap.String("client_id", c.id), zap.Error(err))
			}
		}
		g.logger.Info("client disconnected", zap.String("client_id", c.id))
	}()

	c.conn.SetReadLimit(g.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(time.Duration(g.config.PongWait) * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(time.Duration(g.config.PongWait) * time.Second))
		return nil
	})

	for {
		select {
		case <-g.shutdown:
			return
		case <-c.closeChan:
			return
		default:
		}

		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				g.logger.Error("websocket read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			g.logger.Warn("received non-text message", zap.String("client_id", c.id))
			continue
		}

		g.handleMessage(c, data)
	}
}

func (g *Gateway) writePump(c *client, entityID int) {
	defer g.wg.Done()
	defer c.close()

	ticker := time.NewTicker(time.Duration(g.config.PingPeriod) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-g.shutdown:
			return
		case <-c.closeChan:
			return
		case message, ok := <-c.sendChan:
			c.conn.SetWriteDeadline(time.Now().Add(time.Duration(g.config.WriteWait) * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				g.logger.Error("failed to write message", zap.String("client_id", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(time.Duration(g.config.WriteWait) * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) handleMessage(c *client, data []byte) {
	msg, err := g.codec.Decode(data)
	if err != nil {
		g.logger.Error("failed to decode message", zap.String("client_id", c.id), zap.Error(err))
		return
	}
	if err := g.codec.ValidateMessage(msg); err != nil {
		g.logger.Error("invalid message", zap.String("client_id", c.id), zap.Error(err))
		return
	}

	switch msg.Type {
	case protocol.MessageMove:
		entityID, ok := g.world.EntityForClient(c.id)
		if !ok {
			g.logger.Warn("move from client with no spawned entity", zap.String("client_id", c.id))
			return
		}
		g.world.SubmitMove(entityID, msg.Move.X, msg.Move.Y, msg.Move.Sequence)

	case protocol.MessageHeartbeat:
		g.logger.Debug("received heartbeat", zap.String("client_id", c.id))

	default:
		g.logger.Warn("unhandled message type", zap.String("client_id", c.id), zap.String("type", string(msg.Type)))
	}
}

// broadcastLoop fans world.Event values out to every client subscribed to
// the originating entity, translating each into a protocol.Message.
func (g *Gateway) broadcastLoop() {
	for {
		select {
		case <-g.shutdown:
			return
		case evt := <-g.world.Broadcast():
			g.dispatch(evt)
		}
	}
}

func (g *Gateway) dispatch(evt world.Event) {
	var msg *protocol.Message
	switch evt.Kind {
	case world.EventEnter:
		msg = &protocol.Message{Type: protocol.MessageEnter, Enter: &protocol.Enter{SelfID: evt.SelfID, OtherID: evt.OtherID}}
	case world.EventLeave:
		msg = &protocol.Message{Type: protocol.MessageLeave, Leave: &protocol.Leave{SelfID: evt.SelfID, OtherID: evt.OtherID}}
	case world.EventMove:
		msg = &protocol.Message{Type: protocol.MessageMove, Move: &protocol.Move{EntityID: evt.SelfID, X: evt.X, Y: evt.Y}}
	case world.EventDespawn:
		msg = &protocol.Message{Type: protocol.MessageDespawn, Despawn: &protocol.Despawn{EntityID: evt.SelfID, Reason: "left_aoi"}}
	default:
		return
	}

	data, err := g.codec.Encode(msg)
	if err != nil {
		g.logger.Error("failed to encode broadcast message", zap.Error(err))
		return
	}

	subs, err := g.world.SubscribersOf(evt.SelfID)
	if err != nil {
		// The entity may already have been despawned between the event
		// firing and this dispatch running; nothing left to notify.
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for otherID := range subs {
		g.sendToEntity(otherID, data)
	}
}

func (g *Gateway) sendToEntity(entityID int, data []byte) {
	for _, c := range g.clients {
		if eid, ok := g.world.EntityForClient(c.id); ok && eid == entityID {
			select {
			case c.sendChan <- data:
			default:
				g.logger.Warn("send buffer full, dropping message", zap.String("client_id", c.id))
			}
			return
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		if c.conn != nil {
			c.conn.Close()
		}
		close(c.sendChan)
	})
}

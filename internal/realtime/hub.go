// Package realtime delivers domain notifications to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-service/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Resolver authenticates the token presented on the websocket handshake.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*auth.Principal, error)
}

type client struct {
	userID string
	groups []string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub tracks connected clients by group and implements Broadcaster for
// single-instance delivery.
type Hub struct {
	mu       sync.RWMutex
	groups   map[string]map[*client]struct{}
	resolver Resolver
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHub creates a hub.
func NewHub(resolver Resolver, logger *zap.Logger) *Hub {
	return &Hub{
		groups:   make(map[string]map[*client]struct{}),
		resolver: resolver,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler serving /ws.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	return mux
}

// ServeWS authenticates the ?token= query parameter and upgrades the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	principal, err := h.resolver.Resolve(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	groups := []string{UserGroup(principal.Actor.UserID)}
	if principal.Actor.IsStaff() {
		groups = append(groups, StaffGroup)
	}
	c := &client{
		userID: principal.Actor.UserID,
		groups: groups,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	h.register(c)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, group := range c.groups {
		members, ok := h.groups[group]
		if !ok {
			members = make(map[*client]struct{})
			h.groups[group] = members
		}
		members[c] = struct{}{}
	}
	h.logger.Debug("websocket client registered", zap.String("user_id", c.userID), zap.Strings("groups", c.groups))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := false
	for _, group := range c.groups {
		if members, ok := h.groups[group]; ok {
			if _, present := members[c]; present {
				delete(members, c)
				removed = true
			}
			if len(members) == 0 {
				delete(h.groups, group)
			}
		}
	}
	if removed {
		close(c.send)
	}
}

// ClientCount returns the number of connections in group.
func (h *Hub) ClientCount(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Broadcast delivers directly to this hub's connections.
func (h *Hub) Broadcast(_ context.Context, group, eventType string, data any) error {
	env, err := newEnvelope(group, eventType, data)
	if err != nil {
		return err
	}
	h.deliver(env)
	return nil
}

func (h *Hub) deliver(env Envelope) {
	message, err := json.Marshal(env)
	if err != nil {
		h.logger.Warn("encode envelope", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.groups[env.Group] {
		select {
		case c.send <- message:
		default:
			h.logger.Warn("websocket send buffer full; dropping message",
				zap.String("user_id", c.userID), zap.String("type", env.Type))
		}
	}
}

// RunRedis relays envelopes published on channel to local connections until
// ctx is cancelled.
func (h *Hub) RunRedis(ctx context.Context, client *redis.Client, channel string) error {
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	h.logger.Info("realtime hub subscribed", zap.String("channel", channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("malformed realtime envelope", zap.Error(err))
				continue
			}
			h.deliver(env)
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read error", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Package hub pushes notifications to connected websocket clients.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orrn/printdesk/internal/core"
	"github.com/orrn/printdesk/internal/metrics"
	"github.com/orrn/printdesk/internal/model"
)

const maxMessageSize = 512

type Config struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration

	// AllowedOrigins are accepted in addition to the request's own host.
	AllowedOrigins []string
}

// Message is the envelope written to clients.
type Message struct {
	Type         string              `json:"type"`
	Notification *model.Notification `json:"notification,omitempty"`
	UnreadCount  *int                `json:"unread_count,omitempty"`
}

const (
	TypeNotification = "notification"
	TypeUnreadCount  = "unread_count"
)

type client struct {
	userID int64
	conn   *websocket.Conn
	send   chan []byte
}

type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

var _ core.Publisher = (*Hub)(nil)

func New(cfg Config, logger *slog.Logger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 16
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "hub")),
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts requests without an Origin header, same-host origins and
// the configured allow list.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	h.logger.Warn("rejected websocket origin", slog.String("origin", origin))
	return false
}

// Publish writes n to every connection that can see it. Clients whose send
// buffer is full are disconnected.
func (h *Hub) Publish(n *model.Notification) {
	data, err := json.Marshal(Message{Type: TypeNotification, Notification: n})
	if err != nil {
		h.logger.Error("failed to marshal notification", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if n.VisibleTo(c.userID) {
			h.offerLocked(c, data)
		}
	}
}

// offerLocked queues data for c, disconnecting c if its buffer is full.
// Caller holds h.mu.
func (h *Hub) offerLocked(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Warn("dropping slow client", slog.Int64("user_id", c.userID))
		h.removeLocked(c)
	}
}

func (h *Hub) sendTo(c *client, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal message", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.offerLocked(c, data)
	}
}

// ServeWS upgrades the request and serves the connection for userID until it
// closes. initial, when non-nil, builds the first message. It runs after the
// client is registered, so anything published meanwhile is also delivered.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID int64, initial func() (*Message, error)) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, h.cfg.SendBuffer),
	}
	if !h.register(c) {
		conn.Close()
		return nil
	}
	go h.writePump(c)

	if initial != nil {
		msg, err := initial()
		if err != nil {
			h.unregister(c)
			return err
		}
		h.sendTo(c, msg)
	}

	h.readPump(c)
	return nil
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.mu.Unlock()
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.LiveSubscribers.Inc()
	h.logger.Debug("client connected", slog.Int64("user_id", c.userID), slog.Int("total", len(h.clients)))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked closes c's send channel, which stops its writer and closes the
// connection. Caller holds h.mu.
func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.LiveSubscribers.Dec()
	h.logger.Debug("client disconnected", slog.Int64("user_id", c.userID), slog.Int("total", len(h.clients)))
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	pongWait := h.cfg.PingInterval * 2
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		// Clients have nothing to say; reading only detects disconnects.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("write failed", slog.Int64("user_id", c.userID), slog.Any("error", err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

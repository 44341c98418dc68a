package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/bbcode/internal/logging"
	"github.com/conneroisu/bbcode/internal/monitoring"
	"github.com/conneroisu/bbcode/internal/validation"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Interval between pings that detect dead peers.
	pingPeriod = 30 * time.Second

	// Messages queued per client before it is dropped as too slow.
	sendBuffer = 16
)

// UpdateMessage is pushed to every connected page.
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans update messages out to the connected websocket clients.
type Hub struct {
	logger  logging.Logger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(logger logging.Logger, metrics *monitoring.Metrics) *Hub {
	return &Hub{
		logger:  logger.WithComponent("websocket"),
		metrics: metrics,
		clients: make(map[*client]struct{}),
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler upgrades requests that pass allow and serves the client until it
// disconnects.
func (h *Hub) Handler(allow func(*http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := allow(r); err != nil {
			h.logger.Warn(r.Context(), err, "Rejected websocket origin", "origin", r.Header.Get("Origin"))
			http.Error(w, "Origin not allowed", http.StatusForbidden)
			return
		}

		// The origin was checked by allow.
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			h.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
			return
		}

		c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
		if !h.register(c) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
		defer h.unregister(c)

		// Clients never send; CloseRead discards input and cancels ctx when
		// the peer goes away.
		ctx := conn.CloseRead(r.Context())
		h.writeLoop(ctx, c)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.ClientConnected()
	h.logger.Debug(context.Background(), "Client connected", "clients", len(h.clients))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.metrics.ClientDisconnected()
	}
	n := len(h.clients)
	h.mu.Unlock()

	c.conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Debug(context.Background(), "Client disconnected", "clients", n)
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Broadcast queues msg for every client. Clients whose queue is full are
// disconnected.
func (h *Hub) Broadcast(msg UpdateMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(context.Background(), err, "Failed to marshal update")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
			h.metrics.ClientDisconnected()
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		h.metrics.ClientDisconnected()
	}
}

// checkOrigin accepts same-origin pages and the configured allowed origins.
func (s *PreviewServer) checkOrigin(r *http.Request) error {
	allowed := append([]string{r.Host}, s.config.Server.AllowedOrigins...)
	return validation.ValidateOrigin(r.Header.Get("Origin"), allowed)
}

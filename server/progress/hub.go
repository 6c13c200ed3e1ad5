// Package progress streams transformation progress events to WebSocket
// clients, so an editor can show the themed status line while a request to
// the HTTP service is in flight.
package progress

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teilomillet/reprompt/metrics"
	"github.com/teilomillet/reprompt/transform"
)

const (
	// DefaultPingInterval is how often idle connections are pinged.
	DefaultPingInterval = 15 * time.Second

	writeWait  = 5 * time.Second
	sendBuffer = 32
)

// Verify at compile time that Hub implements transform.Reporter
var _ transform.Reporter = (*Hub)(nil)

// Hub fans progress events out to connected clients. A client subscribed
// with a document only receives that document's events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	upgrader     websocket.Upgrader
	pingInterval time.Duration
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

type client struct {
	conn     *websocket.Conn
	document string
	send     chan transform.Event
	mu       sync.Mutex
}

func (c *client) write(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return fn()
}

// Option configures a Hub.
type Option func(*Hub)

// WithPingInterval overrides DefaultPingInterval.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger, m *metrics.Metrics, opts ...Option) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			// The service listens on localhost for editor plugins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingInterval: DefaultPingInterval,
		metrics:      m,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Report implements transform.Reporter. Events are dropped for clients whose
// buffer is full; a slow client never blocks a transformation.
func (h *Hub) Report(_ context.Context, ev transform.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.document != "" && c.document != ev.Document {
			continue
		}
		select {
		case c.send <- ev:
		default:
			h.logger.Debug("Progress client lagging, event dropped",
				zap.String("run_id", ev.RunID),
				zap.String("step", string(ev.Step)),
			)
		}
	}
}

// ServeHTTP upgrades the connection and streams events until the client
// goes away. The optional "document" query parameter filters the feed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Progress upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn:     conn,
		document: r.URL.Query().Get("document"),
		send:     make(chan transform.Event, sendBuffer),
	}
	h.add(c)
	defer h.remove(c)

	done := make(chan struct{})
	go h.readLoop(c, done)
	h.writeLoop(c, done)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.ProgressClientConnected(1)
	h.logger.Debug("Progress client connected", zap.String("document", c.document))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.conn.Close()
	h.metrics.ProgressClientConnected(-1)
	h.logger.Debug("Progress client disconnected", zap.String("document", c.document))
}

// readLoop discards client messages; it exists to observe the close.
func (h *Hub) readLoop(c *client, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev := <-c.send:
			if err := c.write(func() error { return c.conn.WriteJSON(ev) }); err != nil {
				return
			}
		case <-ticker.C:
			err := c.write(func() error {
				return c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait))
			})
			if err != nil {
				return
			}
		}
	}
}

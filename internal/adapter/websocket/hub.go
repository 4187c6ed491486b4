// Package websocket streams animation frames and playback events to browser
// clients.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
	"github.com/couchcryptid/flood-grid-playback/internal/flow"
	"github.com/couchcryptid/flood-grid-playback/internal/observability"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// sendBuffer is the number of queued messages after which a client is
	// considered too slow and disconnected.
	sendBuffer = 32
)

// Message types sent to clients.
const (
	TypeFrame    = "frame"
	TypePlayback = "playback"
)

// ErrHubClosed is returned by Publish after Close.
var ErrHubClosed = errors.New("stream hub closed")

// Envelope wraps every message sent on the stream.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type client struct {
	id   string
	conn *gorilla.Conn
	send chan []byte
}

// Hub fans frames and playback events out to connected clients. It
// implements flow.FrameSink and pipeline.EventPublisher. A client whose send
// buffer is full is disconnected instead of blocking the broadcaster.
type Hub struct {
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	upgrader gorilla.Upgrader

	mu        sync.Mutex
	clients   map[string]*client
	lastEvent []byte
	lastSeq   uint64
	closed    bool
}

// NewHub creates an empty hub. clock drives the keepalive pings.
func NewHub(clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// ServeHTTP upgrades the request and registers the connection. The most
// recent playback event is replayed so new clients know the active timestep.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteControl(gorilla.CloseMessage,
			gorilla.FormatCloseMessage(gorilla.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.clients[c.id] = c
	if h.lastEvent != nil {
		c.send <- h.lastEvent
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.StreamClients.Inc()
	h.logger.Info("stream client connected", "client", c.id, "remote", r.RemoteAddr, "clients", count)

	go h.writePump(c)
	go h.readPump(c)
}

// PublishFrame broadcasts an animation frame.
func (h *Hub) PublishFrame(state flow.FrameState) {
	msg, err := encode(TypeFrame, state)
	if err != nil {
		h.logger.Error("encode frame", "frame", state.Frame, "error", err)
		return
	}
	h.broadcast(msg, nil)
}

// Publish broadcasts a playback event. Only an event newer than the one
// already remembered replaces the replay for new clients.
func (h *Hub) Publish(_ context.Context, event domain.PlaybackEvent) error {
	msg, err := encode(TypePlayback, event)
	if err != nil {
		return err
	}
	if !h.broadcast(msg, func() {
		if event.Sequence > h.lastSeq || h.lastEvent == nil {
			h.lastEvent = msg
			h.lastSeq = event.Sequence
		}
	}) {
		return ErrHubClosed
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, c := range h.clients {
		h.removeLocked(id, c)
	}
}

func encode(kind string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", kind, err)
	}
	return json.Marshal(Envelope{Type: kind, Data: data})
}

// broadcast queues msg for every client. remember, if set, runs under h.mu.
func (h *Hub) broadcast(msg []byte, remember func()) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if remember != nil {
		remember()
	}
	for id, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.metrics.StreamDropped.Inc()
			h.logger.Warn("stream client too slow, disconnecting", "client", id)
			h.removeLocked(id, c)
		}
	}
	return true
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		h.removeLocked(id, c)
	}
}

// removeLocked closes the send channel; the write pump then closes the conn.
func (h *Hub) removeLocked(id string, c *client) {
	delete(h.clients, id)
	close(c.send)
	h.metrics.StreamClients.Dec()
	h.logger.Info("stream client disconnected", "client", id, "clients", len(h.clients))
}

func (h *Hub) writePump(c *client) {
	ticker := h.clock.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(gorilla.CloseMessage,
					gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(gorilla.TextMessage, msg); err != nil {
				h.logger.Debug("stream write failed", "client", c.id, "error", err)
				h.remove(c.id)
				return
			}
		case <-ticker.Chan():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gorilla.PingMessage, nil); err != nil {
				h.remove(c.id)
				return
			}
		}
	}
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer h.remove(c.id)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if gorilla.IsUnexpectedCloseError(err, gorilla.CloseGoingAway, gorilla.CloseNormalClosure) {
				h.logger.Debug("stream read failed", "client", c.id, "error", err)
			}
			return
		}
	}
}

// Package events pushes funnel change notifications to dashboard listeners
// over websockets.
package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quiz-funnels/internal/common/logger"
	"quiz-funnels/internal/models"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer is how many events may queue for one client before it is
	// dropped as too slow.
	sendBuffer = 16
)

type client struct {
	conn *websocket.Conn
	send chan models.ChangeEvent
}

// Hub fans change events out to every connected websocket client. Each
// client has its own queue and writer goroutine, so Publish never waits on
// the network.
type Hub struct {
	upgrader websocket.Upgrader
	log      logger.Logger

	mu      sync.Mutex
	clients map[*client]bool
	closed  bool
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     log.WithFields(map[string]interface{}{"component": "events"}),
		clients: make(map[*client]bool),
	}
}

// Publish queues event for every client. A client whose queue is full is
// disconnected.
func (h *Hub) Publish(event models.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			h.log.Warn("Dropping slow websocket client", map[string]interface{}{"remote": c.conn.RemoteAddr().String()})
			h.removeLocked(c)
			c.conn.Close()
		}
	}
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects. Messages sent by clients are discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		h.log.WithError(err).Warn("Websocket upgrade failed", nil)
		return
	}
	defer conn.Close()

	c := &client{conn: conn, send: make(chan models.ChangeEvent, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[c] = true
	h.mu.Unlock()

	go h.writeLoop(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) writeLoop(c *client) {
	for event := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(event); err != nil {
			h.log.WithError(err).Debug("Websocket write failed", map[string]interface{}{"remote": c.conn.RemoteAddr().String()})
			// the read loop sees the closed connection and unregisters
			c.conn.Close()
			return
		}
	}
}

func (h *Hub) removeLocked(c *client) {
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		c.conn.Close()
	}
}

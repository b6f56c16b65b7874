// Package realtime streams booking change events to browser clients over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/room-booking/internal/notify"
)

const sendBuffer = 64

// Message is the envelope written to every websocket client.
type Message struct {
	Type      string       `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   notify.Event `json:"payload"`
}

// Hub tracks connected clients and broadcasts events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
	now     func() time.Time
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
		now:     time.Now,
	}
}

// Client is one registered connection's outbound queue.
type Client struct {
	send chan []byte
}

func newClient() *Client {
	return &Client{send: make(chan []byte, sendBuffer)}
}

// Register adds a client to the broadcast set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", total)
}

// Unregister removes a client and closes its queue. Repeated calls are no-ops.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client disconnected", "clients", total)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues message for every client. Clients with a full queue are
// dropped so one slow reader cannot stall the rest.
func (h *Hub) Broadcast(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- message:
		default:
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn("dropping slow websocket client")
		}
	}
}

// Close disconnects every client. Their write pumps send a close frame.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// Publish implements notify.Publisher.
func (h *Hub) Publish(ctx context.Context, event notify.Event) error {
	body, err := json.Marshal(Message{Type: event.Type, Timestamp: h.now().UTC(), Payload: event})
	if err != nil {
		return fmt.Errorf("encode websocket message: %w", err)
	}
	h.Broadcast(body)
	return nil
}

package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sentinelforge/sentinelforge-backend/internal/models"
	"github.com/sentinelforge/sentinelforge-backend/internal/pkg/metrics"
)

// Hub maintains the set of live stream subscribers and fans detection
// events out to them. A slow subscriber never blocks a broadcast: when its
// buffer is full the message is dropped for that subscriber, which stays
// registered until its transport closes.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound fan-out messages
	broadcast chan []byte

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new broadcast hub.
func NewHub(ctx context.Context) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// Run starts the hub loop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.WebSocketConnectionsActive.Inc()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
				metrics.WebSocketConnectionsActive.Dec()
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			// Snapshot under the read lock, deliver outside it. A full
			// client buffer drops this message for that client only.
			h.mu.RLock()
			for client := range h.clients {
				if !client.trySend(message) {
					metrics.BroadcastDroppedTotal.Inc()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop stops the hub and closes all client connections.
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.closeSend()
		delete(h.clients, client)
		metrics.WebSocketConnectionsActive.Dec()
	}
}

// BroadcastThreatDetected fans one detection event out to every current
// subscriber.
func (h *Hub) BroadcastThreatDetected(msg models.ThreatDetectedMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- data:
		return nil
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Package server is the presentation feed: it streams world frames to
// websocket subscribers, accepts operator commands over the same socket and
// serves the population history as JSON.
package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pthm-cable/preypred/game"
)

// sendBuffer is the per-subscriber queue depth. Frames for a subscriber
// whose queue is full are dropped.
const sendBuffer = 16

// Hub fans frames out to subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[*client]struct{})}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.subscribers[c] = struct{}{}
	h.mu.Unlock()
}

// unregister removes c and closes its queue. Safe to call twice.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[c]; ok {
		delete(h.subscribers, c)
		close(c.send)
	}
}

// Broadcast encodes f once and queues it for every subscriber without
// blocking the caller.
func (h *Hub) Broadcast(f game.Frame) {
	if h.SubscriberCount() == 0 {
		return
	}
	msg, err := json.Marshal(Message{Type: MessageFrame, Frame: &f})
	if err != nil {
		slog.Error("failed to encode frame", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subscribers {
		select {
		case c.send <- msg:
		default:
			slog.Debug("frame dropped", "remote", c.remote)
		}
	}
}

// sendTo queues msg for one subscriber if it is still registered.
func (h *Hub) sendTo(c *client, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.subscribers[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// closeAll disconnects every subscriber.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subscribers {
		delete(h.subscribers, c)
		close(c.send)
	}
}

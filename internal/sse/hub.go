package sse

import (
	"context"
	"sync"
)

// Event is one message pushed to stream subscribers.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans events out to the subscribers of a topic, such as the live
// valet queue of one session.
type Hub struct {
	clients map[string][]chan Event
	mu      sync.RWMutex
	buffer  int
	closed  bool
}

// NewHub creates a hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 10
	}
	return &Hub{
		clients: make(map[string][]chan Event),
		buffer:  buffer,
	}
}

// Subscribe adds a client to topic. The channel is closed once ctx ends.
func (h *Hub) Subscribe(ctx context.Context, topic string) <-chan Event {
	clientChan := make(chan Event, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(clientChan)
		return clientChan
	}
	h.clients[topic] = append(h.clients[topic], clientChan)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(topic, clientChan)
	}()

	return clientChan
}

// Emit broadcasts ev to every subscriber of topic. Slow clients whose
// buffer is full miss the event.
func (h *Hub) Emit(topic string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clientChan := range h.clients[topic] {
		select {
		case clientChan <- ev:
		default:
		}
	}
}

func (h *Hub) remove(topic string, clientChan chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[topic]
	for i, ch := range clients {
		if ch == clientChan {
			h.clients[topic] = append(clients[:i:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(h.clients[topic]) == 0 {
		delete(h.clients, topic)
	}
}

// Close ends every subscription so open streams return, and makes later
// subscriptions end at once. It is registered to run on server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic, clients := range h.clients {
		for _, clientChan := range clients {
			close(clientChan)
		}
		delete(h.clients, topic)
	}
	h.closed = true
}

// ClientCount returns the number of clients currently subscribed to topic
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

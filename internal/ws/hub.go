// README: Connection hub; single fan-out point for every outbound event.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"tripsim/internal/types"
)

// Envelope is the wire format in both directions: a named event and its
// payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub tracks connected clients and serializes membership changes through
// its run loop. Emission methods are safe to call from any goroutine,
// including from inside the dispatch core's critical section; per-client
// order is preserved because each client drains its own send queue.
type Hub struct {
	mu      sync.RWMutex
	clients map[types.ID]*Client

	register   chan *Client
	unregister chan *Client
	// done is closed when Run exits so add/drop never block on a dead loop.
	done chan struct{}

	log *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[types.ID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run owns the client map mutations until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			h.mu.Unlock()
			h.log.Info("client connected", "conn_id", string(c.ID), "role", string(c.Role))
		case c := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[c.ID]; ok && cur == c {
				delete(h.clients, c.ID)
				close(c.send)
			}
			h.mu.Unlock()
			h.log.Info("client disconnected", "conn_id", string(c.ID), "role", string(c.Role))
		}
	}
}

// Broadcast sends the event to every connected client.
func (h *Hub) Broadcast(event string, payload any) {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		h.log.Error("envelope marshal failed", "event", event, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.enqueue(frame)
	}
}

// BroadcastDrivers sends the event to every driver connection.
func (h *Hub) BroadcastDrivers(event string, payload any) {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		h.log.Error("envelope marshal failed", "event", event, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.Role == types.ActorDriver {
			c.enqueue(frame)
		}
	}
}

// SendTo sends the event to one connection. Unknown ids are dropped
// silently; the client may have disconnected between emission and
// delivery.
func (h *Hub) SendTo(conn types.ID, event string, payload any) {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		h.log.Error("envelope marshal failed", "event", event, "error", err)
		return
	}
	h.mu.RLock()
	c, ok := h.clients[conn]
	h.mu.RUnlock()
	if ok {
		c.enqueue(frame)
	}
}

func (h *Hub) add(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// EmitNamed relays a caller-supplied event, name and payload both opaque to
// the hub, to every connection. It backs the external event-relay surface.
func (h *Hub) EmitNamed(event string, payload any) {
	h.Broadcast(event, payload)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

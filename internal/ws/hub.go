package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *slog.Logger
	mu         sync.RWMutex
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("component", "ws"),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case event := <-h.broadcast:
			h.fanOut(event)
		}
	}
}

// Register adds client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	h.logger.Debug("client connected", "clients", len(h.clients))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.logger.Debug("client disconnected", "clients", len(h.clients))
	}
}

func (h *Hub) fanOut(event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("event marshal failed", "type", event.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.wants(event.Topic) {
			continue
		}
		select {
		case client.send <- message:
		default:
			// Slow consumer.
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	close(h.done)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Broadcast queues an event for every client subscribed to topic. A full
// queue drops the event.
func (h *Hub) Broadcast(topic Topic, eventType EventType, data interface{}) {
	event := Event{
		Topic:     topic,
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- event:
	default:
	}
}

// ConnectedClients counts clients subscribed to topic.
func (h *Hub) ConnectedClients(topic Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for client := range h.clients {
		if client.wants(topic) {
			n++
		}
	}
	return n
}

// Forward broadcasts every value received on updates until ctx is done or
// updates is closed.
func Forward[T any](ctx context.Context, h *Hub, topic Topic, eventType EventType, updates <-chan T) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-updates:
			if !ok {
				return
			}
			h.Broadcast(topic, eventType, v)
		}
	}
}

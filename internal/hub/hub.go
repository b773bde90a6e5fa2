package hub

import (
	"encoding/json"
	"sync"

	"shelfmate/backend/internal/metrics"
)

// Event represents a real-time event to be sent to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Notifier delivers an event to every live connection of a user, if any.
type Notifier interface {
	Notify(userID uint, event Event) error
}

// Client is one live connection of a user (a browser tab, a websocket).
// The transport handler drains the channel.
type Client chan []byte

// Hub tracks the live clients of every connected user on this instance.
type Hub struct {
	users map[uint]map[Client]bool
	mu    sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		users: make(map[uint]map[Client]bool),
	}
}

// NewClient allocates a client channel with room for size pending events.
func NewClient(size int) Client {
	return make(Client, size)
}

// Subscribe registers a client for userID.
func (h *Hub) Subscribe(userID uint, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.users[userID]; !ok {
		h.users[userID] = make(map[Client]bool)
	}
	if !h.users[userID][client] {
		h.users[userID][client] = true
		metrics.RealtimeClients.Inc()
	}
}

// Unsubscribe removes a client and closes its channel.
func (h *Hub) Unsubscribe(userID uint, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.users[userID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client) // Signals the transport handler to stop.
			metrics.RealtimeClients.Dec()
			if len(clients) == 0 {
				delete(h.users, userID)
			}
		}
	}
}

// Online reports whether userID has at least one live client.
func (h *Hub) Online(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// Notify sends an event to all clients of userID. Offline users and full
// client buffers drop the event: delivery is at-most-once.
func (h *Hub) Notify(userID uint, event Event) error {
	messageBytes, err := json.Marshal(event)
	if err != nil {
		metrics.RealtimeDeliveries.WithLabelValues("error").Inc()
		return err
	}
	h.deliver(userID, messageBytes)
	return nil
}

func (h *Hub) deliver(userID uint, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.users[userID]
	if !ok {
		metrics.RealtimeDeliveries.WithLabelValues("offline").Inc()
		return
	}
	for client := range clients {
		// Non-blocking so a slow client never stalls the sender.
		select {
		case client <- data:
			metrics.RealtimeDeliveries.WithLabelValues("delivered").Inc()
		default:
			metrics.RealtimeDeliveries.WithLabelValues("dropped").Inc()
		}
	}
}

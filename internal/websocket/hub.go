// internal/websocket/hub.go
package websocket

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Hub maintains the set of active dashboard clients and broadcasts reading
// and alert events to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logrus.WithField("remote", client.Conn.RemoteAddr().String()).Debug("websocket client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Client blocked or gone, drop it.
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// RegisterClient safely registers a new client with the hub.
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

// BroadcastReading pushes a completed, scored reading to all clients.
func (h *Hub) BroadcastReading(reading interface{}) {
	h.send("reading", reading)
}

// BroadcastAlert pushes a newly raised alert to all clients.
func (h *Hub) BroadcastAlert(alert interface{}) {
	h.send("alert", alert)
}

func (h *Hub) send(kind string, payload interface{}) {
	messageBytes, err := json.Marshal(map[string]interface{}{"type": kind, "payload": payload})
	if err != nil {
		logrus.WithError(err).Error("failed to marshal websocket broadcast")
		return
	}
	select {
	case h.broadcast <- messageBytes:
	default:
		logrus.Warn("websocket broadcast channel full, dropping message")
	}
}

// Package ws pushes confirmed messages to connected dashboards. The chat
// client itself polls; the websocket feed only drives badge updates so open
// pages learn about new messages between polls.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"

	"github.com/fathima-sithara/marketplace-chat/internal/metrics"
	"github.com/fathima-sithara/marketplace-chat/internal/models"
)

type Hub struct {
	clients map[string]map[*Client]struct{} // userID -> set of clients
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

func (h *Hub) AddClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.UserID]; !ok {
		h.clients[c.UserID] = make(map[*Client]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	metrics.WSConnections.Inc()
}

func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.UserID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			metrics.WSConnections.Dec()
		}
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
}

// NotifyMessage fans a freshly persisted message out to both participants'
// sockets.
func (h *Hub) NotifyMessage(m *models.Message) {
	b, err := json.Marshal(fiberEnvelope{Event: "message", Data: m})
	if err != nil {
		return
	}
	h.sendToUser(m.SenderID, b)
	h.sendToUser(m.ReceiverID, b)
}

type fiberEnvelope struct {
	Event string          `json:"event"`
	Data  *models.Message `json:"data"`
}

func (h *Hub) sendToUser(userID string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- msg:
		default:
			// client falling behind, drop
		}
	}
}

// Client is one connected socket.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	send   chan []byte
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{UserID: userID, Conn: conn, send: make(chan []byte, 16)}
}

// WritePump drains the send queue onto the socket; run it on the connection
// goroutine.
func (c *Client) WritePump() {
	for msg := range c.send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *Client) CloseSend() { close(c.send) }

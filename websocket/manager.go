package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// Hub fans run events out to every connected client
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *utils.ETLLogger
}

// NewHub creates a new Hub with no clients
func NewHub(logger *utils.ETLLogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done, then
// disconnects every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	hello, _ := json.Marshal(Event{Type: EventHello})
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			client.send <- hello
			h.logger.Debug("feed client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("feed client disconnected", "clients", len(h.clients))
			}

		case message := <-h.broadcast:
			h.fanOut(message)

		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

// fanOut drops clients whose queue is full instead of blocking the feed
func (h *Hub) fanOut(message []byte) {
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			delete(h.clients, client)
			close(client.send)
			h.logger.Warn("feed client too slow, dropped")
		}
	}
}

// Notify queues a run event for every client. Events are dropped when the
// hub is not keeping up; runs never wait on the feed.
func (h *Hub) Notify(event string, run *models.RunSummary) {
	data, err := json.Marshal(Event{Type: event, Run: run})
	if err != nil {
		h.logger.Error("encode run event", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("run feed backlog full, event dropped", "event", event)
	}
}

// HandleConnections upgrades the request and subscribes it to the feed
func (h *Hub) HandleConnections(w http.ResponseWriter, r *http.Request) {
	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:    h,
		socket: socket,
		send:   make(chan []byte, sendBuffer),
	}
	select {
	case h.register <- client:
	case <-h.done:
		socket.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

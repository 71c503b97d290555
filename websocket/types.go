package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
)

// EventHello is sent to every client right after it connects
const EventHello = "hello"

// Event is one message of the run feed
type Event struct {
	Type string             `json:"type"`
	Run  *models.RunSummary `json:"run,omitempty"`
}

// Client is one subscriber of the run feed
type Client struct {
	hub    *Hub
	socket *websocket.Conn
	send   chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards are served from other origins
	},
}

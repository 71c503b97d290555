package websocket

import (
	"time"
)

const (
	// Time allowed to write a message to the client
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the client
	pongWait = 60 * time.Second

	// Ping period, shorter than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames
	maxMessageSize = 4 * 1024

	// Per-client queue; a client that falls this far behind is dropped
	sendBuffer = 32

	// Events waiting for the hub loop
	broadcastBuffer = 64
)

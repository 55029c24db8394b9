// Lumend - Light Sensor Telemetry and Live Fanout
// Copyright 2026 Lumen Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lumenlab/lumend

package notifier

import (
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/lumenlab/lumend/internal/logging"
	"github.com/lumenlab/lumend/internal/metrics"
)

const (
	// writeWait is the deadline for a single outbound write.
	writeWait = 10 * time.Second

	// maxMessageSize bounds inbound frames. Subscribers only ever send
	// small control payloads.
	maxMessageSize = 1024
)

// clientIDCounter hands out monotonically increasing client IDs so
// broadcast order is deterministic.
var clientIDCounter atomic.Uint64

// Client is a middleman between a WebSocket connection and the hub.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn

	// send is the buffered queue of outbound messages. Closed by the hub
	// to signal the write pump to shut the connection down.
	send chan any

	// accepted carries the hub's registration verdict. Pumps must only
	// start on an accepted client; a rejected one has already had its
	// connection closed.
	accepted chan bool
}

// NewClient wraps an upgraded connection for the hub.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:       clientIDCounter.Add(1),
		hub:      hub,
		conn:     conn,
		send:     make(chan any, 256),
		accepted: make(chan bool, 1),
	}
}

// Start launches the read and write pumps. Exactly one goroutine reads
// from and one writes to the connection.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump reads inbound frames until the connection drops, answering
// pings and ignoring anything it does not understand. It owns read
// deadlines: every pong from the peer extends the deadline, so a peer
// that stops answering keepalive pings gets disconnected.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	readWait := 2 * c.hub.pingInterval
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug().Err(err).Uint64("client_id", c.id).Msg("unexpected subscriber close")
			}
			return
		}
		c.handleMessage(data)
	}
}

// handleMessage processes one inbound frame. Application-level pings get
// a pong reply; malformed or unknown payloads are ignored so a confused
// subscriber is never disconnected for it.
func (c *Client) handleMessage(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logging.Debug().Err(err).Uint64("client_id", c.id).Msg("ignoring malformed subscriber message")
		return
	}

	switch msg.Type {
	case MessageTypePing:
		select {
		case c.send <- PongMessage{Type: MessageTypePong}:
			metrics.MessagesSentTotal.WithLabelValues(MessageTypePong).Inc()
		default:
		}
	default:
		logging.Debug().
			Str("type", msg.Type).
			Uint64("client_id", c.id).
			Msg("ignoring unknown subscriber message type")
	}
}

// writePump drains the send queue to the connection and keeps the peer
// alive with protocol-level pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the queue.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// rejectOverloaded closes the connection with 1013 (try again later)
// without registering the subscriber. Called by the hub when the limit
// is reached.
func (c *Client) rejectOverloaded() {
	if c.conn == nil {
		return
	}
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber limit reached")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	c.conn.Close()
}

// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/parkwatch/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Client attaches a websocket connection to the Hub as a subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	sub  *Subscriber
}

// NewClient creates a Client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		sub:  NewSubscriber(KindWebSocket),
	}
}

// Subscriber returns the hub registration backing the client.
func (c *Client) Subscriber() *Subscriber {
	return c.sub
}

// Start registers the client and begins reading and writing. The
// connection is closed when registration fails.
func (c *Client) Start() error {
	if err := c.hub.Register(c.sub); err != nil {
		_ = c.conn.Close()
		return err
	}
	go c.writePump()
	go c.readPump()
	return nil
}

// readPump consumes control frames and client pings until the connection ends.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c.sub)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Uint64("subscriber_id", c.sub.id).Msg("Unexpected websocket close")
			}
			return
		}
		if msg.Type == MessageTypePing {
			c.pong()
		}
	}
}

// pong replies to an application-level ping through the normal write path.
func (c *Client) pong() {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.subscribers[c.sub]; ok {
		c.sub.offer(Message{Type: MessageTypePong})
	}
}

// writePump drains the subscriber channel onto the connection. A write
// failure prunes the subscriber.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sub.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.hub.Drop(c.sub, err)
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.hub.Drop(c.sub, err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.hub.Drop(c.sub, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Drop(c.sub, err)
				return
			}
		}
	}
}

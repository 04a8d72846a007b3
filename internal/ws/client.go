// README: One websocket connection; gorilla read/write pumps.
package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"tripsim/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 64
)

// MessageHandler receives every parsed inbound envelope.
type MessageHandler interface {
	HandleMessage(c *Client, event string, data json.RawMessage)
	OnConnect(c *Client)
	OnDisconnect(c *Client)
}

// Client is one websocket connection with its outbound queue. The queue is
// drained by a single writer goroutine, which keeps per-connection delivery
// in emission order.
type Client struct {
	ID   types.ID
	Role types.Actor

	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	handler MessageHandler
	log     *slog.Logger
}

func newClient(id types.ID, role types.Actor, hub *Hub, conn *websocket.Conn, handler MessageHandler, log *slog.Logger) *Client {
	return &Client{
		ID:      id,
		Role:    role,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendQueueSize),
		handler: handler,
		log:     log,
	}
}

// Send marshals and queues one event for this connection only. Unlike the
// hub emission paths it needs no registry lookup, so it is usable before
// the client appears in the hub map.
func (c *Client) Send(event string, payload any) {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		c.log.Error("envelope marshal failed", "event", event, "error", err)
		return
	}
	c.enqueue(frame)
}

// enqueue queues a frame without blocking. A full queue means the consumer
// stopped reading; the frame is dropped and the write pump will shut the
// connection down on the next ping timeout.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		c.log.Warn("send queue full, dropping frame", "conn_id", string(c.ID))
	}
}

func (c *Client) readPump() {
	defer func() {
		c.handler.OnDisconnect(c)
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("unexpected close", "conn_id", string(c.ID), "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			c.log.Warn("malformed frame", "conn_id", string(c.ID), "error", err)
			continue
		}
		c.handler.HandleMessage(c, env.Event, env.Data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

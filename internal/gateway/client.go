package gateway

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"candlesystem/internal/metrics"
)

const (
	sendBuffer     = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one connected WebSocket peer.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	metrics *metrics.Gateway

	send chan []byte
}

// NewClient wraps conn for hub, registering it immediately.
func NewClient(hub *Hub, conn *websocket.Conn, m *metrics.Gateway) *Client {
	c := &Client{hub: hub, conn: conn, metrics: m, send: make(chan []byte, sendBuffer)}
	hub.register(c)
	return c
}

// Serve runs the client's read and write pumps. Blocks until the
// connection closes; call in its own goroutine per connection.
func (c *Client) Serve(symbols []string) {
	go c.writePump()
	c.hub.subscribe(c, symbols)
	c.enqueue(connectedMessage{
		Type:      "connected",
		Message:   "subscribed",
		Timestamp: time.Now().UnixMilli(),
	})
	c.readPump()
}

// enqueue drops the oldest queued message to make room rather than
// block the hub's broadcast loop on a slow client.
func (c *Client) enqueue(m any) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
		return
	default:
	}
	select {
	case <-c.send:
		if c.metrics != nil {
			c.metrics.BrokerDrops.Inc()
		}
	default:
	}
	select {
	case c.send <- data:
	default:
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
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
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

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var env clientEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			if c.metrics != nil {
				c.metrics.ClientProtoErrors.Inc()
			}
			c.enqueue(errorMessage{Type: "error", Message: "malformed frame", Timestamp: time.Now().UnixMilli()})
			continue
		}

		switch env.Action {
		case "subscribe":
			var req subscribeRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				c.enqueue(errorMessage{Type: "error", Message: "invalid subscribe: " + err.Error(), Timestamp: time.Now().UnixMilli()})
				continue
			}
			c.hub.subscribe(c, req.Symbols)
			c.enqueue(subscriptionMessage{Type: "subscribed", Symbols: req.Symbols, Timestamp: time.Now().UnixMilli()})

		case "unsubscribe":
			var req unsubscribeRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				c.enqueue(errorMessage{Type: "error", Message: "invalid unsubscribe: " + err.Error(), Timestamp: time.Now().UnixMilli()})
				continue
			}
			c.hub.unsubscribe(c, req.Symbols)
			c.enqueue(subscriptionMessage{Type: "unsubscribed", Symbols: req.Symbols, Timestamp: time.Now().UnixMilli()})

		case "ping":
			c.enqueue(pongMessage{Type: "pong", Timestamp: time.Now().UnixMilli()})

		case "stats":
			c.enqueue(c.hub.Stats())

		default:
			if c.metrics != nil {
				c.metrics.ClientProtoErrors.Inc()
			}
			c.hub.logUnknownAction(env.Action)
			c.enqueue(errorMessage{Type: "error", Message: "unknown action", Timestamp: time.Now().UnixMilli()})
		}
	}
}

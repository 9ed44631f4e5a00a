package websocket

import (
	"time"

	gwebsocket "github.com/gorilla/websocket"

	"sensor-proxy/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 512
)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	ID   string
	hub  *Hub
	conn *gwebsocket.Conn
	send chan []byte
}

func (c *Client) remote() string {
	return c.conn.RemoteAddr().String()
}

// readPump only handles control frames; subscribers do not send requests.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if gwebsocket.IsUnexpectedCloseError(err, gwebsocket.CloseGoingAway, gwebsocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket: read error", logging.AttachError(err, "client", c.ID)...)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(gwebsocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(gwebsocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("websocket: write error", logging.AttachError(err, "client", c.ID)...)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gwebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

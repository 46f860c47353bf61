package ws

import (
	"github.com/gofiber/websocket/v2"
)

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	topics map[Topic]bool
	send   chan []byte
}

// wants reports whether the client subscribed to topic. No topics means all.
func (c *Client) wants(topic Topic) bool {
	return len(c.topics) == 0 || c.topics[topic]
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

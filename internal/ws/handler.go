package ws

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Snapshotter returns the events a new client receives on connect, so it
// does not wait for the next change to render.
type Snapshotter func() []Event

// Handler upgrades the connection and streams events. Clients pick topics
// with ?topics=match,enrollment; no parameter subscribes to everything.
func Handler(hub *Hub, initial Snapshotter) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		client := &Client{
			hub:    hub,
			conn:   c,
			topics: parseTopics(c.Query("topics")),
			send:   make(chan []byte, 256),
		}

		if initial != nil {
			for _, event := range initial() {
				if !client.wants(event.Topic) {
					continue
				}
				if event.Timestamp.IsZero() {
					event.Timestamp = time.Now()
				}
				if message, err := json.Marshal(event); err == nil {
					client.send <- message
				}
			}
		}

		if !hub.Register(client) {
			_ = c.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

func parseTopics(raw string) map[Topic]bool {
	topics := make(map[Topic]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part != "" {
			topics[Topic(part)] = true
		}
	}
	return topics
}

func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

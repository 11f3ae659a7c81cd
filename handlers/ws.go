package handlers

import (
	"log"

	"firefight-arena/events"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// SetupEventRoutes exposes the live event stream over websocket. The stream
// is read-only: every connected client receives every published event, and a
// gone client is detected by the read pump and unsubscribed.
func SetupEventRoutes(app *fiber.App, hub *events.Hub) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/events", websocket.New(func(conn *websocket.Conn) {
		ch, cancel := hub.Subscribe()
		defer cancel()

		// Read pump: we ignore client messages but need reads to notice
		// closed connections.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					log.Printf("[events] websocket write failed: %v", err)
					return
				}
			}
		}
	}))
}

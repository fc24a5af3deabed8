package middleware

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// WSUpgrade rejects plain HTTP on the socket route and passes an optional
// ?batch=<id> through to the connection so it joins that room on connect.
func WSUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if id := c.Query("batch"); id != "" {
			c.Locals("batch", id)
		}
		return c.Next()
	}
}

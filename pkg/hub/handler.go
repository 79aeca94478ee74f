package hub

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-ppewatch/internal/log"
)

// UpgradeOnly rejects non-websocket requests. Mount it on the websocket
// route prefix.
func UpgradeOnly(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler returns a fiber handler that attaches each websocket viewer to h.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client, err := NewClient(h, conn)
		if err != nil {
			log.Warn("rejecting viewer", "hub", h.name, "error", err)
			conn.Close()
			return
		}
		client.Run()
	})
}

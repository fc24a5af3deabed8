package middleware

import (
	"github.com/emandor/textconv/internal/telemetry"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const ReqIDKey = "reqID"

// RequestID tags the request and puts a logger carrying req_id into the
// user context, so zerolog.Ctx picks it up further down.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Set("X-Request-ID", rid)
		c.Locals(ReqIDKey, rid)

		l := telemetry.L().With().Str("req_id", rid).Logger()
		c.SetUserContext(l.WithContext(c.UserContext()))
		return c.Next()
	}
}

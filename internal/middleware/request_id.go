package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const CtxRequestID = "request_id"

const headerRequestID = "X-Request-ID"

// RequestIDMiddleware honours an inbound correlation id or mints one, and
// echoes it back so error responses and logs can be matched to a call.
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(headerRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals(CtxRequestID, reqID)
		c.Set(headerRequestID, reqID)
		return c.Next()
	}
}

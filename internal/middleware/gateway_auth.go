package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/affirmstudio/api/pkg/response"
)

// GatewayAuthMiddleware reads the account identity from X-User-* headers
// set by the gateway's ForwardAuth call to /auth/verify.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		accountID := c.Get("X-User-Id")
		if accountID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		setIdentity(c, accountID, c.Get("X-User-Email"), c.Get("X-User-Name"))
		return c.Next()
	}
}

package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/affirmstudio/api/internal/auth"
	"github.com/affirmstudio/api/pkg/response"
)

const (
	localAccountID = "accountId"
	localEmail     = "email"
	localName      = "name"
)

// AuthMiddleware resolves the calling account from a bearer token
type AuthMiddleware struct {
	verifier  auth.TokenVerifier
	jwtSecret string // fallback for legacy tokens
}

// NewAuthMiddleware creates auth middleware. Either argument may be empty, but not both.
func NewAuthMiddleware(verifier auth.TokenVerifier, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:  verifier,
		jwtSecret: jwtSecret,
	}
}

// Authenticate validates JWT token from Authorization header
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := BearerToken(c)
		if !ok {
			return response.Unauthorized(c, "Missing or malformed authorization header")
		}

		if m.verifier != nil {
			claims, err := m.verifier.Validate(tokenString)
			if err == nil {
				setIdentity(c, claims.AccountID, claims.Email, claims.Name)
				return c.Next()
			}
			if m.jwtSecret == "" {
				return response.Unauthorized(c, "Invalid or expired token")
			}
		}

		if m.jwtSecret != "" {
			claims, err := auth.ValidateLegacyToken(tokenString, m.jwtSecret)
			if err != nil {
				return response.Unauthorized(c, "Invalid or expired token")
			}
			setIdentity(c, claims.AccountID, claims.Email, "")
			return c.Next()
		}

		return response.Unauthorized(c, "Authentication not configured")
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// UpgradeQueryToken lets websocket upgrades, which cannot carry headers from a browser,
// pass their bearer token as the access_token query parameter.
func UpgradeQueryToken() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" && strings.EqualFold(c.Get(fiber.HeaderUpgrade), "websocket") {
			if token := c.Query("access_token"); token != "" {
				c.Request().Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
			}
		}
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, accountID, email, name string) {
	c.Locals(localAccountID, accountID)
	c.Locals(localEmail, email)
	c.Locals(localName, name)
}

// GetUserID extracts the account id from context
func GetUserID(c *fiber.Ctx) string {
	if id, ok := c.Locals(localAccountID).(string); ok {
		return id
	}
	return ""
}

// GetUserEmail extracts user email from context
func GetUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals(localEmail).(string); ok {
		return email
	}
	return ""
}

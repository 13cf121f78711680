package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-chat-api/internal/utils"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	RequireUser bool
	// SelfParam names a route parameter that must equal the caller's user id.
	SelfParam string
}

// WithAuth wraps a handler with authentication guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	requireUser := opts.RequireUser || opts.SelfParam != ""

	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if requireUser && userID == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		if opts.SelfParam != "" && strings.TrimSpace(c.Params(opts.SelfParam)) != userID {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"param": opts.SelfParam})
		}

		return handler(c)
	}
}

// UserID returns the authenticated user id stored by the JWT middleware.
func UserID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	switch v := c.Locals("user_id").(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

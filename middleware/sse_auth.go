// middleware/sse_auth.go
package middleware

import (
	"log"
	"strings"

	"fest-event-system/services"

	"github.com/gofiber/fiber/v2"
)

// SSEAuth authenticates event streams, which cannot send headers from
// EventSource, with a `token` query parameter. A bearer header also works.
//
// Usage:
//
//	api.Get("/events/stream", middleware.SSEAuth(authService), h.Stream)
func SSEAuth(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			token = bearerToken(c)
		}
		if token == "" {
			log.Printf("[SSEAuth] ❌ Missing token for %s from %s", c.Path(), c.IP())
			return fiber.NewError(fiber.StatusUnauthorized, "missing token in query")
		}

		principal, err := auth.Resolve(token)
		if err != nil {
			log.Printf("[SSEAuth] ❌ Validation failed for token (prefix: %s...): %v", token[:min(10, len(token))], err)
			return err
		}
		c.Locals(string(PrincipalContextKey), principal)
		log.Printf("[SSEAuth] ✅ Authenticated %s %s", principal.Kind, principal.ID)
		return c.Next()
	}
}

// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"fest-event-system/services"

	"github.com/gofiber/fiber/v2"
)

type contextKey string

const (
	PrincipalContextKey contextKey = "principal"
	JudgeContextKey     contextKey = "judge"
	PanelContextKey     contextKey = "panel"
	JudgeCodeContextKey contextKey = "judgeCode"
)

// bearerToken pulls the token from "Authorization: Bearer <token>".
func bearerToken(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if header == "" {
		return ""
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		token = strings.TrimPrefix(header, "bearer ")
	}
	return strings.TrimSpace(token)
}

// RequireAuth resolves the bearer token to a user or participant.
func RequireAuth(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		principal, err := auth.Resolve(token)
		if err != nil {
			log.Printf("🚫 [AUTH] Rejected token for %s: %v", c.Path(), err)
			return err
		}
		c.Locals(string(PrincipalContextKey), principal)
		return c.Next()
	}
}

// RequireRoles must run after RequireAuth or SSEAuth.
func RequireRoles(roles ...string) fiber.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *fiber.Ctx) error {
		p := CurrentPrincipal(c)
		if p == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		if !allowed[p.Role] {
			log.Printf("🚫 [AUTH] %s %s denied %s", p.Kind, p.ID, c.Path())
			return fiber.NewError(fiber.StatusForbidden, "you do not have access to this resource")
		}
		return c.Next()
	}
}

// CurrentPrincipal returns the caller resolved by RequireAuth, or nil.
func CurrentPrincipal(c *fiber.Ctx) *services.Principal {
	p, _ := c.Locals(string(PrincipalContextKey)).(*services.Principal)
	return p
}

// middleware/gateway.go
package middleware

import (
	"log"
	"strings"
	"sync"
	"time"

	"fest-event-system/models"
	"fest-event-system/services"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// JudgeCodeHeader carries the panel access code on judge routes.
const JudgeCodeHeader = "X-Judge-Code"

// JudgeGate authenticates judge routes by access code instead of a login.
// The `code` query parameter is accepted for event streams.
func JudgeGate(panels *services.PanelService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := strings.TrimSpace(c.Get(JudgeCodeHeader))
		if code == "" {
			code = strings.TrimSpace(c.Query("code"))
		}
		if code == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "judge access code missing")
		}
		judge, panel, err := panels.ResolveJudge(code)
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok && fe.Code == fiber.StatusNotFound {
				log.Printf("❌ [JUDGE_GATE] Unknown access code for %s (from %s)", c.Path(), c.IP())
				return fiber.NewError(fiber.StatusUnauthorized, "invalid access code")
			}
			return err
		}
		c.Locals(string(JudgeCodeContextKey), code)
		c.Locals(string(JudgeContextKey), judge)
		c.Locals(string(PanelContextKey), panel)
		return c.Next()
	}
}

// CurrentJudge returns the judge and panel resolved by JudgeGate.
func CurrentJudge(c *fiber.Ctx) (*models.Judge, *models.Panel) {
	j, _ := c.Locals(string(JudgeContextKey)).(*models.Judge)
	p, _ := c.Locals(string(PanelContextKey)).(*models.Panel)
	return j, p
}

// JudgeCode returns the raw access code accepted by JudgeGate.
func JudgeCode(c *fiber.Ctx) string {
	code, _ := c.Locals(string(JudgeCodeContextKey)).(string)
	return code
}

// IPLimiter hands out one token bucket per client IP. Buckets idle for longer
// than idleAfter are full again and get swept.
type IPLimiter struct {
	mu        sync.Mutex
	every     rate.Limit
	burst     int
	idleAfter time.Duration
	lastSweep time.Time
	clients   map[string]*ipClient
	now       func() time.Time
}

type ipClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPLimiter allows perMinute requests per IP with the same burst.
func NewIPLimiter(perMinute int) *IPLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &IPLimiter{
		every:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     perMinute,
		idleAfter: 2 * time.Minute,
		clients:   make(map[string]*ipClient),
		now:       time.Now,
	}
}

func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleAfter {
		l.sweep(now)
	}
	cl, ok := l.clients[ip]
	if !ok {
		cl = &ipClient{limiter: rate.NewLimiter(l.every, l.burst)}
		l.clients[ip] = cl
	}
	cl.lastSeen = now
	l.mu.Unlock()
	return cl.limiter.AllowN(now, 1)
}

// sweep drops idle clients. Callers hold l.mu.
func (l *IPLimiter) sweep(now time.Time) {
	for ip, cl := range l.clients {
		if now.Sub(cl.lastSeen) >= l.idleAfter {
			delete(l.clients, ip)
		}
	}
	l.lastSweep = now
}

// Handler rejects clients over their budget with 429.
func (l *IPLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.Allow(c.IP()) {
			log.Printf("⏳ [RATE_LIMIT] %s exceeded limit on %s", c.IP(), c.Path())
			return fiber.NewError(fiber.StatusTooManyRequests, "too many attempts, slow down")
		}
		return c.Next()
	}
}

package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/leakscope/backend/pkg/logger"
)

// Limiter is a per-client fixed-window request limiter. It guards the
// trigger endpoint against a misbehaving scheduler; overlapping runs are
// already rejected by the orchestrator itself.
type Limiter struct {
	mu     sync.Mutex
	counts map[string]int
	window time.Duration
	max    int
	reset  time.Time
}

func New(maxPerWindow int, window time.Duration) *Limiter {
	if maxPerWindow <= 0 {
		maxPerWindow = 60
	}
	if window <= 0 {
		window = time.Minute
	}

	return &Limiter{
		counts: make(map[string]int),
		window: window,
		max:    maxPerWindow,
		reset:  time.Now().Add(window),
	}
}

func (l *Limiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.allow(c.IP()) {
			logger.Warn("Request rate limited", zap.String("ip", c.IP()))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests",
			})
		}
		return c.Next()
	}
}

func (l *Limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.After(l.reset) {
		l.counts = make(map[string]int)
		l.reset = now.Add(l.window)
	}

	l.counts[key]++
	return l.counts[key] <= l.max
}

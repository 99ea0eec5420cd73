package handlers

import (
	"log/slog"
	"time"

	"postfeed/internal/observability"
	redispkg "postfeed/pkg/redis"

	"github.com/gofiber/fiber/v2"
)

// HealthHandlers answers liveness probes, caching the body in Redis when
// one is attached.
type HealthHandlers struct {
	Redis redispkg.RedisClient
}

const healthKey = "health"

var healthResponse = []byte(`{"status":"ok","service":"postfeed"}`)

func (h *HealthHandlers) Health(c *fiber.Ctx) error {
	ctx := c.UserContext()
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	if h.Redis != nil {
		if cached, err := h.Redis.Get(ctx, healthKey); err == nil {
			return c.SendString(cached)
		}
		// set cache best-effort
		if err := h.Redis.Set(ctx, healthKey, string(healthResponse), 5*time.Second); err != nil {
			observability.Logger.WarnContext(ctx, "health cache write failed", slog.String("error", err.Error()))
		}
	}

	return c.Send(healthResponse)
}

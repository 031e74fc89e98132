package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/flash-sale/internal/breaker"
)

// HealthHandler reports liveness of the stores the request path depends
// on.  The publish breaker state is informational only: an open breaker
// means admissions bypass the buffer, not that the service is down.
type HealthHandler struct {
	DB      *sql.DB
	Redis   redis.UniversalClient
	Breaker *breaker.Breaker
}

// Health handles GET /healthz.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := echo.Map{}
	if h.DB != nil {
		checks["mysql"] = "ok"
		if err := h.DB.PingContext(ctx); err != nil {
			checks["mysql"] = "down"
			status = http.StatusServiceUnavailable
		}
	}
	if h.Redis != nil {
		checks["redis"] = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "down"
			status = http.StatusServiceUnavailable
		}
	}
	if h.Breaker != nil {
		checks["buffer_breaker"] = h.Breaker.State().String()
	}
	return c.JSON(status, envelope{Success: status == http.StatusOK, Data: checks})
}

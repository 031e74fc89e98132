package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/flash-sale/internal/service"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c echo.Context, data any, msg string) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Data: data, Message: msg})
}

func fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, envelope{Success: false, Error: code, Message: msg})
}

// writeError maps service errors to HTTP responses.  Anything unexpected is
// logged with its cause and reported as a generic 500.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	var ne *service.NotEligibleError
	switch {
	case errors.As(err, &ne):
		msg := "token is not eligible to purchase yet"
		if ne.Expired {
			msg = "queue token expired, please enter the queue again"
		}
		return c.JSON(http.StatusConflict, envelope{
			Success: false,
			Error:   "not_eligible",
			Message: msg,
			Data:    echo.Map{"position": ne.Position, "expired": ne.Expired},
		})
	case errors.Is(err, service.ErrInvalidInput):
		return fail(c, http.StatusBadRequest, "bad_request", "invalid request")
	case errors.Is(err, service.ErrInvalidQuantity):
		return fail(c, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, service.ErrResourceNotFound):
		return fail(c, http.StatusNotFound, "not_found", "product not found")
	case errors.Is(err, service.ErrInsufficientStock):
		return fail(c, http.StatusConflict, "sold_out", "not enough stock left")
	case errors.Is(err, service.ErrQueueFull):
		c.Response().Header().Set("Retry-After", "5")
		return fail(c, http.StatusTooManyRequests, "queue_full", "the queue is full, please try again shortly")
	case errors.Is(err, service.ErrStoreUnavailable):
		log.Error("admission store unavailable", zap.String("path", c.Path()), zap.Error(err))
		return fail(c, http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable")
	default:
		log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

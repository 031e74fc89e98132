package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	// SessionHeader carries the anonymous buyer session.
	SessionHeader = "X-Session-Id"
	// DefaultSession is used when the header is absent.
	DefaultSession = "demo-session"

	sessionKey       = "session_id"
	maxSessionLength = 128
)

// Session reads the buyer session from SessionHeader and stores it in the
// context.  Sessions are not authenticated; the queue token is what proves
// a buyer's place.
func Session() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sid := strings.TrimSpace(c.Request().Header.Get(SessionHeader))
			if sid == "" {
				sid = DefaultSession
			}
			if len(sid) > maxSessionLength {
				return deny(c, http.StatusBadRequest, "bad_request", "session id too long")
			}
			c.Set(sessionKey, sid)
			return next(c)
		}
	}
}

// SessionID returns the session stored by Session, or DefaultSession.
func SessionID(c echo.Context) string {
	if s, ok := c.Get(sessionKey).(string); ok && s != "" {
		return s
	}
	return DefaultSession
}

// deny writes the API error envelope.
func deny(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "error": code, "message": msg})
}

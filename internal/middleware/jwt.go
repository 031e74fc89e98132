package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
    "github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role claims into the request context as
// "subject" and "role".  The provided secret must match the one used when
// issuing tokens.  Only the admin sale toggles sit behind it; buyers are
// identified by session and queue token instead.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return deny(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            // Only HMAC-signed tokens are accepted.
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            }, jwt.WithExpirationRequired())
            if err != nil || !tok.Valid {
                return deny(c, http.StatusUnauthorized, "unauthorized", "invalid token")
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return deny(c, http.StatusUnauthorized, "unauthorized", "invalid claims")
            }
            c.Set("subject", claims["sub"])
            c.Set("role", claims["role"])
            return next(c)
        }
    }
}

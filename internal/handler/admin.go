package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flash-sale/internal/config"
	"github.com/iliyamo/flash-sale/internal/utils"
)

// RoleAdmin is the only role issued by this service.
const RoleAdmin = "ADMIN"

// AdminHandler issues access tokens for the operator account that toggles
// the sale.  There is a single account configured through the environment.
type AdminHandler struct {
	Cfg config.Config
}

func NewAdminHandler(cfg config.Config) *AdminHandler {
	return &AdminHandler{Cfg: cfg}
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Login handles POST /api/admin/login.
func (h *AdminHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "bad_request", "invalid body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "bad_request", "username/password required")
	}
	if h.Cfg.AdminPasswordHash == "" {
		return fail(c, http.StatusForbidden, "forbidden", "admin login disabled")
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.Cfg.AdminUser)) == 1
	if !utils.VerifyPassword(h.Cfg.AdminPasswordHash, req.Password) || !userOK {
		return fail(c, http.StatusUnauthorized, "unauthorized", "invalid credentials")
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, req.Username, RoleAdmin, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "internal_error", "issue access failed")
	}
	return ok(c, tokenResp{Token: access.Token, Expires: access.Exp}, "")
}

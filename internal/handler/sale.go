package handler

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/flash-sale/internal/service"
)

// SaleHandler reads and toggles the sale flag.  Start and End are mounted
// behind the admin JWT.
type SaleHandler struct {
	Sale *service.SaleStateService
	Log  *zap.Logger
}

func NewSaleHandler(sale *service.SaleStateService, log *zap.Logger) *SaleHandler {
	return &SaleHandler{Sale: sale, Log: log}
}

// Status handles GET /api/sale/status.
func (h *SaleHandler) Status(c echo.Context) error {
	return ok(c, echo.Map{"sale_active": h.Sale.IsActive(c.Request().Context())}, "")
}

// Start handles POST /api/sale/start.
func (h *SaleHandler) Start(c echo.Context) error {
	if err := h.Sale.Start(c.Request().Context()); err != nil {
		return writeError(c, h.Log, err)
	}
	return ok(c, echo.Map{"sale_active": true}, "sale started")
}

// End handles POST /api/sale/end.
func (h *SaleHandler) End(c echo.Context) error {
	if err := h.Sale.End(c.Request().Context()); err != nil {
		return writeError(c, h.Log, err)
	}
	return ok(c, echo.Map{"sale_active": false}, "sale ended")
}

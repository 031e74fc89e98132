package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/flash-sale/internal/middleware"
	"github.com/iliyamo/flash-sale/internal/service"
)

// PurchaseHandler exposes the reservation transaction.
type PurchaseHandler struct {
	Purchases *service.PurchaseService
	Log       *zap.Logger
}

func NewPurchaseHandler(purchases *service.PurchaseService, log *zap.Logger) *PurchaseHandler {
	if purchases == nil {
		panic("nil purchase service passed to NewPurchaseHandler")
	}
	return &PurchaseHandler{Purchases: purchases, Log: log}
}

type purchaseReq struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Token     string `json:"token"`
}

// Purchase handles POST /api/purchase.  The price is always computed
// server side; the body carries no price.
func (h *PurchaseHandler) Purchase(c echo.Context) error {
	var req purchaseReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "bad_request", "invalid body")
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.ProductID == 0 || req.Token == "" {
		return fail(c, http.StatusBadRequest, "bad_request", "product_id and token are required")
	}
	res, err := h.Purchases.Purchase(c.Request().Context(), service.PurchaseInput{
		SessionID: middleware.SessionID(c),
		Token:     req.Token,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return ok(c, res, "purchase completed")
}

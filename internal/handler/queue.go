package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/flash-sale/internal/middleware"
	"github.com/iliyamo/flash-sale/internal/service"
)

// QueueHandler serves queue entry and status polling.
type QueueHandler struct {
	Admission *service.AdmissionService
	Log       *zap.Logger
}

func NewQueueHandler(admission *service.AdmissionService, log *zap.Logger) *QueueHandler {
	if admission == nil {
		panic("nil admission service passed to NewQueueHandler")
	}
	return &QueueHandler{Admission: admission, Log: log}
}

type enterReq struct {
	ProductID uint64 `json:"product_id"`
}

// Enter handles POST /api/queue/enter.
func (h *QueueHandler) Enter(c echo.Context) error {
	var req enterReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "bad_request", "invalid body")
	}
	if req.ProductID == 0 {
		return fail(c, http.StatusBadRequest, "bad_request", "product_id is required")
	}
	entry, err := h.Admission.EnterQueue(c.Request().Context(), middleware.SessionID(c), req.ProductID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return ok(c, entry, fmt.Sprintf("you are number %d in the queue", entry.Position))
}

// Status handles GET /api/queue/status?product_id=&token=.
func (h *QueueHandler) Status(c echo.Context) error {
	productID, err := strconv.ParseUint(c.QueryParam("product_id"), 10, 64)
	if err != nil || productID == 0 {
		return fail(c, http.StatusBadRequest, "bad_request", "invalid product_id")
	}
	token := strings.TrimSpace(c.QueryParam("token"))
	if token == "" {
		return fail(c, http.StatusBadRequest, "bad_request", "token is required")
	}
	st, err := h.Admission.QueueStatus(c.Request().Context(), middleware.SessionID(c), token, productID)
	if err != nil {
		return writeError(c, h.Log, err)
	}

	var msg string
	switch {
	case st.CanPurchase:
		msg = "you can purchase now"
	case st.Expired:
		msg = "queue token expired, please enter the queue again"
	default:
		msg = fmt.Sprintf("you are number %d, estimated wait %ds", st.Position, st.EstimatedWait)
	}
	return ok(c, st, msg)
}

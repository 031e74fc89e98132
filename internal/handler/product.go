package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/flash-sale/internal/repository"
	"github.com/iliyamo/flash-sale/internal/service"
)

// ProductHandler serves the read-only catalog.
type ProductHandler struct {
	Products *service.ProductService
	Log      *zap.Logger
}

func NewProductHandler(products *service.ProductService, log *zap.Logger) *ProductHandler {
	return &ProductHandler{Products: products, Log: log}
}

// List handles GET /api/products.
func (h *ProductHandler) List(c echo.Context) error {
	views, err := h.Products.List(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return ok(c, views, "")
}

// Get handles GET /api/products/:id.
func (h *ProductHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return fail(c, http.StatusBadRequest, "bad_request", "invalid product id")
	}
	view, err := h.Products.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return ok(c, view, "")
}

// Search handles GET /api/products/search?q=&category=&in_stock=&page=&page_size=.
func (h *ProductHandler) Search(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	ps, _ := strconv.Atoi(c.QueryParam("page_size"))
	if ps < 1 {
		ps = 20
	}
	if ps > 100 {
		ps = 100
	}
	inStock, _ := strconv.ParseBool(c.QueryParam("in_stock"))

	res, err := h.Products.Search(c.Request().Context(), repository.ProductSearchQuery{
		Name:        strings.TrimSpace(c.QueryParam("q")),
		Category:    strings.TrimSpace(c.QueryParam("category")),
		InStockOnly: inStock,
		Page:        page,
		PageSize:    ps,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return ok(c, res, "")
}

package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/flash-sale/internal/config"
	"github.com/iliyamo/flash-sale/internal/handler"
	"github.com/iliyamo/flash-sale/internal/middleware"
)

// Handlers bundles every HTTP handler the API exposes.
type Handlers struct {
	Health   *handler.HealthHandler
	Queue    *handler.QueueHandler
	Purchase *handler.PurchaseHandler
	Product  *handler.ProductHandler
	Sale     *handler.SaleHandler
	Admin    *handler.AdminHandler
}

// Options carries the middleware settings for Register.
type Options struct {
	JWTSecret string
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Redis     redis.UniversalClient
	Log       *zap.Logger
}

// Register mounts all routes.  Every /api route resolves the buyer session
// first.  Queue entry is rate limited per client, the catalog is served
// through the Redis response cache, and the sale toggles require an admin
// JWT.
func Register(e *echo.Echo, h Handlers, opt Options) {
	e.GET("/healthz", h.Health.Health)

	api := e.Group("/api", middleware.Session())

	// ---- Queue ----
	api.POST("/queue/enter", h.Queue.Enter, middleware.NewTokenBucket(opt.RateLimit, opt.Redis, opt.Log))
	api.GET("/queue/status", h.Queue.Status)

	// ---- Purchase ----
	api.POST("/purchase", h.Purchase.Purchase)

	// ---- Catalog ----
	cache := middleware.NewRedisCache(opt.Cache, opt.Redis, opt.Log)
	api.GET("/products", h.Product.List, cache)
	api.GET("/products/search", h.Product.Search, cache)
	api.GET("/products/:id", h.Product.Get, cache)

	// ---- Sale ----
	api.GET("/sale/status", h.Sale.Status)
	adminOnly := []echo.MiddlewareFunc{middleware.JWTAuth(opt.JWTSecret), middleware.RequireRole(handler.RoleAdmin)}
	api.POST("/sale/start", h.Sale.Start, adminOnly...)
	api.POST("/sale/end", h.Sale.End, adminOnly...)

	api.POST("/admin/login", h.Admin.Login)
}

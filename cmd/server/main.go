package main // Entry point package

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/flash-sale/internal/config"
	"github.com/iliyamo/flash-sale/internal/database"
	"github.com/iliyamo/flash-sale/internal/handler"
	"github.com/iliyamo/flash-sale/internal/logging"
	"github.com/iliyamo/flash-sale/internal/queue"
	"github.com/iliyamo/flash-sale/internal/repository"
	"github.com/iliyamo/flash-sale/internal/router"
	"github.com/iliyamo/flash-sale/internal/service"
	"github.com/iliyamo/flash-sale/internal/utils"
	"github.com/iliyamo/flash-sale/internal/waitroom"
)

func main() {
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash for ADMIN_PASSWORD_HASH and exit")
	flag.Parse()
	if *hashPassword != "" {
		h, err := utils.HashPassword(*hashPassword, utils.AdminHashCost)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(h)
		return
	}

	// A missing .env is fine; real deployments use the process environment.
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	qcfg := config.LoadQueueConfig()
	rcfg := config.LoadRabbitConfig()

	// ---- Storage ----
	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	products := repository.NewProductRepo(db)
	orders := repository.NewOrderRepo(db)
	if cfg.SeedDemoData {
		n, err := database.SeedDemoData(ctx, products)
		if err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		logger.Info("demo data seeded", zap.Int("products", n))
	}

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()
	store := waitroom.NewRedisStore(rdb)

	// ---- Ingestion buffer ----
	publisher := queue.NewPublisher(rcfg, logger)
	defer publisher.Close()
	consumer := queue.NewConsumer(rcfg, store, logger)

	// ---- Services ----
	cacheCfg := config.LoadCacheConfig()
	sale := service.NewSaleStateService(rdb, cacheCfg.Prefix, logger)
	admission := service.NewAdmissionService(qcfg, store, publisher, logger)
	purchases := service.NewPurchaseService(products, orders, admission, store, sale, logger)
	scheduler := service.NewScheduler(qcfg, store, logger)
	expirer := service.NewExpirer(qcfg, store, logger)

	workers, cancelWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); _ = consumer.Run(workers) }()
	go func() { defer wg.Done(); scheduler.Run(workers) }()
	go func() { defer wg.Done(); expirer.Run(workers) }()

	// ---- HTTP ----
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Debug("request", zap.String("method", v.Method), zap.String("uri", v.URI), zap.Int("status", v.Status))
			return nil
		},
	}))
	router.Register(e, router.Handlers{
		Health:   &handler.HealthHandler{DB: db, Redis: rdb, Breaker: admission.Breaker()},
		Queue:    handler.NewQueueHandler(admission, logger),
		Purchase: handler.NewPurchaseHandler(purchases, logger),
		Product:  handler.NewProductHandler(service.NewProductService(products, sale), logger),
		Sale:     handler.NewSaleHandler(sale, logger),
		Admin:    handler.NewAdminHandler(cfg),
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     cacheCfg,
		Redis:     rdb,
		Log:       logger,
	})

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errc:
		logger.Error("http server failed", zap.Error(err))
	}

	// Stop taking requests first, then stop the background loops so the
	// last admitted entries are still consumed.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if serr := e.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("http shutdown", zap.Error(serr))
	}
	cancelWorkers()
	wg.Wait()
	return err
}

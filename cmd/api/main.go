package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ferretex/ferretex-api/internal/auth"
	"github.com/ferretex/ferretex-api/internal/catalog"
	"github.com/ferretex/ferretex-api/internal/config"
	"github.com/ferretex/ferretex-api/internal/httpx"
	"github.com/ferretex/ferretex-api/internal/inventory"
	kafkax "github.com/ferretex/ferretex-api/internal/kafka"
	"github.com/ferretex/ferretex-api/internal/orders"
	"github.com/ferretex/ferretex-api/internal/postgres"
	"github.com/ferretex/ferretex-api/internal/redisx"
	"github.com/ferretex/ferretex-api/internal/sweeper"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, logger)
	prod.Start(ctx)

	// Core wiring
	cache := &catalog.Cache{RDB: rdb, TTL: cfg.CatalogCacheTTL, Logger: logger}
	engine := &orders.Engine{
		Store:          &orders.PGStore{DB: db},
		Cache:          cache,
		Events:         prod,
		Logger:         logger,
		Service:        cfg.ServiceName,
		ReservationTTL: cfg.ReservationTTL,
	}

	secret := []byte(cfg.JWTSecret)
	router := httpx.NewRouter()
	router.Route("/api", func(api chi.Router) {
		(&httpx.AuthHandler{Repo: &auth.Repo{DB: db}, Secret: secret, Logger: logger}).Register(api)
		(&httpx.ProductsHandler{Repo: &catalog.Repo{DB: db}, Cache: cache, Secret: secret, Logger: logger}).Register(api)
		(&httpx.InventoryHandler{Svc: &inventory.Service{DB: db}, Cache: cache, Secret: secret, Logger: logger}).Register(api)
		(&httpx.OrdersHandler{Engine: engine, Secret: secret, SweepLimit: cfg.SweepLimit, Logger: logger}).Register(api)
	})

	// Expiry sweeper
	sw := &sweeper.Sweeper{
		Engine:   engine,
		Interval: cfg.SweepInterval,
		Limit:    cfg.SweepLimit,
		Logger:   logger,
	}
	go sw.Run(ctx)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()          // stop sweeper and producer loop
	prod.WaitClosed() // drain pending events
}

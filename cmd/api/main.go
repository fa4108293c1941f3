package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-wholesale-orders/internal/config"
	"github.com/ariefcatur/go-wholesale-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-wholesale-orders/internal/kafka"
	"github.com/ariefcatur/go-wholesale-orders/internal/logx"
	"github.com/ariefcatur/go-wholesale-orders/internal/memstore"
	"github.com/ariefcatur/go-wholesale-orders/internal/observability"
	"github.com/ariefcatur/go-wholesale-orders/internal/orders"
	"github.com/ariefcatur/go-wholesale-orders/internal/postgres"
	"github.com/ariefcatur/go-wholesale-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logx.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}

	decimal.MarshalJSONWithoutQuotes = true

	// Store
	var store orders.Store
	switch cfg.Store {
	case "memory":
		log.Warn("using in-memory store, data is lost on exit")
		store = memstore.New()
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConn)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
		store = &postgres.Store{Pool: db, LockTimeout: cfg.LockTimeout}
	}

	svc := &orders.Service{Store: store, Log: log, Producer: cfg.ServiceName}

	// Kafka producer
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
		prod.Start(ctx)
		svc.Events = prod
	}

	// Redis
	var cache *redisx.Cache
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		cache = &redisx.Cache{RDB: rdb}
	}

	router := httpx.NewRouter(log)
	h := &httpx.Handler{Orders: svc, Cache: cache, Log: log, Timeout: cfg.RequestTimeout}
	router.Group(func(r chi.Router) {
		r.Use(httpx.RequireAPIKey(cfg.APIKey))
		h.Register(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	// Let in-flight handlers finish before the producer is closed.
	ctx2, cancel2 := context.WithTimeout(context.Background(), httpx.HandlerTimeout+5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if prod != nil {
		prod.Close() // flush queued events
		prod.WaitClosed()
	}
	_ = shutdownTracing(ctx2)
}

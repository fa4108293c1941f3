package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-wholesale-orders/internal/config"
	kafkax "github.com/ariefcatur/go-wholesale-orders/internal/kafka"
	"github.com/ariefcatur/go-wholesale-orders/internal/logx"
	"github.com/ariefcatur/go-wholesale-orders/internal/observability"
	"github.com/ariefcatur/go-wholesale-orders/internal/orders"
	"github.com/ariefcatur/go-wholesale-orders/internal/postgres"
	"github.com/ariefcatur/go-wholesale-orders/internal/redisx"
	"github.com/ariefcatur/go-wholesale-orders/internal/verifier"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logx.New(cfg.ServiceName+"-verifier", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConn)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
	}

	// The producer outlives the consumer so in-flight verdicts are flushed.
	prodCtx, cancelProd := context.WithCancel(context.Background())
	defer cancelProd()
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(prodCtx)

	svc := &verifier.Service{
		Orders: &orders.Service{
			Store:    &postgres.Store{Pool: db, LockTimeout: cfg.LockTimeout},
			Log:      log,
			Producer: cfg.ServiceName + "-verifier",
		},
		Redis:       rdb,
		Events:      prod,
		Log:         log,
		ServiceName: cfg.ServiceName + "-verifier",
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.VerifierGroup, orders.TopicRequestCreated, cfg.VerifierWorkers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("verifier consumer started",
			zap.String("group", cfg.VerifierGroup),
			zap.String("topic", orders.TopicRequestCreated),
			zap.Int("workers", cfg.VerifierWorkers))
		if err := cons.Start(ctx, svc.HandleRequestCreated); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer...")
	cancel()
	<-done
	prod.Close()
	prod.WaitClosed()
}

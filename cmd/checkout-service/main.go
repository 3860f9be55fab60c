package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	checkoutapp "github.com/dmehra2102/storefront-checkout/internal/checkout/application"
	checkouthttp "github.com/dmehra2102/storefront-checkout/internal/checkout/infrastructure/http"
	invapp "github.com/dmehra2102/storefront-checkout/internal/inventory/application"
	invgrpc "github.com/dmehra2102/storefront-checkout/internal/inventory/infrastructure/grpc"
	invpg "github.com/dmehra2102/storefront-checkout/internal/inventory/infrastructure/postgres"
	payapp "github.com/dmehra2102/storefront-checkout/internal/payment/application"
	"github.com/dmehra2102/storefront-checkout/internal/platform/kafka"
	"github.com/dmehra2102/storefront-checkout/internal/platform/postgres"
	"github.com/dmehra2102/storefront-checkout/internal/platform/redis"
	reconapp "github.com/dmehra2102/storefront-checkout/internal/reconciliation/application"
	reconkafka "github.com/dmehra2102/storefront-checkout/internal/reconciliation/infrastructure/kafka"
	txapp "github.com/dmehra2102/storefront-checkout/internal/transaction/application"
	txpg "github.com/dmehra2102/storefront-checkout/internal/transaction/infrastructure/postgres"
	txredis "github.com/dmehra2102/storefront-checkout/internal/transaction/infrastructure/redis"
	"github.com/dmehra2102/storefront-checkout/pkg/config"
	"github.com/dmehra2102/storefront-checkout/pkg/idempotency"
	"github.com/dmehra2102/storefront-checkout/pkg/logging"
	"github.com/dmehra2102/storefront-checkout/pkg/metrics"
	"github.com/dmehra2102/storefront-checkout/pkg/outbox"
	"github.com/dmehra2102/storefront-checkout/pkg/shutdown"
	"github.com/dmehra2102/storefront-checkout/pkg/tracing"
)

func main() {
	cfg := config.Load()
	log := logging.NewWithLevel(cfg.LogLevel)

	gw, err := newGateway(log, cfg.Gateway)
	if err != nil {
		log.Error("gateway config invalid", "err", err)
		os.Exit(1)
	}

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.ServiceName, cfg.TracingURL, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Postgres
	pool, err := postgres.Connect(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Error("pg migrate failed", "err", err)
		os.Exit(1)
	}

	// Redis
	rdb, err := redis.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		log.Error("redis connect failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, cfg.IdempotencyTTL)

	// Inventory ledger, served over gRPC. Checkout uses a remote ledger when
	// INVENTORY_GRPC_ADDR is set.
	ledger := invapp.NewLedger(log, invpg.NewRepository(log, pool))
	gs, err := invgrpc.Run(cfg.GRPCAddr, invgrpc.NewServer(log, ledger))
	if err != nil {
		log.Error("grpc server failed", "err", err)
		os.Exit(1)
	}
	defer gs.GracefulStop()

	var inv checkoutapp.Inventory = ledger
	if cfg.InventoryGRPCAddr != "" {
		client, conn, err := invgrpc.NewLedgerClient(log, cfg.InventoryGRPCAddr)
		if err != nil {
			log.Error("inventory client failed", "err", err)
			os.Exit(1)
		}
		defer conn.Close()
		inv = client
		log.Info("using remote inventory ledger", "addr", cfg.InventoryGRPCAddr)
	}

	// Transactions
	store := txapp.NewStore(log, txpg.NewRepository(log, pool), txredis.NewCache(rdb, cfg.StatusCacheTTL))

	// Payment gateway
	log.Info("payment gateway selected", "mode", cfg.Gateway.Mode)
	payments := payapp.NewAdapter(log, gw, m, cfg.Gateway.Currency, cfg.Gateway.PollInterval)

	// Outbox relay
	outboxStore := postgres.NewOutboxStore(log, pool)
	writer := kafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()
	dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic).WithObserver(m)
	relay := outbox.NewRelay(log, outboxStore, dispatch, cfg.ServiceName+"-relay")

	svc := checkoutapp.NewService(log, inv, store, payments, outboxStore, m, cfg.AuthorizeTimeout)
	handler := checkouthttp.NewHandler(log, svc, idempotency.Middleware(log, idem, "checkout"), m.Handler())

	// Reconciliation
	recon := reconapp.NewService(log, inv, store, m)
	consumer := reconkafka.NewConsumer(log, reconkafka.NewReader(cfg.KafkaBrokers, cfg.OutboxTopic, cfg.ConsumerGroup), recon, idem)

	// HTTP server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.AuthorizeTimeout + 10*time.Second,
	}

	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("consumer stopped with error", "err", err)
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("checkout-service shutdown complete")
}

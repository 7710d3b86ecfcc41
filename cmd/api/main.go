package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wasel-app/settlement-engine/internal/config"
	"github.com/wasel-app/settlement-engine/internal/docgen"
	"github.com/wasel-app/settlement-engine/internal/events"
	"github.com/wasel-app/settlement-engine/internal/handler"
	"github.com/wasel-app/settlement-engine/internal/ledger"
	"github.com/wasel-app/settlement-engine/internal/logging"
	"github.com/wasel-app/settlement-engine/internal/middleware"
	"github.com/wasel-app/settlement-engine/internal/repository"
	"github.com/wasel-app/settlement-engine/internal/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("settlement-api", cfg.LogLevel, cfg.AppEnv)

	db, err := connectDB(cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	actorRepo := repository.NewActorRepository(db)
	factRepo := repository.NewOrderFactRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	eventRepo := repository.NewSettlementEventRepository(db)
	idemRepo := repository.NewIdempotencyRepository(db)

	balances := ledger.NewService(factRepo, transferRepo, actorRepo, db)
	docs := docgen.NewClient(cfg.DocGenURL)
	settlements := settlement.NewService(transferRepo, actorRepo, snapshotRepo, eventRepo, balances, docs, db)

	dispatcher := events.NewDispatcher(eventRepo, cfg.EventSinkURL, logger, time.Duration(cfg.EventPollSeconds)*time.Second)
	dispatchCtx, stopDispatcher := context.WithCancel(context.Background())
	go dispatcher.Start(dispatchCtx)

	transferHandler := handler.NewTransferHandler(settlements)
	balanceHandler := handler.NewBalanceHandler(balances)
	snapshotHandler := handler.NewSnapshotHandler(settlements)
	orderFactHandler := handler.NewOrderFactHandler(factRepo)
	healthHandler := handler.NewHealthHandler(db)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/transfers", transferHandler.Submit)
	api.HandleFunc("GET /api/v1/transfers", transferHandler.List)
	api.HandleFunc("GET /api/v1/transfers/{id}", transferHandler.Get)
	api.HandleFunc("POST /api/v1/transfers/{id}/acknowledge", transferHandler.Acknowledge)
	api.HandleFunc("POST /api/v1/transfers/{id}/decide", transferHandler.Decide)
	api.HandleFunc("GET /api/v1/actors/{id}/balance", balanceHandler.Get)
	api.HandleFunc("GET /api/v1/snapshots/{id}", snapshotHandler.Get)
	api.HandleFunc("POST /api/v1/snapshots/{id}/render", snapshotHandler.Render)
	api.HandleFunc("POST /api/v1/order-facts", orderFactHandler.Create)

	protected := middleware.Auth(cfg.JWTSecret)(middleware.Idempotency(idemRepo)(api))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/api/v1/", protected)

	root := middleware.Tracing(middleware.Logging(middleware.Recovery(middleware.Metrics(mux)(mux))))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	stopDispatcher()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func connectDB(dsn string, pool repository.PoolConfig) (*sql.DB, error) {
	var db *sql.DB
	var err error

	for i := range 30 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		db, err = repository.NewPostgresDB(ctx, dsn, pool)
		cancel()
		if err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}

	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}

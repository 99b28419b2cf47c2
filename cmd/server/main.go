// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dukastore/config"
	"dukastore/internal/handler"
	"dukastore/internal/provider/mpesa"
	"dukastore/internal/repository"
	"dukastore/internal/router"
	"dukastore/internal/sub"
	"dukastore/internal/usecase"
	"dukastore/pkg/client"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("starting payment orchestrator")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Server.Env),
		zap.String("port", cfg.Server.Port))

	// Connect to database
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	logger.Info("connected to database",
		zap.String("database", cfg.Database.DBName))

	// Connect to redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}

	logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	// Initialize repositories
	ledger := repository.NewTransactionLedger(dbPool)
	orderStore := repository.NewOrderStore(dbPool)

	// Initialize provider
	gateway := mpesa.NewClient(cfg.Mpesa, logger)

	// Initialize store clients
	fulfillmentClient := client.NewFulfillmentClient(
		cfg.Store.FulfillmentURL, cfg.Store.APIKey, cfg.Store.APISecret, logger)
	confirmationClient := client.NewConfirmationClient(
		cfg.Store.ConfirmationURL, cfg.Store.APIKey, cfg.Store.APISecret, logger)

	// Websocket hub and redis event fanout
	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()

	hub := handler.NewHub(logger)
	go hub.Run(hubCtx)

	publisher := sub.NewPaymentEventPublisher(rdb, logger)
	subscriber := sub.NewPaymentEventSubscriber(rdb, hub, logger)
	if err := subscriber.Start(hubCtx); err != nil {
		logger.Fatal("failed to start event subscriber", zap.Error(err))
	}
	defer subscriber.Stop()

	// Initialize usecases
	reconcileUC := usecase.NewReconcileUsecase(
		ledger,
		orderStore,
		fulfillmentClient,
		confirmationClient,
		publisher,
		logger,
	)

	initiateUC := usecase.NewInitiateUsecase(
		ledger,
		orderStore,
		gateway,
		cfg.Initiator.Retries,
		cfg.Initiator.Backoff,
		logger,
	)

	statusUC := usecase.NewStatusUsecase(
		ledger,
		gateway,
		reconcileUC,
		cfg.Poller.Attempts,
		cfg.Poller.Delay,
		logger,
	)

	callbackUC := usecase.NewCallbackUsecase(ledger, reconcileUC, logger)

	// Initialize handlers
	paymentHandler := handler.NewPaymentHandler(initiateUC, statusUC, ledger, hub, logger)
	callbackHandler := handler.NewCallbackHandler(callbackUC, logger)

	// The status poll endpoint blocks for up to the full poll budget before
	// writing; both timeouts must outlive it or the exhaustion resolution
	// never reaches the caller.
	requestTimeout := cfg.Poller.Budget() + 30*time.Second

	// Setup routes
	r := router.SetupRoutes(paymentHandler, callbackHandler, requestTimeout, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	logger.Info("payment orchestrator started successfully",
		zap.String("port", cfg.Server.Port),
		zap.String("environment", cfg.Server.Env))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	cancelHub()
	logger.Info("server stopped")
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/snapsticker/backend/internal/auth"
	"github.com/snapsticker/backend/internal/config"
	"github.com/snapsticker/backend/internal/execution"
	"github.com/snapsticker/backend/internal/generation"
	"github.com/snapsticker/backend/internal/handlers"
	"github.com/snapsticker/backend/internal/ledger"
	"github.com/snapsticker/backend/internal/models"
	"github.com/snapsticker/backend/internal/monitoring"
	"github.com/snapsticker/backend/internal/purchases"
	"github.com/snapsticker/backend/internal/router"
	"github.com/snapsticker/backend/internal/stickers"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	retryOpts := cfg.RetryOptions()

	// Ledger
	ledgerRepo := ledger.NewRepository(pool)
	ledgerSvc := ledger.NewService(ledgerRepo, cfg.SignupGrant)

	// Purchases
	purchaseRepo := purchases.NewRepository(pool)
	purchaseSvc := purchases.NewService(map[models.Platform]purchases.ReceiptValidator{
		models.PlatformIOS:     purchases.NewAppStoreValidator(cfg.AppStoreVerifyURL),
		models.PlatformAndroid: purchases.NewPlayStoreValidator(cfg.PlayVerifyURL, cfg.PlayPackageName),
	}, purchaseRepo, ledgerSvc, retryOpts, logger)

	// Generation
	generator := generation.NewHTTPGenerator(cfg.AIEndpoint, cfg.AIAPIKey)
	sink := monitoring.NewSlogSink(logger)
	generationSvc := generation.NewService(ledgerSvc, generator, sink, cfg.GenerationCost, retryOpts, logger)

	// Stickers: insert func is set after the River client is created (breaks init cycle)
	var insertMu sync.Mutex
	var insertFn stickers.InsertGenerateTxFunc
	insertGenerate := func(ctx context.Context, tx pgx.Tx, args execution.GenerateStickerJobArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args)
	}

	stickersRepo := stickers.NewRepository(pool)
	stickersSvc := stickers.NewService(stickersRepo, insertGenerate)

	// Generation worker (reports outcomes via stickersSvc)
	workers := river.NewWorkers()
	river.AddWorker(workers, execution.NewGenerateStickerWorker(generationSvc, stickersSvc, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.MaxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args execution.GenerateStickerJobArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	insertMu.Unlock()

	// Auth & handlers
	authSvc := auth.NewService(ledgerSvc, cfg.JWTSecret)
	authHandler := auth.NewHandler(authSvc, logger)
	stickerHandler := handlers.NewStickerHandler(stickersSvc, logger)
	purchaseHandler := handlers.NewPurchaseHandler(purchaseSvc, logger)
	creditsHandler := handlers.NewCreditsHandler(ledgerSvc, logger)

	apiRouter := router.New(authHandler, stickerHandler, purchaseHandler, creditsHandler, authSvc)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	// Start River client (processes generation jobs)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}

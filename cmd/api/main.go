package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/quiflix/backend/internal/applications"
	"github.com/quiflix/backend/internal/auth"
	"github.com/quiflix/backend/internal/chain"
	"github.com/quiflix/backend/internal/config"
	"github.com/quiflix/backend/internal/payout"
	"github.com/quiflix/backend/internal/repository"
	"github.com/quiflix/backend/internal/services"
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
	pool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. make dev-up or docker-compose up -d", "error", err)
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
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first (e.g. make dev-up)", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Ledger-schema repositories
	filmRepo := repository.NewFilmRepo(pool)
	distributorRepo := repository.NewDistributorRepo(pool)
	holdingRepo := repository.NewHoldingRepo(pool)
	saleRepo := repository.NewSaleRepo(pool)
	payoutRepo := repository.NewPayoutRepo(pool)
	withdrawalRepo := repository.NewWithdrawalRepo(pool)

	// Mobile-money processor client
	processor, err := payout.NewHTTPClient(
		cfg.ProcessorURL,
		cfg.ProcessorAPIKey,
		time.Duration(cfg.ProcessorTimeoutSecs)*time.Second,
		logger,
	)
	if err != nil {
		slog.Error("Failed to create processor client", "error", err)
		os.Exit(1)
	}

	// On-chain mirroring is optional; sales work without it.
	var mirror *chain.EthMirror
	if cfg.ChainEnabled() {
		dialCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ChainTimeoutSecs)*time.Second)
		mirror, err = chain.Dial(dialCtx, cfg.ChainRPCURL, cfg.ChainContract, cfg.ChainPrivateKey, cfg.ChainID, logger)
		cancel()
		if err != nil {
			slog.Error("Failed to connect to chain RPC", "error", err)
			os.Exit(1)
		}
		defer mirror.Close()
		slog.Info("Chain mirroring enabled", "contract", cfg.ChainContract)
	} else {
		slog.Info("Chain mirroring disabled (CHAIN_RPC_URL not set)")
	}

	// Workers: insert funcs are set after the River client is created
	// (breaks the init cycle).
	var insertMu sync.Mutex
	var insertCheckFn payout.EnqueueCheckFunc
	enqueueCheck := func(ctx context.Context, withdrawalID uuid.UUID, delay time.Duration) error {
		insertMu.Lock()
		fn := insertCheckFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, withdrawalID, delay)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, payout.NewSubmitPayoutWorker(withdrawalRepo, processor, enqueueCheck, logger))
	river.AddWorker(workers, payout.NewCheckPayoutWorker(withdrawalRepo, processor, logger))
	if mirror != nil {
		river.AddWorker(workers, chain.NewMirrorSaleWorker(saleRepo, mirror, logger))
	}

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertCheckFn = func(ctx context.Context, withdrawalID uuid.UUID, delay time.Duration) error {
		_, err := riverClient.Insert(ctx, payout.CheckPayoutJobArgs{WithdrawalID: withdrawalID}, &river.InsertOpts{
			ScheduledAt: time.Now().Add(delay),
		})
		return err
	}
	insertMu.Unlock()

	enqueueSubmit := func(ctx context.Context, tx pgx.Tx, withdrawalID uuid.UUID) error {
		_, err := riverClient.InsertTx(ctx, tx, payout.SubmitPayoutJobArgs{WithdrawalID: withdrawalID}, nil)
		return err
	}
	var enqueueMirror services.EnqueueMirrorTxFunc
	if mirror != nil {
		enqueueMirror = func(ctx context.Context, tx pgx.Tx, saleID uuid.UUID) error {
			_, err := riverClient.InsertTx(ctx, tx, chain.MirrorSaleJobArgs{SaleID: saleID}, nil)
			return err
		}
	}

	// Auth & role applications
	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.JWTSecret)
	authHandler := auth.NewHandler(authSvc, logger)

	appsRepo := applications.NewRepository(pool)
	appsSvc := &applications.Service{
		Store:        appsRepo,
		Films:        filmRepo,
		Distributors: distributorRepo,
		Currency:     cfg.Currency,
		Logger:       logger,
	}
	appsHandler := applications.NewHandler(appsSvc, logger)

	// Revenue services
	recorder := &services.SaleRecorder{
		DB:            pool,
		Films:         filmRepo,
		Sales:         saleRepo,
		Payouts:       payoutRepo,
		Holdings:      holdingRepo,
		Policy:        cfg.Split,
		Currency:      cfg.Currency,
		EnqueueMirror: enqueueMirror,
		Logger:        logger,
	}
	ledger := &services.BalanceLedger{
		Payouts:     payoutRepo,
		Withdrawals: withdrawalRepo,
		Currency:    cfg.Currency,
	}
	withdrawals := &services.WithdrawalService{
		Store:         withdrawalRepo,
		Ledger:        ledger,
		Rate:          cfg.PayoutRate,
		EnqueueSubmit: enqueueSubmit,
		Logger:        logger,
	}
	referrals := &services.ReferralService{
		Holdings:     holdingRepo,
		Distributors: distributorRepo,
		BaseURL:      cfg.AppBaseURL,
		Logger:       logger,
	}

	mux := http.NewServeMux()
	RegisterV1Routes(mux, cfg, authSvc, authHandler, appsHandler,
		recorder, ledger, withdrawals, referrals,
		filmRepo, holdingRepo, logger)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
	}).Handler(mux)

	// Start River client (processes payout and mirror jobs)
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

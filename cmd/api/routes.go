package main

import (
	"log/slog"
	"net/http"

	"github.com/quiflix/backend/internal/applications"
	"github.com/quiflix/backend/internal/auth"
	"github.com/quiflix/backend/internal/config"
	"github.com/quiflix/backend/internal/handlers"
	"github.com/quiflix/backend/internal/middleware"
	"github.com/quiflix/backend/internal/repository"
	"github.com/quiflix/backend/internal/services"
)

// RegisterV1Routes adds the /v1/ API endpoints to the given mux.
// Middleware chain: JWTAuth -> (RequireAdmin on admin routes) -> handler.
// Payment and processor webhooks are unauthenticated; they carry their own
// idempotency keys.
func RegisterV1Routes(
	mux *http.ServeMux,
	cfg config.Config,
	authSvc auth.Service,
	authHandler *auth.Handler,
	appsHandler *applications.Handler,
	recorder *services.SaleRecorder,
	ledger *services.BalanceLedger,
	withdrawals *services.WithdrawalService,
	referrals *services.ReferralService,
	filmRepo *repository.FilmRepo,
	holdingRepo *repository.HoldingRepo,
	logger *slog.Logger,
) {
	sh := &handlers.SaleHandler{
		Recorder:  recorder,
		Referrals: referrals,
		Currency:  cfg.Currency,
		Logger:    logger,
	}
	rh := &handlers.ReferralHandler{Referrals: referrals, Logger: logger}
	bh := &handlers.BalanceHandler{Ledger: ledger, Logger: logger}
	wh := &handlers.WithdrawalHandler{Withdrawals: withdrawals, Currency: cfg.Currency, Logger: logger}
	fh := &handlers.FilmHandler{Films: filmRepo, Holdings: holdingRepo, Currency: cfg.Currency, Logger: logger}

	authed := middleware.JWTAuth(authSvc)
	admin := func(h http.Handler) http.Handler { return authed(middleware.RequireAdmin(h)) }

	// Accounts
	mux.HandleFunc("POST /v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /v1/auth/login", authHandler.Login)

	// Catalog
	mux.HandleFunc("GET /v1/films", fh.List)
	mux.Handle("PATCH /v1/films/{id}/price", admin(http.HandlerFunc(fh.UpdatePrice)))
	mux.Handle("POST /v1/holdings", admin(http.HandlerFunc(fh.GrantHolding)))

	// Sales: payment-gateway notifications, keyed by payment_ref
	mux.HandleFunc("POST /v1/sales", sh.RecordSale)
	mux.HandleFunc("POST /v1/referrals/track", sh.TrackReferral)

	// Referral links (distributors)
	mux.Handle("POST /v1/referrals", authed(http.HandlerFunc(rh.Generate)))
	mux.Handle("GET /v1/referrals", authed(http.HandlerFunc(rh.List)))

	// Balances & withdrawals
	mux.Handle("GET /v1/balance", authed(http.HandlerFunc(bh.GetBalance)))
	mux.Handle("POST /v1/withdrawals", authed(http.HandlerFunc(wh.Request)))
	mux.Handle("GET /v1/withdrawals", authed(http.HandlerFunc(wh.History)))
	mux.HandleFunc("POST /v1/payouts/callback", wh.Callback)

	// Role applications
	mux.Handle("POST /v1/applications", authed(http.HandlerFunc(appsHandler.Submit)))
	mux.Handle("GET /v1/applications", authed(http.HandlerFunc(appsHandler.ListMine)))
	mux.Handle("GET /v1/admin/applications", admin(http.HandlerFunc(appsHandler.Queue)))
	mux.Handle("PATCH /v1/admin/applications/{id}", admin(http.HandlerFunc(appsHandler.Review)))
}

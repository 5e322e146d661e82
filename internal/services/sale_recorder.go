package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quiflix/backend/internal/models"
	"github.com/quiflix/backend/internal/money"
	"github.com/quiflix/backend/internal/split"
)

// Sale recording errors.
var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrFilmNotFound  = errors.New("film not found")
	ErrInvalidBuyer  = errors.New("buyer email is required")
	ErrMissingPaymentRef = errors.New("payment reference is required")
)

// TxBeginner abstracts transaction creation so tests don't need a
// pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SaleFilmRepo is the film lookup the recorder needs.
type SaleFilmRepo interface {
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Film, error)
}

// SaleStore persists immutable sale records.
type SaleStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, s *models.Sale) error
}

// PayoutStore persists immutable payout records.
type PayoutStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.Payout) error
}

// HoldingStore applies the atomic per-holding increment.
type HoldingStore interface {
	IncrementTx(ctx context.Context, tx pgx.Tx, distributorID, filmID uuid.UUID, saleAmount, earned money.Money) error
}

// EnqueueMirrorTxFunc enqueues the on-chain mirror job within the sale
// transaction. Provided by main using river.Client.InsertTx; nil when chain
// mirroring is disabled.
type EnqueueMirrorTxFunc func(ctx context.Context, tx pgx.Tx, saleID uuid.UUID) error

// SaleRecorder records a sale, its revenue payout, and the holding increment
// as one atomic transaction. Either everything commits or nothing does:
// there is never a sale without its payout, or a payout without the holding
// increment.
type SaleRecorder struct {
	DB            TxBeginner
	Films         SaleFilmRepo
	Sales         SaleStore
	Payouts       PayoutStore
	Holdings      HoldingStore
	Policy        split.Policy
	Currency      string
	EnqueueMirror EnqueueMirrorTxFunc
	Logger        *slog.Logger
}

// RecordSaleInput is the request to record one sale. DistributorID is nil
// for organic sales.
type RecordSaleInput struct {
	FilmID        uuid.UUID
	DistributorID *uuid.UUID
	Amount        money.Money
	BuyerEmail    string
	PaymentRef    string
}

// RecordSale validates and records the sale.
//
// Preconditions: amount > 0 in the ledger currency; the film exists; if a
// distributor is attributed, a holding for (distributor, film) exists
// (repository.ErrHoldingNotFound otherwise); the payment reference has not
// been seen before (repository.ErrDuplicatePayment otherwise).
func (s *SaleRecorder) RecordSale(ctx context.Context, in RecordSaleInput) (*models.Sale, *models.Payout, error) {
	if !in.Amount.IsPositive() {
		return nil, nil, ErrInvalidAmount
	}
	if in.Amount.Currency != s.Currency {
		return nil, nil, fmt.Errorf("%w: sale currency %s, ledger currency %s",
			money.ErrCurrencyMismatch, in.Amount.Currency, s.Currency)
	}
	if strings.TrimSpace(in.BuyerEmail) == "" {
		return nil, nil, ErrInvalidBuyer
	}
	if strings.TrimSpace(in.PaymentRef) == "" {
		return nil, nil, ErrMissingPaymentRef
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin sale tx: %w", err)
	}
	defer tx.Rollback(ctx)

	film, err := s.Films.GetByIDTx(ctx, tx, in.FilmID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrFilmNotFound
		}
		return nil, nil, err
	}

	shares, err := split.Calculate(in.Amount, s.Policy, in.DistributorID != nil)
	if err != nil {
		return nil, nil, err
	}

	sale := &models.Sale{
		ID:            uuid.New(),
		FilmID:        in.FilmID,
		DistributorID: in.DistributorID,
		BuyerEmail:    in.BuyerEmail,
		Amount:        in.Amount,
		PaymentRef:    in.PaymentRef,
	}
	if err := s.Sales.CreateTx(ctx, tx, sale); err != nil {
		return nil, nil, err
	}

	payout := &models.Payout{
		ID:               uuid.New(),
		SaleID:           sale.ID,
		FilmID:           in.FilmID,
		FilmmakerID:      film.FilmmakerID,
		DistributorID:    in.DistributorID,
		FilmmakerShare:   shares.Filmmaker,
		DistributorShare: shares.Distributor,
		PlatformShare:    shares.Platform,
	}
	if err := s.Payouts.CreateTx(ctx, tx, payout); err != nil {
		return nil, nil, err
	}

	if in.DistributorID != nil {
		if err := s.Holdings.IncrementTx(ctx, tx, *in.DistributorID, in.FilmID, in.Amount, shares.Distributor); err != nil {
			return nil, nil, err
		}
	}

	if s.EnqueueMirror != nil {
		if err := s.EnqueueMirror(ctx, tx, sale.ID); err != nil {
			return nil, nil, fmt.Errorf("enqueue chain mirror: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit sale tx: %w", err)
	}

	s.Logger.Info("sale recorded",
		"sale_id", sale.ID,
		"film_id", in.FilmID,
		"amount", in.Amount.Amount,
		"attributed", in.DistributorID != nil,
	)
	return sale, payout, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quiflix/backend/internal/models"
	"github.com/quiflix/backend/internal/money"
	"github.com/quiflix/backend/internal/repository"
)

// Withdrawal errors.
var (
	ErrInsufficientBalance = errors.New("insufficient available balance")
	ErrInvalidDestination  = errors.New("invalid payout destination")
)

// WithdrawalStore is the withdrawal repository surface the service needs.
type WithdrawalStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	LockPrincipalTx(ctx context.Context, tx pgx.Tx, principalID uuid.UUID) error
	CreateTx(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	GetByProcessorRef(ctx context.Context, processorRef string) (*models.Withdrawal, error)
	ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*models.Withdrawal, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// EnqueueSubmitTxFunc enqueues the processor-submission job within the
// request transaction. Provided by main using river.Client.InsertTx.
type EnqueueSubmitTxFunc func(ctx context.Context, tx pgx.Tx, withdrawalID uuid.UUID) error

// WithdrawalService validates and creates withdrawal requests and applies
// processor completion results. Requests for the same principal serialize on
// a per-principal advisory lock so two concurrent requests cannot both pass
// the available-balance check and jointly overdraw.
type WithdrawalService struct {
	Store         WithdrawalStore
	Ledger        *BalanceLedger
	Rate          money.Rate
	EnqueueSubmit EnqueueSubmitTxFunc
	Logger        *slog.Logger
}

// WithdrawalRequest carries a principal's withdrawal parameters.
type WithdrawalRequest struct {
	PrincipalID uuid.UUID
	Amount      money.Money
	MpesaPhone  string
	MpesaName   string
}

// Request validates the withdrawal and persists it in pending status,
// enqueueing the processor submission in the same transaction. On any
// validation failure no row is persisted.
func (s *WithdrawalService) Request(ctx context.Context, req WithdrawalRequest) (*models.Withdrawal, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if err := validateDestination(req.MpesaPhone, req.MpesaName); err != nil {
		return nil, err
	}

	converted, err := req.Amount.Convert(s.Rate)
	if err != nil {
		return nil, err
	}

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin withdrawal tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.Store.LockPrincipalTx(ctx, tx, req.PrincipalID); err != nil {
		return nil, fmt.Errorf("lock principal: %w", err)
	}

	position, err := s.Ledger.AvailableBalanceTx(ctx, tx, req.PrincipalID)
	if err != nil {
		return nil, err
	}
	cmp, err := req.Amount.Cmp(position.Available)
	if err != nil {
		return nil, err
	}
	if cmp > 0 {
		return nil, fmt.Errorf("%w: requested %s, available %s",
			ErrInsufficientBalance, req.Amount, position.Available)
	}

	w := &models.Withdrawal{
		ID:              uuid.New(),
		PrincipalID:     req.PrincipalID,
		Amount:          req.Amount,
		ConvertedAmount: converted,
		MpesaPhone:      req.MpesaPhone,
		MpesaName:       req.MpesaName,
		Status:          models.WithdrawalPending,
		ClientRequestID: uuid.New(),
	}
	if err := s.Store.CreateTx(ctx, tx, w); err != nil {
		return nil, err
	}
	if err := s.EnqueueSubmit(ctx, tx, w.ID); err != nil {
		return nil, fmt.Errorf("enqueue payout submission: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit withdrawal tx: %w", err)
	}

	s.Logger.Info("withdrawal requested",
		"withdrawal_id", w.ID,
		"principal_id", req.PrincipalID,
		"amount", req.Amount.Amount,
		"converted", converted.Amount,
	)
	return w, nil
}

// History lists the principal's withdrawals, newest first.
func (s *WithdrawalService) History(ctx context.Context, principalID uuid.UUID) ([]*models.Withdrawal, error) {
	return s.Store.ListByPrincipal(ctx, principalID)
}

// ApplyProcessorResult drives processing -> completed | failed from a
// processor completion notification. Repeated notifications for a settled
// withdrawal are ignored: transitions are monotonic.
func (s *WithdrawalService) ApplyProcessorResult(ctx context.Context, processorRef, status, failureReason string) error {
	w, err := s.Store.GetByProcessorRef(ctx, processorRef)
	if err != nil {
		return err
	}
	switch status {
	case "completed", "success":
		err = s.Store.MarkCompleted(ctx, w.ID)
	case "failed", "rejected":
		if failureReason == "" {
			failureReason = "payout processor reported failure"
		}
		err = s.Store.MarkFailed(ctx, w.ID, failureReason)
	default:
		return fmt.Errorf("unknown processor status %q", status)
	}
	if errors.Is(err, repository.ErrInvalidTransition) {
		// Already settled; the notification is a duplicate.
		s.Logger.Warn("ignoring duplicate processor notification",
			"withdrawal_id", w.ID, "status", status)
		return nil
	}
	if err != nil {
		return err
	}
	s.Logger.Info("withdrawal settled", "withdrawal_id", w.ID, "status", status)
	return nil
}

func validateDestination(phone, name string) error {
	digits := 0
	for _, c := range phone {
		if unicode.IsDigit(c) {
			digits++
		} else if c != '+' && c != ' ' && c != '-' {
			return fmt.Errorf("%w: phone contains %q", ErrInvalidDestination, c)
		}
	}
	if digits < 10 {
		return fmt.Errorf("%w: phone must have at least 10 digits", ErrInvalidDestination)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: account name is required", ErrInvalidDestination)
	}
	return nil
}

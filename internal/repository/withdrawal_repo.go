package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quiflix/backend/internal/models"
	"github.com/quiflix/backend/internal/money"
)

// Withdrawal errors.
var (
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	// ErrInvalidTransition is returned when a status update finds the row in
	// a state the transition does not start from. Statuses never regress.
	ErrInvalidTransition = errors.New("invalid withdrawal status transition")
)

type WithdrawalRepo struct {
	pool *pgxpool.Pool
}

func NewWithdrawalRepo(pool *pgxpool.Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

func (r *WithdrawalRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// LockPrincipalTx serializes withdrawal requests per principal for the
// duration of the transaction. Two concurrent requests for the same
// principal cannot both pass the available-balance check on a stale read.
func (r *WithdrawalRepo) LockPrincipalTx(ctx context.Context, tx pgx.Tx, principalID uuid.UUID) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, principalID)
	return err
}

func (r *WithdrawalRepo) CreateTx(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error {
	return tx.QueryRow(ctx, `
		INSERT INTO withdrawals (id, principal_id, amount, currency, converted_amount, converted_currency,
			mpesa_phone, mpesa_name, status, client_request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, w.ID, w.PrincipalID, w.Amount.Amount, w.Amount.Currency, w.ConvertedAmount.Amount, w.ConvertedAmount.Currency,
		w.MpesaPhone, w.MpesaName, w.Status, w.ClientRequestID).Scan(&w.CreatedAt)
}

// SumReserved totals withdrawals in pending, processing, or completed status
// for the principal. Failed withdrawals release their reservation by
// dropping out of this sum.
func (r *WithdrawalRepo) SumReserved(ctx context.Context, principalID uuid.UUID, currency string) (money.Money, error) {
	return sumReserved(ctx, r.pool, principalID, currency)
}

// SumReservedTx is SumReserved inside the caller's transaction.
func (r *WithdrawalRepo) SumReservedTx(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, currency string) (money.Money, error) {
	return sumReserved(ctx, tx, principalID, currency)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func sumReserved(ctx context.Context, q queryRower, principalID uuid.UUID, currency string) (money.Money, error) {
	var total int64
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM withdrawals
		WHERE principal_id = $1 AND currency = $2
		  AND status IN ('pending', 'processing', 'completed')
	`, principalID, currency).Scan(&total)
	return money.New(total, currency), err
}

func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(r.pool.QueryRow(ctx, withdrawalColumns+`WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWithdrawalNotFound
	}
	return w, err
}

func (r *WithdrawalRepo) GetByProcessorRef(ctx context.Context, processorRef string) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(r.pool.QueryRow(ctx, withdrawalColumns+`WHERE processor_ref = $1`, processorRef))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWithdrawalNotFound
	}
	return w, err
}

func (r *WithdrawalRepo) ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*models.Withdrawal, error) {
	rows, err := r.pool.Query(ctx, withdrawalColumns+`WHERE principal_id = $1 ORDER BY created_at DESC`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

// MarkProcessing moves pending -> processing, storing the processor
// reference returned by the payout processor.
func (r *WithdrawalRepo) MarkProcessing(ctx context.Context, id uuid.UUID, processorRef string) error {
	return r.transition(ctx, `
		UPDATE withdrawals SET status = 'processing', processor_ref = $2, last_error = NULL
		WHERE id = $1 AND status = 'pending'
	`, id, processorRef)
}

// MarkCompleted moves processing -> completed.
func (r *WithdrawalRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, `
		UPDATE withdrawals SET status = 'completed', completed_at = now()
		WHERE id = $1 AND status = 'processing'
	`, id)
}

// MarkFailed moves pending or processing -> failed, recording the reason.
// The reservation is released implicitly: failed rows drop out of
// SumReserved.
func (r *WithdrawalRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.transition(ctx, `
		UPDATE withdrawals SET status = 'failed', last_error = $2, completed_at = now()
		WHERE id = $1 AND status IN ('pending', 'processing')
	`, id, reason)
}

// RecordError stores a transient submission error without changing status.
// The request stays pending for retry; it is never left ambiguous between
// sent and not sent.
func (r *WithdrawalRepo) RecordError(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE withdrawals SET last_error = $2 WHERE id = $1
	`, id, errMsg)
	return err
}

func (r *WithdrawalRepo) transition(ctx context.Context, query string, args ...any) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

const withdrawalColumns = `
	SELECT id, principal_id, amount, currency, converted_amount, converted_currency,
		mpesa_phone, mpesa_name, status, client_request_id, processor_ref, last_error,
		created_at, completed_at
	FROM withdrawals
`

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := row.Scan(&w.ID, &w.PrincipalID, &w.Amount.Amount, &w.Amount.Currency,
		&w.ConvertedAmount.Amount, &w.ConvertedAmount.Currency,
		&w.MpesaPhone, &w.MpesaName, &w.Status, &w.ClientRequestID, &w.ProcessorRef, &w.LastError,
		&w.CreatedAt, &w.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

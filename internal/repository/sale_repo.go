package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quiflix/backend/internal/models"
)

// ErrDuplicatePayment is returned when a sale with the same payment_ref has
// already been recorded. It is the idempotency guard against a payment
// notification being delivered twice.
var ErrDuplicatePayment = errors.New("payment reference already recorded")

type SaleRepo struct {
	pool *pgxpool.Pool
}

func NewSaleRepo(pool *pgxpool.Pool) *SaleRepo {
	return &SaleRepo{pool: pool}
}

func (r *SaleRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreateTx inserts the immutable sale record. A unique violation on
// payment_ref surfaces as ErrDuplicatePayment.
func (r *SaleRepo) CreateTx(ctx context.Context, tx pgx.Tx, s *models.Sale) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO sales (id, film_id, distributor_id, buyer_email, amount, currency, payment_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, s.ID, s.FilmID, s.DistributorID, s.BuyerEmail, s.Amount.Amount, s.Amount.Currency, s.PaymentRef).
		Scan(&s.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicatePayment
	}
	return err
}

func (r *SaleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	return scanSale(r.pool.QueryRow(ctx, `
		SELECT id, film_id, distributor_id, buyer_email, amount, currency, payment_ref, created_at
		FROM sales WHERE id = $1
	`, id))
}

func (r *SaleRepo) ListByFilm(ctx context.Context, filmID uuid.UUID) ([]*models.Sale, error) {
	return r.list(ctx, `
		SELECT id, film_id, distributor_id, buyer_email, amount, currency, payment_ref, created_at
		FROM sales WHERE film_id = $1 ORDER BY created_at DESC
	`, filmID)
}

func (r *SaleRepo) ListByDistributor(ctx context.Context, distributorID uuid.UUID) ([]*models.Sale, error) {
	return r.list(ctx, `
		SELECT id, film_id, distributor_id, buyer_email, amount, currency, payment_ref, created_at
		FROM sales WHERE distributor_id = $1 ORDER BY created_at DESC
	`, distributorID)
}

func (r *SaleRepo) list(ctx context.Context, query string, args ...any) ([]*models.Sale, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func scanSale(row pgx.Row) (*models.Sale, error) {
	var s models.Sale
	err := row.Scan(&s.ID, &s.FilmID, &s.DistributorID, &s.BuyerEmail, &s.Amount.Amount, &s.Amount.Currency,
		&s.PaymentRef, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

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

// ErrHoldingNotFound is returned when no holding exists for a
// (distributor, film) pair.
var ErrHoldingNotFound = errors.New("holding not found")

type HoldingRepo struct {
	pool *pgxpool.Pool
}

func NewHoldingRepo(pool *pgxpool.Pool) *HoldingRepo {
	return &HoldingRepo{pool: pool}
}

func (r *HoldingRepo) Create(ctx context.Context, h *models.Holding) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO holdings (id, distributor_id, film_id, sales_attributed, earned_amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, h.ID, h.DistributorID, h.FilmID, h.SalesAttributed.Amount, h.EarnedAmount.Amount, h.SalesAttributed.Currency).
		Scan(&h.CreatedAt, &h.UpdatedAt)
}

func (r *HoldingRepo) GetByPair(ctx context.Context, distributorID, filmID uuid.UUID) (*models.Holding, error) {
	h, err := scanHolding(r.pool.QueryRow(ctx, `
		SELECT id, distributor_id, film_id, sales_attributed, earned_amount, currency, personalized_link, created_at, updated_at
		FROM holdings WHERE distributor_id = $1 AND film_id = $2
	`, distributorID, filmID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrHoldingNotFound
	}
	return h, err
}

func (r *HoldingRepo) ListByDistributor(ctx context.Context, distributorID uuid.UUID) ([]*models.Holding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, distributor_id, film_id, sales_attributed, earned_amount, currency, personalized_link, created_at, updated_at
		FROM holdings WHERE distributor_id = $1 ORDER BY created_at DESC
	`, distributorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, h)
	}
	return list, rows.Err()
}

// IncrementTx adds the sale amount and the distributor share to the holding
// in a single atomic statement. Concurrent sales for the same pair serialize
// on the row; there is no read-then-write to lose.
func (r *HoldingRepo) IncrementTx(ctx context.Context, tx pgx.Tx, distributorID, filmID uuid.UUID, saleAmount, earned money.Money) error {
	result, err := tx.Exec(ctx, `
		UPDATE holdings
		SET sales_attributed = sales_attributed + $3, earned_amount = earned_amount + $4, updated_at = now()
		WHERE distributor_id = $1 AND film_id = $2
	`, distributorID, filmID, saleAmount.Amount, earned.Amount)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrHoldingNotFound
	}
	return nil
}

// SetPersonalizedLink stores the referral link on the holding if none is set.
// Returns the link that ends up on the row, so concurrent generation is
// first-writer-wins.
func (r *HoldingRepo) SetPersonalizedLink(ctx context.Context, id uuid.UUID, link string) (string, error) {
	var stored string
	err := r.pool.QueryRow(ctx, `
		UPDATE holdings
		SET personalized_link = COALESCE(personalized_link, $2), updated_at = now()
		WHERE id = $1
		RETURNING personalized_link
	`, id, link).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrHoldingNotFound
	}
	return stored, err
}

func scanHolding(row pgx.Row) (*models.Holding, error) {
	var h models.Holding
	var currency string
	err := row.Scan(&h.ID, &h.DistributorID, &h.FilmID, &h.SalesAttributed.Amount, &h.EarnedAmount.Amount,
		&currency, &h.PersonalizedLink, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	h.SalesAttributed.Currency = currency
	h.EarnedAmount.Currency = currency
	return &h, nil
}

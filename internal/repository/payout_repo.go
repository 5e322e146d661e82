package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quiflix/backend/internal/models"
	"github.com/quiflix/backend/internal/money"
)

type PayoutRepo struct {
	pool *pgxpool.Pool
}

func NewPayoutRepo(pool *pgxpool.Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

// CreateTx inserts the payout in the same transaction as its sale.
func (r *PayoutRepo) CreateTx(ctx context.Context, tx pgx.Tx, p *models.Payout) error {
	return tx.QueryRow(ctx, `
		INSERT INTO payouts (id, sale_id, film_id, filmmaker_id, distributor_id,
			filmmaker_share, distributor_share, platform_share, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, p.ID, p.SaleID, p.FilmID, p.FilmmakerID, p.DistributorID,
		p.FilmmakerShare.Amount, p.DistributorShare.Amount, p.PlatformShare.Amount, p.FilmmakerShare.Currency).
		Scan(&p.CreatedAt)
}

// SumFilmmakerShares sums filmmaker_share across payouts for films owned by
// the principal. It is one of the two disjoint sums composing a balance; the
// distributor sum is never folded into it.
func (r *PayoutRepo) SumFilmmakerShares(ctx context.Context, principalID uuid.UUID, currency string) (money.Money, error) {
	return sumShare(ctx, r.pool, "filmmaker_share", "filmmaker_id", principalID, currency)
}

// SumFilmmakerSharesTx is SumFilmmakerShares inside the caller's transaction.
func (r *PayoutRepo) SumFilmmakerSharesTx(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, currency string) (money.Money, error) {
	return sumShare(ctx, tx, "filmmaker_share", "filmmaker_id", principalID, currency)
}

// SumDistributorShares sums distributor_share across payouts attributed to
// the principal as distributor.
func (r *PayoutRepo) SumDistributorShares(ctx context.Context, principalID uuid.UUID, currency string) (money.Money, error) {
	return sumShare(ctx, r.pool, "distributor_share", "distributor_id", principalID, currency)
}

// SumDistributorSharesTx is SumDistributorShares inside the caller's transaction.
func (r *PayoutRepo) SumDistributorSharesTx(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, currency string) (money.Money, error) {
	return sumShare(ctx, tx, "distributor_share", "distributor_id", principalID, currency)
}

func sumShare(ctx context.Context, q queryRower, shareCol, idCol string, principalID uuid.UUID, currency string) (money.Money, error) {
	var total int64
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(`+shareCol+`), 0) FROM payouts
		WHERE `+idCol+` = $1 AND currency = $2
	`, principalID, currency).Scan(&total)
	return money.New(total, currency), err
}

func (r *PayoutRepo) ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*models.Payout, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sale_id, film_id, filmmaker_id, distributor_id,
			filmmaker_share, distributor_share, platform_share, currency, created_at
		FROM payouts
		WHERE filmmaker_id = $1 OR distributor_id = $1
		ORDER BY created_at DESC
	`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Payout
	for rows.Next() {
		var p models.Payout
		var currency string
		err := rows.Scan(&p.ID, &p.SaleID, &p.FilmID, &p.FilmmakerID, &p.DistributorID,
			&p.FilmmakerShare.Amount, &p.DistributorShare.Amount, &p.PlatformShare.Amount, &currency, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		p.FilmmakerShare.Currency = currency
		p.DistributorShare.Currency = currency
		p.PlatformShare.Currency = currency
		list = append(list, &p)
	}
	return list, rows.Err()
}

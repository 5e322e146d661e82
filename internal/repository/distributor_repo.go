package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quiflix/backend/internal/models"
)

// Referral prefix resolution errors.
var (
	ErrDistributorNotFound = errors.New("distributor not found")
	// ErrAmbiguousPrefix means more than one distributor matches a referral
	// prefix. The code is rejected instead of silently resolving to the
	// first match.
	ErrAmbiguousPrefix = errors.New("referral prefix matches multiple distributors")
)

type DistributorRepo struct {
	pool *pgxpool.Pool
}

func NewDistributorRepo(pool *pgxpool.Pool) *DistributorRepo {
	return &DistributorRepo{pool: pool}
}

func (r *DistributorRepo) Create(ctx context.Context, d *models.Distributor) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO distributors (id, company_name, wallet_address)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, d.ID, d.CompanyName, d.WalletAddress).Scan(&d.CreatedAt)
}

// CreateTx inserts a distributor inside the given transaction.
func (r *DistributorRepo) CreateTx(ctx context.Context, tx pgx.Tx, d *models.Distributor) error {
	return tx.QueryRow(ctx, `
		INSERT INTO distributors (id, company_name, wallet_address)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, d.ID, d.CompanyName, d.WalletAddress).Scan(&d.CreatedAt)
}

func (r *DistributorRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Distributor, error) {
	var d models.Distributor
	err := r.pool.QueryRow(ctx, `
		SELECT id, company_name, wallet_address, created_at
		FROM distributors WHERE id = $1
	`, id).Scan(&d.ID, &d.CompanyName, &d.WalletAddress, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDistributorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ResolveByIDPrefix resolves a referral code prefix to exactly one
// distributor. It fetches up to two candidates so a collision is detected
// and rejected rather than resolved to an arbitrary row.
func (r *DistributorRepo) ResolveByIDPrefix(ctx context.Context, prefix string) (*models.Distributor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, company_name, wallet_address, created_at
		FROM distributors WHERE id::text LIKE $1 || '%'
		LIMIT 2
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*models.Distributor
	for rows.Next() {
		var d models.Distributor
		if err := rows.Scan(&d.ID, &d.CompanyName, &d.WalletAddress, &d.CreatedAt); err != nil {
			return nil, err
		}
		matches = append(matches, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, ErrDistributorNotFound
	case 1:
		return matches[0], nil
	default:
		return nil, ErrAmbiguousPrefix
	}
}

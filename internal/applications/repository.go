package applications

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quiflix/backend/internal/models"
	"github.com/quiflix/backend/internal/money"
)

var (
	ErrApplicationNotFound = errors.New("application not found")
	// ErrDuplicateApplication means the account already has an open
	// application of this type.
	ErrDuplicateApplication = errors.New("application already submitted")
	// ErrAlreadyReviewed means the application has already been approved or
	// rejected; review decisions are final.
	ErrAlreadyReviewed = errors.New("application already reviewed")
)

const applicationColumns = `id, account_id, application_type, status, company_name,
	film_title, film_price_amount, film_price_currency,
	admin_notes, rejection_reason, reviewed_by, reviewed_at, created_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Create inserts a pending application. A partial unique index on open
// applications per (account, type) surfaces duplicates as 23505.
func (r *Repository) Create(ctx context.Context, a *models.Application) error {
	var priceAmount *int64
	var priceCurrency *string
	if a.FilmPrice != nil {
		priceAmount = &a.FilmPrice.Amount
		priceCurrency = &a.FilmPrice.Currency
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO applications (id, account_id, application_type, status, company_name,
			film_title, film_price_amount, film_price_currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, a.ID, a.AccountID, a.Type, a.Status, a.CompanyName,
		a.FilmTitle, priceAmount, priceCurrency).Scan(&a.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateApplication
	}
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	return scanApplication(row)
}

func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.Application, error) {
	return r.list(ctx, `SELECT `+applicationColumns+` FROM applications
		WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
}

// ListByStatus is the admin review queue.
func (r *Repository) ListByStatus(ctx context.Context, status string) ([]*models.Application, error) {
	return r.list(ctx, `SELECT `+applicationColumns+` FROM applications
		WHERE status = $1 ORDER BY created_at ASC`, status)
}

// SetUnderReview marks a pending application as being reviewed.
func (r *Repository) SetUnderReview(ctx context.Context, id, reviewerID uuid.UUID, notes *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE applications
		SET status = $3, reviewed_by = $2, admin_notes = COALESCE($4, admin_notes)
		WHERE id = $1 AND status = $5
	`, id, reviewerID, models.ApplicationUnderReview, notes, models.ApplicationPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyReviewed
	}
	return nil
}

// SettleTx finalizes the application as approved or rejected inside the
// caller's transaction. Only open applications settle; re-reviewing fails.
func (r *Repository) SettleTx(ctx context.Context, tx pgx.Tx, id, reviewerID uuid.UUID, status string, notes, rejectionReason *string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE applications
		SET status = $3, reviewed_by = $2, reviewed_at = now(),
			admin_notes = COALESCE($4, admin_notes), rejection_reason = $5
		WHERE id = $1 AND status IN ($6, $7)
	`, id, reviewerID, status, notes, rejectionReason,
		models.ApplicationPending, models.ApplicationUnderReview)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyReviewed
	}
	return nil
}

// SetAccountRoleTx grants the account its new role in the same transaction
// as the approval.
func (r *Repository) SetAccountRoleTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, role string) error {
	_, err := tx.Exec(ctx, `
		UPDATE accounts SET role = $2, updated_at = now() WHERE id = $1
	`, accountID, role)
	return err
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]*models.Application, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanApplication(row pgx.Row) (*models.Application, error) {
	var a models.Application
	var priceAmount *int64
	var priceCurrency *string
	err := row.Scan(&a.ID, &a.AccountID, &a.Type, &a.Status, &a.CompanyName,
		&a.FilmTitle, &priceAmount, &priceCurrency,
		&a.AdminNotes, &a.RejectionReason, &a.ReviewedBy, &a.ReviewedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, err
	}
	if priceAmount != nil && priceCurrency != nil {
		a.FilmPrice = &money.Money{Amount: *priceAmount, Currency: *priceCurrency}
	}
	return &a, nil
}

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

// ErrPriceLocked is returned when updating the price of a film that already
// has recorded sales.
var ErrPriceLocked = errors.New("film price is immutable once sales exist")

// ErrFilmNotFound is returned when the referenced film does not exist.
var ErrFilmNotFound = errors.New("film not found")

type FilmRepo struct {
	pool *pgxpool.Pool
}

func NewFilmRepo(pool *pgxpool.Pool) *FilmRepo {
	return &FilmRepo{pool: pool}
}

func (r *FilmRepo) Create(ctx context.Context, f *models.Film) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO films (id, title, price_amount, price_currency, filmmaker_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, f.ID, f.Title, f.Price.Amount, f.Price.Currency, f.FilmmakerID).Scan(&f.CreatedAt, &f.UpdatedAt)
}

// CreateTx inserts a film inside the given transaction.
func (r *FilmRepo) CreateTx(ctx context.Context, tx pgx.Tx, f *models.Film) error {
	return tx.QueryRow(ctx, `
		INSERT INTO films (id, title, price_amount, price_currency, filmmaker_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, f.ID, f.Title, f.Price.Amount, f.Price.Currency, f.FilmmakerID).Scan(&f.CreatedAt, &f.UpdatedAt)
}

func (r *FilmRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Film, error) {
	return scanFilm(r.pool.QueryRow(ctx, `
		SELECT id, title, price_amount, price_currency, filmmaker_id, created_at, updated_at
		FROM films WHERE id = $1
	`, id))
}

// GetByIDTx reads a film inside the given transaction.
func (r *FilmRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Film, error) {
	return scanFilm(tx.QueryRow(ctx, `
		SELECT id, title, price_amount, price_currency, filmmaker_id, created_at, updated_at
		FROM films WHERE id = $1
	`, id))
}

func (r *FilmRepo) List(ctx context.Context) ([]*models.Film, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, price_amount, price_currency, filmmaker_id, created_at, updated_at
		FROM films ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Film
	for rows.Next() {
		f, err := scanFilm(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, f)
	}
	return list, rows.Err()
}

// UpdatePrice changes the film price, refusing if any sale references the
// film. The sales check and the update run in one statement so a concurrent
// first sale cannot slip between them.
func (r *FilmRepo) UpdatePrice(ctx context.Context, id uuid.UUID, price money.Money) error {
	var hasSales bool
	err := r.pool.QueryRow(ctx, `
		WITH target AS (
			SELECT id, EXISTS (SELECT 1 FROM sales WHERE film_id = $1) AS has_sales
			FROM films WHERE id = $1
		), updated AS (
			UPDATE films SET price_amount = $2, price_currency = $3, updated_at = now()
			FROM target WHERE films.id = target.id AND NOT target.has_sales
		)
		SELECT has_sales FROM target
	`, id, price.Amount, price.Currency).Scan(&hasSales)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrFilmNotFound
	}
	if err != nil {
		return err
	}
	if hasSales {
		return ErrPriceLocked
	}
	return nil
}

func scanFilm(row pgx.Row) (*models.Film, error) {
	var f models.Film
	err := row.Scan(&f.ID, &f.Title, &f.Price.Amount, &f.Price.Currency, &f.FilmmakerID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

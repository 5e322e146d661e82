package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quiflix/backend/internal/models"
	"github.com/quiflix/backend/internal/money"
	"github.com/quiflix/backend/internal/repository"
)

type FilmResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
	FilmmakerID string `json:"filmmaker_id"`
}

type UpdatePriceRequest struct {
	Price int64 `json:"price"`
}

type GrantHoldingRequest struct {
	DistributorID string `json:"distributor_id"`
	FilmID        string `json:"film_id"`
}

// FilmStore is the film surface the handler needs.
type FilmStore interface {
	List(ctx context.Context) ([]*models.Film, error)
	UpdatePrice(ctx context.Context, id uuid.UUID, price money.Money) error
}

// HoldingGranter creates distribution-rights holdings.
type HoldingGranter interface {
	Create(ctx context.Context, h *models.Holding) error
}

type FilmHandler struct {
	Films    FilmStore
	Holdings HoldingGranter
	Currency string
	Logger   *slog.Logger
}

// List handles GET /v1/films.
func (h *FilmHandler) List(w http.ResponseWriter, r *http.Request) {
	films, err := h.Films.List(r.Context())
	if err != nil {
		h.Logger.Error("list films failed", "error", err)
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	out := make([]FilmResponse, 0, len(films))
	for _, f := range films {
		out = append(out, FilmResponse{
			ID:          f.ID.String(),
			Title:       f.Title,
			Price:       f.Price.Amount,
			Currency:    f.Price.Currency,
			FilmmakerID: f.FilmmakerID.String(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// UpdatePrice handles PATCH /v1/films/{id}/price. Prices lock once the film
// has recorded sales.
func (h *FilmHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid film id", http.StatusBadRequest)
		return
	}
	var req UpdatePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Price <= 0 {
		http.Error(w, "price must be positive", http.StatusBadRequest)
		return
	}
	if err := h.Films.UpdatePrice(r.Context(), id, money.New(req.Price, h.Currency)); err != nil {
		if errors.Is(err, repository.ErrFilmNotFound) {
			http.Error(w, "film not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, repository.ErrPriceLocked) {
			http.Error(w, "price is locked once sales exist", http.StatusConflict)
			return
		}
		h.Logger.Error("update price failed", "film_id", id, "error", err)
		http.Error(w, "update price failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GrantHolding handles POST /v1/holdings: grants one distributor the
// distribution rights for one film.
func (h *FilmHandler) GrantHolding(w http.ResponseWriter, r *http.Request) {
	var req GrantHoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	distributorID, err := uuid.Parse(req.DistributorID)
	if err != nil {
		http.Error(w, "invalid distributor_id", http.StatusBadRequest)
		return
	}
	filmID, err := uuid.Parse(req.FilmID)
	if err != nil {
		http.Error(w, "invalid film_id", http.StatusBadRequest)
		return
	}

	holding := &models.Holding{
		ID:              uuid.New(),
		DistributorID:   distributorID,
		FilmID:          filmID,
		SalesAttributed: money.Zero(h.Currency),
		EarnedAmount:    money.Zero(h.Currency),
	}
	if err := h.Holdings.Create(r.Context(), holding); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			http.Error(w, "holding already exists", http.StatusConflict)
			return
		}
		h.Logger.Error("grant holding failed", "error", err)
		http.Error(w, "grant holding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(holding)
}

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/quiflix/backend/internal/middleware"
	"github.com/quiflix/backend/internal/repository"
	"github.com/quiflix/backend/internal/services"
)

type GenerateLinkRequest struct {
	FilmID string `json:"film_id"`
}

type HoldingResponse struct {
	ID               string  `json:"id"`
	FilmID           string  `json:"film_id"`
	SalesAttributed  int64   `json:"sales_attributed"`
	EarnedAmount     int64   `json:"earned_amount"`
	PersonalizedLink *string `json:"personalized_link,omitempty"`
}

type ReferralHandler struct {
	Referrals *services.ReferralService
	Logger    *slog.Logger
}

// Generate handles POST /v1/referrals.
func (h *ReferralHandler) Generate(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req GenerateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	filmID, err := uuid.Parse(req.FilmID)
	if err != nil {
		http.Error(w, "invalid film_id", http.StatusBadRequest)
		return
	}
	link, err := h.Referrals.GenerateLink(r.Context(), p.ID, filmID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDistributorNotFound):
			http.Error(w, "not a distributor", http.StatusForbidden)
		case errors.Is(err, repository.ErrHoldingNotFound):
			http.Error(w, "no distribution rights for this film", http.StatusUnprocessableEntity)
		default:
			h.Logger.Error("generate referral link failed", "error", err)
			http.Error(w, "generate link failed", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(link)
}

// List handles GET /v1/referrals.
func (h *ReferralHandler) List(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	holdings, err := h.Referrals.ListLinks(r.Context(), p.ID)
	if err != nil {
		h.Logger.Error("list referral links failed", "error", err)
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	out := make([]HoldingResponse, 0, len(holdings))
	for _, hd := range holdings {
		out = append(out, HoldingResponse{
			ID:               hd.ID.String(),
			FilmID:           hd.FilmID.String(),
			SalesAttributed:  hd.SalesAttributed.Amount,
			EarnedAmount:     hd.EarnedAmount.Amount,
			PersonalizedLink: hd.PersonalizedLink,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

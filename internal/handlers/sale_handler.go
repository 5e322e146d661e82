package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/quiflix/backend/internal/models"
	"github.com/quiflix/backend/internal/money"
	"github.com/quiflix/backend/internal/referral"
	"github.com/quiflix/backend/internal/repository"
	"github.com/quiflix/backend/internal/services"
)

// Request/response structs use snake_case JSON.

type RecordSaleRequest struct {
	FilmID        string  `json:"film_id"`
	DistributorID *string `json:"distributor_id,omitempty"`
	Amount        int64   `json:"amount"`
	BuyerEmail    string  `json:"buyer_email"`
	PaymentRef    string  `json:"payment_ref"`
}

type TrackReferralRequest struct {
	ReferralCode string `json:"referral_code"`
	FilmID       string `json:"film_id"`
	Amount       int64  `json:"amount"`
	BuyerEmail   string `json:"buyer_email"`
	PaymentRef   string `json:"payment_ref"`
}

type SaleResponse struct {
	ID               string  `json:"id"`
	FilmID           string  `json:"film_id"`
	DistributorID    *string `json:"distributor_id,omitempty"`
	Amount           int64   `json:"amount"`
	Currency         string  `json:"currency"`
	PaymentRef       string  `json:"payment_ref"`
	FilmmakerShare   int64   `json:"filmmaker_share"`
	DistributorShare int64   `json:"distributor_share"`
	PlatformShare    int64   `json:"platform_share"`
}

type SaleHandler struct {
	Recorder  *services.SaleRecorder
	Referrals *services.ReferralService
	Currency  string
	Logger    *slog.Logger
}

// RecordSale handles POST /v1/sales, the payment-notification surface.
func (h *SaleHandler) RecordSale(w http.ResponseWriter, r *http.Request) {
	var req RecordSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	filmID, err := uuid.Parse(req.FilmID)
	if err != nil {
		http.Error(w, "invalid film_id", http.StatusBadRequest)
		return
	}
	var distributorID *uuid.UUID
	if req.DistributorID != nil {
		id, err := uuid.Parse(*req.DistributorID)
		if err != nil {
			http.Error(w, "invalid distributor_id", http.StatusBadRequest)
			return
		}
		distributorID = &id
	}
	h.record(w, r, services.RecordSaleInput{
		FilmID:        filmID,
		DistributorID: distributorID,
		Amount:        money.New(req.Amount, h.Currency),
		BuyerEmail:    req.BuyerEmail,
		PaymentRef:    req.PaymentRef,
	})
}

// TrackReferral handles POST /v1/referrals/track: resolves the referral code
// to its distributor, then records the attributed sale.
func (h *SaleHandler) TrackReferral(w http.ResponseWriter, r *http.Request) {
	var req TrackReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	filmID, err := uuid.Parse(req.FilmID)
	if err != nil {
		http.Error(w, "invalid film_id", http.StatusBadRequest)
		return
	}
	distributor, err := h.Referrals.Resolve(r.Context(), req.ReferralCode, filmID)
	if err != nil {
		switch {
		case errors.Is(err, referral.ErrInvalidFormat):
			http.Error(w, "invalid referral code", http.StatusBadRequest)
		case errors.Is(err, services.ErrCodeFilmMismatch):
			http.Error(w, "referral code does not match this film", http.StatusUnprocessableEntity)
		case errors.Is(err, repository.ErrDistributorNotFound):
			http.Error(w, "unknown referral code", http.StatusNotFound)
		case errors.Is(err, repository.ErrAmbiguousPrefix):
			http.Error(w, "referral code is ambiguous", http.StatusConflict)
		default:
			h.Logger.Error("resolve referral failed", "error", err)
			http.Error(w, "referral resolution failed", http.StatusInternalServerError)
		}
		return
	}
	h.record(w, r, services.RecordSaleInput{
		FilmID:        filmID,
		DistributorID: &distributor.ID,
		Amount:        money.New(req.Amount, h.Currency),
		BuyerEmail:    req.BuyerEmail,
		PaymentRef:    req.PaymentRef,
	})
}

func (h *SaleHandler) record(w http.ResponseWriter, r *http.Request, in services.RecordSaleInput) {
	sale, payout, err := h.Recorder.RecordSale(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount),
			errors.Is(err, services.ErrInvalidBuyer),
			errors.Is(err, services.ErrMissingPaymentRef),
			errors.Is(err, money.ErrCurrencyMismatch):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrFilmNotFound):
			http.Error(w, "film not found", http.StatusNotFound)
		case errors.Is(err, repository.ErrHoldingNotFound):
			http.Error(w, "distributor holds no rights for this film", http.StatusUnprocessableEntity)
		case errors.Is(err, repository.ErrDuplicatePayment):
			http.Error(w, "payment reference already recorded", http.StatusConflict)
		default:
			h.Logger.Error("record sale failed", "error", err)
			http.Error(w, "record sale failed", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(saleToResponse(sale, payout))
}

func saleToResponse(sale *models.Sale, payout *models.Payout) SaleResponse {
	resp := SaleResponse{
		ID:               sale.ID.String(),
		FilmID:           sale.FilmID.String(),
		Amount:           sale.Amount.Amount,
		Currency:         sale.Amount.Currency,
		PaymentRef:       sale.PaymentRef,
		FilmmakerShare:   payout.FilmmakerShare.Amount,
		DistributorShare: payout.DistributorShare.Amount,
		PlatformShare:    payout.PlatformShare.Amount,
	}
	if sale.DistributorID != nil {
		s := sale.DistributorID.String()
		resp.DistributorID = &s
	}
	return resp
}

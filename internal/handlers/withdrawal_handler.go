package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/quiflix/backend/internal/middleware"
	"github.com/quiflix/backend/internal/models"
	"github.com/quiflix/backend/internal/money"
	"github.com/quiflix/backend/internal/repository"
	"github.com/quiflix/backend/internal/services"
)

type WithdrawalRequestBody struct {
	Amount     int64  `json:"amount"`
	MpesaPhone string `json:"mpesa_phone"`
	MpesaName  string `json:"mpesa_name"`
}

type WithdrawalResponse struct {
	ID              string    `json:"id"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	ConvertedAmount int64     `json:"converted_amount"`
	PayoutCurrency  string    `json:"payout_currency"`
	Status          string    `json:"status"`
	LastError       *string   `json:"last_error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ProcessorCallbackBody is the processor's asynchronous completion
// notification.
type ProcessorCallbackBody struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type WithdrawalHandler struct {
	Withdrawals *services.WithdrawalService
	Currency    string
	Logger      *slog.Logger
}

// Request handles POST /v1/withdrawals.
func (h *WithdrawalHandler) Request(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req WithdrawalRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	withdrawal, err := h.Withdrawals.Request(r.Context(), services.WithdrawalRequest{
		PrincipalID: p.ID,
		Amount:      money.New(req.Amount, h.Currency),
		MpesaPhone:  req.MpesaPhone,
		MpesaName:   req.MpesaName,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount),
			errors.Is(err, services.ErrInvalidDestination):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrInsufficientBalance):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			h.Logger.Error("withdrawal request failed", "principal_id", p.ID, "error", err)
			http.Error(w, "withdrawal request failed", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(withdrawalToResponse(withdrawal))
}

// History handles GET /v1/withdrawals.
func (h *WithdrawalHandler) History(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.Withdrawals.History(r.Context(), p.ID)
	if err != nil {
		h.Logger.Error("withdrawal history failed", "principal_id", p.ID, "error", err)
		http.Error(w, "history failed", http.StatusInternalServerError)
		return
	}
	out := make([]WithdrawalResponse, 0, len(list))
	for _, withdrawal := range list {
		out = append(out, withdrawalToResponse(withdrawal))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// Callback handles POST /v1/payouts/callback. The processor retries
// delivery, so repeated notifications must stay harmless.
func (h *WithdrawalHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var body ProcessorCallbackBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if body.Reference == "" || body.Status == "" {
		http.Error(w, "missing reference or status", http.StatusBadRequest)
		return
	}
	err := h.Withdrawals.ApplyProcessorResult(r.Context(), body.Reference, body.Status, body.FailureReason)
	if err != nil {
		if errors.Is(err, repository.ErrWithdrawalNotFound) {
			http.Error(w, "unknown reference", http.StatusNotFound)
			return
		}
		h.Logger.Error("processor callback failed", "reference", body.Reference, "error", err)
		http.Error(w, "callback failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func withdrawalToResponse(withdrawal *models.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:              withdrawal.ID.String(),
		Amount:          withdrawal.Amount.Amount,
		Currency:        withdrawal.Amount.Currency,
		ConvertedAmount: withdrawal.ConvertedAmount.Amount,
		PayoutCurrency:  withdrawal.ConvertedAmount.Currency,
		Status:          withdrawal.Status,
		LastError:       withdrawal.LastError,
		CreatedAt:       withdrawal.CreatedAt,
	}
}

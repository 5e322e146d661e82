package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/quiflix/backend/internal/middleware"
	"github.com/quiflix/backend/internal/services"
)

type BalanceResponse struct {
	Balance   int64  `json:"balance"`
	Reserved  int64  `json:"reserved"`
	Available int64  `json:"available"`
	Currency  string `json:"currency"`
}

type BalanceHandler struct {
	Ledger *services.BalanceLedger
	Logger *slog.Logger
}

// GetBalance handles GET /v1/balance.
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	pos, err := h.Ledger.AvailableBalance(r.Context(), p.ID)
	if err != nil {
		h.Logger.Error("balance lookup failed", "principal_id", p.ID, "error", err)
		http.Error(w, "balance lookup failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(BalanceResponse{
		Balance:   pos.Total.Amount,
		Reserved:  pos.Reserved.Amount,
		Available: pos.Available.Amount,
		Currency:  pos.Total.Currency,
	})
}

package applications

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/quiflix/backend/internal/middleware"
	"github.com/quiflix/backend/internal/models"
)

type SubmitRequest struct {
	Type        string `json:"application_type"`
	CompanyName string `json:"company_name,omitempty"`
	FilmTitle   string `json:"film_title,omitempty"`
	FilmPrice   int64  `json:"film_price,omitempty"`
}

type ReviewRequest struct {
	Decision        string  `json:"decision"`
	AdminNotes      *string `json:"admin_notes,omitempty"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
}

type ApplicationResponse struct {
	ID              string     `json:"id"`
	Type            string     `json:"application_type"`
	Status          string     `json:"status"`
	CompanyName     *string    `json:"company_name,omitempty"`
	FilmTitle       *string    `json:"film_title,omitempty"`
	FilmPrice       *int64     `json:"film_price,omitempty"`
	AdminNotes      *string    `json:"admin_notes,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Submit handles POST /v1/applications.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	a, err := h.svc.Submit(r.Context(), SubmitInput{
		AccountID:   p.ID,
		Type:        req.Type,
		CompanyName: req.CompanyName,
		FilmTitle:   req.FilmTitle,
		FilmPrice:   req.FilmPrice,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidApplication):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrDuplicateApplication):
			http.Error(w, "application already submitted", http.StatusConflict)
		default:
			h.log.Error("submit application failed", "error", err)
			http.Error(w, "submit failed", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toResponse(a))
}

// ListMine handles GET /v1/applications.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListMine(r.Context(), p.ID)
	if err != nil {
		h.log.Error("list applications failed", "error", err)
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	writeList(w, list)
}

// Queue handles GET /v1/admin/applications?status=pending.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.ApplicationPending
	}
	list, err := h.svc.Queue(r.Context(), status)
	if err != nil {
		h.log.Error("application queue failed", "error", err)
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	writeList(w, list)
}

// Review handles PATCH /v1/admin/applications/{id}.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if p == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid application id", http.StatusBadRequest)
		return
	}
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	switch req.Decision {
	case "approve":
		err = h.svc.Approve(r.Context(), id, p.ID, req.AdminNotes)
	case "reject":
		err = h.svc.Reject(r.Context(), id, p.ID, req.RejectionReason, req.AdminNotes)
	case "under_review":
		err = h.svc.StartReview(r.Context(), id, p.ID, req.AdminNotes)
	default:
		http.Error(w, "decision must be approve, reject or under_review", http.StatusBadRequest)
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrApplicationNotFound):
			http.Error(w, "application not found", http.StatusNotFound)
		case errors.Is(err, ErrAlreadyReviewed):
			http.Error(w, "application already reviewed", http.StatusConflict)
		case errors.Is(err, ErrInvalidApplication):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.log.Error("review failed", "application_id", id, "error", err)
			http.Error(w, "review failed", http.StatusInternalServerError)
		}
		return
	}

	a, err := h.svc.Store.GetByID(r.Context(), id)
	if err != nil {
		h.log.Error("load reviewed application failed", "error", err)
		http.Error(w, "review failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toResponse(a))
}

func writeList(w http.ResponseWriter, list []*models.Application) {
	out := make([]ApplicationResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toResponse(a))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func toResponse(a *models.Application) ApplicationResponse {
	resp := ApplicationResponse{
		ID:              a.ID.String(),
		Type:            a.Type,
		Status:          a.Status,
		CompanyName:     a.CompanyName,
		FilmTitle:       a.FilmTitle,
		AdminNotes:      a.AdminNotes,
		RejectionReason: a.RejectionReason,
		ReviewedAt:      a.ReviewedAt,
		CreatedAt:       a.CreatedAt,
	}
	if a.FilmPrice != nil {
		resp.FilmPrice = &a.FilmPrice.Amount
	}
	return resp
}

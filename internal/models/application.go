package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/quiflix/backend/internal/money"
)

// Application types and statuses.
const (
	ApplicationFilmmaker   = "filmmaker"
	ApplicationDistributor = "distributor"

	ApplicationPending     = "pending"
	ApplicationUnderReview = "under_review"
	ApplicationApproved    = "approved"
	ApplicationRejected    = "rejected"
)

// Application is a request to join the marketplace as a filmmaker (with a
// film to list) or a distributor. Approval creates the Film or Distributor
// row and grants the role.
type Application struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	Type        string    `json:"application_type"`
	Status      string    `json:"status"`
	CompanyName *string   `json:"company_name,omitempty"`

	// Filmmaker applications carry the film to list on approval.
	FilmTitle *string      `json:"film_title,omitempty"`
	FilmPrice *money.Money `json:"film_price,omitempty"`

	AdminNotes      *string    `json:"admin_notes,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	ReviewedBy      *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

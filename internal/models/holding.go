package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/quiflix/backend/internal/money"
)

// Holding grants one distributor distribution rights for one film (the DDT).
// At most one holding exists per (distributor, film) pair. Holdings are never
// deleted; they are the per-pair audit trail of attributed sales.
type Holding struct {
	ID               uuid.UUID   `json:"id"`
	DistributorID    uuid.UUID   `json:"distributor_id"`
	FilmID           uuid.UUID   `json:"film_id"`
	SalesAttributed  money.Money `json:"sales_attributed"`
	EarnedAmount     money.Money `json:"earned_amount"`
	PersonalizedLink *string     `json:"personalized_link,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

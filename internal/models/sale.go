package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/quiflix/backend/internal/money"
)

// Sale is an immutable record of one purchase. DistributorID is nil for
// organic sales. Corrections require a compensating record, never an update.
type Sale struct {
	ID            uuid.UUID   `json:"id"`
	FilmID        uuid.UUID   `json:"film_id"`
	DistributorID *uuid.UUID  `json:"distributor_id,omitempty"`
	BuyerEmail    string      `json:"buyer_email"`
	Amount        money.Money `json:"amount"`
	PaymentRef    string      `json:"payment_ref"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Payout is the immutable revenue allocation of one sale, created atomically
// with it. The three shares sum exactly to the sale amount.
type Payout struct {
	ID               uuid.UUID   `json:"id"`
	SaleID           uuid.UUID   `json:"sale_id"`
	FilmID           uuid.UUID   `json:"film_id"`
	FilmmakerID      uuid.UUID   `json:"filmmaker_id"`
	DistributorID    *uuid.UUID  `json:"distributor_id,omitempty"`
	FilmmakerShare   money.Money `json:"filmmaker_share"`
	DistributorShare money.Money `json:"distributor_share"`
	PlatformShare    money.Money `json:"platform_share"`
	CreatedAt        time.Time   `json:"created_at"`
}

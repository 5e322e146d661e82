package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/quiflix/backend/internal/money"
)

// Film is created when a filmmaker application is approved. Its price is
// immutable once the film has recorded sales.
type Film struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Price       money.Money `json:"price"`
	FilmmakerID uuid.UUID   `json:"filmmaker_id"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Distributor is created when a distributor application is approved.
// Its ID is the owning account's ID, so the account is the principal for
// balance accounting.
type Distributor struct {
	ID            uuid.UUID `json:"id"`
	CompanyName   string    `json:"company_name"`
	WalletAddress *string   `json:"wallet_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

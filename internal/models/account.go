package models

import (
	"time"

	"github.com/google/uuid"
)

// Account roles. Filmmaker and distributor roles are granted on application
// approval; a principal can hold earnings under both roles at once.
const (
	RoleMember      = "member"
	RoleFilmmaker   = "filmmaker"
	RoleDistributor = "distributor"
	RoleAdmin       = "admin"
)

type Account struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name"`
	PasswordHash  string    `json:"-"`
	Role          string    `json:"role"`
	WalletAddress *string   `json:"wallet_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/quiflix/backend/internal/money"
)

// Withdrawal statuses. Transitions are monotonic:
// pending -> processing -> completed | failed, or pending -> failed.
const (
	WithdrawalPending    = "pending"
	WithdrawalProcessing = "processing"
	WithdrawalCompleted  = "completed"
	WithdrawalFailed     = "failed"
)

// Withdrawal is a request to pay out part of a principal's balance to an
// M-Pesa destination. Amounts in pending, processing, and completed status
// are reserved against the principal's available balance.
type Withdrawal struct {
	ID              uuid.UUID   `json:"id"`
	PrincipalID     uuid.UUID   `json:"principal_id"`
	Amount          money.Money `json:"amount"`
	ConvertedAmount money.Money `json:"converted_amount"`
	MpesaPhone      string      `json:"mpesa_phone"`
	MpesaName       string      `json:"mpesa_name"`
	Status          string      `json:"status"`
	// ClientRequestID is generated at creation and passed to the payout
	// processor so retries of the same submission are idempotent.
	ClientRequestID uuid.UUID  `json:"client_request_id"`
	ProcessorRef    *string    `json:"processor_ref,omitempty"`
	LastError       *string    `json:"last_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

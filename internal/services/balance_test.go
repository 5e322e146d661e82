package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/quiflix/backend/internal/models"
	"github.com/quiflix/backend/internal/money"
)

func TestBalanceOfDualRole(t *testing.T) {
	principal := uuid.New()
	sums := newMockPayoutSums()
	// Earned as filmmaker on own films and as distributor on others.
	sums.set(principal, 7000, 2500)

	ledger := &BalanceLedger{Payouts: sums, Withdrawals: newMockWithdrawals(), Currency: "USD"}
	total, err := ledger.BalanceOf(context.Background(), principal)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if total.Amount != 9500 {
		t.Errorf("balance = %d, want 9500", total.Amount)
	}
}

func TestBalanceOfNoEarnings(t *testing.T) {
	ledger := &BalanceLedger{Payouts: newMockPayoutSums(), Withdrawals: newMockWithdrawals(), Currency: "USD"}
	total, err := ledger.BalanceOf(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if total.Amount != 0 || total.Currency != "USD" {
		t.Errorf("balance = %s, want 0 USD", total)
	}
}

func TestAvailableBalanceReservations(t *testing.T) {
	principal := uuid.New()
	sums := newMockPayoutSums()
	sums.set(principal, 10000, 0)

	withdrawals := newMockWithdrawals(
		&models.Withdrawal{ID: uuid.New(), PrincipalID: principal,
			Amount: money.New(3000, "USD"), Status: models.WithdrawalPending},
		&models.Withdrawal{ID: uuid.New(), PrincipalID: principal,
			Amount: money.New(2000, "USD"), Status: models.WithdrawalProcessing},
		&models.Withdrawal{ID: uuid.New(), PrincipalID: principal,
			Amount: money.New(1000, "USD"), Status: models.WithdrawalCompleted},
		// Failed withdrawals release their reservation.
		&models.Withdrawal{ID: uuid.New(), PrincipalID: principal,
			Amount: money.New(4000, "USD"), Status: models.WithdrawalFailed},
	)

	ledger := &BalanceLedger{Payouts: sums, Withdrawals: withdrawals, Currency: "USD"}
	pos, err := ledger.AvailableBalance(context.Background(), principal)
	if err != nil {
		t.Fatalf("AvailableBalance: %v", err)
	}
	if pos.Total.Amount != 10000 {
		t.Errorf("total = %d, want 10000", pos.Total.Amount)
	}
	if pos.Reserved.Amount != 6000 {
		t.Errorf("reserved = %d, want 6000", pos.Reserved.Amount)
	}
	if pos.Available.Amount != 4000 {
		t.Errorf("available = %d, want 4000", pos.Available.Amount)
	}
	if pos.Available.Amount+pos.Reserved.Amount != pos.Total.Amount {
		t.Error("available + reserved must equal total")
	}
}

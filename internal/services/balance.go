package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quiflix/backend/internal/money"
)

// PayoutSums exposes the two disjoint share sums of the payouts table.
type PayoutSums interface {
	SumFilmmakerShares(ctx context.Context, principalID uuid.UUID, currency string) (money.Money, error)
	SumDistributorShares(ctx context.Context, principalID uuid.UUID, currency string) (money.Money, error)
	SumFilmmakerSharesTx(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, currency string) (money.Money, error)
	SumDistributorSharesTx(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, currency string) (money.Money, error)
}

// ReservedSums exposes the reserved-withdrawal sum.
type ReservedSums interface {
	SumReserved(ctx context.Context, principalID uuid.UUID, currency string) (money.Money, error)
	SumReservedTx(ctx context.Context, tx pgx.Tx, principalID uuid.UUID, currency string) (money.Money, error)
}

// Balance is a principal's ledger position. Available + Reserved == Total
// always holds.
type Balance struct {
	Total     money.Money `json:"balance"`
	Reserved  money.Money `json:"reserved"`
	Available money.Money `json:"available"`
}

// BalanceLedger aggregates payout records into withdrawable balances. A
// principal earns filmmaker shares on films they own and distributor shares
// on sales they attributed; the two sums are computed independently, so a
// principal holding both roles is counted correctly under each.
type BalanceLedger struct {
	Payouts     PayoutSums
	Withdrawals ReservedSums
	Currency    string
}

// BalanceOf returns the principal's total earned balance.
func (l *BalanceLedger) BalanceOf(ctx context.Context, principalID uuid.UUID) (money.Money, error) {
	filmmaker, err := l.Payouts.SumFilmmakerShares(ctx, principalID, l.Currency)
	if err != nil {
		return money.Money{}, err
	}
	distributor, err := l.Payouts.SumDistributorShares(ctx, principalID, l.Currency)
	if err != nil {
		return money.Money{}, err
	}
	return filmmaker.Add(distributor)
}

// AvailableBalance returns the full position: total earned, reserved by
// non-failed withdrawals, and the remainder available for new withdrawals.
func (l *BalanceLedger) AvailableBalance(ctx context.Context, principalID uuid.UUID) (Balance, error) {
	total, err := l.BalanceOf(ctx, principalID)
	if err != nil {
		return Balance{}, err
	}
	reserved, err := l.Withdrawals.SumReserved(ctx, principalID, l.Currency)
	if err != nil {
		return Balance{}, err
	}
	available, err := total.Sub(reserved)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Total: total, Reserved: reserved, Available: available}, nil
}

// AvailableBalanceTx computes the position inside the caller's transaction,
// for use under the per-principal withdrawal lock.
func (l *BalanceLedger) AvailableBalanceTx(ctx context.Context, tx pgx.Tx, principalID uuid.UUID) (Balance, error) {
	filmmaker, err := l.Payouts.SumFilmmakerSharesTx(ctx, tx, principalID, l.Currency)
	if err != nil {
		return Balance{}, err
	}
	distributor, err := l.Payouts.SumDistributorSharesTx(ctx, tx, principalID, l.Currency)
	if err != nil {
		return Balance{}, err
	}
	total, err := filmmaker.Add(distributor)
	if err != nil {
		return Balance{}, err
	}
	reserved, err := l.Withdrawals.SumReservedTx(ctx, tx, principalID, l.Currency)
	if err != nil {
		return Balance{}, err
	}
	available, err := total.Sub(reserved)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Total: total, Reserved: reserved, Available: available}, nil
}

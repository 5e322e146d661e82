// Package split computes the revenue allocation of a sale among the
// filmmaker, the attributing distributor, and the platform.
package split

import (
	"errors"
	"fmt"

	"github.com/quiflix/backend/internal/money"
)

// ErrInvalidPolicy is returned when the percentages do not form a valid policy.
var ErrInvalidPolicy = errors.New("invalid split policy")

// Policy is the percentage allocation applied to each sale. The three parts
// must sum to exactly 100.
type Policy struct {
	FilmmakerPct   int `json:"filmmaker_pct"`
	DistributorPct int `json:"distributor_pct"`
	PlatformPct    int `json:"platform_pct"`
}

// Default is the standard 70/20/10 allocation.
var Default = Policy{FilmmakerPct: 70, DistributorPct: 20, PlatformPct: 10}

// Validate checks that all parts are non-negative and sum to exactly 100.
func (p Policy) Validate() error {
	if p.FilmmakerPct < 0 || p.DistributorPct < 0 || p.PlatformPct < 0 {
		return fmt.Errorf("%w: negative percentage", ErrInvalidPolicy)
	}
	if sum := p.FilmmakerPct + p.DistributorPct + p.PlatformPct; sum != 100 {
		return fmt.Errorf("%w: percentages sum to %d, want 100", ErrInvalidPolicy, sum)
	}
	return nil
}

// Shares is the exact allocation of one sale. The three amounts always sum
// to the sale amount.
type Shares struct {
	Filmmaker   money.Money
	Distributor money.Money
	Platform    money.Money
}

// Calculate splits sale according to the policy. Integer percentage division
// can leave a remainder of up to 2 minor units; the remainder is credited to
// the platform share so the three parts sum exactly to the sale amount.
//
// When hasDistributor is false (an organic sale with no referral), the
// distributor percentage folds into the platform share rather than being
// dropped.
func Calculate(sale money.Money, p Policy, hasDistributor bool) (Shares, error) {
	if err := p.Validate(); err != nil {
		return Shares{}, err
	}
	if sale.Amount < 0 {
		return Shares{}, fmt.Errorf("%w: negative sale amount %d", ErrInvalidPolicy, sale.Amount)
	}

	filmmaker := sale.Amount * int64(p.FilmmakerPct) / 100
	distributor := int64(0)
	if hasDistributor {
		distributor = sale.Amount * int64(p.DistributorPct) / 100
	}
	platform := sale.Amount - filmmaker - distributor

	return Shares{
		Filmmaker:   money.New(filmmaker, sale.Currency),
		Distributor: money.New(distributor, sale.Currency),
		Platform:    money.New(platform, sale.Currency),
	}, nil
}

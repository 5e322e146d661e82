// Package money represents currency amounts as integer counts of minor units
// (cents for USD, cents for KES). No monetary value in the system is ever
// held or computed as a float.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrCurrencyMismatch is returned when arithmetic mixes two currencies.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// ErrInvalidRate is returned when an exchange rate cannot be parsed or has a
// zero denominator.
var ErrInvalidRate = errors.New("invalid exchange rate")

// Money is an amount in minor units of a single currency.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// New returns a Money of amount minor units in the given currency.
func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// Zero returns the zero amount in the given currency.
func Zero(currency string) Money {
	return Money{Currency: currency}
}

// Add returns m + other, failing if the currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub returns m - other, failing if the currencies differ.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Cmp compares m against other: -1 if m < other, 0 if equal, +1 if m > other.
// Comparing different currencies is a programming error and returns an error.
func (m Money) Cmp(other Money) (int, error) {
	if m.Currency != other.Currency {
		return 0, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	switch {
	case m.Amount < other.Amount:
		return -1, nil
	case m.Amount > other.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}

// Rate is an exchange rate expressed as the exact rational Num/Den, in
// destination minor units per source minor unit.
type Rate struct {
	Num      int64
	Den      int64
	From, To string
}

// ParseRate parses a decimal rate string such as "129.25" into an exact
// rational. from and to are currency codes.
func ParseRate(s, from, to string) (Rate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rate{}, fmt.Errorf("%w: empty", ErrInvalidRate)
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return Rate{}, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}
	den := int64(1)
	for range fracPart {
		den *= 10
	}
	num, err := strconv.ParseInt(intPart+fracPart, 10, 64)
	if err != nil {
		return Rate{}, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}
	if num <= 0 {
		return Rate{}, fmt.Errorf("%w: rate must be positive", ErrInvalidRate)
	}
	return Rate{Num: num, Den: den, From: from, To: to}, nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Convert converts m into the rate's destination currency, rounding half-up
// on the destination minor unit. Silent truncation is never performed.
func (m Money) Convert(r Rate) (Money, error) {
	if r.Den <= 0 || r.Num <= 0 {
		return Money{}, ErrInvalidRate
	}
	if m.Currency != r.From {
		return Money{}, fmt.Errorf("%w: amount is %s, rate converts from %s", ErrCurrencyMismatch, m.Currency, r.From)
	}
	// round-half-up: floor((amount*num + den/2) / den), sign-aware.
	product := m.Amount * r.Num
	half := r.Den / 2
	var converted int64
	if product >= 0 {
		converted = (product + half) / r.Den
	} else {
		converted = (product - half) / r.Den
	}
	return Money{Amount: converted, Currency: r.To}, nil
}

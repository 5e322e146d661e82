// Package referral encodes and decodes distributor referral codes.
//
// Grammar (fixed, three underscore-separated fields after the "ref_" tag):
//
//	ref_<distributor prefix>_<film prefix>_<suffix>
//
// The distributor and film prefixes are the first 8 characters of the
// respective identifiers (hex for UUIDs; validated as 8 lowercase
// alphanumerics). The suffix is 6 random base36 characters and exists only
// to make codes unique per generation.
package referral

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	prefixTag = "ref"
	prefixLen = 8
	suffixLen = 6

	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// ErrInvalidFormat is returned when a code does not match the grammar.
var ErrInvalidFormat = errors.New("invalid referral code format")

// Decoded holds the identifier prefixes carried by a well-formed code.
// Prefixes are resolved to full identifiers by an injective repository
// lookup; they are never matched loosely.
type Decoded struct {
	DistributorPrefix string
	FilmPrefix        string
	Suffix            string
}

// Encode builds a referral code for the (distributor, film) pair.
func Encode(distributorID, filmID uuid.UUID) (string, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return "", fmt.Errorf("generate referral suffix: %w", err)
	}
	return fmt.Sprintf("%s_%s_%s_%s",
		prefixTag,
		idPrefix(distributorID),
		idPrefix(filmID),
		suffix,
	), nil
}

// Decode parses a referral code, failing with ErrInvalidFormat on any
// malformed input. It never guesses.
func Decode(code string) (Decoded, error) {
	parts := strings.Split(code, "_")
	if len(parts) != 4 {
		return Decoded{}, fmt.Errorf("%w: expected 4 fields, got %d", ErrInvalidFormat, len(parts))
	}
	if parts[0] != prefixTag {
		return Decoded{}, fmt.Errorf("%w: missing %q tag", ErrInvalidFormat, prefixTag)
	}
	if !isBase36(parts[1]) || len(parts[1]) != prefixLen {
		return Decoded{}, fmt.Errorf("%w: bad distributor prefix %q", ErrInvalidFormat, parts[1])
	}
	if !isBase36(parts[2]) || len(parts[2]) != prefixLen {
		return Decoded{}, fmt.Errorf("%w: bad film prefix %q", ErrInvalidFormat, parts[2])
	}
	if !isBase36(parts[3]) {
		return Decoded{}, fmt.Errorf("%w: bad suffix %q", ErrInvalidFormat, parts[3])
	}
	return Decoded{
		DistributorPrefix: parts[1],
		FilmPrefix:        parts[2],
		Suffix:            parts[3],
	}, nil
}

// MatchesFilm reports whether the decoded film prefix belongs to filmID.
func (d Decoded) MatchesFilm(filmID uuid.UUID) bool {
	return d.FilmPrefix == idPrefix(filmID)
}

func idPrefix(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")[:prefixLen]
}

func randomSuffix() (string, error) {
	max := big.NewInt(int64(len(base36Alphabet)))
	b := make([]byte, suffixLen)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = base36Alphabet[n.Int64()]
	}
	return string(b), nil
}

func isBase36(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return len(s) > 0
}

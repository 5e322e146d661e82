package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quiflix/backend/internal/models"
	"github.com/quiflix/backend/internal/referral"
)

// ErrCodeFilmMismatch is returned when a referral code's film prefix does
// not belong to the film being purchased.
var ErrCodeFilmMismatch = errors.New("referral code does not match this film")

// ReferralHoldings is the holding repository surface the referral service needs.
type ReferralHoldings interface {
	GetByPair(ctx context.Context, distributorID, filmID uuid.UUID) (*models.Holding, error)
	ListByDistributor(ctx context.Context, distributorID uuid.UUID) ([]*models.Holding, error)
	SetPersonalizedLink(ctx context.Context, id uuid.UUID, link string) (string, error)
}

// ReferralDistributors resolves distributors, including the injective prefix
// lookup used when tracking referred sales.
type ReferralDistributors interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Distributor, error)
	ResolveByIDPrefix(ctx context.Context, prefix string) (*models.Distributor, error)
}

// ReferralService issues personalized referral links and resolves referral
// codes back to the attributing distributor.
type ReferralService struct {
	Holdings     ReferralHoldings
	Distributors ReferralDistributors
	BaseURL      string
	Logger       *slog.Logger
}

// Link is a generated referral link for one holding.
type Link struct {
	Code      string `json:"referral_code"`
	URL       string `json:"referral_link"`
	ShortURL  string `json:"short_link"`
	HoldingID uuid.UUID `json:"holding_id"`
}

// GenerateLink creates a referral code for the distributor's holding of the
// film. The personalized link persists on the holding first-writer-wins;
// the stored link is returned so repeated generations agree.
func (s *ReferralService) GenerateLink(ctx context.Context, distributorID, filmID uuid.UUID) (*Link, error) {
	// Only a distributor holding the film's DDT may generate a link.
	if _, err := s.Distributors.GetByID(ctx, distributorID); err != nil {
		return nil, err
	}
	holding, err := s.Holdings.GetByPair(ctx, distributorID, filmID)
	if err != nil {
		return nil, err
	}

	code, err := referral.Encode(distributorID, filmID)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/films/%s?ref=%s", s.BaseURL, filmID, code)

	stored, err := s.Holdings.SetPersonalizedLink(ctx, holding.ID, url)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("referral link generated", "distributor_id", distributorID, "film_id", filmID)
	return &Link{
		Code:      code,
		URL:       stored,
		ShortURL:  fmt.Sprintf("%s/r/%s", s.BaseURL, code),
		HoldingID: holding.ID,
	}, nil
}

// ListLinks returns the distributor's holdings with their referral links and
// attribution totals.
func (s *ReferralService) ListLinks(ctx context.Context, distributorID uuid.UUID) ([]*models.Holding, error) {
	return s.Holdings.ListByDistributor(ctx, distributorID)
}

// Resolve decodes a referral code and resolves it to the attributing
// distributor for the given film. Malformed codes fail with
// referral.ErrInvalidFormat; a prefix matching several distributors fails
// with repository.ErrAmbiguousPrefix rather than picking one.
func (s *ReferralService) Resolve(ctx context.Context, code string, filmID uuid.UUID) (*models.Distributor, error) {
	decoded, err := referral.Decode(code)
	if err != nil {
		return nil, err
	}
	if !decoded.MatchesFilm(filmID) {
		return nil, ErrCodeFilmMismatch
	}
	return s.Distributors.ResolveByIDPrefix(ctx, decoded.DistributorPrefix)
}

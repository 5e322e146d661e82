package applications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quiflix/backend/internal/models"
	"github.com/quiflix/backend/internal/money"
)

var ErrInvalidApplication = errors.New("invalid application")

// Store is the repository surface the service needs.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, a *models.Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.Application, error)
	ListByStatus(ctx context.Context, status string) ([]*models.Application, error)
	SetUnderReview(ctx context.Context, id, reviewerID uuid.UUID, notes *string) error
	SettleTx(ctx context.Context, tx pgx.Tx, id, reviewerID uuid.UUID, status string, notes, rejectionReason *string) error
	SetAccountRoleTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, role string) error
}

// FilmCreator creates the approved filmmaker's film in the approval tx.
type FilmCreator interface {
	CreateTx(ctx context.Context, tx pgx.Tx, f *models.Film) error
}

// DistributorCreator creates the approved distributor in the approval tx.
type DistributorCreator interface {
	CreateTx(ctx context.Context, tx pgx.Tx, d *models.Distributor) error
}

// Service handles application submission and admin review. Approval creates
// the Film or Distributor row and grants the role, atomically with the
// status change.
type Service struct {
	Store        Store
	Films        FilmCreator
	Distributors DistributorCreator
	Currency     string
	Logger       *slog.Logger
}

// SubmitInput carries one application submission.
type SubmitInput struct {
	AccountID   uuid.UUID
	Type        string
	CompanyName string
	FilmTitle   string
	FilmPrice   int64
}

// Submit validates and creates a pending application.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Application, error) {
	a := &models.Application{
		ID:        uuid.New(),
		AccountID: in.AccountID,
		Type:      in.Type,
		Status:    models.ApplicationPending,
	}
	switch in.Type {
	case models.ApplicationFilmmaker:
		title := strings.TrimSpace(in.FilmTitle)
		if title == "" {
			return nil, fmt.Errorf("%w: film title is required", ErrInvalidApplication)
		}
		if in.FilmPrice <= 0 {
			return nil, fmt.Errorf("%w: film price must be positive", ErrInvalidApplication)
		}
		price := money.New(in.FilmPrice, s.Currency)
		a.FilmTitle = &title
		a.FilmPrice = &price
	case models.ApplicationDistributor:
		company := strings.TrimSpace(in.CompanyName)
		if company == "" {
			return nil, fmt.Errorf("%w: company name is required", ErrInvalidApplication)
		}
		a.CompanyName = &company
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidApplication, in.Type)
	}

	if err := s.Store.Create(ctx, a); err != nil {
		return nil, err
	}
	s.Logger.Info("application submitted", "application_id", a.ID, "type", a.Type)
	return a, nil
}

// ListMine returns the account's applications.
func (s *Service) ListMine(ctx context.Context, accountID uuid.UUID) ([]*models.Application, error) {
	return s.Store.ListByAccount(ctx, accountID)
}

// Queue returns the admin review queue for one status.
func (s *Service) Queue(ctx context.Context, status string) ([]*models.Application, error) {
	return s.Store.ListByStatus(ctx, status)
}

// StartReview moves a pending application to under_review.
func (s *Service) StartReview(ctx context.Context, id, reviewerID uuid.UUID, notes *string) error {
	return s.Store.SetUnderReview(ctx, id, reviewerID, notes)
}

// Approve settles the application, creates the Film or Distributor, and
// grants the role, all in one transaction.
func (s *Service) Approve(ctx context.Context, id, reviewerID uuid.UUID, notes *string) error {
	a, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin approval tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.Store.SettleTx(ctx, tx, id, reviewerID, models.ApplicationApproved, notes, nil); err != nil {
		return err
	}

	switch a.Type {
	case models.ApplicationFilmmaker:
		film := &models.Film{
			ID:          uuid.New(),
			Title:       *a.FilmTitle,
			Price:       *a.FilmPrice,
			FilmmakerID: a.AccountID,
		}
		if err := s.Films.CreateTx(ctx, tx, film); err != nil {
			return err
		}
		if err := s.Store.SetAccountRoleTx(ctx, tx, a.AccountID, models.RoleFilmmaker); err != nil {
			return err
		}
	case models.ApplicationDistributor:
		// Distributor ID is the account ID, so the account is the balance
		// principal for distributor earnings.
		d := &models.Distributor{ID: a.AccountID, CompanyName: *a.CompanyName}
		if err := s.Distributors.CreateTx(ctx, tx, d); err != nil {
			return err
		}
		if err := s.Store.SetAccountRoleTx(ctx, tx, a.AccountID, models.RoleDistributor); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidApplication, a.Type)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit approval tx: %w", err)
	}
	s.Logger.Info("application approved", "application_id", id, "type", a.Type, "reviewer", reviewerID)
	return nil
}

// Reject settles the application as rejected with a reason.
func (s *Service) Reject(ctx context.Context, id, reviewerID uuid.UUID, reason string, notes *string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: rejection reason is required", ErrInvalidApplication)
	}
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rejection tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.Store.SettleTx(ctx, tx, id, reviewerID, models.ApplicationRejected, notes, &reason); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rejection tx: %w", err)
	}
	s.Logger.Info("application rejected", "application_id", id, "reviewer", reviewerID)
	return nil
}

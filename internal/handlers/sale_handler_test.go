package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quiflix/backend/internal/models"
	"github.com/quiflix/backend/internal/money"
	"github.com/quiflix/backend/internal/referral"
	"github.com/quiflix/backend/internal/repository"
	"github.com/quiflix/backend/internal/services"
	"github.com/quiflix/backend/internal/split"
)

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type stubDB struct{}

func (stubDB) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

type stubFilms struct{ film *models.Film }

func (s stubFilms) GetByIDTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Film, error) {
	if s.film == nil || s.film.ID != id {
		return nil, pgx.ErrNoRows
	}
	return s.film, nil
}

type stubSales struct{ refs map[string]bool }

func (s stubSales) CreateTx(_ context.Context, _ pgx.Tx, sale *models.Sale) error {
	if s.refs[sale.PaymentRef] {
		return repository.ErrDuplicatePayment
	}
	s.refs[sale.PaymentRef] = true
	return nil
}

type stubPayouts struct{}

func (stubPayouts) CreateTx(context.Context, pgx.Tx, *models.Payout) error { return nil }

type stubHoldings struct{ known map[uuid.UUID]bool }

func (s stubHoldings) IncrementTx(_ context.Context, _ pgx.Tx, distributorID, _ uuid.UUID, _, _ money.Money) error {
	if !s.known[distributorID] {
		return repository.ErrHoldingNotFound
	}
	return nil
}

func newSaleHandler(film *models.Film, distributorID uuid.UUID) *SaleHandler {
	recorder := &services.SaleRecorder{
		DB:       stubDB{},
		Films:    stubFilms{film: film},
		Sales:    stubSales{refs: map[string]bool{}},
		Payouts:  stubPayouts{},
		Holdings: stubHoldings{known: map[uuid.UUID]bool{distributorID: true}},
		Policy:   split.Default,
		Currency: "USD",
		Logger:   slog.Default(),
	}
	return &SaleHandler{Recorder: recorder, Currency: "USD", Logger: slog.Default()}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestRecordSaleEndpoint(t *testing.T) {
	distributorID := uuid.New()
	film := &models.Film{ID: uuid.New(), Title: "T", Price: money.New(999, "USD"), FilmmakerID: uuid.New()}
	h := newSaleHandler(film, distributorID)

	body := `{"film_id":"` + film.ID.String() + `","distributor_id":"` + distributorID.String() +
		`","amount":999,"buyer_email":"b@example.com","payment_ref":"pay_1"}`
	rec := postJSON(t, h.RecordSale, "/v1/sales", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"filmmaker_share":699`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	// Same payment_ref again conflicts.
	rec = postJSON(t, h.RecordSale, "/v1/sales", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}
}

func TestRecordSaleEndpointBadInput(t *testing.T) {
	film := &models.Film{ID: uuid.New(), Title: "T", Price: money.New(999, "USD"), FilmmakerID: uuid.New()}
	h := newSaleHandler(film, uuid.New())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"bad film id", `{"film_id":"nope","amount":1,"buyer_email":"b@x.com","payment_ref":"p"}`, http.StatusBadRequest},
		{"unknown film", `{"film_id":"` + uuid.New().String() + `","amount":1,"buyer_email":"b@x.com","payment_ref":"p"}`, http.StatusNotFound},
		{"zero amount", `{"film_id":"` + film.ID.String() + `","amount":0,"buyer_email":"b@x.com","payment_ref":"p"}`, http.StatusBadRequest},
		{"unknown distributor", `{"film_id":"` + film.ID.String() + `","distributor_id":"` + uuid.New().String() + `","amount":5,"buyer_email":"b@x.com","payment_ref":"p"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.RecordSale, "/v1/sales", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func encodeCode(t *testing.T, distributorID, filmID uuid.UUID) string {
	t.Helper()
	code, err := referral.Encode(distributorID, filmID)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return code
}

type stubReferralDistributors struct{ d *models.Distributor }

func (s stubReferralDistributors) GetByID(_ context.Context, id uuid.UUID) (*models.Distributor, error) {
	if s.d == nil || s.d.ID != id {
		return nil, repository.ErrDistributorNotFound
	}
	return s.d, nil
}

func (s stubReferralDistributors) ResolveByIDPrefix(_ context.Context, prefix string) (*models.Distributor, error) {
	if s.d != nil && strings.HasPrefix(strings.ReplaceAll(s.d.ID.String(), "-", ""), prefix) {
		return s.d, nil
	}
	return nil, repository.ErrDistributorNotFound
}

type stubReferralHoldings struct{}

func (stubReferralHoldings) GetByPair(context.Context, uuid.UUID, uuid.UUID) (*models.Holding, error) {
	return nil, repository.ErrHoldingNotFound
}
func (stubReferralHoldings) ListByDistributor(context.Context, uuid.UUID) ([]*models.Holding, error) {
	return nil, nil
}
func (stubReferralHoldings) SetPersonalizedLink(context.Context, uuid.UUID, string) (string, error) {
	return "", repository.ErrHoldingNotFound
}

func TestTrackReferralEndpoint(t *testing.T) {
	distributor := &models.Distributor{ID: uuid.New(), CompanyName: "EA"}
	film := &models.Film{ID: uuid.New(), Title: "T", Price: money.New(999, "USD"), FilmmakerID: uuid.New()}
	h := newSaleHandler(film, distributor.ID)
	h.Referrals = &services.ReferralService{
		Holdings:     stubReferralHoldings{},
		Distributors: stubReferralDistributors{d: distributor},
		BaseURL:      "https://quiflix.example.com",
		Logger:       slog.Default(),
	}

	code := encodeCode(t, distributor.ID, film.ID)
	body := `{"referral_code":"` + code + `","film_id":"` + film.ID.String() +
		`","amount":999,"buyer_email":"b@example.com","payment_ref":"pay_track"}`
	rec := postJSON(t, h.TrackReferral, "/v1/referrals/track", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), distributor.ID.String()) {
		t.Errorf("attributed distributor missing from %s", rec.Body.String())
	}

	// Malformed code is the caller's fault.
	rec = postJSON(t, h.TrackReferral, "/v1/referrals/track",
		`{"referral_code":"nope","film_id":"`+film.ID.String()+`","amount":1,"buyer_email":"b@x.com","payment_ref":"p2"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed code status = %d, want 400", rec.Code)
	}
}

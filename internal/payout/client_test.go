package payout

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestClient(t *testing.T, url string) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(url, "test-key", 5*time.Second, slog.Default())
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	return c
}

func TestSubmitPayout(t *testing.T) {
	clientRequestID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payouts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Idempotency-Key"); got != clientRequestID.String() {
			t.Errorf("Idempotency-Key = %q, want %q", got, clientRequestID)
		}
		if got := r.Header.Get("X-API-Key"); got != "test-key" {
			t.Errorf("X-API-Key = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"reference":"ptm_12345","status":"processing"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res, err := c.SubmitPayout(context.Background(), SubmitRequest{
		ClientRequestID: clientRequestID,
		Amount:          646250,
		Currency:        "KES",
		PhoneNumber:     "+254712345678",
		AccountName:     "Jane Wanjiku",
	})
	if err != nil {
		t.Fatalf("SubmitPayout: %v", err)
	}
	if res.ProcessorRef != "ptm_12345" || res.Status != "processing" {
		t.Errorf("result = %+v", res)
	}
}

func TestSubmitPayoutRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"reference":"ptm_retry","status":"processing"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res, err := c.SubmitPayout(context.Background(), SubmitRequest{
		ClientRequestID: uuid.New(), Amount: 100, Currency: "KES",
		PhoneNumber: "0712345678", AccountName: "J",
	})
	if err != nil {
		t.Fatalf("SubmitPayout: %v", err)
	}
	if res.ProcessorRef != "ptm_retry" {
		t.Errorf("result = %+v", res)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestSubmitPayoutRejectedNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"failure_reason":"recipient not registered"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.SubmitPayout(context.Background(), SubmitRequest{
		ClientRequestID: uuid.New(), Amount: 100, Currency: "KES",
		PhoneNumber: "0712345678", AccountName: "J",
	})
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("got %v, want RejectedError", err)
	}
	if rejected.Reason != "recipient not registered" {
		t.Errorf("reason = %q", rejected.Reason)
	}
	if calls.Load() != 1 {
		t.Errorf("rejections must not be retried, got %d calls", calls.Load())
	}
}

func TestGetPayout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/payouts/ptm_done":
			w.Write([]byte(`{"reference":"ptm_done","status":"completed"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res, err := c.GetPayout(context.Background(), "ptm_done")
	if err != nil {
		t.Fatalf("GetPayout: %v", err)
	}
	if res.Status != "completed" {
		t.Errorf("status = %q, want completed", res.Status)
	}

	if _, err := c.GetPayout(context.Background(), "ptm_missing"); !errors.Is(err, ErrPayoutNotFound) {
		t.Errorf("got %v, want ErrPayoutNotFound", err)
	}
}

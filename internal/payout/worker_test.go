package payout

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/quiflix/backend/internal/models"
	"github.com/quiflix/backend/internal/money"
	"github.com/quiflix/backend/internal/repository"
)

type mockStore struct {
	withdrawals map[uuid.UUID]*models.Withdrawal
}

func newMockStore(ws ...*models.Withdrawal) *mockStore {
	m := &mockStore{withdrawals: make(map[uuid.UUID]*models.Withdrawal)}
	for _, w := range ws {
		cp := *w
		m.withdrawals[w.ID] = &cp
	}
	return m
}

func (m *mockStore) GetByID(_ context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	w, ok := m.withdrawals[id]
	if !ok {
		return nil, repository.ErrWithdrawalNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *mockStore) MarkProcessing(_ context.Context, id uuid.UUID, ref string) error {
	w := m.withdrawals[id]
	if w.Status != models.WithdrawalPending {
		return repository.ErrInvalidTransition
	}
	w.Status = models.WithdrawalProcessing
	w.ProcessorRef = &ref
	w.LastError = nil
	return nil
}

func (m *mockStore) MarkCompleted(_ context.Context, id uuid.UUID) error {
	w := m.withdrawals[id]
	if w.Status != models.WithdrawalProcessing {
		return repository.ErrInvalidTransition
	}
	w.Status = models.WithdrawalCompleted
	return nil
}

func (m *mockStore) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	w := m.withdrawals[id]
	if w.Status != models.WithdrawalPending && w.Status != models.WithdrawalProcessing {
		return repository.ErrInvalidTransition
	}
	w.Status = models.WithdrawalFailed
	w.LastError = &reason
	return nil
}

func (m *mockStore) RecordError(_ context.Context, id uuid.UUID, errMsg string) error {
	m.withdrawals[id].LastError = &errMsg
	return nil
}

type mockClient struct {
	submitResult *Result
	submitErr    error
	getResult    *Result
	getErr       error
	submits      []SubmitRequest
	gets         int
}

func (m *mockClient) SubmitPayout(_ context.Context, req SubmitRequest) (*Result, error) {
	m.submits = append(m.submits, req)
	return m.submitResult, m.submitErr
}

func (m *mockClient) GetPayout(context.Context, string) (*Result, error) {
	m.gets++
	return m.getResult, m.getErr
}

func pendingWithdrawal() *models.Withdrawal {
	return &models.Withdrawal{
		ID:              uuid.New(),
		PrincipalID:     uuid.New(),
		Amount:          money.New(5000, "USD"),
		ConvertedAmount: money.New(646250, "KES"),
		MpesaPhone:      "+254712345678",
		MpesaName:       "Jane Wanjiku",
		Status:          models.WithdrawalPending,
		ClientRequestID: uuid.New(),
	}
}

func submitJob(id uuid.UUID) *river.Job[SubmitPayoutJobArgs] {
	return &river.Job[SubmitPayoutJobArgs]{Args: SubmitPayoutJobArgs{WithdrawalID: id}}
}

func checkJob(id uuid.UUID) *river.Job[CheckPayoutJobArgs] {
	return &river.Job[CheckPayoutJobArgs]{Args: CheckPayoutJobArgs{WithdrawalID: id}}
}

func noopEnqueueCheck(context.Context, uuid.UUID, time.Duration) error { return nil }

func TestSubmitPayoutWorker(t *testing.T) {
	w := pendingWithdrawal()
	store := newMockStore(w)
	client := &mockClient{submitResult: &Result{ProcessorRef: "ptm_123", Status: "processing"}}
	var checks []uuid.UUID
	worker := NewSubmitPayoutWorker(store, client,
		func(_ context.Context, id uuid.UUID, _ time.Duration) error {
			checks = append(checks, id)
			return nil
		}, slog.Default())

	if err := worker.Work(context.Background(), submitJob(w.ID)); err != nil {
		t.Fatalf("Work: %v", err)
	}
	got, _ := store.GetByID(context.Background(), w.ID)
	if got.Status != models.WithdrawalProcessing {
		t.Errorf("status = %s, want processing", got.Status)
	}
	if got.ProcessorRef == nil || *got.ProcessorRef != "ptm_123" {
		t.Errorf("processor_ref = %v", got.ProcessorRef)
	}
	if len(checks) != 1 || checks[0] != w.ID {
		t.Errorf("check jobs = %v, want one for %s", checks, w.ID)
	}
	// The submission carries the withdrawal's own client request ID.
	if len(client.submits) != 1 || client.submits[0].ClientRequestID != w.ClientRequestID {
		t.Errorf("submits = %+v", client.submits)
	}
	if client.submits[0].Amount != 646250 || client.submits[0].Currency != "KES" {
		t.Errorf("submitted converted amount = %d %s", client.submits[0].Amount, client.submits[0].Currency)
	}
}

func TestSubmitPayoutWorkerImmediateCompletion(t *testing.T) {
	w := pendingWithdrawal()
	store := newMockStore(w)
	client := &mockClient{submitResult: &Result{ProcessorRef: "ptm_fast", Status: "completed"}}
	worker := NewSubmitPayoutWorker(store, client, noopEnqueueCheck, slog.Default())

	if err := worker.Work(context.Background(), submitJob(w.ID)); err != nil {
		t.Fatalf("Work: %v", err)
	}
	got, _ := store.GetByID(context.Background(), w.ID)
	if got.Status != models.WithdrawalCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
}

func TestSubmitPayoutWorkerRejection(t *testing.T) {
	w := pendingWithdrawal()
	store := newMockStore(w)
	client := &mockClient{submitErr: &RejectedError{StatusCode: 422, Reason: "recipient not registered"}}
	worker := NewSubmitPayoutWorker(store, client, noopEnqueueCheck, slog.Default())

	if err := worker.Work(context.Background(), submitJob(w.ID)); err != nil {
		t.Fatalf("Work: %v", err)
	}
	got, _ := store.GetByID(context.Background(), w.ID)
	if got.Status != models.WithdrawalFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.LastError == nil || *got.LastError != "recipient not registered" {
		t.Errorf("last_error = %v", got.LastError)
	}
}

func TestSubmitPayoutWorkerTransientError(t *testing.T) {
	w := pendingWithdrawal()
	store := newMockStore(w)
	client := &mockClient{submitErr: errors.New("connection reset")}
	worker := NewSubmitPayoutWorker(store, client, noopEnqueueCheck, slog.Default())

	if err := worker.Work(context.Background(), submitJob(w.ID)); err == nil {
		t.Fatal("transient error must be returned so the job retries")
	}
	got, _ := store.GetByID(context.Background(), w.ID)
	// Still pending: the reservation holds and the retry resubmits.
	if got.Status != models.WithdrawalPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if got.LastError == nil || *got.LastError != "connection reset" {
		t.Errorf("last_error = %v", got.LastError)
	}
}

func TestSubmitPayoutWorkerAlreadyProcessing(t *testing.T) {
	w := pendingWithdrawal()
	ref := "ptm_prior"
	w.Status = models.WithdrawalProcessing
	w.ProcessorRef = &ref
	store := newMockStore(w)
	client := &mockClient{}
	var checks int
	worker := NewSubmitPayoutWorker(store, client,
		func(context.Context, uuid.UUID, time.Duration) error { checks++; return nil }, slog.Default())

	if err := worker.Work(context.Background(), submitJob(w.ID)); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if len(client.submits) != 0 {
		t.Error("an already-submitted withdrawal must not be resubmitted")
	}
	if checks != 1 {
		t.Errorf("check jobs = %d, want 1", checks)
	}
}

func TestSubmitPayoutWorkerSettledWithdrawalIsNoop(t *testing.T) {
	w := pendingWithdrawal()
	w.Status = models.WithdrawalCompleted
	store := newMockStore(w)
	client := &mockClient{}
	worker := NewSubmitPayoutWorker(store, client, noopEnqueueCheck, slog.Default())

	if err := worker.Work(context.Background(), submitJob(w.ID)); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if len(client.submits) != 0 {
		t.Error("a settled withdrawal must not be resubmitted")
	}
}

func TestCheckPayoutWorkerSettles(t *testing.T) {
	w := pendingWithdrawal()
	ref := "ptm_check"
	w.Status = models.WithdrawalProcessing
	w.ProcessorRef = &ref
	store := newMockStore(w)
	worker := NewCheckPayoutWorker(store, &mockClient{
		getResult: &Result{ProcessorRef: ref, Status: "completed"},
	}, slog.Default())

	if err := worker.Work(context.Background(), checkJob(w.ID)); err != nil {
		t.Fatalf("Work: %v", err)
	}
	got, _ := store.GetByID(context.Background(), w.ID)
	if got.Status != models.WithdrawalCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
}

func TestCheckPayoutWorkerStillProcessingSnoozes(t *testing.T) {
	w := pendingWithdrawal()
	ref := "ptm_slow"
	w.Status = models.WithdrawalProcessing
	w.ProcessorRef = &ref
	store := newMockStore(w)
	worker := NewCheckPayoutWorker(store, &mockClient{
		getResult: &Result{ProcessorRef: ref, Status: "processing"},
	}, slog.Default())

	if err := worker.Work(context.Background(), checkJob(w.ID)); err == nil {
		t.Fatal("still-processing payout should snooze the job")
	}
	got, _ := store.GetByID(context.Background(), w.ID)
	if got.Status != models.WithdrawalProcessing {
		t.Errorf("status = %s, want processing", got.Status)
	}
}

func TestCheckPayoutWorkerSettledElsewhere(t *testing.T) {
	w := pendingWithdrawal()
	w.Status = models.WithdrawalCompleted
	store := newMockStore(w)
	client := &mockClient{}
	worker := NewCheckPayoutWorker(store, client, slog.Default())

	if err := worker.Work(context.Background(), checkJob(w.ID)); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if client.gets != 0 {
		t.Error("a settled withdrawal must not be polled")
	}
}

package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/quiflix/backend/internal/models"
	"github.com/quiflix/backend/internal/repository"
)

// SubmitPayoutJobArgs submits one pending withdrawal to the processor.
type SubmitPayoutJobArgs struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
}

func (SubmitPayoutJobArgs) Kind() string { return "submit_payout" }

// CheckPayoutJobArgs polls the processor for a withdrawal in processing.
type CheckPayoutJobArgs struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
}

func (CheckPayoutJobArgs) Kind() string { return "check_payout" }

// WithdrawalStore is the repository surface the workers need.
type WithdrawalStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, processorRef string) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	RecordError(ctx context.Context, id uuid.UUID, errMsg string) error
}

// EnqueueCheckFunc schedules a check-payout job after the given delay.
// Provided by main using river.Client.Insert.
type EnqueueCheckFunc func(ctx context.Context, withdrawalID uuid.UUID, delay time.Duration) error

const checkInterval = 30 * time.Second

// SubmitPayoutWorker moves a pending withdrawal to processing by submitting
// it to the processor. Submission is idempotent on the withdrawal's client
// request ID, so River retries after a crash cannot double-pay.
type SubmitPayoutWorker struct {
	river.WorkerDefaults[SubmitPayoutJobArgs]
	store        WithdrawalStore
	client       Client
	enqueueCheck EnqueueCheckFunc
	logger       *slog.Logger
}

func NewSubmitPayoutWorker(store WithdrawalStore, client Client, enqueueCheck EnqueueCheckFunc, logger *slog.Logger) *SubmitPayoutWorker {
	return &SubmitPayoutWorker{store: store, client: client, enqueueCheck: enqueueCheck, logger: logger}
}

func (w *SubmitPayoutWorker) Work(ctx context.Context, job *river.Job[SubmitPayoutJobArgs]) error {
	withdrawal, err := w.store.GetByID(ctx, job.Args.WithdrawalID)
	if err != nil {
		return err
	}
	switch withdrawal.Status {
	case models.WithdrawalPending:
		// Submit below.
	case models.WithdrawalProcessing:
		// A previous attempt submitted but the job retried before finishing;
		// the check job will settle it.
		return w.enqueueCheck(ctx, withdrawal.ID, checkInterval)
	default:
		return nil
	}

	res, err := w.client.SubmitPayout(ctx, SubmitRequest{
		ClientRequestID: withdrawal.ClientRequestID,
		Amount:          withdrawal.ConvertedAmount.Amount,
		Currency:        withdrawal.ConvertedAmount.Currency,
		PhoneNumber:     withdrawal.MpesaPhone,
		AccountName:     withdrawal.MpesaName,
	})
	if err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			return w.store.MarkFailed(ctx, withdrawal.ID, rejected.Reason)
		}
		// Transient: record and let River retry the submission.
		if recErr := w.store.RecordError(ctx, withdrawal.ID, err.Error()); recErr != nil {
			w.logger.Error("record withdrawal error", "withdrawal_id", withdrawal.ID, "error", recErr)
		}
		return err
	}

	if err := w.store.MarkProcessing(ctx, withdrawal.ID, res.ProcessorRef); err != nil {
		return fmt.Errorf("mark withdrawal processing: %w", err)
	}

	switch res.Status {
	case "completed", "success":
		return w.store.MarkCompleted(ctx, withdrawal.ID)
	case "failed", "rejected":
		reason := res.FailureReason
		if reason == "" {
			reason = "payout processor reported failure"
		}
		return w.store.MarkFailed(ctx, withdrawal.ID, reason)
	default:
		return w.enqueueCheck(ctx, withdrawal.ID, checkInterval)
	}
}

// CheckPayoutWorker polls the processor until a processing withdrawal
// settles. Webhook callbacks usually settle it first; the poll covers lost
// callbacks.
type CheckPayoutWorker struct {
	river.WorkerDefaults[CheckPayoutJobArgs]
	store  WithdrawalStore
	client Client
	logger *slog.Logger
}

func NewCheckPayoutWorker(store WithdrawalStore, client Client, logger *slog.Logger) *CheckPayoutWorker {
	return &CheckPayoutWorker{store: store, client: client, logger: logger}
}

func (w *CheckPayoutWorker) Work(ctx context.Context, job *river.Job[CheckPayoutJobArgs]) error {
	withdrawal, err := w.store.GetByID(ctx, job.Args.WithdrawalID)
	if err != nil {
		return err
	}
	if withdrawal.Status != models.WithdrawalProcessing {
		// Settled by a callback or an earlier poll.
		return nil
	}
	if withdrawal.ProcessorRef == nil {
		return fmt.Errorf("withdrawal %s is processing without a processor ref", withdrawal.ID)
	}

	res, err := w.client.GetPayout(ctx, *withdrawal.ProcessorRef)
	if err != nil {
		if errors.Is(err, ErrPayoutNotFound) {
			return w.store.MarkFailed(ctx, withdrawal.ID, "processor lost the payout")
		}
		return err
	}

	switch res.Status {
	case "completed", "success":
		err = w.store.MarkCompleted(ctx, withdrawal.ID)
	case "failed", "rejected":
		reason := res.FailureReason
		if reason == "" {
			reason = "payout processor reported failure"
		}
		err = w.store.MarkFailed(ctx, withdrawal.ID, reason)
	default:
		return river.JobSnooze(checkInterval)
	}
	if errors.Is(err, repository.ErrInvalidTransition) {
		// A callback settled it between our read and the update.
		return nil
	}
	if err == nil {
		w.logger.Info("withdrawal settled by poll", "withdrawal_id", withdrawal.ID, "status", res.Status)
	}
	return err
}

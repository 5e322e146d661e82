package chain

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/quiflix/backend/internal/models"
)

// MirrorSaleJobArgs mirrors one recorded sale on-chain.
type MirrorSaleJobArgs struct {
	SaleID uuid.UUID `json:"sale_id"`
}

func (MirrorSaleJobArgs) Kind() string { return "mirror_sale" }

// SaleStore is the sale lookup the worker needs.
type SaleStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Sale, error)
}

// MirrorSaleWorker submits the mirror transaction for a committed sale.
// Errors are returned so River retries; the sale itself is already durable.
type MirrorSaleWorker struct {
	river.WorkerDefaults[MirrorSaleJobArgs]
	sales  SaleStore
	mirror Mirror
	logger *slog.Logger
}

func NewMirrorSaleWorker(sales SaleStore, mirror Mirror, logger *slog.Logger) *MirrorSaleWorker {
	return &MirrorSaleWorker{sales: sales, mirror: mirror, logger: logger}
}

func (w *MirrorSaleWorker) Work(ctx context.Context, job *river.Job[MirrorSaleJobArgs]) error {
	sale, err := w.sales.GetByID(ctx, job.Args.SaleID)
	if err != nil {
		return err
	}
	hash, err := w.mirror.MirrorSale(ctx, sale)
	if err != nil {
		w.logger.Warn("mirror sale failed, will retry", "sale_id", sale.ID, "error", err)
		return err
	}
	w.logger.Info("mirror confirmed", "sale_id", sale.ID, "tx_hash", hash)
	return nil
}

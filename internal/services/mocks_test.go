package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quiflix/backend/internal/models"
	"github.com/quiflix/backend/internal/money"
	"github.com/quiflix/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// In-memory mocks. recordingTx satisfies pgx.Tx and tracks whether the
// transaction committed, so tests can assert all-or-nothing behavior.
// ---------------------------------------------------------------------------

type recordingTx struct {
	committed  bool
	rolledBack bool
}

func (t *recordingTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *recordingTx) Commit(context.Context) error          { t.committed = true; return nil }
func (t *recordingTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}
func (t *recordingTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *recordingTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *recordingTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (t *recordingTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *recordingTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *recordingTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *recordingTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *recordingTx) Conn() *pgx.Conn { return nil }

type mockDB struct {
	mu  sync.Mutex
	txs []*recordingTx
}

func (m *mockDB) Begin(context.Context) (pgx.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &recordingTx{}
	m.txs = append(m.txs, tx)
	return tx, nil
}

func (m *mockDB) lastTx() *recordingTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.txs) == 0 {
		return nil
	}
	return m.txs[len(m.txs)-1]
}

// --- film repo mock ---

type mockFilms struct {
	films map[uuid.UUID]*models.Film
}

func newMockFilms(films ...*models.Film) *mockFilms {
	m := &mockFilms{films: make(map[uuid.UUID]*models.Film)}
	for _, f := range films {
		m.films[f.ID] = f
	}
	return m
}

func (m *mockFilms) GetByIDTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Film, error) {
	f, ok := m.films[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return f, nil
}

// --- sale store mock with payment_ref uniqueness ---

type mockSales struct {
	mu    sync.Mutex
	sales []*models.Sale
	refs  map[string]bool
}

func newMockSales() *mockSales { return &mockSales{refs: make(map[string]bool)} }

func (m *mockSales) CreateTx(_ context.Context, _ pgx.Tx, s *models.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refs[s.PaymentRef] {
		return repository.ErrDuplicatePayment
	}
	m.refs[s.PaymentRef] = true
	cp := *s
	m.sales = append(m.sales, &cp)
	return nil
}

func (m *mockSales) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

// --- payout store mock ---

type mockPayouts struct {
	mu      sync.Mutex
	payouts []*models.Payout
}

func (m *mockPayouts) CreateTx(_ context.Context, _ pgx.Tx, p *models.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payouts = append(m.payouts, &cp)
	return nil
}

func (m *mockPayouts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payouts)
}

// --- holding store mock with atomic increment semantics ---

type holdingKey struct {
	distributor uuid.UUID
	film        uuid.UUID
}

type mockHoldings struct {
	mu       sync.Mutex
	holdings map[holdingKey]*models.Holding
}

func newMockHoldings(hs ...*models.Holding) *mockHoldings {
	m := &mockHoldings{holdings: make(map[holdingKey]*models.Holding)}
	for _, h := range hs {
		cp := *h
		m.holdings[holdingKey{h.DistributorID, h.FilmID}] = &cp
	}
	return m
}

func (m *mockHoldings) IncrementTx(_ context.Context, _ pgx.Tx, distributorID, filmID uuid.UUID, saleAmount, earned money.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holdings[holdingKey{distributorID, filmID}]
	if !ok {
		return repository.ErrHoldingNotFound
	}
	h.SalesAttributed.Amount += saleAmount.Amount
	h.EarnedAmount.Amount += earned.Amount
	return nil
}

func (m *mockHoldings) get(distributorID, filmID uuid.UUID) *models.Holding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holdings[holdingKey{distributorID, filmID}]
}

// --- payout sums mock ---

type principalSums struct {
	filmmaker   int64
	distributor int64
}

type mockPayoutSums struct {
	mu   sync.Mutex
	sums map[uuid.UUID]principalSums
}

func newMockPayoutSums() *mockPayoutSums {
	return &mockPayoutSums{sums: make(map[uuid.UUID]principalSums)}
}

func (m *mockPayoutSums) set(principal uuid.UUID, filmmaker, distributor int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sums[principal] = principalSums{filmmaker, distributor}
}

func (m *mockPayoutSums) SumFilmmakerShares(_ context.Context, id uuid.UUID, currency string) (money.Money, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return money.New(m.sums[id].filmmaker, currency), nil
}

func (m *mockPayoutSums) SumDistributorShares(_ context.Context, id uuid.UUID, currency string) (money.Money, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return money.New(m.sums[id].distributor, currency), nil
}

func (m *mockPayoutSums) SumFilmmakerSharesTx(ctx context.Context, _ pgx.Tx, id uuid.UUID, currency string) (money.Money, error) {
	return m.SumFilmmakerShares(ctx, id, currency)
}

func (m *mockPayoutSums) SumDistributorSharesTx(ctx context.Context, _ pgx.Tx, id uuid.UUID, currency string) (money.Money, error) {
	return m.SumDistributorShares(ctx, id, currency)
}

// --- withdrawal store mock ---

// lockedTx releases the principal lock on commit or rollback, matching
// pg_advisory_xact_lock lifetime.
type lockedTx struct {
	recordingTx
	releaseOnce sync.Once
	release     func()
}

func (t *lockedTx) unlock() {
	t.releaseOnce.Do(func() {
		if t.release != nil {
			t.release()
		}
	})
}

func (t *lockedTx) Commit(ctx context.Context) error {
	err := t.recordingTx.Commit(ctx)
	t.unlock()
	return err
}

func (t *lockedTx) Rollback(ctx context.Context) error {
	err := t.recordingTx.Rollback(ctx)
	t.unlock()
	return err
}

// mockWithdrawals backs both the WithdrawalStore and ReservedSums surfaces,
// like the real repository does.
type mockWithdrawals struct {
	mu          sync.Mutex
	locks       map[uuid.UUID]*sync.Mutex
	withdrawals map[uuid.UUID]*models.Withdrawal
	txs         []*lockedTx
}

func newMockWithdrawals(ws ...*models.Withdrawal) *mockWithdrawals {
	m := &mockWithdrawals{
		locks:       make(map[uuid.UUID]*sync.Mutex),
		withdrawals: make(map[uuid.UUID]*models.Withdrawal),
	}
	for _, w := range ws {
		cp := *w
		m.withdrawals[w.ID] = &cp
	}
	return m
}

func (m *mockWithdrawals) Begin(context.Context) (pgx.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &lockedTx{}
	m.txs = append(m.txs, tx)
	return tx, nil
}

func (m *mockWithdrawals) lastTx() *lockedTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.txs) == 0 {
		return nil
	}
	return m.txs[len(m.txs)-1]
}

func (m *mockWithdrawals) LockPrincipalTx(_ context.Context, tx pgx.Tx, principalID uuid.UUID) error {
	m.mu.Lock()
	l, ok := m.locks[principalID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[principalID] = l
	}
	m.mu.Unlock()

	l.Lock()
	tx.(*lockedTx).release = l.Unlock
	return nil
}

func (m *mockWithdrawals) CreateTx(_ context.Context, _ pgx.Tx, w *models.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.withdrawals[w.ID] = &cp
	return nil
}

func (m *mockWithdrawals) GetByID(_ context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return nil, repository.ErrWithdrawalNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *mockWithdrawals) GetByProcessorRef(_ context.Context, ref string) (*models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.withdrawals {
		if w.ProcessorRef != nil && *w.ProcessorRef == ref {
			cp := *w
			return &cp, nil
		}
	}
	return nil, repository.ErrWithdrawalNotFound
}

func (m *mockWithdrawals) ListByPrincipal(_ context.Context, principalID uuid.UUID) ([]*models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Withdrawal
	for _, w := range m.withdrawals {
		if w.PrincipalID == principalID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockWithdrawals) MarkCompleted(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return repository.ErrWithdrawalNotFound
	}
	if w.Status != models.WithdrawalProcessing {
		return repository.ErrInvalidTransition
	}
	w.Status = models.WithdrawalCompleted
	return nil
}

func (m *mockWithdrawals) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return repository.ErrWithdrawalNotFound
	}
	if w.Status != models.WithdrawalPending && w.Status != models.WithdrawalProcessing {
		return repository.ErrInvalidTransition
	}
	w.Status = models.WithdrawalFailed
	w.LastError = &reason
	return nil
}

func (m *mockWithdrawals) SumReserved(_ context.Context, principalID uuid.UUID, currency string) (money.Money, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, w := range m.withdrawals {
		if w.PrincipalID == principalID && w.Status != models.WithdrawalFailed {
			sum += w.Amount.Amount
		}
	}
	return money.New(sum, currency), nil
}

func (m *mockWithdrawals) SumReservedTx(ctx context.Context, _ pgx.Tx, principalID uuid.UUID, currency string) (money.Money, error) {
	return m.SumReserved(ctx, principalID, currency)
}

func (m *mockWithdrawals) count(principalID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, w := range m.withdrawals {
		if w.PrincipalID == principalID {
			n++
		}
	}
	return n
}

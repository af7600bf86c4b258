package close

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/accountingtest"
)

// memoryClosings keeps closing records next to an in-memory ledger. Closing
// transactions hold the ledger lock and apply writes only on success.
type memoryClosings struct {
	ledger *accountingtest.Store

	mu      sync.Mutex
	records []ClosingRecord

	voucherErr   error
	beforeCommit func(ctx context.Context)
}

func newMemoryClosings(ledger *accountingtest.Store) *memoryClosings {
	return &memoryClosings{ledger: ledger}
}

func (m *memoryClosings) ActiveClosing(_ context.Context, key PeriodKey) (ClosingRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return findActive(m.records, key)
}

func (m *memoryClosings) History(_ context.Context, workspaceID uuid.UUID) ([]ClosingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ClosingRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].WorkspaceID == workspaceID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *memoryClosings) WithClosingTx(ctx context.Context, fn func(context.Context, ClosingTx) error) error {
	m.ledger.Lock()
	defer m.ledger.Unlock()
	tx := &memoryClosingTx{Tx: m.ledger.Begin(), parent: m}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if m.beforeCommit != nil {
		m.beforeCommit(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.Commit()
	m.mu.Lock()
	m.records = append(m.records, tx.pending...)
	m.mu.Unlock()
	return nil
}

func (m *memoryClosings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type memoryClosingTx struct {
	*accountingtest.Tx
	parent  *memoryClosings
	pending []ClosingRecord
}

func (tx *memoryClosingTx) SumPostedLines(ctx context.Context, filter accounting.LineFilter) ([]accounting.Movement, error) {
	return tx.parent.ledger.SumPostedLines(ctx, filter)
}

func (tx *memoryClosingTx) ActiveClosing(ctx context.Context, key PeriodKey) (ClosingRecord, bool, error) {
	if rec, ok, _ := findActive(tx.pending, key); ok {
		return rec, true, nil
	}
	return tx.parent.ActiveClosing(ctx, key)
}

func (tx *memoryClosingTx) InsertClosing(ctx context.Context, rec ClosingRecord) error {
	if _, ok, _ := tx.ActiveClosing(ctx, rec.Key()); ok {
		return ErrAlreadyClosed
	}
	tx.pending = append(tx.pending, rec)
	return nil
}

func (tx *memoryClosingTx) InsertVoucher(ctx context.Context, voucher accounting.Voucher) error {
	if tx.parent.voucherErr != nil {
		return tx.parent.voucherErr
	}
	return tx.Tx.InsertVoucher(ctx, voucher)
}

func findActive(records []ClosingRecord, key PeriodKey) (ClosingRecord, bool, error) {
	for _, rec := range records {
		if rec.SupersededAt == nil && rec.WorkspaceID == key.WorkspaceID && rec.PeriodType == key.Type && rec.PeriodStart.Equal(key.Start) {
			return rec, true, nil
		}
	}
	return ClosingRecord{}, false, nil
}

var (
	_ Store     = (*memoryClosings)(nil)
	_ ClosingTx = (*memoryClosingTx)(nil)
)

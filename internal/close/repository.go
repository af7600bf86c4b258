package close

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	"github.com/Corner-venturo/Corner-sub009/internal/platform/db"
)

const activeClosingIndex = "uq_period_closings_active"

// Repository persists period closings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithClosingTx executes fn inside a read-committed transaction. The workspace
// advisory lock serialises closings and postings, so every statement after
// the lock sees the latest committed ledger.
func (r *Repository) WithClosingTx(ctx context.Context, fn func(context.Context, ClosingTx) error) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("close: repository not initialised")
	}
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &closingTx{TxRepository: accounting.NewTxRepository(tx), tx: tx})
	})
}

// ActiveClosing loads the non-superseded closing of a period.
func (r *Repository) ActiveClosing(ctx context.Context, key PeriodKey) (ClosingRecord, bool, error) {
	return loadActiveClosing(ctx, r.pool, key)
}

// History lists every closing of a workspace, newest period first.
func (r *Repository) History(ctx context.Context, workspaceID uuid.UUID) ([]ClosingRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+closingColumns+`
FROM accounting_period_closings
WHERE workspace_id=$1
ORDER BY period_end DESC, closed_at DESC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ClosingRecord
	for rows.Next() {
		rec, err := scanClosing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type closingTx struct {
	accounting.TxRepository
	tx pgx.Tx
}

func (c *closingTx) SumPostedLines(ctx context.Context, filter accounting.LineFilter) ([]accounting.Movement, error) {
	return accounting.SumPostedLines(ctx, c.tx, filter)
}

func (c *closingTx) ActiveClosing(ctx context.Context, key PeriodKey) (ClosingRecord, bool, error) {
	return loadActiveClosing(ctx, c.tx, key)
}

// InsertClosing writes the record ahead of its voucher; the foreign key is
// deferred to commit.
func (c *closingTx) InsertClosing(ctx context.Context, rec ClosingRecord) error {
	_, err := c.tx.Exec(ctx, `INSERT INTO accounting_period_closings
(id, workspace_id, period_type, period_start, period_end, closing_voucher_id, net_income, closed_by, closed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9)`,
		rec.ID, rec.WorkspaceID, string(rec.PeriodType), rec.PeriodStart, rec.PeriodEnd,
		rec.VoucherID, rec.NetIncome.StringFixed(accounting.AmountScale), rec.ClosedBy, rec.ClosedAt)
	if db.IsUniqueViolation(err, activeClosingIndex) {
		return ErrAlreadyClosed
	}
	return err
}

const closingColumns = `id, workspace_id, period_type, period_start, period_end, net_income::text,
closing_voucher_id, closed_by, closed_at, superseded_at`

func loadActiveClosing(ctx context.Context, q accounting.Querier, key PeriodKey) (ClosingRecord, bool, error) {
	row := q.QueryRow(ctx, `SELECT `+closingColumns+`
FROM accounting_period_closings
WHERE workspace_id=$1 AND period_type=$2 AND period_start=$3 AND superseded_at IS NULL`,
		key.WorkspaceID, string(key.Type), key.Start)
	rec, err := scanClosing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ClosingRecord{}, false, nil
	}
	if err != nil {
		return ClosingRecord{}, false, err
	}
	return rec, true, nil
}

func scanClosing(row pgx.Row) (ClosingRecord, error) {
	var (
		rec        ClosingRecord
		periodType string
		netIncome  string
		superseded *time.Time
	)
	if err := row.Scan(&rec.ID, &rec.WorkspaceID, &periodType, &rec.PeriodStart, &rec.PeriodEnd,
		&netIncome, &rec.VoucherID, &rec.ClosedBy, &rec.ClosedAt, &superseded); err != nil {
		return ClosingRecord{}, err
	}
	typ, err := ParsePeriodType(periodType)
	if err != nil {
		return ClosingRecord{}, err
	}
	amount, err := accounting.ParseAmount(netIncome)
	if err != nil {
		return ClosingRecord{}, err
	}
	rec.PeriodType = typ
	rec.NetIncome = amount
	rec.SupersededAt = superseded
	return rec, nil
}

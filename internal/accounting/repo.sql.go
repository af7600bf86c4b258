package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Corner-venturo/Corner-sub009/internal/platform/db"
	"github.com/Corner-venturo/Corner-sub009/internal/shared"
)

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists accounting entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockWorkspace(ctx context.Context, workspaceID uuid.UUID) error
	ListAccounts(ctx context.Context, workspaceID uuid.UUID) ([]Account, error)
	LastVoucherNumber(ctx context.Context, workspaceID uuid.UUID, prefix string) (string, error)
	InsertVoucher(ctx context.Context, voucher Voucher) error
	GetVoucher(ctx context.Context, workspaceID, voucherID uuid.UUID) (Voucher, error)
	UpdateVoucherStatus(ctx context.Context, voucherID uuid.UUID, status VoucherStatus) error
}

// ErrVoucherNumberConflict indicates a concurrent writer took the same number.
var ErrVoucherNumberConflict = errors.New("accounting: voucher number conflict")

// ledgerTxOptions keeps reads taken after the workspace advisory lock current
// with the previous lock holder's commit.
var ledgerTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// WithTx executes fn within a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTxOptions(ctx, r.pool, ledgerTxOptions, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// NewTxRepository binds the transactional operations to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LockWorkspace(ctx context.Context, workspaceID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, shared.LedgerLockKey(workspaceID))
	return err
}

func (r *txRepository) ListAccounts(ctx context.Context, workspaceID uuid.UUID) ([]Account, error) {
	return listAccounts(ctx, r.tx, workspaceID)
}

func (r *txRepository) LastVoucherNumber(ctx context.Context, workspaceID uuid.UUID, prefix string) (string, error) {
	var last string
	err := r.tx.QueryRow(ctx, `SELECT voucher_no FROM journal_vouchers
WHERE workspace_id=$1 AND voucher_no LIKE $2 || '%'
ORDER BY length(voucher_no) DESC, voucher_no DESC LIMIT 1`, workspaceID, prefix).Scan(&last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return last, nil
}

func (r *txRepository) InsertVoucher(ctx context.Context, voucher Voucher) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO journal_vouchers (id, workspace_id, voucher_no, voucher_date, status, memo, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)`, voucher.ID, voucher.WorkspaceID, voucher.Number, voucher.Date, string(voucher.Status), voucher.Memo, voucher.CreatedBy, voucher.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_journal_vouchers_no") {
			return ErrVoucherNumberConflict
		}
		return err
	}
	batch := &pgx.Batch{}
	for _, line := range voucher.Lines {
		batch.Queue(`INSERT INTO journal_lines (id, voucher_id, line_no, account_id, debit_amount, credit_amount, description)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, line.ID, voucher.ID, line.LineNo, line.AccountID, toNumeric(line.Debit), toNumeric(line.Credit), line.Description)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) GetVoucher(ctx context.Context, workspaceID, voucherID uuid.UUID) (Voucher, error) {
	var (
		v      Voucher
		status string
	)
	err := r.tx.QueryRow(ctx, `SELECT id, workspace_id, voucher_no, voucher_date, status, memo, created_by, created_at
FROM journal_vouchers WHERE id=$1 AND workspace_id=$2 FOR UPDATE`, voucherID, workspaceID).
		Scan(&v.ID, &v.WorkspaceID, &v.Number, &v.Date, &status, &v.Memo, &v.CreatedBy, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, ErrVoucherNotFound
		}
		return Voucher{}, err
	}
	v.Status = VoucherStatus(status)
	rows, err := r.tx.Query(ctx, `SELECT id, voucher_id, line_no, account_id, debit_amount::text, credit_amount::text, description
FROM journal_lines WHERE voucher_id=$1 ORDER BY line_no`, voucherID)
	if err != nil {
		return Voucher{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			line          JournalLine
			debit, credit string
		)
		if err := rows.Scan(&line.ID, &line.VoucherID, &line.LineNo, &line.AccountID, &debit, &credit, &line.Description); err != nil {
			return Voucher{}, err
		}
		if line.Debit, err = ParseAmount(debit); err != nil {
			return Voucher{}, err
		}
		if line.Credit, err = ParseAmount(credit); err != nil {
			return Voucher{}, err
		}
		v.Lines = append(v.Lines, line)
	}
	return v, rows.Err()
}

func (r *txRepository) UpdateVoucherStatus(ctx context.Context, voucherID uuid.UUID, status VoucherStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_vouchers SET status=$2, updated_at=NOW() WHERE id=$1`, voucherID, string(status))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVoucherNotFound
	}
	return nil
}

// ListAccounts returns the full workspace catalog, inactive accounts included.
func (r *Repository) ListAccounts(ctx context.Context, workspaceID uuid.UUID) ([]Account, error) {
	return listAccounts(ctx, r.pool, workspaceID)
}

// ListWorkspaces returns every workspace that owns a chart of accounts.
func (r *Repository) ListWorkspaces(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT workspace_id FROM accounts ORDER BY workspace_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// SumPostedLines totals posted lines per account.
func (r *Repository) SumPostedLines(ctx context.Context, filter LineFilter) ([]Movement, error) {
	return SumPostedLines(ctx, r.pool, filter)
}

// ListPostedLines returns posted lines in chronological order.
func (r *Repository) ListPostedLines(ctx context.Context, filter LineFilter) ([]PostedLine, error) {
	return ListPostedLines(ctx, r.pool, filter)
}

// ListPostedVoucherLines returns every line of the posted vouchers that touch
// the filtered accounts within the range.
func (r *Repository) ListPostedVoucherLines(ctx context.Context, filter LineFilter) ([]PostedLine, error) {
	args := filterArgs(filter)
	rows, err := r.pool.Query(ctx, postedLineColumns+`
WHERE v.workspace_id = $1 AND v.status = 'posted'
  AND ($2::date IS NULL OR v.voucher_date >= $2)
  AND ($3::date IS NULL OR v.voucher_date <= $3)
  AND (cardinality($4::uuid[]) = 0 OR v.id IN (
        SELECT l2.voucher_id FROM journal_lines l2 WHERE l2.account_id = ANY($4::uuid[])))
ORDER BY v.voucher_date, length(v.voucher_no), v.voucher_no, l.line_no`, args...)
	if err != nil {
		return nil, err
	}
	return scanPostedLines(rows)
}

func listAccounts(ctx context.Context, q Querier, workspaceID uuid.UUID) ([]Account, error) {
	rows, err := q.Query(ctx, `SELECT id, workspace_id, code, name, account_type, is_active
FROM accounts WHERE workspace_id=$1 ORDER BY code`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var (
			a   Account
			typ string
		)
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.Code, &a.Name, &typ, &a.IsActive); err != nil {
			return nil, err
		}
		if a.Type, err = ParseAccountType(typ); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

const postedLineFilter = `
WHERE v.workspace_id = $1 AND v.status = 'posted'
  AND ($2::date IS NULL OR v.voucher_date >= $2)
  AND ($3::date IS NULL OR v.voucher_date <= $3)
  AND (cardinality($4::uuid[]) = 0 OR l.account_id = ANY($4::uuid[]))`

const postedLineColumns = `SELECT l.id, v.id, v.voucher_no, v.voucher_date, v.memo, l.line_no, l.account_id,
       l.debit_amount::text, l.credit_amount::text, l.description
FROM journal_lines l
JOIN journal_vouchers v ON v.id = l.voucher_id`

// SumPostedLines totals posted lines per account through q, which may be a
// pool or an open transaction.
func SumPostedLines(ctx context.Context, q Querier, filter LineFilter) ([]Movement, error) {
	rows, err := q.Query(ctx, `SELECT l.account_id,
       COALESCE(SUM(l.debit_amount), 0)::text,
       COALESCE(SUM(l.credit_amount), 0)::text
FROM journal_lines l
JOIN journal_vouchers v ON v.id = l.voucher_id`+postedLineFilter+`
GROUP BY l.account_id`, filterArgs(filter)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var (
			mv            Movement
			debit, credit string
		)
		if err := rows.Scan(&mv.AccountID, &debit, &credit); err != nil {
			return nil, err
		}
		if mv.Debit, err = ParseAmount(debit); err != nil {
			return nil, fmt.Errorf("accounting: parse debit: %w", err)
		}
		if mv.Credit, err = ParseAmount(credit); err != nil {
			return nil, fmt.Errorf("accounting: parse credit: %w", err)
		}
		out = append(out, mv)
	}
	return out, rows.Err()
}

// ListPostedLines returns posted lines through q in voucher date, voucher
// number, line number order.
func ListPostedLines(ctx context.Context, q Querier, filter LineFilter) ([]PostedLine, error) {
	rows, err := q.Query(ctx, postedLineColumns+postedLineFilter+`
ORDER BY v.voucher_date, length(v.voucher_no), v.voucher_no, l.line_no`, filterArgs(filter)...)
	if err != nil {
		return nil, err
	}
	return scanPostedLines(rows)
}

func scanPostedLines(rows pgx.Rows) ([]PostedLine, error) {
	defer rows.Close()
	var out []PostedLine
	for rows.Next() {
		var (
			pl            PostedLine
			debit, credit string
		)
		if err := rows.Scan(&pl.LineID, &pl.VoucherID, &pl.VoucherNo, &pl.VoucherDate, &pl.VoucherMemo, &pl.LineNo, &pl.AccountID, &debit, &credit, &pl.Description); err != nil {
			return nil, err
		}
		var err error
		if pl.Debit, err = ParseAmount(debit); err != nil {
			return nil, err
		}
		if pl.Credit, err = ParseAmount(credit); err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

func filterArgs(filter LineFilter) []any {
	ids := make([]string, 0, len(filter.AccountIDs))
	for _, id := range filter.AccountIDs {
		ids = append(ids, id.String())
	}
	return []any{filter.WorkspaceID, nullDate(filter.Range.From), nullDate(filter.Range.To), ids}
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return DateOf(t)
}

func toNumeric(v decimal.Decimal) string {
	return RoundAmount(v).StringFixed(AmountScale)
}

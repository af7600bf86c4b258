package accounting

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// generalLedgerWorkers bounds concurrent per-account ledger builds.
const generalLedgerWorkers = 8

// LedgerEntry is one posted line with the account balance after it.
type LedgerEntry struct {
	LineID         uuid.UUID       `json:"line_id"`
	VoucherID      uuid.UUID       `json:"voucher_id"`
	VoucherNo      string          `json:"voucher_no"`
	Date           string          `json:"date"`
	Description    string          `json:"description"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// AccountLedger is the running-balance statement of one account.
type AccountLedger struct {
	Account        Account         `json:"account"`
	Range          DateRange       `json:"-"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Entries        []LedgerEntry   `json:"entries"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	TotalDebit     decimal.Decimal `json:"total_debit"`
	TotalCredit    decimal.Decimal `json:"total_credit"`
}

// SortPostedLines orders lines by voucher date, voucher number, then line number.
func SortPostedLines(lines []PostedLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		a, b := lines[i], lines[j]
		if !a.VoucherDate.Equal(b.VoucherDate) {
			return a.VoucherDate.Before(b.VoucherDate)
		}
		if c := CompareVoucherNumbers(a.VoucherNo, b.VoucherNo); c != 0 {
			return c < 0
		}
		return a.LineNo < b.LineNo
	})
}

// FoldRunningBalance applies lines in order to opening using the account's
// normal side and returns the entries and the closing balance. Lines must
// already be sorted.
func FoldRunningBalance(account Account, opening decimal.Decimal, lines []PostedLine) ([]LedgerEntry, decimal.Decimal) {
	running := opening
	entries := make([]LedgerEntry, 0, len(lines))
	for _, line := range lines {
		running = running.Add(Balance(account, Movement{Debit: line.Debit, Credit: line.Credit}))
		description := line.Description
		if description == "" {
			description = line.VoucherMemo
		}
		entries = append(entries, LedgerEntry{
			LineID:         line.LineID,
			VoucherID:      line.VoucherID,
			VoucherNo:      line.VoucherNo,
			Date:           line.VoucherDate.Format(DateLayout),
			Description:    description,
			Debit:          line.Debit,
			Credit:         line.Credit,
			RunningBalance: running,
		})
	}
	return entries, running
}

// BuildLedger returns the running-balance ledger of one account. The opening
// balance covers every posted line strictly before the range start.
func (a *Aggregator) BuildLedger(ctx context.Context, workspaceID, accountID uuid.UUID, rng DateRange) (AccountLedger, error) {
	if err := rng.Validate(); err != nil {
		return AccountLedger{}, err
	}
	catalog, err := a.Catalog(ctx, workspaceID)
	if err != nil {
		return AccountLedger{}, err
	}
	account, ok := catalog.Lookup(accountID)
	if !ok {
		return AccountLedger{}, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}
	return a.buildLedger(ctx, catalog, account, rng)
}

func (a *Aggregator) buildLedger(ctx context.Context, catalog *Catalog, account Account, rng DateRange) (AccountLedger, error) {
	opening := decimal.Zero
	if !rng.From.IsZero() {
		prior, err := a.AggregateWith(ctx, catalog, LineFilter{
			WorkspaceID: account.WorkspaceID,
			AccountIDs:  []uuid.UUID{account.ID},
			Range:       Before(rng.From),
		})
		if err != nil {
			return AccountLedger{}, err
		}
		opening = Balance(account, prior.Get(account.ID))
	}
	lines, err := a.reader.ListPostedLines(ctx, LineFilter{
		WorkspaceID: account.WorkspaceID,
		AccountIDs:  []uuid.UUID{account.ID},
		Range:       rng,
	})
	if err != nil {
		return AccountLedger{}, fmt.Errorf("accounting: list posted lines: %w", err)
	}
	SortPostedLines(lines)
	entries, closing := FoldRunningBalance(account, opening, lines)
	ledger := AccountLedger{
		Account:        account,
		Range:          rng,
		OpeningBalance: opening,
		Entries:        entries,
		ClosingBalance: closing,
		TotalDebit:     decimal.Zero,
		TotalCredit:    decimal.Zero,
	}
	for _, line := range lines {
		ledger.TotalDebit = ledger.TotalDebit.Add(line.Debit)
		ledger.TotalCredit = ledger.TotalCredit.Add(line.Credit)
	}
	return ledger, nil
}

// GeneralLedger builds the ledger of every account with posted activity in
// the range, ordered by account code.
func (a *Aggregator) GeneralLedger(ctx context.Context, workspaceID uuid.UUID, rng DateRange) ([]AccountLedger, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	catalog, err := a.Catalog(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	movements, err := a.AggregateWith(ctx, catalog, LineFilter{WorkspaceID: workspaceID, Range: rng})
	if err != nil {
		return nil, err
	}
	if err := catalog.CheckComplete(movements); err != nil {
		return nil, err
	}
	var active []Account
	for _, acc := range catalog.Accounts() {
		if !movements.Get(acc.ID).IsZero() {
			active = append(active, acc)
		}
	}
	ledgers := make([]AccountLedger, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(generalLedgerWorkers)
	for idx, acc := range active {
		g.Go(func() error {
			ledger, err := a.buildLedger(gctx, catalog, acc, rng)
			if err != nil {
				return fmt.Errorf("accounting: ledger %s: %w", acc.Code, err)
			}
			ledgers[idx] = ledger
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ledgers, nil
}

package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerReader is the read side of the journal store. Implementations only
// return lines of posted vouchers.
type LedgerReader interface {
	ListAccounts(ctx context.Context, workspaceID uuid.UUID) ([]Account, error)
	SumPostedLines(ctx context.Context, filter LineFilter) ([]Movement, error)
	ListPostedLines(ctx context.Context, filter LineFilter) ([]PostedLine, error)
	ListPostedVoucherLines(ctx context.Context, filter LineFilter) ([]PostedLine, error)
}

// Aggregator computes account movements and balances over date ranges.
type Aggregator struct {
	reader LedgerReader
}

// NewAggregator constructs the aggregator.
func NewAggregator(reader LedgerReader) *Aggregator {
	return &Aggregator{reader: reader}
}

// Reader exposes the underlying store for composers that need raw lines.
func (a *Aggregator) Reader() LedgerReader {
	return a.reader
}

// Catalog loads the chart of accounts for a workspace.
func (a *Aggregator) Catalog(ctx context.Context, workspaceID uuid.UUID) (*Catalog, error) {
	accounts, err := a.reader.ListAccounts(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("accounting: list accounts: %w", err)
	}
	return NewCatalog(accounts), nil
}

// Aggregate totals posted debits and credits per account.
func (a *Aggregator) Aggregate(ctx context.Context, filter LineFilter) (Movements, error) {
	if err := filter.Range.Validate(); err != nil {
		return nil, err
	}
	catalog, err := a.Catalog(ctx, filter.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return a.AggregateWith(ctx, catalog, filter)
}

// AggregateWith is Aggregate against a catalog the caller already loaded.
// Every requested account is present in the result, or every catalog account
// when the filter names none. Movements on accounts outside the catalog are
// kept so callers can detect an incomplete catalog.
func (a *Aggregator) AggregateWith(ctx context.Context, catalog *Catalog, filter LineFilter) (Movements, error) {
	if err := filter.Range.Validate(); err != nil {
		return nil, err
	}
	for _, id := range filter.AccountIDs {
		if _, ok := catalog.Lookup(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
		}
	}
	rows, err := a.reader.SumPostedLines(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("accounting: sum posted lines: %w", err)
	}
	ids := filter.AccountIDs
	if len(ids) == 0 {
		ids = catalog.IDs()
	}
	out := make(Movements, len(ids))
	for _, id := range ids {
		out[id] = Movement{AccountID: id, Debit: decimal.Zero, Credit: decimal.Zero}
	}
	for _, row := range rows {
		current := out.Get(row.AccountID)
		current.Debit = current.Debit.Add(RoundAmount(row.Debit))
		current.Credit = current.Credit.Add(RoundAmount(row.Credit))
		out[row.AccountID] = current
	}
	return out, nil
}

// AccountBalance returns the normal-signed balance of one account over a range.
func (a *Aggregator) AccountBalance(ctx context.Context, workspaceID, accountID uuid.UUID, rng DateRange) (decimal.Decimal, error) {
	catalog, err := a.Catalog(ctx, workspaceID)
	if err != nil {
		return decimal.Zero, err
	}
	account, ok := catalog.Lookup(accountID)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}
	movements, err := a.AggregateWith(ctx, catalog, LineFilter{WorkspaceID: workspaceID, AccountIDs: []uuid.UUID{accountID}, Range: rng})
	if err != nil {
		return decimal.Zero, err
	}
	return Balance(account, movements.Get(accountID)), nil
}

// TrialBalanceEntry is one account row of a trial balance.
type TrialBalanceEntry struct {
	AccountID     uuid.UUID       `json:"account_id"`
	AccountCode   string          `json:"account_code"`
	AccountName   string          `json:"account_name"`
	AccountType   AccountType     `json:"account_type"`
	DebitTotal    decimal.Decimal `json:"debit_total"`
	CreditTotal   decimal.Decimal `json:"credit_total"`
	DebitBalance  decimal.Decimal `json:"debit_balance"`
	CreditBalance decimal.Decimal `json:"credit_balance"`
}

// TrialBalance is the as-of summary of every account with activity.
type TrialBalance struct {
	AsOf               time.Time           `json:"as_of"`
	Entries            []TrialBalanceEntry `json:"entries"`
	TotalDebit         decimal.Decimal     `json:"total_debit"`
	TotalCredit        decimal.Decimal     `json:"total_credit"`
	TotalDebitBalance  decimal.Decimal     `json:"total_debit_balance"`
	TotalCreditBalance decimal.Decimal     `json:"total_credit_balance"`
}

// TrialBalance aggregates all posted lines up to and including asOf.
func (a *Aggregator) TrialBalance(ctx context.Context, workspaceID uuid.UUID, asOf time.Time) (TrialBalance, error) {
	catalog, err := a.Catalog(ctx, workspaceID)
	if err != nil {
		return TrialBalance{}, err
	}
	movements, err := a.AggregateWith(ctx, catalog, LineFilter{WorkspaceID: workspaceID, Range: Through(asOf)})
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(catalog, movements, asOf)
}

// BuildTrialBalance shapes movements into trial balance rows and verifies that
// debit balances equal credit balances. A mismatch is reported, never corrected.
func BuildTrialBalance(catalog *Catalog, movements Movements, asOf time.Time) (TrialBalance, error) {
	if err := catalog.CheckComplete(movements); err != nil {
		return TrialBalance{}, err
	}
	tb := TrialBalance{
		AsOf:               DateOf(asOf),
		TotalDebit:         decimal.Zero,
		TotalCredit:        decimal.Zero,
		TotalDebitBalance:  decimal.Zero,
		TotalCreditBalance: decimal.Zero,
	}
	for _, acc := range catalog.Accounts() {
		mv := movements.Get(acc.ID)
		if mv.IsZero() {
			continue
		}
		net := mv.Net()
		entry := TrialBalanceEntry{
			AccountID:     acc.ID,
			AccountCode:   acc.Code,
			AccountName:   acc.Name,
			AccountType:   acc.Type,
			DebitTotal:    mv.Debit,
			CreditTotal:   mv.Credit,
			DebitBalance:  MaxZero(net),
			CreditBalance: MaxZero(net.Neg()),
		}
		tb.Entries = append(tb.Entries, entry)
		tb.TotalDebit = tb.TotalDebit.Add(entry.DebitTotal)
		tb.TotalCredit = tb.TotalCredit.Add(entry.CreditTotal)
		tb.TotalDebitBalance = tb.TotalDebitBalance.Add(entry.DebitBalance)
		tb.TotalCreditBalance = tb.TotalCreditBalance.Add(entry.CreditBalance)
	}
	if !tb.TotalDebitBalance.Equal(tb.TotalCreditBalance) {
		return TrialBalance{}, &ImbalanceError{
			AsOf:   tb.AsOf,
			Debit:  tb.TotalDebitBalance,
			Credit: tb.TotalCreditBalance,
		}
	}
	return tb, nil
}

// ImbalanceError carries the totals of a failed trial balance check.
type ImbalanceError struct {
	AsOf   time.Time
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("%s as of %s: debit %s, credit %s, difference %s",
		ErrImbalancedLedger.Error(),
		e.AsOf.Format(DateLayout),
		e.Debit.StringFixed(AmountScale),
		e.Credit.StringFixed(AmountScale),
		e.Debit.Sub(e.Credit).StringFixed(AmountScale))
}

func (e *ImbalanceError) Unwrap() error {
	return ErrImbalancedLedger
}

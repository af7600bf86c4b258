package accounting

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeCost      AccountType = "cost"
	AccountTypeExpense   AccountType = "expense"
)

// NormalBalance is the side on which an account type increases.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "debit"
	NormalCredit NormalBalance = "credit"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeRevenue, AccountTypeCost, AccountTypeExpense:
		return true
	}
	return false
}

// NormalBalance derives the increasing side from the account type.
func (t AccountType) NormalBalance() NormalBalance {
	switch t {
	case AccountTypeAsset, AccountTypeCost, AccountTypeExpense:
		return NormalDebit
	default:
		return NormalCredit
	}
}

// ParseAccountType normalises a stored type value.
func ParseAccountType(raw string) (AccountType, error) {
	t := AccountType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("accounting: unknown account type %q", raw)
	}
	return t, nil
}

// VoucherStatus enumerates journal voucher lifecycle values.
type VoucherStatus string

const (
	VoucherStatusDraft  VoucherStatus = "draft"
	VoucherStatusPosted VoucherStatus = "posted"
	VoucherStatusVoided VoucherStatus = "voided"
)

// Account models a chart of accounts node.
type Account struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Code        string
	Name        string
	Type        AccountType
	IsActive    bool
}

// NormalBalance is shorthand for a.Type.NormalBalance().
func (a Account) NormalBalance() NormalBalance {
	return a.Type.NormalBalance()
}

// Voucher is a journal voucher with its lines.
type Voucher struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Number      string
	Date        time.Time
	Status      VoucherStatus
	Memo        string
	CreatedBy   string
	CreatedAt   time.Time
	Lines       []JournalLine
}

// TotalDebit sums the debit side of the voucher.
func (v Voucher) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, line := range v.Lines {
		total = total.Add(line.Debit)
	}
	return total
}

// TotalCredit sums the credit side of the voucher.
func (v Voucher) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, line := range v.Lines {
		total = total.Add(line.Credit)
	}
	return total
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID          uuid.UUID
	VoucherID   uuid.UUID
	AccountID   uuid.UUID
	LineNo      int
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// PostedLine is a journal line joined to its posted voucher.
type PostedLine struct {
	LineID      uuid.UUID
	VoucherID   uuid.UUID
	VoucherNo   string
	VoucherDate time.Time
	VoucherMemo string
	LineNo      int
	AccountID   uuid.UUID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// Movement is the debit/credit total of an account over a range.
type Movement struct {
	AccountID uuid.UUID
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Net returns debit minus credit.
func (m Movement) Net() decimal.Decimal {
	return m.Debit.Sub(m.Credit)
}

// IsZero reports whether the movement has no activity on either side.
func (m Movement) IsZero() bool {
	return m.Debit.IsZero() && m.Credit.IsZero()
}

// Movements indexes movements by account.
type Movements map[uuid.UUID]Movement

// Get returns the movement for id, zero when absent.
func (m Movements) Get(id uuid.UUID) Movement {
	if mv, ok := m[id]; ok {
		return mv
	}
	return Movement{AccountID: id, Debit: decimal.Zero, Credit: decimal.Zero}
}

// Balance signs a movement by the account's normal side.
func Balance(account Account, mv Movement) decimal.Decimal {
	if account.NormalBalance() == NormalDebit {
		return mv.Debit.Sub(mv.Credit)
	}
	return mv.Credit.Sub(mv.Debit)
}

// DateRange is an inclusive range of calendar dates. A zero From is unbounded
// below and a zero To is unbounded above.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Between builds an inclusive range normalised to calendar dates.
func Between(from, to time.Time) DateRange {
	return DateRange{From: DateOf(from), To: DateOf(to)}
}

// Through builds a range covering everything up to and including asOf.
func Through(asOf time.Time) DateRange {
	return DateRange{To: DateOf(asOf)}
}

// Before builds a range covering everything strictly before t.
func Before(t time.Time) DateRange {
	return DateRange{To: DateOf(t).AddDate(0, 0, -1)}
}

// Validate rejects inverted ranges.
func (r DateRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To) {
		return fmt.Errorf("%w: %s after %s", ErrInvalidRange, r.From.Format(DateLayout), r.To.Format(DateLayout))
	}
	return nil
}

// Contains reports whether the date falls in the range.
func (r DateRange) Contains(t time.Time) bool {
	d := DateOf(t)
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidRange, raw)
	}
	return t, nil
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LineFilter selects posted lines for aggregation.
type LineFilter struct {
	WorkspaceID uuid.UUID
	AccountIDs  []uuid.UUID
	Range       DateRange
}

// PostingLineInput describes a journal line for posting request.
type PostingLineInput struct {
	AccountID   uuid.UUID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// PostingInput groups fields required to create a posted voucher.
type PostingInput struct {
	WorkspaceID uuid.UUID
	Date        time.Time
	Memo        string
	PostedBy    string
	Lines       []PostingLineInput
}

// VoidInput wraps parameters for voiding.
type VoidInput struct {
	WorkspaceID uuid.UUID
	VoucherID   uuid.UUID
	ActorID     string
	Reason      string
}

var (
	// ErrInvalidRange indicates an inverted or malformed date range.
	ErrInvalidRange = errors.New("accounting: invalid date range")
	// ErrUnknownAccount indicates a named account is not in the catalog.
	ErrUnknownAccount = errors.New("accounting: unknown account")
	// ErrIncompleteCatalog indicates posted lines reference accounts missing from the catalog.
	ErrIncompleteCatalog = errors.New("accounting: posted lines reference accounts missing from catalog")
	// ErrImbalancedLedger indicates trial balance debits differ from credits.
	ErrImbalancedLedger = errors.New("accounting: ledger debit and credit balances differ")
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrVoucherNotFound indicates missing voucher.
	ErrVoucherNotFound = errors.New("accounting: voucher not found")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrInactiveAccount indicates a posting against a deactivated account.
	ErrInactiveAccount = errors.New("accounting: account inactive")
	// ErrInvalidPosting indicates a malformed voucher or line.
	ErrInvalidPosting = errors.New("accounting: invalid posting")
)

// Validate ensures posting input meets minimum criteria.
func (in PostingInput) Validate() error {
	if in.WorkspaceID == uuid.Nil {
		return fmt.Errorf("%w: workspace required", ErrInvalidPosting)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: voucher date required", ErrInvalidPosting)
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == uuid.Nil {
			return fmt.Errorf("%w: line %d missing account", ErrInvalidPosting, idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d negative amount", ErrInvalidPosting, idx)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return fmt.Errorf("%w: line %d must be either debit or credit", ErrInvalidPosting, idx)
		}
		if !RoundAmount(line.Debit).Equal(line.Debit) || !RoundAmount(line.Credit).Equal(line.Credit) {
			return fmt.Errorf("%w: line %d exceeds %d fractional digits", ErrInvalidPosting, idx, AmountScale)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return ErrUnbalanced
	}
	return nil
}

package close

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
)

// PeriodType enumerates closing granularities.
type PeriodType string

const (
	PeriodMonth   PeriodType = "month"
	PeriodQuarter PeriodType = "quarter"
	PeriodYear    PeriodType = "year"
)

// ParsePeriodType normalises a submitted period type.
func ParsePeriodType(raw string) (PeriodType, error) {
	switch t := PeriodType(strings.ToLower(strings.TrimSpace(raw))); t {
	case PeriodMonth, PeriodQuarter, PeriodYear:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown period type %q", ErrInvalidPeriod, raw)
}

// Period is a closable calendar span.
type Period struct {
	Type   PeriodType `json:"type"`
	Year   int        `json:"year"`
	Number int        `json:"number"`
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
	Label  string     `json:"label"`
}

// Range returns the inclusive date range of the period.
func (p Period) Range() accounting.DateRange {
	return accounting.Between(p.Start, p.End)
}

// Key identifies the period for a workspace.
func (p Period) Key(workspaceID uuid.UUID) PeriodKey {
	return PeriodKey{WorkspaceID: workspaceID, Type: p.Type, Start: p.Start}
}

// PeriodKey is the uniqueness key of an active closing.
type PeriodKey struct {
	WorkspaceID uuid.UUID
	Type        PeriodType
	Start       time.Time
}

// State is the closing lifecycle of a period.
type State string

const (
	StateNotClosed State = "not_closed"
	StatePreviewed State = "previewed"
	StateClosed    State = "closed"
)

// Side is the journal side a closing line posts to.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// ClosingRecord is the persisted outcome of a period closing.
type ClosingRecord struct {
	ID           uuid.UUID       `json:"id"`
	WorkspaceID  uuid.UUID       `json:"workspace_id"`
	PeriodType   PeriodType      `json:"period_type"`
	PeriodStart  time.Time       `json:"period_start"`
	PeriodEnd    time.Time       `json:"period_end"`
	NetIncome    decimal.Decimal `json:"net_income"`
	VoucherID    uuid.UUID       `json:"closing_voucher_id"`
	ClosedBy     string          `json:"closed_by"`
	ClosedAt     time.Time       `json:"closed_at"`
	SupersededAt *time.Time      `json:"superseded_at,omitempty"`
}

// Key returns the uniqueness key of the record.
func (r ClosingRecord) Key() PeriodKey {
	return PeriodKey{WorkspaceID: r.WorkspaceID, Type: r.PeriodType, Start: r.PeriodStart}
}

// PreviewInput selects the period to preview.
type PreviewInput struct {
	WorkspaceID uuid.UUID
	PeriodType  PeriodType
	Year        int
	Number      int
}

// PreviewItem is one candidate closing line. Amount is the account balance on
// its normal side; a negative balance flips Side.
type PreviewItem struct {
	AccountID uuid.UUID              `json:"account_id"`
	Code      string                 `json:"account_code"`
	Name      string                 `json:"account_name"`
	Type      accounting.AccountType `json:"account_type"`
	Amount    decimal.Decimal        `json:"amount"`
	Side      Side                   `json:"closing_entry"`
}

// Line converts the item into a posting line.
func (i PreviewItem) Line() accounting.PostingLineInput {
	line := accounting.PostingLineInput{
		AccountID:   i.AccountID,
		Debit:       decimal.Zero,
		Credit:      decimal.Zero,
		Description: "Close " + i.Name,
	}
	if i.Side == SideDebit {
		line.Debit = i.Amount.Abs()
	} else {
		line.Credit = i.Amount.Abs()
	}
	return line
}

// ClosingPreview is the candidate closing of a period. It performs no writes.
type ClosingPreview struct {
	WorkspaceID   uuid.UUID       `json:"workspace_id"`
	Period        Period          `json:"period"`
	RevenueItems  []PreviewItem   `json:"revenue_items"`
	CostItems     []PreviewItem   `json:"cost_items"`
	ExpenseItems  []PreviewItem   `json:"expense_items"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	TotalExpense  decimal.Decimal `json:"total_expense"`
	GrossProfit   decimal.Decimal `json:"gross_profit"`
	NetIncome     decimal.Decimal `json:"net_income"`
	IsProfit      bool            `json:"is_profit"`
	AlreadyClosed bool            `json:"already_closed"`
}

// State reports where the previewed period stands.
func (p ClosingPreview) State() State {
	if p.AlreadyClosed {
		return StateClosed
	}
	return StatePreviewed
}

// Items returns every candidate line, revenue first.
func (p ClosingPreview) Items() []PreviewItem {
	out := make([]PreviewItem, 0, len(p.RevenueItems)+len(p.CostItems)+len(p.ExpenseItems))
	out = append(out, p.RevenueItems...)
	out = append(out, p.CostItems...)
	return append(out, p.ExpenseItems...)
}

// Lines builds the closing voucher lines with the retained earnings
// balancing line, which is omitted when net income is zero.
func (p ClosingPreview) Lines(retained accounting.Account) []accounting.PostingLineInput {
	items := p.Items()
	lines := make([]accounting.PostingLineInput, 0, len(items)+1)
	for _, item := range items {
		lines = append(lines, item.Line())
	}
	if p.NetIncome.IsZero() {
		return lines
	}
	balancing := accounting.PostingLineInput{
		AccountID:   retained.ID,
		Debit:       decimal.Zero,
		Credit:      decimal.Zero,
		Description: p.Period.Label + " net income",
	}
	if p.NetIncome.IsPositive() {
		balancing.Credit = p.NetIncome
	} else {
		balancing.Debit = p.NetIncome.Neg()
	}
	return append(lines, balancing)
}

// ExecuteInput carries the preview to commit.
type ExecuteInput struct {
	Preview ClosingPreview
	ActorID string
}

// ClosingResult is the committed closing.
type ClosingResult struct {
	Record  ClosingRecord      `json:"record"`
	Voucher accounting.Voucher `json:"voucher"`
}

var (
	// ErrAlreadyClosed indicates an active closing exists for the period.
	ErrAlreadyClosed = errors.New("close: period already closed")
	// ErrNothingToClose indicates the period has no revenue, cost or expense balance.
	ErrNothingToClose = errors.New("close: nothing to close")
	// ErrTransactionFailure wraps any failure that rolled the closing back.
	ErrTransactionFailure = errors.New("close: closing transaction failed")
	// ErrInvalidPeriod indicates an unknown period type or number.
	ErrInvalidPeriod = errors.New("close: invalid period")
	// ErrStalePreview indicates postings changed since the preview was computed.
	ErrStalePreview = errors.New("close: preview no longer matches the ledger")
)

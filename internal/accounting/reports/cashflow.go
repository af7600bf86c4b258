package reports

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
)

// Activity is a cash flow statement section.
type Activity string

const (
	ActivityOperating Activity = "operating"
	ActivityInvesting Activity = "investing"
	ActivityFinancing Activity = "financing"
)

// ParseActivity validates a stored activity value.
func ParseActivity(raw string) (Activity, error) {
	switch a := Activity(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActivityOperating, ActivityInvesting, ActivityFinancing:
		return a, nil
	}
	return "", fmt.Errorf("reports: unknown cash flow activity %q", raw)
}

// ActivityClassifier decides which accounts hold cash and which section a
// cash movement belongs to given its counterpart account.
type ActivityClassifier interface {
	IsCash(account accounting.Account) bool
	Classify(counterpart accounting.Account) Activity
}

// ConventionClassifier classifies by account type and code prefix.
type ConventionClassifier struct {
	CashPrefixes      []string
	InvestingPrefixes []string
	FinancingPrefixes []string
}

// DefaultConvention follows the common chart layout: 11xx cash and banks,
// 14xx-18xx long-lived assets, 23xx-28xx long-term debt.
func DefaultConvention() ConventionClassifier {
	return ConventionClassifier{
		CashPrefixes:      []string{"11"},
		InvestingPrefixes: []string{"14", "15", "16", "17", "18"},
		FinancingPrefixes: []string{"23", "24", "25", "26", "27", "28"},
	}
}

// IsCash reports whether account is a cash or bank account.
func (c ConventionClassifier) IsCash(account accounting.Account) bool {
	return account.Type == accounting.AccountTypeAsset && hasAnyPrefix(account.Code, c.CashPrefixes)
}

// Classify maps the counterpart of a cash movement to an activity.
func (c ConventionClassifier) Classify(counterpart accounting.Account) Activity {
	switch counterpart.Type {
	case accounting.AccountTypeEquity:
		return ActivityFinancing
	case accounting.AccountTypeLiability:
		if hasAnyPrefix(counterpart.Code, c.FinancingPrefixes) {
			return ActivityFinancing
		}
	case accounting.AccountTypeAsset:
		if hasAnyPrefix(counterpart.Code, c.InvestingPrefixes) {
			return ActivityInvesting
		}
	}
	return ActivityOperating
}

// CacheKey identifies the prefix configuration in report cache keys.
func (c ConventionClassifier) CacheKey() string {
	return "conv-" + strings.Join(c.CashPrefixes, ".") + "-" + strings.Join(c.InvestingPrefixes, ".") + "-" + strings.Join(c.FinancingPrefixes, ".")
}

func hasAnyPrefix(code string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// CashFlowLine is one cash line of a posted voucher.
type CashFlowLine struct {
	VoucherID       string          `json:"voucher_id"`
	VoucherNo       string          `json:"voucher_no"`
	Date            string          `json:"date"`
	Description     string          `json:"description"`
	CashAccount     string          `json:"cash_account"`
	CounterpartCode string          `json:"counterpart_code"`
	Amount          decimal.Decimal `json:"amount"`
	Activity        Activity        `json:"activity"`
}

// CashFlowStatement is the direct-method cash flow report for a date range.
type CashFlowStatement struct {
	From         string          `json:"from"`
	To           string          `json:"to"`
	Operating    []CashFlowLine  `json:"operating"`
	Investing    []CashFlowLine  `json:"investing"`
	Financing    []CashFlowLine  `json:"financing"`
	NetOperating decimal.Decimal `json:"net_operating"`
	NetInvesting decimal.Decimal `json:"net_investing"`
	NetFinancing decimal.Decimal `json:"net_financing"`
	NetChange    decimal.Decimal `json:"net_change"`
	OpeningCash  decimal.Decimal `json:"opening_cash"`
	ClosingCash  decimal.Decimal `json:"closing_cash"`
}

// CashAccounts lists the catalog accounts the classifier treats as cash.
func CashAccounts(catalog *accounting.Catalog, classifier ActivityClassifier) []accounting.Account {
	var out []accounting.Account
	for _, acc := range catalog.Accounts() {
		if classifier.IsCash(acc) {
			out = append(out, acc)
		}
	}
	return out
}

// CashPosition holds the combined cash account balances aggregated at both
// ends of a cash flow range.
type CashPosition struct {
	Opening decimal.Decimal
	Closing decimal.Decimal
}

// BuildCashFlow classifies every cash line by its voucher's dominant non-cash
// counterpart. lines must hold every line of each posted voucher that touches
// a cash account within the range. Vouchers made only of cash lines are
// transfers between cash accounts and contribute nothing. The classified net
// change must bridge position.Opening to position.Closing.
func BuildCashFlow(catalog *accounting.Catalog, classifier ActivityClassifier, position CashPosition, lines []accounting.PostedLine, rng accounting.DateRange) (CashFlowStatement, error) {
	stmt := CashFlowStatement{
		From:         formatDate(rng.From),
		To:           formatDate(rng.To),
		Operating:    []CashFlowLine{},
		Investing:    []CashFlowLine{},
		Financing:    []CashFlowLine{},
		NetOperating: decimal.Zero,
		NetInvesting: decimal.Zero,
		NetFinancing: decimal.Zero,
		OpeningCash:  position.Opening,
	}
	byVoucher := make(map[uuid.UUID][]accounting.PostedLine)
	var order []uuid.UUID
	for _, line := range lines {
		if _, ok := catalog.Lookup(line.AccountID); !ok {
			return CashFlowStatement{}, fmt.Errorf("%w: %s", accounting.ErrIncompleteCatalog, line.AccountID)
		}
		if _, seen := byVoucher[line.VoucherID]; !seen {
			order = append(order, line.VoucherID)
		}
		byVoucher[line.VoucherID] = append(byVoucher[line.VoucherID], line)
	}

	for _, voucherID := range order {
		var cash []accounting.PostedLine
		var counterpart *accounting.Account
		counterpartSize := decimal.Zero
		for _, line := range byVoucher[voucherID] {
			acc, _ := catalog.Lookup(line.AccountID)
			if classifier.IsCash(acc) {
				cash = append(cash, line)
				continue
			}
			size := line.Debit.Add(line.Credit)
			if counterpart == nil || size.GreaterThan(counterpartSize) ||
				(size.Equal(counterpartSize) && acc.Code < counterpart.Code) {
				picked := acc
				counterpart = &picked
				counterpartSize = size
			}
		}
		if counterpart == nil {
			continue
		}
		activity := classifier.Classify(*counterpart)
		for _, line := range cash {
			acc, _ := catalog.Lookup(line.AccountID)
			amount := line.Debit.Sub(line.Credit)
			description := line.Description
			if description == "" {
				description = line.VoucherMemo
			}
			entry := CashFlowLine{
				VoucherID:       line.VoucherID.String(),
				VoucherNo:       line.VoucherNo,
				Date:            line.VoucherDate.Format(accounting.DateLayout),
				Description:     description,
				CashAccount:     acc.Code,
				CounterpartCode: counterpart.Code,
				Amount:          amount,
				Activity:        activity,
			}
			switch activity {
			case ActivityInvesting:
				stmt.Investing = append(stmt.Investing, entry)
				stmt.NetInvesting = stmt.NetInvesting.Add(amount)
			case ActivityFinancing:
				stmt.Financing = append(stmt.Financing, entry)
				stmt.NetFinancing = stmt.NetFinancing.Add(amount)
			default:
				entry.Activity = ActivityOperating
				stmt.Operating = append(stmt.Operating, entry)
				stmt.NetOperating = stmt.NetOperating.Add(amount)
			}
		}
	}
	stmt.NetChange = stmt.NetOperating.Add(stmt.NetInvesting).Add(stmt.NetFinancing)
	stmt.ClosingCash = stmt.OpeningCash.Add(stmt.NetChange)
	if !stmt.ClosingCash.Equal(position.Closing) {
		return CashFlowStatement{}, fmt.Errorf("%w: cash flow closes at %s, cash accounts hold %s",
			accounting.ErrImbalancedLedger, stmt.ClosingCash.StringFixed(accounting.AmountScale), position.Closing.StringFixed(accounting.AmountScale))
	}
	return stmt, nil
}

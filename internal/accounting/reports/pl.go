package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
)

// StatementLine is one account row of a financial statement.
type StatementLine struct {
	AccountID string                 `json:"account_id"`
	Code      string                 `json:"code"`
	Name      string                 `json:"name"`
	Type      accounting.AccountType `json:"type"`
	Amount    decimal.Decimal        `json:"amount"`
	Percent   decimal.Decimal        `json:"percent"`
}

// IncomeStatement is the profit and loss report for a date range.
type IncomeStatement struct {
	From                   string          `json:"from"`
	To                     string          `json:"to"`
	Revenue                []StatementLine `json:"revenue"`
	Cost                   []StatementLine `json:"cost"`
	Expense                []StatementLine `json:"expense"`
	TotalRevenue           decimal.Decimal `json:"total_revenue"`
	TotalCost              decimal.Decimal `json:"total_cost"`
	TotalExpense           decimal.Decimal `json:"total_expense"`
	GrossProfit            decimal.Decimal `json:"gross_profit"`
	OperatingIncome        decimal.Decimal `json:"operating_income"`
	TotalRevenuePercent    decimal.Decimal `json:"total_revenue_percent"`
	TotalCostPercent       decimal.Decimal `json:"total_cost_percent"`
	TotalExpensePercent    decimal.Decimal `json:"total_expense_percent"`
	GrossProfitPercent     decimal.Decimal `json:"gross_profit_percent"`
	OperatingIncomePercent decimal.Decimal `json:"operating_income_percent"`
}

// BuildIncomeStatement partitions revenue, cost and expense balances and
// expresses every line and subtotal as a percentage of total revenue.
func BuildIncomeStatement(catalog *accounting.Catalog, movements accounting.Movements, rng accounting.DateRange) (IncomeStatement, error) {
	if err := catalog.CheckComplete(movements); err != nil {
		return IncomeStatement{}, err
	}
	revenue, totalRevenue := section(catalog, movements, accounting.AccountTypeRevenue)
	cost, totalCost := section(catalog, movements, accounting.AccountTypeCost)
	expense, totalExpense := section(catalog, movements, accounting.AccountTypeExpense)

	gross := totalRevenue.Sub(totalCost)
	operating := gross.Sub(totalExpense)
	for _, lines := range [][]StatementLine{revenue, cost, expense} {
		for i := range lines {
			lines[i].Percent = accounting.PercentOf(lines[i].Amount, totalRevenue)
		}
	}
	return IncomeStatement{
		From:                   formatDate(rng.From),
		To:                     formatDate(rng.To),
		Revenue:                revenue,
		Cost:                   cost,
		Expense:                expense,
		TotalRevenue:           totalRevenue,
		TotalCost:              totalCost,
		TotalExpense:           totalExpense,
		GrossProfit:            gross,
		OperatingIncome:        operating,
		TotalRevenuePercent:    accounting.PercentOf(totalRevenue, totalRevenue),
		TotalCostPercent:       accounting.PercentOf(totalCost, totalRevenue),
		TotalExpensePercent:    accounting.PercentOf(totalExpense, totalRevenue),
		GrossProfitPercent:     accounting.PercentOf(gross, totalRevenue),
		OperatingIncomePercent: accounting.PercentOf(operating, totalRevenue),
	}, nil
}

// section lists the nonzero normal-signed balances of one account type in
// code order with their total.
func section(catalog *accounting.Catalog, movements accounting.Movements, typ accounting.AccountType) ([]StatementLine, decimal.Decimal) {
	total := decimal.Zero
	lines := []StatementLine{}
	for _, acc := range catalog.OfType(typ) {
		amount := accounting.Balance(acc, movements.Get(acc.ID))
		if amount.IsZero() {
			continue
		}
		lines = append(lines, StatementLine{
			AccountID: acc.ID.String(),
			Code:      acc.Code,
			Name:      acc.Name,
			Type:      acc.Type,
			Amount:    amount,
			Percent:   decimal.Zero,
		})
		total = total.Add(amount)
	}
	return lines, total
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(accounting.DateLayout)
}

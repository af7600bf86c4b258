package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
)

// BalanceSheet is the as-of position. Equity is derived from assets and
// liabilities so the accounting equation holds by construction.
type BalanceSheet struct {
	AsOf             string          `json:"as_of"`
	Assets           []StatementLine `json:"assets"`
	Liabilities      []StatementLine `json:"liabilities"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	Equity           decimal.Decimal `json:"equity"`
}

// Balanced reports whether assets equal liabilities plus equity.
func (b BalanceSheet) Balanced() bool {
	return b.TotalAssets.Equal(b.TotalLiabilities.Add(b.Equity))
}

// BuildBalanceSheet partitions asset and liability balances.
func BuildBalanceSheet(catalog *accounting.Catalog, movements accounting.Movements, asOf time.Time) (BalanceSheet, error) {
	if err := catalog.CheckComplete(movements); err != nil {
		return BalanceSheet{}, err
	}
	assets, totalAssets := section(catalog, movements, accounting.AccountTypeAsset)
	liabilities, totalLiabilities := section(catalog, movements, accounting.AccountTypeLiability)
	return BalanceSheet{
		AsOf:             formatDate(asOf),
		Assets:           assets,
		Liabilities:      liabilities,
		TotalAssets:      totalAssets,
		TotalLiabilities: totalLiabilities,
		Equity:           totalAssets.Sub(totalLiabilities),
	}, nil
}

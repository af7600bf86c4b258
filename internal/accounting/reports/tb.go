package reports

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
)

// GroupKey returns a key used for grouping trial balance rows.
func GroupKey(code string) string {
	if idx := strings.Index(code, "."); idx > 0 {
		return code[:idx]
	}
	if len(code) >= 2 {
		return code[:2]
	}
	return code
}

// TrialBalanceGroup aggregates accounts for presentation.
type TrialBalanceGroup struct {
	Key           string                         `json:"key"`
	Entries       []accounting.TrialBalanceEntry `json:"entries"`
	DebitTotal    decimal.Decimal                `json:"debit_total"`
	CreditTotal   decimal.Decimal                `json:"credit_total"`
	DebitBalance  decimal.Decimal                `json:"debit_balance"`
	CreditBalance decimal.Decimal                `json:"credit_balance"`
}

// GroupedTrialBalance is a trial balance split by account code prefix.
type GroupedTrialBalance struct {
	accounting.TrialBalance
	Groups []TrialBalanceGroup `json:"groups"`
}

// GroupTrialBalance converts trial balance entries into code-prefix groups.
func GroupTrialBalance(tb accounting.TrialBalance) GroupedTrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, entry := range tb.Entries {
		key := GroupKey(entry.AccountCode)
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{
				Key:           key,
				DebitTotal:    decimal.Zero,
				CreditTotal:   decimal.Zero,
				DebitBalance:  decimal.Zero,
				CreditBalance: decimal.Zero,
			}
			groups[key] = grp
			keys = append(keys, key)
		}
		grp.Entries = append(grp.Entries, entry)
		grp.DebitTotal = grp.DebitTotal.Add(entry.DebitTotal)
		grp.CreditTotal = grp.CreditTotal.Add(entry.CreditTotal)
		grp.DebitBalance = grp.DebitBalance.Add(entry.DebitBalance)
		grp.CreditBalance = grp.CreditBalance.Add(entry.CreditBalance)
	}

	sort.Strings(keys)
	result := GroupedTrialBalance{TrialBalance: tb}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Entries, func(i, j int) bool {
			return grp.Entries[i].AccountCode < grp.Entries[j].AccountCode
		})
		result.Groups = append(result.Groups, *grp)
	}
	return result
}

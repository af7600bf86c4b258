package reports

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
)

func voucherLines(no, date string, legs ...accounting.Movement) []accounting.PostedLine {
	id := uuid.New()
	d, _ := accounting.ParseDate(date)
	out := make([]accounting.PostedLine, 0, len(legs))
	for i, leg := range legs {
		out = append(out, accounting.PostedLine{
			LineID:      uuid.New(),
			VoucherID:   id,
			VoucherNo:   no,
			VoucherDate: d,
			VoucherMemo: "memo " + no,
			LineNo:      i + 1,
			AccountID:   leg.AccountID,
			Debit:       leg.Debit,
			Credit:      leg.Credit,
		})
	}
	return out
}

func TestDefaultConvention(t *testing.T) {
	c := DefaultConvention()
	require.True(t, c.IsCash(account("1101", "Bank", accounting.AccountTypeAsset)))
	require.False(t, c.IsCash(account("1200", "Receivable", accounting.AccountTypeAsset)))
	require.False(t, c.IsCash(account("1100", "Mislabelled", accounting.AccountTypeExpense)))

	require.Equal(t, ActivityInvesting, c.Classify(account("1500", "Equipment", accounting.AccountTypeAsset)))
	require.Equal(t, ActivityFinancing, c.Classify(account("2500", "Bank Loan", accounting.AccountTypeLiability)))
	require.Equal(t, ActivityFinancing, c.Classify(account("3100", "Capital", accounting.AccountTypeEquity)))
	require.Equal(t, ActivityOperating, c.Classify(account("2100", "Payable", accounting.AccountTypeLiability)))
	require.Equal(t, ActivityOperating, c.Classify(account("4000", "Revenue", accounting.AccountTypeRevenue)))
}

func TestBuildCashFlowClassifiesByDominantCounterpart(t *testing.T) {
	cash := account("1100", "Cash", accounting.AccountTypeAsset)
	bank := account("1110", "Bank", accounting.AccountTypeAsset)
	equipment := account("1500", "Equipment", accounting.AccountTypeAsset)
	loan := account("2500", "Bank Loan", accounting.AccountTypeLiability)
	sales := account("4000", "Sales", accounting.AccountTypeRevenue)
	tax := account("2200", "Tax Payable", accounting.AccountTypeLiability)
	catalog := accounting.NewCatalog([]accounting.Account{cash, bank, equipment, loan, sales, tax})

	var lines []accounting.PostedLine
	lines = append(lines, voucherLines("JV2024030001", "2024-03-02",
		mv(cash, "1100", "0"), mv(sales, "0", "1000"), mv(tax, "0", "100"))...)
	lines = append(lines, voucherLines("JV2024030002", "2024-03-05",
		mv(equipment, "3000", "0"), mv(bank, "0", "3000"))...)
	lines = append(lines, voucherLines("JV2024030003", "2024-03-09",
		mv(bank, "5000", "0"), mv(loan, "0", "5000"))...)
	lines = append(lines, voucherLines("JV2024030004", "2024-03-10",
		mv(bank, "400", "0"), mv(cash, "0", "400"))...)

	cf, err := BuildCashFlow(catalog, DefaultConvention(), CashPosition{Opening: dec("250"), Closing: dec("3350")}, lines, accounting.DateRange{})
	require.NoError(t, err)
	require.Len(t, cf.Operating, 1)
	require.Equal(t, "4000", cf.Operating[0].CounterpartCode)
	require.Equal(t, "memo JV2024030001", cf.Operating[0].Description)
	requireDec(t, "1100", cf.NetOperating)
	requireDec(t, "-3000", cf.NetInvesting)
	requireDec(t, "5000", cf.NetFinancing)
	requireDec(t, "3100", cf.NetChange)
	requireDec(t, "250", cf.OpeningCash)
	requireDec(t, "3350", cf.ClosingCash)
	require.True(t, cf.ClosingCash.Equal(cf.OpeningCash.Add(cf.NetOperating).Add(cf.NetInvesting).Add(cf.NetFinancing)))
}

func TestBuildCashFlowRejectsUnknownAccount(t *testing.T) {
	cash := account("1100", "Cash", accounting.AccountTypeAsset)
	ghost := account("4999", "Ghost", accounting.AccountTypeRevenue)
	catalog := accounting.NewCatalog([]accounting.Account{cash})
	lines := voucherLines("JV2024030001", "2024-03-02", mv(cash, "10", "0"), mv(ghost, "0", "10"))

	_, err := BuildCashFlow(catalog, DefaultConvention(), CashPosition{Opening: dec("0"), Closing: dec("10")}, lines, accounting.DateRange{})
	require.ErrorIs(t, err, accounting.ErrIncompleteCatalog)
}

func TestBuildCashFlowRejectsUnreconciledCash(t *testing.T) {
	cash := account("1100", "Cash", accounting.AccountTypeAsset)
	sales := account("4000", "Sales", accounting.AccountTypeRevenue)
	rent := account("6100", "Rent", accounting.AccountTypeExpense)
	catalog := accounting.NewCatalog([]accounting.Account{cash, sales, rent})

	// The rent payment is missing from lines, so the sections overstate cash.
	lines := voucherLines("JV2024030001", "2024-03-02", mv(cash, "1000", "0"), mv(sales, "0", "1000"))

	_, err := BuildCashFlow(catalog, DefaultConvention(), CashPosition{Opening: dec("100"), Closing: dec("800")}, lines, accounting.DateRange{})
	require.ErrorIs(t, err, accounting.ErrImbalancedLedger)
	require.ErrorContains(t, err, "1100.00")

	cf, err := BuildCashFlow(catalog, DefaultConvention(), CashPosition{Opening: dec("100"), Closing: dec("1100")}, lines, accounting.DateRange{})
	require.NoError(t, err)
	requireDec(t, "1100", cf.ClosingCash)
}

func TestParseActivity(t *testing.T) {
	a, err := ParseActivity(" Investing ")
	require.NoError(t, err)
	require.Equal(t, ActivityInvesting, a)
	_, err = ParseActivity("cash")
	require.Error(t, err)
}

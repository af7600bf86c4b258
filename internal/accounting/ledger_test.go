package accounting_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/accountingtest"
)

func TestBuildLedgerRunningBalance(t *testing.T) {
	f := newFixture()
	f.store.Seed(f.ws, "JV2024020001", accountingtest.Date("2024-02-10"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.cash, Debit: "1000"},
		accountingtest.Line{Account: f.capital, Credit: "1000"})
	// Same date, numbers out of insertion order.
	f.store.Seed(f.ws, "JV2024030002", accountingtest.Date("2024-03-05"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.rent, Debit: "200"},
		accountingtest.Line{Account: f.cash, Credit: "200", Memo: "march rent"})
	f.store.Seed(f.ws, "JV2024030001", accountingtest.Date("2024-03-05"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.cash, Debit: "500"},
		accountingtest.Line{Account: f.sales, Credit: "500"})
	f.store.Seed(f.ws, "JV2024040001", accountingtest.Date("2024-04-01"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.cash, Debit: "50"},
		accountingtest.Line{Account: f.sales, Credit: "50"})

	agg := accounting.NewAggregator(f.store)
	ledger, err := agg.BuildLedger(context.Background(), f.ws, f.cash.ID,
		accounting.Between(accountingtest.Date("2024-03-01"), accountingtest.Date("2024-03-31")))
	require.NoError(t, err)
	requireDec(t, "1000", ledger.OpeningBalance)
	require.Len(t, ledger.Entries, 2)
	require.Equal(t, "JV2024030001", ledger.Entries[0].VoucherNo)
	requireDec(t, "1500", ledger.Entries[0].RunningBalance)
	require.Equal(t, "march rent", ledger.Entries[1].Description)
	requireDec(t, "1300", ledger.Entries[1].RunningBalance)
	requireDec(t, "1300", ledger.ClosingBalance)
	requireDec(t, "500", ledger.TotalDebit)
	requireDec(t, "200", ledger.TotalCredit)
}

func TestBuildLedgerOrdersSequenceNumerically(t *testing.T) {
	f := newFixture()
	f.store.Seed(f.ws, "JV20240310000", accountingtest.Date("2024-03-31"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.rent, Debit: "300"},
		accountingtest.Line{Account: f.cash, Credit: "300"})
	f.store.Seed(f.ws, "JV2024039999", accountingtest.Date("2024-03-31"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.cash, Debit: "1000"},
		accountingtest.Line{Account: f.sales, Credit: "1000"})

	ledger, err := accounting.NewAggregator(f.store).BuildLedger(context.Background(), f.ws, f.cash.ID,
		accounting.Between(accountingtest.Date("2024-03-01"), accountingtest.Date("2024-03-31")))
	require.NoError(t, err)
	require.Len(t, ledger.Entries, 2)
	require.Equal(t, "JV2024039999", ledger.Entries[0].VoucherNo)
	requireDec(t, "1000", ledger.Entries[0].RunningBalance)
	require.Equal(t, "JV20240310000", ledger.Entries[1].VoucherNo)
	requireDec(t, "700", ledger.Entries[1].RunningBalance)
}

func TestBuildLedgerCreditNormalAccount(t *testing.T) {
	f := newFixture()
	f.store.Seed(f.ws, "JV2024030001", accountingtest.Date("2024-03-05"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.cash, Debit: "500"},
		accountingtest.Line{Account: f.sales, Credit: "500"})
	f.store.Seed(f.ws, "JV2024030002", accountingtest.Date("2024-03-06"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.sales, Debit: "80"},
		accountingtest.Line{Account: f.cash, Credit: "80"})

	ledger, err := accounting.NewAggregator(f.store).BuildLedger(context.Background(), f.ws, f.sales.ID,
		accounting.Between(accountingtest.Date("2024-03-01"), accountingtest.Date("2024-03-31")))
	require.NoError(t, err)
	requireDec(t, "0", ledger.OpeningBalance)
	requireDec(t, "500", ledger.Entries[0].RunningBalance)
	requireDec(t, "420", ledger.ClosingBalance)
	require.Equal(t, "seed JV2024030001", ledger.Entries[0].Description)
}

func TestBuildLedgerUnknownAccount(t *testing.T) {
	f := newFixture()
	other := newFixture()
	_, err := accounting.NewAggregator(f.store).BuildLedger(context.Background(), f.ws, other.cash.ID, accounting.DateRange{})
	require.ErrorIs(t, err, accounting.ErrUnknownAccount)
}

func TestGeneralLedgerOnlyActiveAccounts(t *testing.T) {
	f := newFixture()
	f.store.Seed(f.ws, "JV2024030001", accountingtest.Date("2024-03-05"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.cash, Debit: "500"},
		accountingtest.Line{Account: f.sales, Credit: "500"})
	f.store.Seed(f.ws, "JV2024030002", accountingtest.Date("2024-03-09"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.rent, Debit: "120"},
		accountingtest.Line{Account: f.cash, Credit: "120"})

	ledgers, err := accounting.NewAggregator(f.store).GeneralLedger(context.Background(), f.ws,
		accounting.Between(accountingtest.Date("2024-03-01"), accountingtest.Date("2024-03-31")))
	require.NoError(t, err)
	require.Len(t, ledgers, 3)
	codes := []string{ledgers[0].Account.Code, ledgers[1].Account.Code, ledgers[2].Account.Code}
	require.Equal(t, []string{"1100", "4100", "6100"}, codes)
	requireDec(t, "380", ledgers[0].ClosingBalance)
}

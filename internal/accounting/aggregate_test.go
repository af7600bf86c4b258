package accounting_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/accountingtest"
)

type fixture struct {
	ws      uuid.UUID
	store   *accountingtest.Store
	cash    accounting.Account
	payable accounting.Account
	capital accounting.Account
	sales   accounting.Account
	cogs    accounting.Account
	rent    accounting.Account
}

func newFixture() *fixture {
	ws := uuid.New()
	store := accountingtest.NewStore()
	return &fixture{
		ws:      ws,
		store:   store,
		cash:    store.AddAccount(ws, "1100", "Cash", accounting.AccountTypeAsset),
		payable: store.AddAccount(ws, "2100", "Accounts Payable", accounting.AccountTypeLiability),
		capital: store.AddAccount(ws, "3100", "Owner Capital", accounting.AccountTypeEquity),
		sales:   store.AddAccount(ws, "4100", "Sales", accounting.AccountTypeRevenue),
		cogs:    store.AddAccount(ws, "5100", "Cost of Sales", accounting.AccountTypeCost),
		rent:    store.AddAccount(ws, "6100", "Rent", accounting.AccountTypeExpense),
	}
}

func dec(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s got %s", want, got)
}

func TestAggregateFillsZeroesAndExcludesVoided(t *testing.T) {
	f := newFixture()
	f.store.Seed(f.ws, "JV2024030001", accountingtest.Date("2024-03-05"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.cash, Debit: "1000"},
		accountingtest.Line{Account: f.sales, Credit: "1000"})
	f.store.Seed(f.ws, "JV2024030002", accountingtest.Date("2024-03-06"), accounting.VoucherStatusVoided,
		accountingtest.Line{Account: f.cash, Debit: "500"},
		accountingtest.Line{Account: f.sales, Credit: "500"})
	f.store.Seed(f.ws, "JV2024030003", accountingtest.Date("2024-03-07"), accounting.VoucherStatusDraft,
		accountingtest.Line{Account: f.cash, Debit: "700"},
		accountingtest.Line{Account: f.sales, Credit: "700"})

	agg := accounting.NewAggregator(f.store)
	movements, err := agg.Aggregate(context.Background(), accounting.LineFilter{
		WorkspaceID: f.ws,
		AccountIDs:  []uuid.UUID{f.cash.ID, f.rent.ID},
		Range:       accounting.Between(accountingtest.Date("2024-03-01"), accountingtest.Date("2024-03-31")),
	})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	requireDec(t, "1000", movements[f.cash.ID].Debit)
	require.True(t, movements[f.rent.ID].IsZero())
}

func TestAggregateRangeBoundariesAreInclusive(t *testing.T) {
	f := newFixture()
	for _, day := range []string{"2024-02-29", "2024-03-01", "2024-03-31", "2024-04-01"} {
		f.store.Seed(f.ws, "JV"+day, accountingtest.Date(day), accounting.VoucherStatusPosted,
			accountingtest.Line{Account: f.cash, Debit: "10"},
			accountingtest.Line{Account: f.sales, Credit: "10"})
	}
	agg := accounting.NewAggregator(f.store)
	movements, err := agg.Aggregate(context.Background(), accounting.LineFilter{
		WorkspaceID: f.ws,
		Range:       accounting.Between(accountingtest.Date("2024-03-01"), accountingtest.Date("2024-03-31")),
	})
	require.NoError(t, err)
	requireDec(t, "20", movements.Get(f.cash.ID).Debit)
	requireDec(t, "20", movements.Get(f.sales.ID).Credit)
}

func TestAggregateRejectsUnknownAccountAndInvertedRange(t *testing.T) {
	f := newFixture()
	agg := accounting.NewAggregator(f.store)
	ctx := context.Background()

	_, err := agg.Aggregate(ctx, accounting.LineFilter{WorkspaceID: f.ws, AccountIDs: []uuid.UUID{uuid.New()}})
	require.ErrorIs(t, err, accounting.ErrUnknownAccount)

	_, err = agg.Aggregate(ctx, accounting.LineFilter{
		WorkspaceID: f.ws,
		Range:       accounting.Between(accountingtest.Date("2024-04-01"), accountingtest.Date("2024-03-01")),
	})
	require.ErrorIs(t, err, accounting.ErrInvalidRange)
}

func TestAggregatePropagatesStoreErrors(t *testing.T) {
	f := newFixture()
	f.store.SumErr = errors.New("connection reset")
	_, err := accounting.NewAggregator(f.store).Aggregate(context.Background(), accounting.LineFilter{WorkspaceID: f.ws})
	require.ErrorContains(t, err, "connection reset")
}

func TestTrialBalanceBalances(t *testing.T) {
	f := newFixture()
	f.store.Seed(f.ws, "JV2024010001", accountingtest.Date("2024-01-02"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.cash, Debit: "5000"},
		accountingtest.Line{Account: f.capital, Credit: "5000"})
	f.store.Seed(f.ws, "JV2024010002", accountingtest.Date("2024-01-10"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.cash, Debit: "1200.50"},
		accountingtest.Line{Account: f.sales, Credit: "1200.50"})
	f.store.Seed(f.ws, "JV2024010003", accountingtest.Date("2024-01-11"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.rent, Debit: "300"},
		accountingtest.Line{Account: f.cash, Credit: "300"})
	f.store.Seed(f.ws, "JV2024020001", accountingtest.Date("2024-02-01"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.rent, Debit: "300"},
		accountingtest.Line{Account: f.payable, Credit: "300"})

	tb, err := accounting.NewAggregator(f.store).TrialBalance(context.Background(), f.ws, accountingtest.Date("2024-01-31"))
	require.NoError(t, err)
	require.Len(t, tb.Entries, 4)
	require.Equal(t, "1100", tb.Entries[0].AccountCode)
	requireDec(t, "5900.50", tb.Entries[0].DebitBalance)
	requireDec(t, "0", tb.Entries[0].CreditBalance)
	requireDec(t, "6500.50", tb.TotalDebit)
	requireDec(t, "6500.50", tb.TotalCredit)
	requireDec(t, "6200.50", tb.TotalDebitBalance)
	requireDec(t, "6200.50", tb.TotalCreditBalance)
}

func TestTrialBalanceReportsImbalance(t *testing.T) {
	f := newFixture()
	f.store.Seed(f.ws, "JV2024010001", accountingtest.Date("2024-01-02"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.cash, Debit: "100"},
		accountingtest.Line{Account: f.sales, Credit: "90"})

	_, err := accounting.NewAggregator(f.store).TrialBalance(context.Background(), f.ws, accountingtest.Date("2024-01-31"))
	require.ErrorIs(t, err, accounting.ErrImbalancedLedger)
	var imbalance *accounting.ImbalanceError
	require.ErrorAs(t, err, &imbalance)
	requireDec(t, "100", imbalance.Debit)
	requireDec(t, "90", imbalance.Credit)
}

func TestTrialBalanceRequiresCompleteCatalog(t *testing.T) {
	f := newFixture()
	f.store.Seed(f.ws, "JV2024010001", accountingtest.Date("2024-01-02"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.cash, Debit: "100"},
		accountingtest.Line{Account: f.sales, Credit: "100"})
	f.store.RemoveAccount(f.sales.ID)

	_, err := accounting.NewAggregator(f.store).TrialBalance(context.Background(), f.ws, accountingtest.Date("2024-01-31"))
	require.ErrorIs(t, err, accounting.ErrIncompleteCatalog)
}

package reports

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/accountingtest"
)

type countingReader struct {
	accounting.LedgerReader
	sums atomic.Int32
}

func (c *countingReader) SumPostedLines(ctx context.Context, filter accounting.LineFilter) ([]accounting.Movement, error) {
	c.sums.Add(1)
	return c.LedgerReader.SumPostedLines(ctx, filter)
}

type ledgerFixture struct {
	ws      uuid.UUID
	store   *accountingtest.Store
	reader  *countingReader
	cash    accounting.Account
	bank    accounting.Account
	capital accounting.Account
	sales   accounting.Account
	cost    accounting.Account
	rent    accounting.Account
}

func newLedgerFixture() *ledgerFixture {
	ws := uuid.New()
	store := accountingtest.NewStore()
	f := &ledgerFixture{
		ws:      ws,
		store:   store,
		reader:  &countingReader{LedgerReader: store},
		cash:    store.AddAccount(ws, "1100", "Cash", accounting.AccountTypeAsset),
		bank:    store.AddAccount(ws, "1110", "Bank", accounting.AccountTypeAsset),
		capital: store.AddAccount(ws, "3100", "Capital", accounting.AccountTypeEquity),
		sales:   store.AddAccount(ws, "4000", "Tour Revenue", accounting.AccountTypeRevenue),
		cost:    store.AddAccount(ws, "5000", "Tour Cost", accounting.AccountTypeCost),
		rent:    store.AddAccount(ws, "6100", "Rent", accounting.AccountTypeExpense),
	}
	store.Seed(ws, "JV2024020001", accountingtest.Date("2024-02-01"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.bank, Debit: "20000"},
		accountingtest.Line{Account: f.capital, Credit: "20000"})
	store.Seed(ws, "JV2024030001", accountingtest.Date("2024-03-03"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.cash, Debit: "10000"},
		accountingtest.Line{Account: f.sales, Credit: "10000"})
	store.Seed(ws, "JV2024030002", accountingtest.Date("2024-03-15"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.bank, Debit: "5000"},
		accountingtest.Line{Account: f.sales, Credit: "5000"})
	store.Seed(ws, "JV2024030003", accountingtest.Date("2024-03-20"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.cost, Debit: "9000"},
		accountingtest.Line{Account: f.bank, Credit: "9000"})
	return f
}

func march() accounting.DateRange {
	return accounting.Between(accountingtest.Date("2024-03-01"), accountingtest.Date("2024-03-31"))
}

func newTestService(t *testing.T, f *ledgerFixture) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(accounting.NewAggregator(f.reader), NewCache(client, time.Minute), nil), mr
}

func TestServiceIncomeStatementCachesUntilInvalidated(t *testing.T) {
	f := newLedgerFixture()
	svc, _ := newTestService(t, f)
	ctx := context.Background()

	first, err := svc.IncomeStatement(ctx, f.ws, march())
	require.NoError(t, err)
	requireDec(t, "15000", first.TotalRevenue)
	requireDec(t, "6000", first.GrossProfit)
	calls := f.reader.sums.Load()
	require.NotZero(t, calls)

	second, err := svc.IncomeStatement(ctx, f.ws, march())
	require.NoError(t, err)
	require.True(t, second.OperatingIncome.Equal(first.OperatingIncome))
	require.Equal(t, calls, f.reader.sums.Load(), "second call served from cache")

	f.store.Seed(f.ws, "JV2024030004", accountingtest.Date("2024-03-25"), accounting.VoucherStatusPosted,
		accountingtest.Line{Account: f.rent, Debit: "1000"},
		accountingtest.Line{Account: f.cash, Credit: "1000"})
	require.NoError(t, svc.Invalidate(ctx, f.ws))

	third, err := svc.IncomeStatement(ctx, f.ws, march())
	require.NoError(t, err)
	requireDec(t, "5000", third.OperatingIncome)
	require.Greater(t, f.reader.sums.Load(), calls)
}

func TestServiceBalanceSheetAndTrialBalance(t *testing.T) {
	f := newLedgerFixture()
	svc, _ := newTestService(t, f)
	ctx := context.Background()

	bs, err := svc.BalanceSheet(ctx, f.ws, accountingtest.Date("2024-03-31"))
	require.NoError(t, err)
	requireDec(t, "26000", bs.TotalAssets)
	requireDec(t, "0", bs.TotalLiabilities)
	requireDec(t, "26000", bs.Equity)
	require.True(t, bs.Balanced())

	tb, err := svc.TrialBalance(ctx, f.ws, accountingtest.Date("2024-03-31"))
	require.NoError(t, err)
	require.True(t, tb.TotalDebitBalance.Equal(tb.TotalCreditBalance))
	require.NotEmpty(t, tb.Groups)
}

func TestServiceCashFlowReconciles(t *testing.T) {
	f := newLedgerFixture()
	svc, _ := newTestService(t, f)

	cf, err := svc.CashFlow(context.Background(), f.ws, march(), nil)
	require.NoError(t, err)
	requireDec(t, "20000", cf.OpeningCash)
	requireDec(t, "6000", cf.NetOperating)
	requireDec(t, "0", cf.NetFinancing)
	requireDec(t, "26000", cf.ClosingCash)
	require.Len(t, cf.Operating, 3)
}

func TestServiceRejectsInvertedRange(t *testing.T) {
	f := newLedgerFixture()
	svc, _ := newTestService(t, f)
	_, err := svc.IncomeStatement(context.Background(), f.ws,
		accounting.Between(accountingtest.Date("2024-04-01"), accountingtest.Date("2024-03-01")))
	require.ErrorIs(t, err, accounting.ErrInvalidRange)
}

func TestServiceDegradesWhenRedisIsDown(t *testing.T) {
	f := newLedgerFixture()
	svc, mr := newTestService(t, f)
	mr.Close()

	is, err := svc.IncomeStatement(context.Background(), f.ws, march())
	require.NoError(t, err)
	requireDec(t, "15000", is.TotalRevenue)
}

func TestServiceDoesNotCacheErrors(t *testing.T) {
	f := newLedgerFixture()
	svc, _ := newTestService(t, f)
	f.store.SumErr = errors.New("boom")
	_, err := svc.IncomeStatement(context.Background(), f.ws, march())
	require.ErrorContains(t, err, "boom")

	f.store.SumErr = nil
	is, err := svc.IncomeStatement(context.Background(), f.ws, march())
	require.NoError(t, err)
	requireDec(t, "15000", is.TotalRevenue)
}

func TestCSVExports(t *testing.T) {
	f := newLedgerFixture()
	svc, _ := newTestService(t, f)
	ctx := context.Background()

	is, err := svc.IncomeStatement(ctx, f.ws, march())
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteIncomeStatementCSV(&buf, is))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "# Report: Income Statement\r\n"))
	require.Contains(t, out, "Revenue,4000,Tour Revenue,15000.00,100.00\r\n")
	require.Contains(t, out, "Totals,,Gross Profit,6000.00,40.00\r\n")

	buf.Reset()
	bs, err := svc.BalanceSheet(ctx, f.ws, accountingtest.Date("2024-03-31"))
	require.NoError(t, err)
	require.NoError(t, WriteBalanceSheetCSV(&buf, bs))
	require.Contains(t, buf.String(), "Totals,,Balanced,true\r\n")

	buf.Reset()
	cf, err := svc.CashFlow(ctx, f.ws, march(), nil)
	require.NoError(t, err)
	require.NoError(t, WriteCashFlowCSV(&buf, cf))
	require.Contains(t, buf.String(), "Totals,,,Closing Cash,,,26000.00\r\n")

	buf.Reset()
	tb, err := svc.TrialBalance(ctx, f.ws, accountingtest.Date("2024-03-31"))
	require.NoError(t, err)
	require.NoError(t, WriteTrialBalanceCSV(&buf, tb))
	require.Contains(t, buf.String(), "11,1100,Cash,asset,10000.00,0.00,10000.00,0.00\r\n")
}

type gatedReader struct {
	accounting.LedgerReader
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedReader) ListAccounts(ctx context.Context, workspaceID uuid.UUID) ([]accounting.Account, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.release:
	}
	return g.LedgerReader.ListAccounts(ctx, workspaceID)
}

func TestServiceSharedBuildSurvivesCancelledCaller(t *testing.T) {
	f := newLedgerFixture()
	gate := &gatedReader{LedgerReader: f.store, entered: make(chan struct{}), release: make(chan struct{})}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(accounting.NewAggregator(gate), NewCache(client, time.Minute), nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.IncomeStatement(ctxA, f.ws, march())
		errA <- err
	}()
	<-gate.entered

	type result struct {
		stmt IncomeStatement
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		stmt, err := svc.IncomeStatement(context.Background(), f.ws, march())
		resB <- result{stmt: stmt, err: err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)
	close(gate.release)

	select {
	case res := <-resB:
		require.NoError(t, res.err)
		requireDec(t, "15000", res.stmt.TotalRevenue)
	case <-time.After(5 * time.Second):
		t.Fatal("second caller did not finish")
	}
}

package accounting

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

func TestNormalBalanceByType(t *testing.T) {
	debit := []AccountType{AccountTypeAsset, AccountTypeCost, AccountTypeExpense}
	credit := []AccountType{AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue}
	for _, typ := range debit {
		require.Equal(t, NormalDebit, typ.NormalBalance(), typ)
	}
	for _, typ := range credit {
		require.Equal(t, NormalCredit, typ.NormalBalance(), typ)
	}
}

func TestParseAccountType(t *testing.T) {
	typ, err := ParseAccountType(" Revenue ")
	require.NoError(t, err)
	require.Equal(t, AccountTypeRevenue, typ)

	_, err = ParseAccountType("contra")
	require.Error(t, err)
}

func TestBalanceSignsByNormalSide(t *testing.T) {
	mv := Movement{Debit: dec("100"), Credit: dec("30")}
	require.True(t, dec("70").Equal(Balance(Account{Type: AccountTypeAsset}, mv)))
	require.True(t, dec("-70").Equal(Balance(Account{Type: AccountTypeRevenue}, mv)))
}

func TestDateRange(t *testing.T) {
	from := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	rng := Between(from, to)
	require.NoError(t, rng.Validate())
	require.True(t, rng.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.True(t, rng.Contains(time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC)))
	require.False(t, rng.Contains(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))

	inverted := Between(to, from)
	require.ErrorIs(t, inverted.Validate(), ErrInvalidRange)

	before := Before(from)
	require.Equal(t, "2024-02-29", before.To.Format(DateLayout))
	require.True(t, before.From.IsZero())
	require.True(t, Through(to).Contains(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPostingInputValidate(t *testing.T) {
	cash, revenue := uuid.New(), uuid.New()
	base := PostingInput{
		WorkspaceID: uuid.New(),
		Date:        time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Lines: []PostingLineInput{
			{AccountID: cash, Debit: dec("100.50"), Credit: decimal.Zero},
			{AccountID: revenue, Debit: decimal.Zero, Credit: dec("100.50")},
		},
	}
	require.NoError(t, base.Validate())

	cases := map[string]func(in *PostingInput){
		"one line": func(in *PostingInput) { in.Lines = in.Lines[:1] },
		"unbalanced": func(in *PostingInput) {
			in.Lines[1].Credit = dec("100")
		},
		"both sides": func(in *PostingInput) {
			in.Lines[0].Credit = dec("1")
		},
		"negative": func(in *PostingInput) {
			in.Lines[0].Debit = dec("-100.50")
		},
		"three decimals": func(in *PostingInput) {
			in.Lines[0].Debit = dec("100.505")
			in.Lines[1].Credit = dec("100.505")
		},
		"missing workspace": func(in *PostingInput) { in.WorkspaceID = uuid.Nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			in.Lines = append([]PostingLineInput(nil), base.Lines...)
			mutate(&in)
			require.Error(t, in.Validate())
		})
	}

	in := base
	in.Lines = []PostingLineInput{base.Lines[0], {AccountID: revenue, Credit: dec("99")}}
	require.True(t, errors.Is(in.Validate(), ErrUnbalanced))
}

func TestPercentOf(t *testing.T) {
	require.True(t, dec("33.33").Equal(PercentOf(dec("1"), dec("3"))))
	require.True(t, dec("60").Equal(PercentOf(dec("6000"), dec("10000"))))
	require.True(t, PercentOf(dec("5"), decimal.Zero).IsZero())
}

func TestNextVoucherNumber(t *testing.T) {
	prefix := VoucherNumberPrefix(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	require.Equal(t, "JV202403", prefix)

	first, err := NextVoucherNumber(prefix, "")
	require.NoError(t, err)
	require.Equal(t, "JV2024030001", first)

	next, err := NextVoucherNumber(prefix, "JV2024030041")
	require.NoError(t, err)
	require.Equal(t, "JV2024030042", next)

	_, err = NextVoucherNumber(prefix, "JV202403ABCD")
	require.Error(t, err)
}

func TestVoucherNumbersPastFourDigits(t *testing.T) {
	next, err := NextVoucherNumber("JV202403", "JV2024039999")
	require.NoError(t, err)
	require.Equal(t, "JV20240310000", next)

	require.Negative(t, CompareVoucherNumbers("JV2024039999", "JV20240310000"))
	require.Positive(t, CompareVoucherNumbers("JV20240310001", "JV20240310000"))
	require.Negative(t, CompareVoucherNumbers("JV20240210000", "JV2024030001"))
	require.Zero(t, CompareVoucherNumbers("JV2024030007", "JV2024030007"))
	require.Negative(t, CompareVoucherNumbers("ADJ-1", "ADJ-2"))
}

func TestCatalogLookups(t *testing.T) {
	ws := uuid.New()
	a := Account{ID: uuid.New(), WorkspaceID: ws, Code: "4100", Type: AccountTypeRevenue}
	b := Account{ID: uuid.New(), WorkspaceID: ws, Code: "1100", Type: AccountTypeAsset}
	catalog := NewCatalog([]Account{a, b})

	require.Equal(t, 2, catalog.Len())
	require.Equal(t, "1100", catalog.Accounts()[0].Code)
	got, ok := catalog.ByCode("4100")
	require.True(t, ok)
	require.Equal(t, a.ID, got.ID)
	require.Len(t, catalog.OfType(AccountTypeAsset), 1)

	stray := uuid.New()
	err := catalog.CheckComplete(Movements{stray: {AccountID: stray, Debit: dec("1")}})
	require.ErrorIs(t, err, ErrIncompleteCatalog)
	require.Contains(t, err.Error(), stray.String())
}

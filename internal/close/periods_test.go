package close

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodBounds(t *testing.T) {
	cases := []struct {
		name   string
		typ    PeriodType
		year   int
		number int
		start  time.Time
		end    time.Time
		label  string
	}{
		{"march", PeriodMonth, 2024, 3, day(2024, 3, 1), day(2024, 3, 31), "2024-03"},
		{"leap february", PeriodMonth, 2024, 2, day(2024, 2, 1), day(2024, 2, 29), "2024-02"},
		{"common february", PeriodMonth, 2023, 2, day(2023, 2, 1), day(2023, 2, 28), "2023-02"},
		{"april", PeriodMonth, 2024, 4, day(2024, 4, 1), day(2024, 4, 30), "2024-04"},
		{"first quarter", PeriodQuarter, 2024, 1, day(2024, 1, 1), day(2024, 3, 31), "2024-Q1"},
		{"second quarter", PeriodQuarter, 2024, 2, day(2024, 4, 1), day(2024, 6, 30), "2024-Q2"},
		{"fourth quarter", PeriodQuarter, 2024, 4, day(2024, 10, 1), day(2024, 12, 31), "2024-Q4"},
		{"fiscal year", PeriodYear, 2024, 0, day(2024, 1, 1), day(2024, 12, 31), "FY2024"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := PeriodBounds(tc.typ, tc.year, tc.number)
			require.NoError(t, err)
			require.True(t, tc.start.Equal(p.Start), "start %s", p.Start)
			require.True(t, tc.end.Equal(p.End), "end %s", p.End)
			require.Equal(t, tc.label, p.Label)
		})
	}
}

func TestPeriodBoundsRejectsInvalidNumbers(t *testing.T) {
	for _, tc := range []struct {
		typ    PeriodType
		number int
	}{
		{PeriodMonth, 0},
		{PeriodMonth, 13},
		{PeriodQuarter, 0},
		{PeriodQuarter, 5},
		{PeriodYear, 2},
		{PeriodType("week"), 1},
	} {
		_, err := PeriodBounds(tc.typ, 2024, tc.number)
		require.ErrorIs(t, err, ErrInvalidPeriod, "%s %d", tc.typ, tc.number)
	}
	_, err := PeriodBounds(PeriodMonth, 0, 1)
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestParsePeriodType(t *testing.T) {
	typ, err := ParsePeriodType(" Quarter ")
	require.NoError(t, err)
	require.Equal(t, PeriodQuarter, typ)

	_, err = ParsePeriodType("fortnight")
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

package close

import (
	"fmt"
	"time"
)

// PeriodBounds resolves the calendar span of a period. Month numbers run
// 1..12 and quarters 1..4; a year accepts 0 or 1.
func PeriodBounds(typ PeriodType, year, number int) (Period, error) {
	if year < 1 || year > 9999 {
		return Period{}, fmt.Errorf("%w: year %d", ErrInvalidPeriod, year)
	}
	var (
		first, last time.Month
		label       string
	)
	switch typ {
	case PeriodMonth:
		if number < 1 || number > 12 {
			return Period{}, fmt.Errorf("%w: month %d", ErrInvalidPeriod, number)
		}
		first, last = time.Month(number), time.Month(number)
		label = fmt.Sprintf("%04d-%02d", year, number)
	case PeriodQuarter:
		if number < 1 || number > 4 {
			return Period{}, fmt.Errorf("%w: quarter %d", ErrInvalidPeriod, number)
		}
		first = time.Month((number-1)*3 + 1)
		last = first + 2
		label = fmt.Sprintf("%04d-Q%d", year, number)
	case PeriodYear:
		if number != 0 && number != 1 {
			return Period{}, fmt.Errorf("%w: year number %d", ErrInvalidPeriod, number)
		}
		number = 1
		first, last = time.January, time.December
		label = fmt.Sprintf("FY%04d", year)
	default:
		return Period{}, fmt.Errorf("%w: unknown period type %q", ErrInvalidPeriod, typ)
	}
	return Period{
		Type:   typ,
		Year:   year,
		Number: number,
		Start:  time.Date(year, first, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(year, last+1, 0, 0, 0, 0, 0, time.UTC),
		Label:  label,
	}, nil
}

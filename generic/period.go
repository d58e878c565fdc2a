package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PERIOD - Inclusive calendar-day range a computation covers
// =============================================================================

// Period is an inclusive range of calendar days [Start, End].
//
// Examples:
//   - March 2025 payroll: 2025-03-01 .. 2025-03-31
//   - One week:           2025-03-03 .. 2025-03-09 (7 days, 1 week)
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod truncates both bounds to dates and validates them.
func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: TruncateDay(start), End: TruncateDay(end)}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate rejects missing bounds and ranges that end before they start.
func (p Period) Validate() error {
	if p.Start.IsZero() {
		return NewValidationError("period.start", "missing period start")
	}
	if p.End.IsZero() {
		return NewValidationError("period.end", "missing period end")
	}
	if TruncateDay(p.End).Before(TruncateDay(p.Start)) {
		return NewValidationError("period", "period ends before it starts")
	}
	return nil
}

// Contains returns true if t falls on a day within [Start, End].
func (p Period) Contains(t time.Time) bool {
	d := TruncateDay(t)
	return !d.Before(TruncateDay(p.Start)) && !d.After(TruncateDay(p.End))
}

// LengthDays is the number of calendar days in the period, both ends included.
func (p Period) LengthDays() int {
	return DaysBetween(p.Start, p.End) + 1
}

// Weeks is ceil(LengthDays / 7). A partial trailing week counts as a week.
func (p Period) Weeks() int {
	return (p.LengthDays() + 6) / 7
}

// CalendarMonths counts the calendar months the period touches, ignoring
// the day of month: (yearEnd-yearStart)*12 + (monthEnd-monthStart) + 1.
// Jan 31 .. Feb 1 is two months.
func (p Period) CalendarMonths() int {
	return (p.End.Year()-p.Start.Year())*12 + int(p.End.Month()-p.Start.Month()) + 1
}

// ProratedMonths weights every touched calendar month by the share of its
// days the period covers. Whole months count 1; Jan 16 .. Jan 31 counts 16/31.
func (p Period) ProratedMonths() decimal.Decimal {
	total := decimal.Zero
	start, end := TruncateDay(p.Start), TruncateDay(p.End)

	for ym := YearMonthOf(start); !ym.After(YearMonthOf(end)); ym = ym.AddMonths(1) {
		from, to := ym.FirstDay(), ym.LastDay()
		if start.After(from) {
			from = start
		}
		if end.Before(to) {
			to = end
		}
		covered := decimal.NewFromInt(int64(DaysBetween(from, to) + 1))
		inMonth := decimal.NewFromInt(int64(DaysInMonth(ym.Year, ym.Month)))
		total = total.Add(covered.Div(inMonth))
	}
	return total
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.Format("2006-01-02") + ", " + p.End.Format("2006-01-02") + "]"
}

// Overlaps returns true if the two periods share at least one day.
func (p Period) Overlaps(o Period) bool {
	return !TruncateDay(p.End).Before(TruncateDay(o.Start)) && !TruncateDay(o.End).Before(TruncateDay(p.Start))
}

// LastMonths returns the window of n whole calendar months before the
// month containing asOf. For asOf 2025-04-10 and n=3 that is Jan 1 .. Mar 31.
func LastMonths(asOf time.Time, n int) Period {
	current := YearMonthOf(asOf)
	return Period{
		Start: current.AddMonths(-n).FirstDay(),
		End:   current.AddMonths(-1).LastDay(),
	}
}

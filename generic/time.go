package generic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// DAYS - Calendar dates in UTC, no time-of-day
// =============================================================================

// Date builds a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TruncateDay drops the time-of-day, keeping the calendar date of t.
func TruncateDay(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

func Today() time.Time { return TruncateDay(time.Now()) }

// DaysBetween counts calendar days from one date to another (to - from).
func DaysBetween(from, to time.Time) int {
	return int(TruncateDay(to).Sub(TruncateDay(from)).Hours() / 24)
}

func DaysInMonth(year int, month time.Month) int {
	return Date(year, month+1, 1).AddDate(0, 0, -1).Day()
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, NewValidationError("date", fmt.Sprintf("invalid date %q (use YYYY-MM-DD)", s))
	}
	return t, nil
}

// =============================================================================
// YEAR-MONTH - Payroll period key
// =============================================================================

// YearMonth identifies a calendar month. Slips and monthly rate entries
// are keyed by it.
type YearMonth struct {
	Year  int
	Month time.Month
}

func NewYearMonth(year int, month time.Month) YearMonth { return YearMonth{Year: year, Month: month} }
func YearMonthOf(t time.Time) YearMonth                 { return YearMonth{Year: t.Year(), Month: t.Month()} }

// ParseYearMonth accepts "2024-03", "2024.03", "2024/3" and "202403".
func ParseYearMonth(s string) (YearMonth, error) {
	s = strings.TrimSpace(s)
	var yearPart, monthPart string
	if i := strings.IndexAny(s, "-./"); i >= 0 {
		yearPart, monthPart = s[:i], s[i+1:]
	} else if len(s) == 6 {
		yearPart, monthPart = s[:4], s[4:]
	} else {
		return YearMonth{}, NewValidationError("year_month", fmt.Sprintf("malformed year-month %q", s))
	}

	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return YearMonth{}, NewValidationError("year_month", fmt.Sprintf("malformed year in %q", s))
	}
	month, err := strconv.Atoi(monthPart)
	if err != nil {
		return YearMonth{}, NewValidationError("year_month", fmt.Sprintf("malformed month in %q", s))
	}

	ym := YearMonth{Year: year, Month: time.Month(month)}
	if err := ym.Validate(); err != nil {
		return YearMonth{}, err
	}
	return ym, nil
}

// Validate rejects months outside 1..12 and implausible years.
func (ym YearMonth) Validate() error {
	if ym.Month < time.January || ym.Month > time.December {
		return NewValidationError("year_month", fmt.Sprintf("month %d out of range", ym.Month))
	}
	if ym.Year < 1900 || ym.Year > 9999 {
		return NewValidationError("year_month", fmt.Sprintf("year %d out of range", ym.Year))
	}
	return nil
}

func (ym YearMonth) IsZero() bool { return ym.Year == 0 && ym.Month == 0 }

func (ym YearMonth) FirstDay() time.Time { return Date(ym.Year, ym.Month, 1) }
func (ym YearMonth) LastDay() time.Time  { return Date(ym.Year, ym.Month+1, 1).AddDate(0, 0, -1) }

// Period returns the whole calendar month as a period.
func (ym YearMonth) Period() Period { return Period{Start: ym.FirstDay(), End: ym.LastDay()} }

func (ym YearMonth) AddMonths(n int) YearMonth { return YearMonthOf(ym.FirstDay().AddDate(0, n, 0)) }

// Compare returns -1, 0 or 1.
func (ym YearMonth) Compare(o YearMonth) int {
	a, b := ym.Year*12+int(ym.Month), o.Year*12+int(o.Month)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (ym YearMonth) Before(o YearMonth) bool { return ym.Compare(o) < 0 }
func (ym YearMonth) After(o YearMonth) bool  { return ym.Compare(o) > 0 }

func (ym YearMonth) String() string { return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month)) }

func (ym YearMonth) MarshalJSON() ([]byte, error) {
	if ym.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + ym.String() + `"`), nil
}

func (ym *YearMonth) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*ym = YearMonth{}
		return nil
	}
	parsed, err := ParseYearMonth(s)
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}

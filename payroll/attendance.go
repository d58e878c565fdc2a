package payroll

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// Aggregate sums the intervals whose check-in falls in period. Check-ins
// are dated on the wall clock of loc, so an 08:00 KST shift belongs to
// that KST day whatever its UTC date. TotalDays counts distinct check-in
// dates; two shifts on one day are one day. A nil loc means UTC.
func Aggregate(employeeID generic.EmployeeID, period generic.Period, intervals []generic.AttendanceInterval, loc *time.Location) generic.AttendancePeriodSummary {
	if loc == nil {
		loc = time.UTC
	}
	summary := generic.AttendancePeriodSummary{
		EmployeeID: employeeID,
		Period:     period,
		TotalHours: decimal.Zero,
	}
	seen := make(map[string]bool)
	for _, iv := range intervals {
		checkIn := iv.CheckIn.In(loc)
		if iv.EmployeeID != employeeID || !period.Contains(checkIn) {
			continue
		}
		summary.TotalHours = summary.TotalHours.Add(iv.Hours)
		day := checkIn.Format("2006-01-02")
		if !seen[day] {
			seen[day] = true
			summary.TotalDays++
		}
	}
	return summary
}

// localBounds returns the instants bounding period's first and last local
// days in loc, for querying attendance stored in UTC.
func localBounds(period generic.Period, loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	s, e := period.Start, period.End
	from = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc)
	to = time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
	return from, to
}

package payroll_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func hourly(rate int64, policy generic.RestDayPolicy) generic.SalaryConfiguration {
	return generic.SalaryConfiguration{
		EmployeeID:    "emp-1",
		PayType:       generic.PayHourly,
		BaseAmount:    generic.NewMoney(rate),
		RestDayPolicy: policy,
	}
}

func salaried(payType generic.PayType, amount int64) generic.SalaryConfiguration {
	return generic.SalaryConfiguration{EmployeeID: "emp-1", PayType: payType, BaseAmount: generic.NewMoney(amount)}
}

func days(start time.Time, n int) generic.Period {
	return generic.Period{Start: start, End: start.AddDate(0, 0, n-1)}
}

func hours(h int64, p generic.Period) generic.AttendancePeriodSummary {
	return generic.AttendancePeriodSummary{EmployeeID: "emp-1", Period: p, TotalHours: decimal.NewFromInt(h)}
}

var march3 = generic.Date(2025, time.March, 3)

// =============================================================================
// HOURLY
// =============================================================================

func TestComputeBasePay_Hourly_Included_NoAllowance(t *testing.T) {
	p := days(march3, 7)
	pay, err := payroll.Calculator{}.ComputeBasePay(hourly(10000, generic.RestDayIncluded), hours(20, p), p)
	require.NoError(t, err)

	assert.Equal(t, int64(200000), pay.Base.Int64())
	assert.True(t, pay.RestDayAllowance.IsZero())
	assert.Equal(t, int64(200000), pay.Total.Int64())
}

func TestComputeBasePay_Hourly_Separate_AddsAllowance(t *testing.T) {
	// GIVEN: 20 hours over one 7-day week at 10000/h, allowance paid separately
	// WHEN: computing base pay
	// THEN: rest hours = min(20/5, 8) = 4, allowance = 4 × 1 × 10000
	p := days(march3, 7)
	pay, err := payroll.Calculator{}.ComputeBasePay(hourly(10000, generic.RestDaySeparate), hours(20, p), p)
	require.NoError(t, err)

	assert.Equal(t, 1, pay.Weeks)
	assert.Equal(t, int64(200000), pay.Base.Int64())
	assert.Equal(t, int64(40000), pay.RestDayAllowance.Int64())
	assert.Equal(t, int64(240000), pay.Total.Int64())
}

func TestComputeBasePay_Hourly_Separate_CappedAtEightHours(t *testing.T) {
	p := days(march3, 7)
	pay, err := payroll.Calculator{}.ComputeBasePay(hourly(10000, generic.RestDaySeparate), hours(50, p), p)
	require.NoError(t, err)
	assert.Equal(t, int64(80000), pay.RestDayAllowance.Int64())
}

func TestComputeBasePay_Hourly_Separate_BelowThreshold(t *testing.T) {
	p := days(march3, 7)
	pay, err := payroll.Calculator{}.ComputeBasePay(hourly(10000, generic.RestDaySeparate), hours(14, p), p)
	require.NoError(t, err)
	assert.True(t, pay.RestDayAllowance.IsZero())
	assert.Equal(t, int64(140000), pay.Total.Int64())
}

func TestComputeBasePay_Hourly_Separate_AveragedOverWeeks(t *testing.T) {
	// 60 hours over 14 days: 2 weeks, 30 h/week, 6 rest hours per week
	p := days(march3, 14)
	pay, err := payroll.Calculator{}.ComputeBasePay(hourly(10000, generic.RestDaySeparate), hours(60, p), p)
	require.NoError(t, err)
	assert.Equal(t, 2, pay.Weeks)
	assert.Equal(t, int64(120000), pay.RestDayAllowance.Int64())

	// 28 hours over 14 days averages 14 h/week: no allowance
	pay, err = payroll.Calculator{}.ComputeBasePay(hourly(10000, generic.RestDaySeparate), hours(28, p), p)
	require.NoError(t, err)
	assert.True(t, pay.RestDayAllowance.IsZero())
}

func TestComputeBasePay_Hourly_None_NeverPaysAllowance(t *testing.T) {
	p := days(march3, 7)
	pay, err := payroll.Calculator{}.ComputeBasePay(hourly(10000, generic.RestDayNone), hours(40, p), p)
	require.NoError(t, err)
	assert.True(t, pay.RestDayAllowance.IsZero())
}

// =============================================================================
// MONTHLY & ANNUAL
// =============================================================================

func TestComputeBasePay_Monthly_WholeMonth(t *testing.T) {
	p := generic.NewYearMonth(2025, time.March).Period()
	for _, calc := range []payroll.Calculator{{Proration: payroll.ProrateDaily}, {Proration: payroll.ProrateCalendarMonths}} {
		pay, err := calc.ComputeBasePay(salaried(generic.PayMonthly, 3000000), hours(0, p), p)
		require.NoError(t, err)
		assert.Equal(t, int64(3000000), pay.Total.Int64(), calc.Proration)
	}
}

func TestComputeBasePay_Monthly_PartialMonth_DailyProration(t *testing.T) {
	p := generic.Period{Start: generic.Date(2025, 1, 16), End: generic.Date(2025, 1, 31)}
	pay, err := payroll.Calculator{}.ComputeBasePay(salaried(generic.PayMonthly, 3000000), hours(0, p), p)
	require.NoError(t, err)
	// 3,000,000 × 16/31
	assert.Equal(t, int64(1548387), pay.Total.Int64())
}

func TestComputeBasePay_Monthly_CalendarMonthsIgnoresDays(t *testing.T) {
	// Jan 31 .. Feb 1 counts as two months under the calendar rule
	p := generic.Period{Start: generic.Date(2025, 1, 31), End: generic.Date(2025, 2, 1)}
	calc := payroll.Calculator{Proration: payroll.ProrateCalendarMonths}
	pay, err := calc.ComputeBasePay(salaried(generic.PayMonthly, 3000000), hours(0, p), p)
	require.NoError(t, err)
	assert.Equal(t, int64(6000000), pay.Total.Int64())

	daily, err := payroll.Calculator{}.ComputeBasePay(salaried(generic.PayMonthly, 3000000), hours(0, p), p)
	require.NoError(t, err)
	assert.True(t, daily.Total.LessThan(generic.NewMoney(300000)))
}

func TestComputeBasePay_Annual(t *testing.T) {
	p := generic.NewYearMonth(2025, time.April).Period()
	pay, err := payroll.Calculator{}.ComputeBasePay(salaried(generic.PayAnnual, 36000000), hours(0, p), p)
	require.NoError(t, err)
	assert.Equal(t, int64(3000000), pay.Total.Int64())
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestComputeBasePay_InvalidPeriod(t *testing.T) {
	bad := generic.Period{Start: generic.Date(2025, 3, 10), End: generic.Date(2025, 3, 1)}
	_, err := payroll.Calculator{}.ComputeBasePay(hourly(10000, generic.RestDayNone), hours(10, bad), bad)
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = payroll.Calculator{}.ComputeBasePay(hourly(10000, generic.RestDayNone), hours(10, bad), generic.Period{})
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestAggregate_CountsDistinctDays(t *testing.T) {
	p := days(march3, 7)
	at := func(d, h int) time.Time { return time.Date(2025, 3, d, h, 0, 0, 0, time.UTC) }
	intervals := []generic.AttendanceInterval{
		{EmployeeID: "emp-1", CheckIn: at(3, 9), CheckOut: at(3, 12), Hours: decimal.NewFromInt(3)},
		{EmployeeID: "emp-1", CheckIn: at(3, 14), CheckOut: at(3, 18), Hours: decimal.NewFromInt(4)},
		{EmployeeID: "emp-1", CheckIn: at(4, 9), CheckOut: at(4, 13), Hours: decimal.RequireFromString("3.5")},
		{EmployeeID: "emp-1", CheckIn: at(12, 9), CheckOut: at(12, 13), Hours: decimal.NewFromInt(4)}, // outside
		{EmployeeID: "emp-2", CheckIn: at(5, 9), CheckOut: at(5, 13), Hours: decimal.NewFromInt(4)},  // other employee
	}

	summary := payroll.Aggregate("emp-1", p, intervals, time.UTC)
	assert.Equal(t, 2, summary.TotalDays)
	assert.Equal(t, "10.5", summary.TotalHours.String())
}

func TestAggregate_DatesCheckInsInLocation(t *testing.T) {
	// GIVEN: an 08:00 KST check-in on March 3, which is March 2 in UTC
	// WHEN: aggregating the week of March 3 to 9 in Seoul time
	// THEN: the shift counts on March 3
	kst := time.FixedZone("KST", 9*60*60)
	in := time.Date(2025, 3, 3, 8, 0, 0, 0, kst).UTC()
	late := time.Date(2025, 3, 9, 23, 0, 0, 0, kst).UTC()
	intervals := []generic.AttendanceInterval{
		{EmployeeID: "emp-1", CheckIn: in, CheckOut: in.Add(8 * time.Hour), Hours: decimal.NewFromInt(8)},
		{EmployeeID: "emp-1", CheckIn: late, CheckOut: late.Add(time.Hour), Hours: decimal.NewFromInt(1)},
	}
	p := days(march3, 7)

	summary := payroll.Aggregate("emp-1", p, intervals, kst)
	assert.Equal(t, 2, summary.TotalDays)
	assert.Equal(t, "9", summary.TotalHours.String())

	utc := payroll.Aggregate("emp-1", p, intervals, nil)
	assert.Equal(t, 1, utc.TotalDays, "in UTC the first shift falls on March 2")
}

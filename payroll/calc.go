/*
Package payroll computes gross pay, statutory deductions and severance.

PURPOSE:
  Pure calculators over data already fetched from the stores, plus a
  Service that does the fetching. Nothing here writes.

KEY CONCEPTS:
  - Calculator.ComputeBasePay: base pay plus the paid rest-day allowance
  - ComputeDeductions: six deduction components from a resolved RateSet
  - ComputeSeverance: retrospective entitlement (3-month average wage)
  - EstimateLiability: "everyone resigns today" projection

ROUNDING:
  Intermediate values keep full decimal precision. Each exported result is
  rounded to whole currency units once, when it is returned.

SEE ALSO:
  - payroll/service.go: store-backed composition
  - rates/resolver.go: rate lookup
*/
package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// Proration selects how monthly and annual salaries are spread over a
// period that is not a whole calendar month.
type Proration string

const (
	// ProrateDaily weights each touched month by covered days / days in month.
	ProrateDaily Proration = "daily"

	// ProrateCalendarMonths counts every touched month as a whole month,
	// ignoring the day of month.
	ProrateCalendarMonths Proration = "calendar_months"
)

func (p Proration) Valid() bool {
	return p == ProrateDaily || p == ProrateCalendarMonths
}

var (
	restDayMinWeeklyHours = decimal.NewFromInt(15)
	restDayMaxHours       = decimal.NewFromInt(8)
	workDaysPerWeek       = decimal.NewFromInt(5)
	monthsPerYear         = decimal.NewFromInt(12)
)

// BasePay is the gross pay for one period, before deductions.
type BasePay struct {
	Base             generic.Money
	RestDayAllowance generic.Money
	Total            generic.Money

	// Inputs that produced the figures, for display.
	Weeks          int
	AvgWeeklyHours decimal.Decimal
	Months         decimal.Decimal
}

// Calculator computes base pay. The zero value prorates daily.
type Calculator struct {
	Proration Proration
}

// ComputeBasePay branches on the pay type.
//
//	hourly:  hours × rate, plus the rest-day allowance when the policy is
//	         "separate" and the average weekly hours reach 15
//	monthly: rate × months
//	annual:  rate / 12 × months
//
// The 15-hour threshold is the weekly-hours eligibility rule, so it applies
// to the average per week and not the period total: two weeks of 14 hours
// (28 in total) earn no allowance.
func (c Calculator) ComputeBasePay(cfg generic.SalaryConfiguration, summary generic.AttendancePeriodSummary, period generic.Period) (BasePay, error) {
	if err := period.Validate(); err != nil {
		return BasePay{}, err
	}
	if err := cfg.Validate(); err != nil {
		return BasePay{}, err
	}
	if summary.TotalHours.IsNegative() {
		return BasePay{}, generic.NewValidationError("total_hours", "must not be negative")
	}

	var result BasePay
	switch cfg.PayType {
	case generic.PayHourly:
		result.Base = cfg.BaseAmount.Mul(summary.TotalHours)
		result.RestDayAllowance = generic.ZeroMoney()
		result.Weeks = period.Weeks()
		result.AvgWeeklyHours = summary.TotalHours.Div(decimal.NewFromInt(int64(result.Weeks)))

		if cfg.RestDayPolicy == generic.RestDaySeparate && result.AvgWeeklyHours.GreaterThanOrEqual(restDayMinWeeklyHours) {
			restHours := decimal.Min(result.AvgWeeklyHours.Div(workDaysPerWeek), restDayMaxHours)
			result.RestDayAllowance = cfg.BaseAmount.Mul(restHours.Mul(decimal.NewFromInt(int64(result.Weeks))))
		}

	case generic.PayMonthly:
		result.Months = c.months(period)
		result.Base = cfg.BaseAmount.Mul(result.Months)
		result.RestDayAllowance = generic.ZeroMoney()

	case generic.PayAnnual:
		result.Months = c.months(period)
		result.Base = cfg.BaseAmount.Div(monthsPerYear).Mul(result.Months)
		result.RestDayAllowance = generic.ZeroMoney()

	default:
		return BasePay{}, generic.NewValidationError("pay_type", fmt.Sprintf("unknown pay type %q", cfg.PayType))
	}

	// Both returned components are whole units; Total is their exact sum.
	result.Base = result.Base.Round()
	result.RestDayAllowance = result.RestDayAllowance.Round()
	result.Total = result.Base.Add(result.RestDayAllowance)
	return result, nil
}

func (c Calculator) months(period generic.Period) decimal.Decimal {
	if c.Proration == ProrateCalendarMonths {
		return decimal.NewFromInt(int64(period.CalendarMonths()))
	}
	return period.ProratedMonths()
}

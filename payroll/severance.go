package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// SEVERANCE - Two distinct calculations
// =============================================================================
//
// ComputeSeverance answers "what is this worker owed on leaving": it
// averages the last three calendar months of wage. EstimateLiability
// answers "what would the workplace owe if everyone left today": a
// monthly-equivalent wage times tenure. They do not agree and are not
// meant to.

// SeveranceWindowMonths is the wage-averaging window length.
const SeveranceWindowMonths = 3

var (
	daysPerYear          = decimal.NewFromInt(365)
	windowDays           = decimal.NewFromInt(90)
	severanceDaysPerYear = decimal.NewFromInt(30)
	hourlyMonthlyHours   = decimal.NewFromInt(209)
)

// WageWindow is the attendance in the averaging window. Only hourly
// workers use Hours.
type WageWindow struct {
	Period generic.Period
	Hours  decimal.Decimal
}

// SeveranceResult is computed on request and never persisted. When
// When Eligible is false only TenureYears and DaysWorked are populated.
type SeveranceResult struct {
	Eligible         bool
	DaysWorked       int
	TenureYears      decimal.Decimal
	AverageDailyWage *generic.Money
	SeverancePay     *generic.Money
	Window           *generic.Period
}

func tenure(hireDate, today time.Time) (int, decimal.Decimal, error) {
	if hireDate.IsZero() {
		return 0, decimal.Zero, generic.NewValidationError("hire_date", "missing hire date")
	}
	days := generic.DaysBetween(hireDate, today)
	if days < 0 {
		return 0, decimal.Zero, generic.NewValidationError("hire_date", "hire date is after the as-of date")
	}
	return days, decimal.NewFromInt(int64(days)).Div(daysPerYear), nil
}

// ComputeSeverance returns the severance owed as of today.
//
//	tenureYears      = daysWorked / 365, eligible from 1
//	averageDailyWage = hourly:  window hours × rate / 90
//	                   monthly: rate × 3 / 90
//	                   annual:  rate / 365
//	severancePay     = round(averageDailyWage × daysWorked / 365 × 30)
func ComputeSeverance(cfg generic.SalaryConfiguration, hireDate, today time.Time, window WageWindow) (SeveranceResult, error) {
	if err := cfg.Validate(); err != nil {
		return SeveranceResult{}, err
	}
	days, years, err := tenure(hireDate, today)
	if err != nil {
		return SeveranceResult{}, err
	}

	result := SeveranceResult{DaysWorked: days, TenureYears: years.Round(4)}
	if years.LessThan(decimal.NewFromInt(1)) {
		return result, nil
	}

	var daily generic.Money
	switch cfg.PayType {
	case generic.PayHourly:
		daily = cfg.BaseAmount.Mul(window.Hours).Div(windowDays)
	case generic.PayMonthly:
		daily = cfg.BaseAmount.Mul(decimal.NewFromInt(SeveranceWindowMonths)).Div(windowDays)
	case generic.PayAnnual:
		daily = cfg.BaseAmount.Div(daysPerYear)
	default:
		return SeveranceResult{}, generic.NewValidationError("pay_type", fmt.Sprintf("unknown pay type %q", cfg.PayType))
	}

	pay := daily.Mul(decimal.NewFromInt(int64(days))).Div(daysPerYear).Mul(severanceDaysPerYear).Round()
	roundedDaily := daily.Round()
	result.Eligible = true
	result.AverageDailyWage = &roundedDaily
	result.SeverancePay = &pay
	if !window.Period.Start.IsZero() {
		w := window.Period
		result.Window = &w
	}
	return result, nil
}

// MonthlyEquivalentWage converts any pay type to a monthly figure:
// monthly as-is, hourly × 209, annual / 12.
func MonthlyEquivalentWage(cfg generic.SalaryConfiguration) generic.Money {
	switch cfg.PayType {
	case generic.PayHourly:
		return cfg.BaseAmount.Mul(hourlyMonthlyHours)
	case generic.PayAnnual:
		return cfg.BaseAmount.Div(monthsPerYear)
	}
	return cfg.BaseAmount
}

// EstimateLiability is the projection used in aggregate reporting:
// round(monthly-equivalent wage × tenureYears). It applies no eligibility
// cut-off, so workers under a year still show their accruing liability.
func EstimateLiability(cfg generic.SalaryConfiguration, hireDate, today time.Time) (generic.Money, error) {
	if err := cfg.Validate(); err != nil {
		return generic.Money{}, err
	}
	_, years, err := tenure(hireDate, today)
	if err != nil {
		return generic.Money{}, err
	}
	return MonthlyEquivalentWage(cfg).Mul(years).Round(), nil
}

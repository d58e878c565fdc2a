package generic

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RATE SET - Statutory deduction percentages, versioned by effective date
// =============================================================================

var hundred = decimal.NewFromInt(100)

// InsuranceRates holds one side's (employee or employer) percentages.
// Values are percents: 4.5 means 4.5 %. LongTermCare is applied to the
// health insurance premium, not to pay.
type InsuranceRates struct {
	Pension      decimal.Decimal
	Health       decimal.Decimal
	LongTermCare decimal.Decimal
	Employment   decimal.Decimal
}

func (r InsuranceRates) validate(side string) error {
	fields := map[string]decimal.Decimal{
		"pension":        r.Pension,
		"health":         r.Health,
		"long_term_care": r.LongTermCare,
		"employment":     r.Employment,
	}
	for name, v := range fields {
		if v.IsNegative() || v.GreaterThanOrEqual(hundred) {
			return NewValidationError(side+"."+name, fmt.Sprintf("percentage %s out of range [0, 100)", v))
		}
	}
	return nil
}

// RateValues is the payload shared by timeline and legacy records.
type RateValues struct {
	Employee InsuranceRates
	Employer InsuranceRates

	// Monthly pay used as the pension base is clamped to [floor, ceiling].
	// A zero ceiling means uncapped.
	PensionBaseFloor   Money
	PensionBaseCeiling Money

	// FlatWithholding is the percent withheld from workers outside the
	// statutory insurance scheme.
	FlatWithholding decimal.Decimal
}

// Validate checks percentages and caps.
func (v RateValues) Validate() error {
	if err := v.Employee.validate("employee"); err != nil {
		return err
	}
	if err := v.Employer.validate("employer"); err != nil {
		return err
	}
	if v.FlatWithholding.IsNegative() || v.FlatWithholding.GreaterThanOrEqual(hundred) {
		return NewValidationError("flat_withholding", fmt.Sprintf("percentage %s out of range [0, 100)", v.FlatWithholding))
	}
	if v.PensionBaseFloor.IsNegative() || v.PensionBaseCeiling.IsNegative() {
		return NewValidationError("pension_base", "caps must not be negative")
	}
	if v.PensionBaseCeiling.IsPositive() && v.PensionBaseFloor.GreaterThan(v.PensionBaseCeiling) {
		return NewValidationError("pension_base", "floor exceeds ceiling")
	}
	return nil
}

// Percent converts a percent value to a multiplier (4.5 -> 0.045).
func Percent(p decimal.Decimal) decimal.Decimal { return p.Div(hundred) }

type RateSource string

const (
	RateSourceMonthly RateSource = "monthly" // written per year-month
	RateSourceLegacy  RateSource = "legacy"  // migrated from the year-range table
)

// RateSet is one entry of the rate timeline. It is effective from
// EffectiveFrom until the next entry supersedes it.
type RateSet struct {
	ID            string
	EffectiveFrom time.Time
	Source        RateSource
	RateValues
	UpdatedAt time.Time
}

// LegacyRateSet is a row of the year-range rate table: rates for Year,
// valid in [EffectiveFrom, EffectiveTo]. A zero EffectiveTo is open-ended.
type LegacyRateSet struct {
	ID            string
	Year          int
	EffectiveFrom time.Time
	EffectiveTo   time.Time
	RateValues
	CreatedAt time.Time
}

// Covers reports whether d falls in the record's validity window.
func (l LegacyRateSet) Covers(d time.Time) bool {
	d = TruncateDay(d)
	if d.Before(TruncateDay(l.EffectiveFrom)) {
		return false
	}
	return l.EffectiveTo.IsZero() || !d.After(TruncateDay(l.EffectiveTo))
}

// Key is the (year, effective-from) pair that must be unique.
func (l LegacyRateSet) Key() string {
	return fmt.Sprintf("%d/%s", l.Year, l.EffectiveFrom.Format("2006-01-02"))
}

// Validate checks the window and the payload.
func (l LegacyRateSet) Validate() error {
	if l.Year < 1900 || l.Year > 9999 {
		return NewValidationError("year", fmt.Sprintf("year %d out of range", l.Year))
	}
	if l.EffectiveFrom.IsZero() {
		return NewValidationError("effective_from", "missing effective-from date")
	}
	if l.EffectiveFrom.Year() != l.Year {
		return NewValidationError("effective_from", "effective-from must fall in the record year")
	}
	if !l.EffectiveTo.IsZero() && l.EffectiveTo.Before(l.EffectiveFrom) {
		return NewValidationError("effective_to", "window ends before it starts")
	}
	return l.RateValues.Validate()
}

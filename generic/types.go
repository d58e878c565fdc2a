/*
Package generic provides the domain-agnostic primitives of the payroll engine.

PURPOSE:
  Money, calendar and period arithmetic, the roster/attendance/slip data
  model, the error taxonomy and the storage interfaces shared by every
  domain package (rates, payroll, ledger, reconcile). Nothing in here knows
  how a rate is resolved or how a ledger is parsed.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: a decimal amount in the single payroll currency
  - SalaryConfiguration: how an employee is paid
  - Employee: a roster entry (workplace, name, hire date, salary)
  - Deductions: the six ordered deduction components of a slip
  - PayrollSlip: one employee's reconciled pay for one period

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal, never float64
  2. Rounding: whole currency units, applied once when a result is returned
  3. Type Safety: typed IDs keep workplace and employee IDs apart

USAGE:
  cfg := generic.SalaryConfiguration{
      EmployeeID:      "emp-1",
      PayType:         generic.PayHourly,
      BaseAmount:      generic.NewMoney(10000),
      RestDayPolicy:   generic.RestDaySeparate,
      DeductionScheme: generic.SchemeStatutoryInsurance,
  }

SEE ALSO:
  - time.go: YearMonth and day arithmetic
  - period.go: Period, week and month counting
  - errors.go: ValidationError, NotFoundError, ConflictError, ParseError
  - store.go: persistence interfaces
*/
package generic

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Single currency, decimal precision
// =============================================================================

// Money is an amount in the payroll currency. The currency has no minor
// unit, so results are rounded to whole units with Round.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(units int64) Money               { return Money{Value: decimal.NewFromInt(units)} }
func MoneyFromDecimal(d decimal.Decimal) Money { return Money{Value: d} }
func ZeroMoney() Money                         { return Money{Value: decimal.Zero} }

// ParseMoney accepts plain ("2000000") and grouped ("2,000,000") notation.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return Money{}, fmt.Errorf("invalid money %q: %w", s, err)
	}
	return Money{Value: d}, nil
}

func (m Money) Add(o Money) Money              { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money              { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(f decimal.Decimal) Money    { return Money{Value: m.Value.Mul(f)} }
func (m Money) Div(f decimal.Decimal) Money    { return Money{Value: m.Value.Div(f)} }
func (m Money) Neg() Money                     { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool                   { return m.Value.IsZero() }
func (m Money) IsPositive() bool               { return m.Value.IsPositive() }
func (m Money) IsNegative() bool               { return m.Value.IsNegative() }
func (m Money) Equal(o Money) bool             { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool       { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool          { return m.Value.LessThan(o.Value) }
func (m Money) Int64() int64                   { return m.Value.Round(0).IntPart() }
func (m Money) String() string                 { return m.Value.String() }

// Round rounds to the nearest whole currency unit, half away from zero.
func (m Money) Round() Money { return Money{Value: m.Value.Round(0)} }

// MarshalJSON writes money as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Value.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted, optionally grouped, string.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		m.Value = decimal.Zero
		return nil
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// SumMoney adds all amounts.
func SumMoney(amounts ...Money) Money {
	total := ZeroMoney()
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkplaceID string
type EmployeeID string
type SlipID string

// =============================================================================
// SALARY CONFIGURATION
// =============================================================================

type PayType string

const (
	PayHourly  PayType = "hourly"
	PayMonthly PayType = "monthly"
	PayAnnual  PayType = "annual"
)

func (p PayType) Valid() bool {
	switch p {
	case PayHourly, PayMonthly, PayAnnual:
		return true
	}
	return false
}

// RestDayPolicy controls how the statutory paid rest day is paid to
// hourly workers.
type RestDayPolicy string

const (
	RestDayIncluded RestDayPolicy = "included" // already folded into the hourly rate
	RestDaySeparate RestDayPolicy = "separate" // computed and added on top of base pay
	RestDayNone     RestDayPolicy = "none"     // never paid
)

func (p RestDayPolicy) Valid() bool {
	switch p {
	case RestDayIncluded, RestDaySeparate, RestDayNone:
		return true
	}
	return false
}

type DeductionScheme string

const (
	SchemeStatutoryInsurance DeductionScheme = "statutory_insurance"
	SchemeFlatWithholding    DeductionScheme = "flat_withholding"
	SchemeNone               DeductionScheme = "none"
)

func (s DeductionScheme) Valid() bool {
	switch s {
	case SchemeStatutoryInsurance, SchemeFlatWithholding, SchemeNone:
		return true
	}
	return false
}

// SalaryConfiguration describes how one employee is paid.
// BaseAmount is the hourly rate, the monthly salary or the annual salary
// depending on PayType.
type SalaryConfiguration struct {
	EmployeeID      EmployeeID
	PayType         PayType
	BaseAmount      Money
	RestDayPolicy   RestDayPolicy
	DeductionScheme DeductionScheme
}

// Validate checks the configuration is usable by the calculators.
func (c SalaryConfiguration) Validate() error {
	if !c.PayType.Valid() {
		return NewValidationError("pay_type", fmt.Sprintf("unknown pay type %q", c.PayType))
	}
	if c.BaseAmount.IsNegative() {
		return NewValidationError("base_amount", "must not be negative")
	}
	if c.RestDayPolicy != "" && !c.RestDayPolicy.Valid() {
		return NewValidationError("rest_day_policy", fmt.Sprintf("unknown policy %q", c.RestDayPolicy))
	}
	if c.DeductionScheme != "" && !c.DeductionScheme.Valid() {
		return NewValidationError("deduction_scheme", fmt.Sprintf("unknown scheme %q", c.DeductionScheme))
	}
	return nil
}

// =============================================================================
// ROSTER & ATTENDANCE
// =============================================================================

// Employee is a roster entry.
type Employee struct {
	ID          EmployeeID
	WorkplaceID WorkplaceID
	Name        string
	HireDate    time.Time
	Salary      SalaryConfiguration
	CreatedAt   time.Time
}

// AttendanceInterval is one completed check-in/check-out pair.
// Hours is derived upstream (breaks already removed) and trusted as-is.
type AttendanceInterval struct {
	ID         string
	EmployeeID EmployeeID
	CheckIn    time.Time
	CheckOut   time.Time
	Hours      decimal.Decimal
}

// AttendancePeriodSummary is the worked time of one employee in a period.
type AttendancePeriodSummary struct {
	EmployeeID EmployeeID
	Period     Period
	TotalHours decimal.Decimal
	TotalDays  int
}

// PastPayrollRecord is pay entered by hand for periods before the system
// was adopted. It is carried into aggregate figures, never recomputed.
type PastPayrollRecord struct {
	ID         string
	EmployeeID EmployeeID
	Period     Period
	GrossPay   Money
	Note       string
	CreatedAt  time.Time
}

// =============================================================================
// DEDUCTIONS & SLIPS
// =============================================================================

// DeductionCount is the number of deduction components on a slip.
const DeductionCount = 6

// Deductions are the six deduction components, in ledger column order.
type Deductions struct {
	Pension             Money
	HealthInsurance     Money
	EmploymentInsurance Money
	LongTermCare        Money
	IncomeTax           Money
	LocalIncomeTax      Money
}

// DeductionsFromSlice maps values positionally; missing slots stay zero.
func DeductionsFromSlice(values []Money) Deductions {
	var slots [DeductionCount]Money
	for i := range slots {
		slots[i] = ZeroMoney()
		if i < len(values) {
			slots[i] = values[i]
		}
	}
	return Deductions{
		Pension:             slots[0],
		HealthInsurance:     slots[1],
		EmploymentInsurance: slots[2],
		LongTermCare:        slots[3],
		IncomeTax:           slots[4],
		LocalIncomeTax:      slots[5],
	}
}

// Values returns the components in ledger column order.
func (d Deductions) Values() []Money {
	return []Money{d.Pension, d.HealthInsurance, d.EmploymentInsurance, d.LongTermCare, d.IncomeTax, d.LocalIncomeTax}
}

func (d Deductions) Total() Money { return SumMoney(d.Values()...) }

// Round rounds every component to whole units.
func (d Deductions) Round() Deductions {
	values := d.Values()
	for i := range values {
		values[i] = values[i].Round()
	}
	return DeductionsFromSlice(values)
}

// PayrollSlip is one employee's reconciled pay for one period.
// (WorkplaceID, EmployeeID, Period) is the natural key.
type PayrollSlip struct {
	ID              SlipID
	WorkplaceID     WorkplaceID
	EmployeeID      EmployeeID
	Period          YearMonth
	PayDate         *time.Time
	BasePay         Money
	Deductions      Deductions
	TotalDeductions Money
	NetPay          Money
	ChecksumOK      bool
	RawText         string
	ImportedAt      time.Time
}

// ImportRun records one ledger import for audit.
type ImportRun struct {
	ID             string
	WorkplaceID    WorkplaceID
	Period         YearMonth
	PayDate        *time.Time
	ImportedCount  int
	UnmatchedNames []string
	FlaggedNames   []string
	CreatedAt      time.Time
}

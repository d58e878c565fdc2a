/*
Package factory provides JSON to Go conversion for roster and rate data.

PURPOSE:
  Converts JSON definitions of employees, rate sets, attendance and past
  payroll into generic domain types, filling defaults and validating on
  the way. The HTTP API, the demo scenarios and payrollctl all feed their
  input through here.

JSON SCHEMA (employee):
  {
    "id": "emp-1",
    "workplace_id": "wp-1",
    "name": "홍길동",
    "hire_date": "2024-01-01",
    "salary": {
      "pay_type": "hourly",
      "base_amount": 10030,
      "rest_day_policy": "separate",
      "deduction_scheme": "statutory_insurance"
    }
  }

JSON SCHEMA (rates):
  {
    "employee": {"pension": 4.5, "health": 3.545, "long_term_care": 12.95, "employment": 0.9},
    "employer": {"pension": 4.5, "health": 3.545, "long_term_care": 12.95, "employment": 1.15},
    "pension_base_floor": 390000,
    "pension_base_ceiling": 6170000,
    "flat_withholding": 3.3
  }

DEFAULTS:
  - rest_day_policy: "separate" for hourly pay, "none" otherwise
  - deduction_scheme: "statutory_insurance"
  - attendance hours: check_out - check_in when omitted

SEE ALSO:
  - api/dto.go: response shapes
  - api/scenarios.go: demo data written in these schemas
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type SalaryJSON struct {
	PayType         string        `json:"pay_type"`
	BaseAmount      generic.Money `json:"base_amount"`
	RestDayPolicy   string        `json:"rest_day_policy,omitempty"`
	DeductionScheme string        `json:"deduction_scheme,omitempty"`
}

type EmployeeJSON struct {
	ID          string     `json:"id"`
	WorkplaceID string     `json:"workplace_id"`
	Name        string     `json:"name"`
	HireDate    string     `json:"hire_date"`
	Salary      SalaryJSON `json:"salary"`
}

type InsuranceRatesJSON struct {
	Pension      decimal.Decimal `json:"pension"`
	Health       decimal.Decimal `json:"health"`
	LongTermCare decimal.Decimal `json:"long_term_care"`
	Employment   decimal.Decimal `json:"employment"`
}

type RatesJSON struct {
	Employee           InsuranceRatesJSON `json:"employee"`
	Employer           InsuranceRatesJSON `json:"employer"`
	PensionBaseFloor   generic.Money      `json:"pension_base_floor"`
	PensionBaseCeiling generic.Money      `json:"pension_base_ceiling"`
	FlatWithholding    decimal.Decimal    `json:"flat_withholding"`
}

// LegacyRateJSON is a year-range record: the rates plus their window.
type LegacyRateJSON struct {
	ID            string `json:"id,omitempty"`
	Year          int    `json:"year"`
	EffectiveFrom string `json:"effective_from"`
	EffectiveTo   string `json:"effective_to,omitempty"`
	RatesJSON
}

type AttendanceJSON struct {
	CheckIn  time.Time        `json:"check_in"`
	CheckOut time.Time        `json:"check_out"`
	Hours    *decimal.Decimal `json:"hours,omitempty"`
}

type PastPayrollJSON struct {
	Start    string        `json:"start"`
	End      string        `json:"end"`
	GrossPay generic.Money `json:"gross_pay"`
	Note     string        `json:"note,omitempty"`
}

// =============================================================================
// CONVERSION
// =============================================================================

// ParseEmployee parses a JSON string into an Employee.
func ParseEmployee(jsonStr string) (generic.Employee, error) {
	var ej EmployeeJSON
	if err := json.Unmarshal([]byte(jsonStr), &ej); err != nil {
		return generic.Employee{}, fmt.Errorf("failed to parse employee JSON: %w", err)
	}
	return EmployeeFromJSON(ej)
}

// EmployeeFromJSON fills defaults and validates.
func EmployeeFromJSON(ej EmployeeJSON) (generic.Employee, error) {
	if ej.ID == "" {
		return generic.Employee{}, generic.NewValidationError("id", "required")
	}
	if ej.WorkplaceID == "" {
		return generic.Employee{}, generic.NewValidationError("workplace_id", "required")
	}
	if ej.Name == "" {
		return generic.Employee{}, generic.NewValidationError("name", "required")
	}
	hire, err := generic.ParseDate(ej.HireDate)
	if err != nil {
		return generic.Employee{}, generic.NewValidationError("hire_date", err.Error())
	}

	cfg := SalaryFromJSON(generic.EmployeeID(ej.ID), ej.Salary)
	if err := cfg.Validate(); err != nil {
		return generic.Employee{}, err
	}
	return generic.Employee{
		ID:          generic.EmployeeID(ej.ID),
		WorkplaceID: generic.WorkplaceID(ej.WorkplaceID),
		Name:        ej.Name,
		HireDate:    hire,
		Salary:      cfg,
	}, nil
}

func SalaryFromJSON(id generic.EmployeeID, sj SalaryJSON) generic.SalaryConfiguration {
	cfg := generic.SalaryConfiguration{
		EmployeeID:      id,
		PayType:         generic.PayType(sj.PayType),
		BaseAmount:      sj.BaseAmount,
		RestDayPolicy:   generic.RestDayPolicy(sj.RestDayPolicy),
		DeductionScheme: generic.DeductionScheme(sj.DeductionScheme),
	}
	if cfg.RestDayPolicy == "" {
		cfg.RestDayPolicy = generic.RestDayNone
		if cfg.PayType == generic.PayHourly {
			cfg.RestDayPolicy = generic.RestDaySeparate
		}
	}
	if cfg.DeductionScheme == "" {
		cfg.DeductionScheme = generic.SchemeStatutoryInsurance
	}
	return cfg
}

// ToEmployeeJSON is the inverse of EmployeeFromJSON.
func ToEmployeeJSON(e generic.Employee) EmployeeJSON {
	return EmployeeJSON{
		ID:          string(e.ID),
		WorkplaceID: string(e.WorkplaceID),
		Name:        e.Name,
		HireDate:    e.HireDate.Format("2006-01-02"),
		Salary: SalaryJSON{
			PayType:         string(e.Salary.PayType),
			BaseAmount:      e.Salary.BaseAmount,
			RestDayPolicy:   string(e.Salary.RestDayPolicy),
			DeductionScheme: string(e.Salary.DeductionScheme),
		},
	}
}

// ParseRates parses a JSON string into RateValues.
func ParseRates(jsonStr string) (generic.RateValues, error) {
	var rj RatesJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return generic.RateValues{}, fmt.Errorf("failed to parse rates JSON: %w", err)
	}
	return RatesFromJSON(rj)
}

func RatesFromJSON(rj RatesJSON) (generic.RateValues, error) {
	v := generic.RateValues{
		Employee:           generic.InsuranceRates(rj.Employee),
		Employer:           generic.InsuranceRates(rj.Employer),
		PensionBaseFloor:   rj.PensionBaseFloor,
		PensionBaseCeiling: rj.PensionBaseCeiling,
		FlatWithholding:    rj.FlatWithholding,
	}
	if err := v.Validate(); err != nil {
		return generic.RateValues{}, err
	}
	return v, nil
}

func ToRatesJSON(v generic.RateValues) RatesJSON {
	return RatesJSON{
		Employee:           InsuranceRatesJSON(v.Employee),
		Employer:           InsuranceRatesJSON(v.Employer),
		PensionBaseFloor:   v.PensionBaseFloor,
		PensionBaseCeiling: v.PensionBaseCeiling,
		FlatWithholding:    v.FlatWithholding,
	}
}

func LegacyFromJSON(lj LegacyRateJSON) (generic.LegacyRateSet, error) {
	from, err := generic.ParseDate(lj.EffectiveFrom)
	if err != nil {
		return generic.LegacyRateSet{}, generic.NewValidationError("effective_from", err.Error())
	}
	var to time.Time
	if lj.EffectiveTo != "" {
		if to, err = generic.ParseDate(lj.EffectiveTo); err != nil {
			return generic.LegacyRateSet{}, generic.NewValidationError("effective_to", err.Error())
		}
	}
	values, err := RatesFromJSON(lj.RatesJSON)
	if err != nil {
		return generic.LegacyRateSet{}, err
	}
	year := lj.Year
	if year == 0 {
		year = from.Year()
	}
	rs := generic.LegacyRateSet{ID: lj.ID, Year: year, EffectiveFrom: from, EffectiveTo: to, RateValues: values}
	return rs, rs.Validate()
}

// IntervalsFromJSON derives missing hours from the check-in/out pair.
func IntervalsFromJSON(employeeID generic.EmployeeID, items []AttendanceJSON) ([]generic.AttendanceInterval, error) {
	out := make([]generic.AttendanceInterval, 0, len(items))
	for i, a := range items {
		if a.CheckIn.IsZero() || a.CheckOut.IsZero() {
			return nil, generic.NewValidationError(fmt.Sprintf("attendance[%d]", i), "check_in and check_out are required")
		}
		if !a.CheckOut.After(a.CheckIn) {
			return nil, generic.NewValidationError(fmt.Sprintf("attendance[%d]", i), "check_out must be after check_in")
		}
		hours := decimal.NewFromFloat(a.CheckOut.Sub(a.CheckIn).Hours()).Round(2)
		if a.Hours != nil {
			if a.Hours.IsNegative() {
				return nil, generic.NewValidationError(fmt.Sprintf("attendance[%d].hours", i), "must not be negative")
			}
			hours = *a.Hours
		}
		out = append(out, generic.AttendanceInterval{
			EmployeeID: employeeID,
			CheckIn:    a.CheckIn.UTC(),
			CheckOut:   a.CheckOut.UTC(),
			Hours:      hours,
		})
	}
	return out, nil
}

func PastPayrollFromJSON(employeeID generic.EmployeeID, pj PastPayrollJSON) (generic.PastPayrollRecord, error) {
	start, err := generic.ParseDate(pj.Start)
	if err != nil {
		return generic.PastPayrollRecord{}, err
	}
	end, err := generic.ParseDate(pj.End)
	if err != nil {
		return generic.PastPayrollRecord{}, err
	}
	period, err := generic.NewPeriod(start, end)
	if err != nil {
		return generic.PastPayrollRecord{}, err
	}
	if pj.GrossPay.IsNegative() {
		return generic.PastPayrollRecord{}, generic.NewValidationError("gross_pay", "must not be negative")
	}
	return generic.PastPayrollRecord{EmployeeID: employeeID, Period: period, GrossPay: pj.GrossPay, Note: pj.Note}, nil
}

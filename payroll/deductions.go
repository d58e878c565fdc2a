package payroll

import (
	"fmt"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// DEDUCTIONS - Employee-side withholding from gross pay
// =============================================================================

// ComputeDeductions applies the employee-side rates of rs to gross.
//
// Statutory insurance:
//
//	pension      = clamp(gross, floor, ceiling) × pension%
//	health       = gross × health%
//	longTermCare = health × longTermCare%
//	employment   = gross × employment%
//
// Income tax is not computed under this scheme and stays zero.
//
// Flat withholding puts gross × flat% in the income tax slot. The "none"
// scheme withholds nothing. Every component is rounded to whole units.
func ComputeDeductions(scheme generic.DeductionScheme, gross generic.Money, rs generic.RateSet) (generic.Deductions, error) {
	zero := generic.DeductionsFromSlice(nil)
	if gross.IsNegative() {
		return zero, generic.NewValidationError("gross", "must not be negative")
	}

	switch scheme {
	case generic.SchemeNone, "":
		return zero, nil

	case generic.SchemeFlatWithholding:
		d := zero
		d.IncomeTax = gross.Mul(generic.Percent(rs.FlatWithholding)).Round()
		return d, nil

	case generic.SchemeStatutoryInsurance:
		emp := rs.Employee
		health := gross.Mul(generic.Percent(emp.Health))
		d := generic.Deductions{
			Pension:             PensionBase(gross, rs.RateValues).Mul(generic.Percent(emp.Pension)),
			HealthInsurance:     health,
			EmploymentInsurance: gross.Mul(generic.Percent(emp.Employment)),
			LongTermCare:        health.Mul(generic.Percent(emp.LongTermCare)),
			IncomeTax:           generic.ZeroMoney(),
			LocalIncomeTax:      generic.ZeroMoney(),
		}
		return d.Round(), nil
	}
	return zero, generic.NewValidationError("deduction_scheme", fmt.Sprintf("unknown scheme %q", scheme))
}

// PensionBase clamps monthly pay into the pension contribution band.
func PensionBase(gross generic.Money, v generic.RateValues) generic.Money {
	base := gross
	if base.LessThan(v.PensionBaseFloor) {
		base = v.PensionBaseFloor
	}
	if v.PensionBaseCeiling.IsPositive() && base.GreaterThan(v.PensionBaseCeiling) {
		base = v.PensionBaseCeiling
	}
	return base
}

// EmployerContribution is the employer-side insurance cost for gross.
// Only the statutory scheme carries one.
func EmployerContribution(scheme generic.DeductionScheme, gross generic.Money, rs generic.RateSet) generic.Money {
	if scheme != generic.SchemeStatutoryInsurance {
		return generic.ZeroMoney()
	}
	er := rs.Employer
	health := gross.Mul(generic.Percent(er.Health))
	return generic.SumMoney(
		PensionBase(gross, rs.RateValues).Mul(generic.Percent(er.Pension)),
		health,
		health.Mul(generic.Percent(er.LongTermCare)),
		gross.Mul(generic.Percent(er.Employment)),
	).Round()
}

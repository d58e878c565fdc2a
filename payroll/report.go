package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
)

// LiabilityLine is one employee's row in the workplace liability report.
type LiabilityLine struct {
	EmployeeID        generic.EmployeeID
	Name              string
	HireDate          time.Time
	TenureYears       decimal.Decimal
	MonthlyWage       generic.Money
	Liability         generic.Money
	SeveranceEligible bool
	Carryover         generic.Money
}

// LiabilityReport projects the severance the workplace would owe if every
// employee left on AsOf.
type LiabilityReport struct {
	WorkplaceID    generic.WorkplaceID
	AsOf           time.Time
	Lines          []LiabilityLine
	TotalLiability generic.Money
	TotalCarryover generic.Money
}

// LiabilityReport uses EstimateLiability for every roster entry hired on
// or before asOf. Later hires are left out.
func (s *Service) LiabilityReport(ctx context.Context, workplaceID generic.WorkplaceID, asOf time.Time) (*LiabilityReport, error) {
	employees, err := s.Roster.ListEmployees(ctx, workplaceID)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}

	report := &LiabilityReport{
		WorkplaceID:    workplaceID,
		AsOf:           generic.TruncateDay(asOf),
		TotalLiability: generic.ZeroMoney(),
		TotalCarryover: generic.ZeroMoney(),
	}
	for _, emp := range employees {
		if emp.HireDate.IsZero() || emp.HireDate.After(asOf) {
			s.Logger.Debug("skipping employee in liability report", zap.String("employee_id", string(emp.ID)))
			continue
		}
		liability, err := EstimateLiability(emp.Salary, emp.HireDate, asOf)
		if err != nil {
			return nil, fmt.Errorf("employee %s: %w", emp.ID, err)
		}
		carry, err := s.carryover(ctx, emp.ID, nil)
		if err != nil {
			return nil, err
		}
		days, years, _ := tenure(emp.HireDate, asOf)

		report.Lines = append(report.Lines, LiabilityLine{
			EmployeeID:        emp.ID,
			Name:              emp.Name,
			HireDate:          emp.HireDate,
			TenureYears:       years.Round(2),
			MonthlyWage:       MonthlyEquivalentWage(emp.Salary).Round(),
			Liability:         liability,
			SeveranceEligible: days >= 365,
			Carryover:         carry,
		})
		report.TotalLiability = report.TotalLiability.Add(liability)
		report.TotalCarryover = report.TotalCarryover.Add(carry)
	}
	return report, nil
}

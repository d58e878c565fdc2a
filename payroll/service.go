package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/rates"
)

// =============================================================================
// SERVICE - Calculators composed over the stores
// =============================================================================

// Service fetches roster, attendance, carryover and rates and runs the
// calculators. It never writes.
type Service struct {
	Roster     generic.Roster
	Attendance generic.AttendanceSource
	Past       generic.PastPayrollStore
	Rates      *rates.Resolver
	Calculator Calculator
	Logger     *zap.Logger

	// Location dates attendance check-ins. Nil means UTC.
	Location *time.Location
}

func NewService(roster generic.Roster, attendance generic.AttendanceSource, past generic.PastPayrollStore, resolver *rates.Resolver, calc Calculator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Roster:     roster,
		Attendance: attendance,
		Past:       past,
		Rates:      resolver,
		Calculator: calc,
		Logger:     logger,
	}
}

// PayrollComputationResult is one employee's pay for a period.
type PayrollComputationResult struct {
	EmployeeID           generic.EmployeeID
	Period               generic.Period
	TotalWorkDays        int
	TotalWorkHours       decimal.Decimal
	BaseAmount           generic.Money
	RestDayAllowance     generic.Money
	PastPayrollCarryover generic.Money
	TotalPay             generic.Money
	Deductions           generic.Deductions
	TotalDeductions      generic.Money
	NetPay               generic.Money
	EmployerContribution generic.Money
	RateSetID            string
}

// ComputePayroll computes gross pay, carryover and deductions for one
// employee. Rates are resolved on the last day of the period; employees
// under the "none" scheme need no rate set.
func (s *Service) ComputePayroll(ctx context.Context, employeeID generic.EmployeeID, period generic.Period) (*PayrollComputationResult, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	emp, err := s.Roster.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	from, to := localBounds(period, s.Location)
	intervals, err := s.Attendance.ListIntervals(ctx, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}
	summary := Aggregate(employeeID, period, intervals, s.Location)

	pay, err := s.Calculator.ComputeBasePay(emp.Salary, summary, period)
	if err != nil {
		return nil, err
	}

	carryover, err := s.carryover(ctx, employeeID, &period)
	if err != nil {
		return nil, err
	}

	result := &PayrollComputationResult{
		EmployeeID:           employeeID,
		Period:               period,
		TotalWorkDays:        summary.TotalDays,
		TotalWorkHours:       summary.TotalHours,
		BaseAmount:           pay.Base,
		RestDayAllowance:     pay.RestDayAllowance,
		PastPayrollCarryover: carryover,
		TotalPay:             pay.Total.Add(carryover),
		Deductions:           generic.DeductionsFromSlice(nil),
		EmployerContribution: generic.ZeroMoney(),
	}

	scheme := emp.Salary.DeductionScheme
	if scheme != generic.SchemeNone && scheme != "" {
		rs, err := s.Rates.Resolve(ctx, period.End)
		if err != nil {
			return nil, err
		}
		result.RateSetID = rs.ID
		if result.Deductions, err = ComputeDeductions(scheme, result.TotalPay, rs); err != nil {
			return nil, err
		}
		result.EmployerContribution = EmployerContribution(scheme, result.TotalPay, rs)
	}
	result.TotalDeductions = result.Deductions.Total()
	result.NetPay = result.TotalPay.Sub(result.TotalDeductions)

	s.Logger.Debug("payroll computed",
		zap.String("employee_id", string(employeeID)),
		zap.String("period", period.String()),
		zap.String("total_pay", result.TotalPay.String()),
		zap.String("rate_set_id", result.RateSetID),
	)
	return result, nil
}

// ComputeSeverance computes the severance owed to one employee as of asOf,
// averaging attendance over the three whole calendar months before it.
func (s *Service) ComputeSeverance(ctx context.Context, employeeID generic.EmployeeID, asOf time.Time) (SeveranceResult, error) {
	emp, err := s.Roster.GetEmployee(ctx, employeeID)
	if err != nil {
		return SeveranceResult{}, err
	}

	window := WageWindow{Period: generic.LastMonths(asOf, SeveranceWindowMonths), Hours: decimal.Zero}
	if emp.Salary.PayType == generic.PayHourly {
		from, to := localBounds(window.Period, s.Location)
		intervals, err := s.Attendance.ListIntervals(ctx, employeeID, from, to)
		if err != nil {
			return SeveranceResult{}, fmt.Errorf("load attendance: %w", err)
		}
		window.Hours = Aggregate(employeeID, window.Period, intervals, s.Location).TotalHours
	}
	return ComputeSeverance(emp.Salary, emp.HireDate, asOf, window)
}

// carryover sums past payroll records overlapping period, or all of them
// when period is nil.
func (s *Service) carryover(ctx context.Context, employeeID generic.EmployeeID, period *generic.Period) (generic.Money, error) {
	if s.Past == nil {
		return generic.ZeroMoney(), nil
	}
	records, err := s.Past.ListPastPayroll(ctx, employeeID)
	if err != nil {
		return generic.Money{}, fmt.Errorf("load past payroll: %w", err)
	}
	total := generic.ZeroMoney()
	for _, rec := range records {
		if period == nil || rec.Period.Overlaps(*period) {
			total = total.Add(rec.GrossPay)
		}
	}
	return total.Round(), nil
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts are JSON numbers in whole currency units. Hours, tenure and
  percentages are decimal strings so no precision is lost.

TYPES:
  Roster:     EmployeeDTO (wraps factory.EmployeeJSON)
  Payroll:    PayrollDTO, SeveranceDTO, LiabilityReportDTO
  Rates:      RateSetDTO, LegacyRateDTO, MigrationReportDTO
  Ledger:     LedgerImportDTO, ImportRunDTO, SlipDTO
  Scenarios:  ScenarioDTO

SEE ALSO:
  - handlers.go: Uses these types
  - factory/factory.go: EmployeeJSON, RatesJSON, AttendanceJSON
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/rates"
	"github.com/warp/payroll-engine/reconcile"
)

const dateLayout = "2006-01-02"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// AddAttendanceRequest carries completed intervals for one employee.
type AddAttendanceRequest struct {
	Intervals []factory.AttendanceJSON `json:"intervals"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents a roster entry in API responses.
type EmployeeDTO struct {
	factory.EmployeeJSON
	CreatedAt string `json:"created_at,omitempty"`
}

type PayrollDTO struct {
	EmployeeID           string          `json:"employee_id"`
	PeriodStart          string          `json:"period_start"`
	PeriodEnd            string          `json:"period_end"`
	TotalWorkDays        int             `json:"total_work_days"`
	TotalWorkHours       decimal.Decimal `json:"total_work_hours"`
	BaseAmount           generic.Money   `json:"base_amount"`
	RestDayAllowance     generic.Money   `json:"rest_day_allowance"`
	PastPayrollCarryover generic.Money   `json:"past_payroll_carryover"`
	TotalPay             generic.Money   `json:"total_pay"`
	Deductions           DeductionsDTO   `json:"deductions"`
	TotalDeductions      generic.Money   `json:"total_deductions"`
	NetPay               generic.Money   `json:"net_pay"`
	EmployerContribution generic.Money   `json:"employer_contribution"`
	RateSetID            string          `json:"rate_set_id,omitempty"`
}

type DeductionsDTO struct {
	Pension             generic.Money `json:"pension"`
	HealthInsurance     generic.Money `json:"health_insurance"`
	EmploymentInsurance generic.Money `json:"employment_insurance"`
	LongTermCare        generic.Money `json:"long_term_care"`
	IncomeTax           generic.Money `json:"income_tax"`
	LocalIncomeTax      generic.Money `json:"local_income_tax"`
}

// SeveranceDTO omits the wage fields when the employee is not eligible.
type SeveranceDTO struct {
	EmployeeID       string          `json:"employee_id"`
	AsOf             string          `json:"as_of"`
	Eligible         bool            `json:"eligible"`
	DaysWorked       int             `json:"days_worked,omitempty"`
	TenureYears      decimal.Decimal `json:"tenure_years"`
	AverageDailyWage *generic.Money  `json:"average_daily_wage,omitempty"`
	SeverancePay     *generic.Money  `json:"severance_pay,omitempty"`
	WindowStart      string          `json:"window_start,omitempty"`
	WindowEnd        string          `json:"window_end,omitempty"`
}

type LiabilityLineDTO struct {
	EmployeeID        string          `json:"employee_id"`
	Name              string          `json:"name"`
	HireDate          string          `json:"hire_date"`
	TenureYears       decimal.Decimal `json:"tenure_years"`
	MonthlyWage       generic.Money   `json:"monthly_wage"`
	Liability         generic.Money   `json:"liability"`
	SeveranceEligible bool            `json:"severance_eligible"`
	Carryover         generic.Money   `json:"carryover"`
}

type LiabilityReportDTO struct {
	WorkplaceID    string             `json:"workplace_id"`
	AsOf           string             `json:"as_of"`
	Lines          []LiabilityLineDTO `json:"lines"`
	TotalLiability generic.Money      `json:"total_liability"`
	TotalCarryover generic.Money      `json:"total_carryover"`
}

type RateSetDTO struct {
	ID            string            `json:"id"`
	EffectiveFrom string            `json:"effective_from"`
	Source        string            `json:"source"`
	Rates         factory.RatesJSON `json:"rates"`
	UpdatedAt     string            `json:"updated_at,omitempty"`
}

type LegacyRateDTO struct {
	factory.LegacyRateJSON
	CreatedAt string `json:"created_at,omitempty"`
}

type MigrationReportDTO struct {
	Migrated   int      `json:"migrated"`
	Skipped    int      `json:"skipped"`
	Mismatches []string `json:"mismatches"`
}

// LedgerImportDTO is the outcome of one ledger paste.
type LedgerImportDTO struct {
	ImportRunID    string              `json:"import_run_id"`
	Period         generic.YearMonth   `json:"period"`
	PayDate        string              `json:"pay_date,omitempty"`
	ImportedCount  int                 `json:"imported_count"`
	UnmatchedNames []string            `json:"unmatched_names"`
	FlaggedNames   []string            `json:"flagged_names"`
	Suggestions    map[string][]string `json:"suggestions,omitempty"`
	Discarded      int                 `json:"discarded_blocks"`
}

type ImportRunDTO struct {
	ID             string            `json:"id"`
	Period         generic.YearMonth `json:"period"`
	PayDate        string            `json:"pay_date,omitempty"`
	ImportedCount  int               `json:"imported_count"`
	UnmatchedNames []string          `json:"unmatched_names"`
	FlaggedNames   []string          `json:"flagged_names"`
	CreatedAt      string            `json:"created_at"`
}

type SlipDTO struct {
	ID              string            `json:"id"`
	EmployeeID      string            `json:"employee_id"`
	Period          generic.YearMonth `json:"period"`
	PayDate         string            `json:"pay_date,omitempty"`
	BasePay         generic.Money     `json:"base_pay"`
	Deductions      DeductionsDTO     `json:"deductions"`
	TotalDeductions generic.Money     `json:"total_deductions"`
	NetPay          generic.Money     `json:"net_pay"`
	ChecksumOK      bool              `json:"checksum_ok"`
	ImportedAt      string            `json:"imported_at"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	WorkplaceID string `json:"workplace_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e generic.Employee) EmployeeDTO {
	dto := EmployeeDTO{EmployeeJSON: factory.ToEmployeeJSON(e)}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toDeductionsDTO(d generic.Deductions) DeductionsDTO {
	return DeductionsDTO{
		Pension:             d.Pension,
		HealthInsurance:     d.HealthInsurance,
		EmploymentInsurance: d.EmploymentInsurance,
		LongTermCare:        d.LongTermCare,
		IncomeTax:           d.IncomeTax,
		LocalIncomeTax:      d.LocalIncomeTax,
	}
}

func toPayrollDTO(r *payroll.PayrollComputationResult) PayrollDTO {
	return PayrollDTO{
		EmployeeID:           string(r.EmployeeID),
		PeriodStart:          r.Period.Start.Format(dateLayout),
		PeriodEnd:            r.Period.End.Format(dateLayout),
		TotalWorkDays:        r.TotalWorkDays,
		TotalWorkHours:       r.TotalWorkHours,
		BaseAmount:           r.BaseAmount,
		RestDayAllowance:     r.RestDayAllowance,
		PastPayrollCarryover: r.PastPayrollCarryover,
		TotalPay:             r.TotalPay,
		Deductions:           toDeductionsDTO(r.Deductions),
		TotalDeductions:      r.TotalDeductions,
		NetPay:               r.NetPay,
		EmployerContribution: r.EmployerContribution,
		RateSetID:            r.RateSetID,
	}
}

func toSeveranceDTO(id generic.EmployeeID, asOf time.Time, r payroll.SeveranceResult) SeveranceDTO {
	dto := SeveranceDTO{
		EmployeeID:       string(id),
		AsOf:             asOf.Format(dateLayout),
		Eligible:         r.Eligible,
		TenureYears:      r.TenureYears.Round(2),
		AverageDailyWage: r.AverageDailyWage,
		SeverancePay:     r.SeverancePay,
	}
	if r.Eligible {
		dto.DaysWorked = r.DaysWorked
	}
	if r.Window != nil {
		dto.WindowStart = r.Window.Start.Format(dateLayout)
		dto.WindowEnd = r.Window.End.Format(dateLayout)
	}
	return dto
}

func toLiabilityDTO(r *payroll.LiabilityReport) LiabilityReportDTO {
	dto := LiabilityReportDTO{
		WorkplaceID:    string(r.WorkplaceID),
		AsOf:           r.AsOf.Format(dateLayout),
		Lines:          make([]LiabilityLineDTO, len(r.Lines)),
		TotalLiability: r.TotalLiability,
		TotalCarryover: r.TotalCarryover,
	}
	for i, l := range r.Lines {
		dto.Lines[i] = LiabilityLineDTO{
			EmployeeID:        string(l.EmployeeID),
			Name:              l.Name,
			HireDate:          l.HireDate.Format(dateLayout),
			TenureYears:       l.TenureYears,
			MonthlyWage:       l.MonthlyWage,
			Liability:         l.Liability,
			SeveranceEligible: l.SeveranceEligible,
			Carryover:         l.Carryover,
		}
	}
	return dto
}

func toRateSetDTO(rs generic.RateSet) RateSetDTO {
	dto := RateSetDTO{
		ID:            rs.ID,
		EffectiveFrom: rs.EffectiveFrom.Format(dateLayout),
		Source:        string(rs.Source),
		Rates:         factory.ToRatesJSON(rs.RateValues),
	}
	if !rs.UpdatedAt.IsZero() {
		dto.UpdatedAt = rs.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func toLegacyRateDTO(rs generic.LegacyRateSet) LegacyRateDTO {
	dto := LegacyRateDTO{LegacyRateJSON: factory.LegacyRateJSON{
		ID:            rs.ID,
		Year:          rs.Year,
		EffectiveFrom: rs.EffectiveFrom.Format(dateLayout),
		RatesJSON:     factory.ToRatesJSON(rs.RateValues),
	}}
	if !rs.EffectiveTo.IsZero() {
		dto.EffectiveTo = rs.EffectiveTo.Format(dateLayout)
	}
	if !rs.CreatedAt.IsZero() {
		dto.CreatedAt = rs.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toMigrationReportDTO(r rates.MigrationReport) MigrationReportDTO {
	dto := MigrationReportDTO{Migrated: r.Migrated, Skipped: r.Skipped, Mismatches: []string{}}
	for _, d := range r.Mismatches {
		dto.Mismatches = append(dto.Mismatches, d.Format(dateLayout))
	}
	return dto
}

func toLedgerImportDTO(r *reconcile.LedgerImportResult) LedgerImportDTO {
	return LedgerImportDTO{
		ImportRunID:    r.ImportRunID,
		Period:         r.Period,
		PayDate:        formatDatePtr(r.PayDate),
		ImportedCount:  r.ImportedCount,
		UnmatchedNames: nonNil(r.UnmatchedNames),
		FlaggedNames:   nonNil(r.FlaggedNames),
		Suggestions:    r.Suggestions,
		Discarded:      r.Discarded,
	}
}

func toImportRunDTO(run generic.ImportRun) ImportRunDTO {
	return ImportRunDTO{
		ID:             run.ID,
		Period:         run.Period,
		PayDate:        formatDatePtr(run.PayDate),
		ImportedCount:  run.ImportedCount,
		UnmatchedNames: nonNil(run.UnmatchedNames),
		FlaggedNames:   nonNil(run.FlaggedNames),
		CreatedAt:      run.CreatedAt.Format(time.RFC3339),
	}
}

func toSlipDTO(s generic.PayrollSlip) SlipDTO {
	return SlipDTO{
		ID:              string(s.ID),
		EmployeeID:      string(s.EmployeeID),
		Period:          s.Period,
		PayDate:         formatDatePtr(s.PayDate),
		BasePay:         s.BasePay,
		Deductions:      toDeductionsDTO(s.Deductions),
		TotalDeductions: s.TotalDeductions,
		NetPay:          s.NetPay,
		ChecksumOK:      s.ChecksumOK,
		ImportedAt:      s.ImportedAt.Format(time.RFC3339),
	}
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

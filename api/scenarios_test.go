/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:

	Tests that each scenario correctly sets up the expected state:
	- Employees and rates are created
	- Attendance produces the expected pay
	- The office ledger is reconciled into slips

These tests ensure scenarios work correctly and can be used as integration tests.
*/
package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
)

func march2025(t *testing.T) generic.Period {
	p, err := generic.NewPeriod(generic.Date(2025, time.March, 1), generic.Date(2025, time.March, 31))
	require.NoError(t, err)
	return p
}

func TestScenario_HourlyCafe(t *testing.T) {
	// GIVEN: The hourly cafe scenario
	// WHEN: Computing March pay
	// THEN: Only the weekday worker earns the rest-day allowance

	h, _ := newTestAPI(t, Options{})
	ctx := context.Background()
	require.NoError(t, h.loadHourlyCafeScenario(ctx))

	employees, err := h.Store.ListEmployees(ctx, "wp-cafe")
	require.NoError(t, err)
	assert.Len(t, employees, 2)

	// 21 weekdays × 4h = 84h over 5 weeks
	weekday, err := h.Payroll.ComputePayroll(ctx, "cafe-1", march2025(t))
	require.NoError(t, err)
	assert.Equal(t, 21, weekday.TotalWorkDays)
	assert.Equal(t, int64(842520), weekday.BaseAmount.Int64())
	assert.Equal(t, int64(168504), weekday.RestDayAllowance.Int64())
	assert.Equal(t, int64(1011024), weekday.TotalPay.Int64())
	assert.Equal(t, int64(45496), weekday.Deductions.Pension.Int64())

	// 10 weekend days × 5h = 50h, 10h a week
	weekend, err := h.Payroll.ComputePayroll(ctx, "cafe-2", march2025(t))
	require.NoError(t, err)
	assert.Equal(t, int64(501500), weekend.BaseAmount.Int64())
	assert.True(t, weekend.RestDayAllowance.IsZero())
	assert.Equal(t, int64(16550), weekend.Deductions.IncomeTax.Int64())
	assert.True(t, weekend.Deductions.Pension.IsZero())

	severance, err := h.Payroll.ComputeSeverance(ctx, "cafe-1", generic.Date(2025, time.April, 1))
	require.NoError(t, err)
	assert.True(t, severance.Eligible)
	require.NotNil(t, severance.Window)
	assert.Equal(t, generic.Date(2025, time.January, 1), severance.Window.Start)
}

func TestScenario_MonthlyOffice(t *testing.T) {
	// GIVEN: The monthly office scenario
	// WHEN: Loading it
	// THEN: The March ledger is reconciled and carryover is on record

	h, _ := newTestAPI(t, Options{})
	ctx := context.Background()
	require.NoError(t, h.loadMonthlyOfficeScenario(ctx))

	slips, err := h.Store.ListSlips(ctx, "wp-office", generic.NewYearMonth(2025, time.March))
	require.NoError(t, err)
	assert.Len(t, slips, 3)

	runs, err := h.Store.ListImportRuns(ctx, "wp-office")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, []string{"최영희"}, runs[0].UnmatchedNames)
	require.NotNil(t, runs[0].PayDate)
	assert.Equal(t, generic.Date(2025, time.April, 10), *runs[0].PayDate)

	// Annual 30,000,000 is 2,500,000 a month
	annual, err := h.Payroll.ComputePayroll(ctx, "office-3", march2025(t))
	require.NoError(t, err)
	assert.Equal(t, int64(2500000), annual.TotalPay.Int64())

	report, err := h.Payroll.LiabilityReport(ctx, "wp-office", generic.Date(2025, time.April, 1))
	require.NoError(t, err)
	assert.Len(t, report.Lines, 3)
	assert.Equal(t, int64(18500000), report.TotalCarryover.Int64())
}

func TestScenario_LegacyRates(t *testing.T) {
	// GIVEN: Rates only in the legacy table
	// WHEN: Computing before and after migration
	// THEN: Resolution succeeds only once the records are on the timeline

	h, _ := newTestAPI(t, Options{})
	ctx := context.Background()
	require.NoError(t, h.loadLegacyRatesScenario(ctx))

	period := march2025(t)
	_, err := h.Payroll.ComputePayroll(ctx, "legacy-1", period)
	var noRate *generic.NoApplicableRateError
	require.ErrorAs(t, err, &noRate)

	report, err := h.Rates.MigrateLegacy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Migrated)

	result, err := h.Payroll.ComputePayroll(ctx, "legacy-1", period)
	require.NoError(t, err)
	assert.Equal(t, int64(2500000), result.TotalPay.Int64())

	rs, err := h.Rates.Resolve(ctx, generic.Date(2023, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(5900000), rs.PensionBaseCeiling.Int64())
}

func TestLoadScenario_ViaAPI(t *testing.T) {
	_, router := newTestAPI(t, Options{})

	rec := do(t, router, http.MethodGet, "/api/scenarios", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]ScenarioDTO](t, rec), len(scenarios))

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "monthly-office"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", "")
	assert.Equal(t, "monthly-office", decodeAs[ScenarioDTO](t, rec).ID)

	// Loading twice starts from a clean database
	rec = do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "monthly-office"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, router, http.MethodGet, "/api/workplaces/wp-office/ledger-imports", "")
	assert.Len(t, decodeAs[[]ImportRunDTO](t, rec), 1)

	rec = do(t, router, http.MethodPost, "/api/scenarios/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodGet, "/api/employees?workplace_id=wp-office", "")
	assert.Empty(t, decodeAs[[]EmployeeDTO](t, rec))
	rec = do(t, router, http.MethodGet, "/api/scenarios/current", "")
	assert.Equal(t, "null\n", rec.Body.String())
}

/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Roster endpoints and validation
- Payroll computation and rate resolution errors
- Ledger import, slip listing and payslip PDF
- Legacy rate table and migration
- Error mapping to status codes
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/reconcile"
	"github.com/warp/payroll-engine/store/sqlite"
)

func newTestAPI(t *testing.T, opts Options) (*Handler, http.Handler) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	if opts.Reconcile.MaxSuggestions == 0 {
		opts.Reconcile = reconcile.DefaultOptions()
	}
	h := NewHandler(store, opts, zap.NewNop())
	return h, NewRouter(h, nil)
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" && strings.HasPrefix(strings.TrimSpace(body), "{") {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const hongJSON = `{"id": "emp-1", "workplace_id": "wp-1", "name": "홍길동", "hire_date": "2022-03-02",
	"salary": {"pay_type": "monthly", "base_amount": 2000000}}`

// =============================================================================
// ROSTER
// =============================================================================

func TestEmployees_CreateGetList(t *testing.T) {
	_, router := newTestAPI(t, Options{})

	// WHEN: Creating an employee
	rec := do(t, router, http.MethodPost, "/api/employees", hongJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeAs[EmployeeDTO](t, rec)

	// THEN: Defaults are filled in
	assert.Equal(t, "none", created.Salary.RestDayPolicy)
	assert.Equal(t, "statutory_insurance", created.Salary.DeductionScheme)

	rec = do(t, router, http.MethodGet, "/api/employees/emp-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "홍길동", decodeAs[EmployeeDTO](t, rec).Name)

	rec = do(t, router, http.MethodGet, "/api/employees?workplace_id=wp-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]EmployeeDTO](t, rec), 1)

	rec = do(t, router, http.MethodGet, "/api/employees", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/employees/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateEmployee_RejectsInvalidSalary(t *testing.T) {
	_, router := newTestAPI(t, Options{})

	rec := do(t, router, http.MethodPost, "/api/employees", `{"id": "emp-1", "workplace_id": "wp-1", "name": "홍길동",
		"hire_date": "2022-03-02", "salary": {"pay_type": "weekly", "base_amount": 1}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeAs[ErrorResponse](t, rec).Code)

	rec = do(t, router, http.MethodPost, "/api/employees", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddAttendance_UnknownEmployee(t *testing.T) {
	_, router := newTestAPI(t, Options{})

	rec := do(t, router, http.MethodPost, "/api/employees/ghost/attendance",
		`{"intervals": [{"check_in": "2025-03-03T09:00:00Z", "check_out": "2025-03-03T13:00:00Z"}]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// COMPUTATION
// =============================================================================

func TestGetPayroll_MonthlyEmployee(t *testing.T) {
	_, router := newTestAPI(t, Options{})

	// GIVEN: January rates and a monthly employee
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPut, "/api/rates/2025-01", standardRates2025).Code)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/employees", hongJSON).Code)

	// WHEN: Computing March
	rec := do(t, router, http.MethodGet, "/api/employees/emp-1/payroll?start=2025-03-01&end=2025-03-31", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeAs[PayrollDTO](t, rec)

	// THEN: The January rate set applies to the whole month
	assert.Equal(t, int64(2000000), got.BaseAmount.Int64())
	assert.Equal(t, int64(2000000), got.TotalPay.Int64())
	assert.Equal(t, int64(90000), got.Deductions.Pension.Int64())
	assert.Equal(t, int64(70900), got.Deductions.HealthInsurance.Int64())
	assert.Equal(t, int64(9182), got.Deductions.LongTermCare.Int64())
	assert.Equal(t, int64(18000), got.Deductions.EmploymentInsurance.Int64())
	assert.Equal(t, int64(188082), got.TotalDeductions.Int64())
	assert.Equal(t, int64(1811918), got.NetPay.Int64())
	assert.NotEmpty(t, got.RateSetID)
}

func TestGetPayroll_AttendanceDatedInWorkplaceZone(t *testing.T) {
	// GIVEN: a Seoul workplace and an 08:00 +09:00 check-in on March 3
	_, router := newTestAPI(t, Options{Location: time.FixedZone("KST", 9*60*60)})
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/employees",
		`{"id": "emp-2", "workplace_id": "wp-1", "name": "김민지", "hire_date": "2024-01-01",
		  "salary": {"pay_type": "hourly", "base_amount": 10000, "deduction_scheme": "none"}}`).Code)
	rec := do(t, router, http.MethodPost, "/api/employees/emp-2/attendance",
		`{"intervals": [{"check_in": "2025-03-03T08:00:00+09:00", "check_out": "2025-03-03T16:00:00+09:00"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: Computing the week of March 3 to 9
	rec = do(t, router, http.MethodGet, "/api/employees/emp-2/payroll?start=2025-03-03&end=2025-03-09", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeAs[PayrollDTO](t, rec)

	// THEN: The shift counts on its local day
	assert.Equal(t, 1, got.TotalWorkDays)
	assert.Equal(t, "8", got.TotalWorkHours.String())
	assert.Equal(t, int64(80000), got.BaseAmount.Int64())
}

func TestGetPayroll_Errors(t *testing.T) {
	_, router := newTestAPI(t, Options{})
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/employees", hongJSON).Code)

	tests := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{"missing start", "?end=2025-03-31", http.StatusBadRequest, "validation_error"},
		{"reversed period", "?start=2025-03-31&end=2025-03-01", http.StatusBadRequest, "validation_error"},
		{"no rates on timeline", "?start=2025-03-01&end=2025-03-31", http.StatusNotFound, "no_applicable_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, "/api/employees/emp-1/payroll"+tt.query, "")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeAs[ErrorResponse](t, rec).Code)
		})
	}
}

func TestGetSeverance_UnderOneYear(t *testing.T) {
	_, router := newTestAPI(t, Options{})
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/employees", hongJSON).Code)

	rec := do(t, router, http.MethodGet, "/api/employees/emp-1/severance?as_of=2022-12-31", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeAs[SeveranceDTO](t, rec)
	assert.False(t, got.Eligible)
	assert.Nil(t, got.SeverancePay)
	assert.Equal(t, "2022-12-31", got.AsOf)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Contains(t, raw, "tenure_years")
	assert.NotContains(t, raw, "days_worked")
	assert.NotContains(t, raw, "average_daily_wage")
}

// =============================================================================
// RATES
// =============================================================================

func TestLegacyRates_ConflictAndMigration(t *testing.T) {
	_, router := newTestAPI(t, Options{})

	legacy := `{"year": 2023, "effective_from": "2023-01-01", "effective_to": "2023-12-31",
		"employee": {"pension": 4.5, "health": 3.545, "long_term_care": 12.81, "employment": 0.9},
		"pension_base_ceiling": 5900000, "flat_withholding": 3.3}`

	// GIVEN: A legacy record
	rec := do(t, router, http.MethodPost, "/api/rates/legacy", legacy)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeAs[LegacyRateDTO](t, rec)
	assert.NotEmpty(t, created.ID)

	// WHEN: Inserting the same (year, effective-from) again
	rec = do(t, router, http.MethodPost, "/api/rates/legacy", legacy)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// THEN: Dates are unresolvable until migrated
	rec = do(t, router, http.MethodGet, "/api/rates/resolve?date=2023-06-15", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/rates/legacy/migrate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeAs[MigrationReportDTO](t, rec)
	assert.Equal(t, 1, report.Migrated)
	assert.Empty(t, report.Mismatches)

	rec = do(t, router, http.MethodGet, "/api/rates/resolve?date=2023-06-15", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resolved := decodeAs[RateSetDTO](t, rec)
	assert.Equal(t, "legacy", resolved.Source)
	assert.Equal(t, "2023-01-01", resolved.EffectiveFrom)

	// Running it again copies nothing new
	rec = do(t, router, http.MethodPost, "/api/rates/legacy/migrate", "")
	assert.Equal(t, 1, decodeAs[MigrationReportDTO](t, rec).Skipped)

	rec = do(t, router, http.MethodDelete, "/api/rates/legacy/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, router, http.MethodDelete, "/api/rates/legacy/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutMonthlyRates_InvalidYearMonth(t *testing.T) {
	_, router := newTestAPI(t, Options{})

	rec := do(t, router, http.MethodPut, "/api/rates/2025-13", standardRates2025)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, "/api/rates/2025-01", `{"employee": {"pension": -1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// LEDGER
// =============================================================================

func TestImportLedger_PersistsSlipsAndRun(t *testing.T) {
	h, router := newTestAPI(t, Options{})
	ctx := context.Background()

	// GIVEN: Two of the four ledger names on the roster
	require.NoError(t, h.createEmployees(ctx, []string{
		`{"id": "office-1", "workplace_id": "wp-office", "name": "홍길동", "hire_date": "2022-03-02",
		  "salary": {"pay_type": "monthly", "base_amount": 2000000}}`,
		`{"id": "office-2", "workplace_id": "wp-office", "name": "김철수", "hire_date": "2021-09-01",
		  "salary": {"pay_type": "monthly", "base_amount": 3000000}}`,
	}))

	// WHEN: Importing the ledger twice
	rec := do(t, router, http.MethodPost, "/api/workplaces/wp-office/ledger-imports", officeLedgerMarch2025)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeAs[LedgerImportDTO](t, rec)
	rec = do(t, router, http.MethodPost, "/api/workplaces/wp-office/ledger-imports", officeLedgerMarch2025)
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: Matched names become slips, the rest are reported
	assert.Equal(t, "2025-03", result.Period.String())
	assert.Equal(t, "2025-04-10", result.PayDate)
	assert.Equal(t, 2, result.ImportedCount)
	assert.ElementsMatch(t, []string{"박민수", "최영희"}, result.UnmatchedNames)
	assert.Empty(t, result.FlaggedNames)

	rec = do(t, router, http.MethodGet, "/api/workplaces/wp-office/slips?period=2025-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	slips := decodeAs[[]SlipDTO](t, rec)
	require.Len(t, slips, 2, "re-import overwrites")
	for _, s := range slips {
		assert.True(t, s.ChecksumOK)
		if s.EmployeeID == "office-1" {
			assert.Equal(t, int64(1788250), s.NetPay.Int64())
		}
	}

	rec = do(t, router, http.MethodGet, "/api/workplaces/wp-office/ledger-imports", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]ImportRunDTO](t, rec), 2)

	rec = do(t, router, http.MethodGet, "/api/workplaces/wp-office/slips/office-1/2025-03/pdf", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))

	rec = do(t, router, http.MethodGet, "/api/workplaces/wp-office/slips/office-1/2025-02/pdf", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportLedger_ParseErrors(t *testing.T) {
	_, router := newTestAPI(t, Options{})

	rec := do(t, router, http.MethodPost, "/api/workplaces/wp-1/ledger-imports", "1 홍길동 2,000,000")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "parse_error", decodeAs[ErrorResponse](t, rec).Code)

	rec = do(t, router, http.MethodGet, "/api/workplaces/wp-1/slips", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "period is required")
}

func TestImportLedger_StrictChecksumRejects(t *testing.T) {
	opts := Options{Reconcile: reconcile.DefaultOptions()}
	opts.Reconcile.RejectChecksumMismatch = true
	h, router := newTestAPI(t, opts)
	require.NoError(t, h.createEmployees(context.Background(), []string{
		`{"id": "office-1", "workplace_id": "wp-office", "name": "홍길동", "hire_date": "2022-03-02",
		  "salary": {"pay_type": "monthly", "base_amount": 2000000}}`,
	}))

	ledger := "2025년 3월 귀속\n1 홍길동 2,000,000 90,000 70,900 18,000 11,560 19,520 1,770 1,700,000"
	rec := do(t, router, http.MethodPost, "/api/workplaces/wp-office/ledger-imports", ledger)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/workplaces/wp-office/slips?period=2025-03", "")
	assert.Empty(t, decodeAs[[]SlipDTO](t, rec))
}

// =============================================================================
// INFRASTRUCTURE
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	_, router := newTestAPI(t, Options{})

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/healthz", "").Code)

	do(t, router, http.MethodGet, "/api/employees/ghost/severance", "")
	rec := do(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "payroll_computations_total")
}

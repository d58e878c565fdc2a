/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario creates a workplace roster, rates and
	attendance that exercise a specific part of the engine.

AVAILABLE SCENARIOS:

	hourly-cafe:     Hourly staff, rest-day allowance, flat withholding
	monthly-office:  Monthly and annual salaries, carryover, imported ledger
	legacy-rates:    Rates only in the year-range table, ready to migrate

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Write rates via factory JSON
 3. Create employees via factory JSON
 4. Add attendance, past payroll or a ledger import

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "monthly-office"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler wiring
  - factory/factory.go: JSON schemas used below
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "hourly-cafe",
		Name:        "Hourly Cafe",
		Description: "Two hourly workers; one earns the weekly rest-day allowance, one is on flat withholding",
		WorkplaceID: "wp-cafe",
	},
	{
		ID:          "monthly-office",
		Name:        "Monthly Office",
		Description: "Monthly and annual salaries, pre-adoption carryover and an imported March ledger",
		WorkplaceID: "wp-office",
	},
	{
		ID:          "legacy-rates",
		Name:        "Legacy Rates",
		Description: "Rates only in the year-range table; run the migration before computing payroll",
		WorkplaceID: "wp-legacy",
	},
}

const standardRates2025 = `{
	"employee": {"pension": 4.5, "health": 3.545, "long_term_care": 12.95, "employment": 0.9},
	"employer": {"pension": 4.5, "health": 3.545, "long_term_care": 12.95, "employment": 1.15},
	"pension_base_floor": 390000,
	"pension_base_ceiling": 6170000,
	"flat_withholding": 3.3
}`

const officeLedgerMarch2025 = `2025년 3월 귀속 급여대장 지급일 2025년 4월 10일
번호 성명 기본급 국민연금 건강보험 고용보험 장기요양 소득세 지방소득세 실지급액
1 홍길동 2,000,000 90,000 70,900 18,000 11,560 19,520 1,770 1,788,250
2 김철수 3,000,000 135,000 106,350 27,000 13,770 50,000 5,000 2,662,880
3 박민수 2,500,000 112,500 88,620 22,500 11,470 30,000 3,000 2,231,910
4 최영희 2,200,000 99,000 77,990 19,800 10,090 21,000 2,100 1,970,020`

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	loaders := map[string]func(context.Context) error{
		"hourly-cafe":    h.loadHourlyCafeScenario,
		"monthly-office": h.loadMonthlyOfficeScenario,
		"legacy-rates":   h.loadLegacyRatesScenario,
	}
	load, ok := loaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadHourlyCafeScenario(ctx context.Context) error {
	if err := h.writeMonthlyRates(ctx, generic.NewYearMonth(2025, time.January), standardRates2025); err != nil {
		return err
	}

	employees := []string{
		`{"id": "cafe-1", "workplace_id": "wp-cafe", "name": "김민지", "hire_date": "2023-06-01",
		  "salary": {"pay_type": "hourly", "base_amount": 10030}}`,
		`{"id": "cafe-2", "workplace_id": "wp-cafe", "name": "이준호", "hire_date": "2024-11-15",
		  "salary": {"pay_type": "hourly", "base_amount": 10030, "deduction_scheme": "flat_withholding"}}`,
	}
	if err := h.createEmployees(ctx, employees); err != nil {
		return err
	}

	// cafe-1 works weekday mornings, enough for the rest-day allowance.
	// cafe-2 only covers weekends.
	from, to := generic.Date(2024, time.December, 1), generic.Date(2025, time.March, 31)
	if err := h.addShifts(ctx, "cafe-1", from, to, weekdays, 9, 4); err != nil {
		return err
	}
	return h.addShifts(ctx, "cafe-2", from, to, weekends, 13, 5)
}

func (h *Handler) loadMonthlyOfficeScenario(ctx context.Context) error {
	if err := h.writeMonthlyRates(ctx, generic.NewYearMonth(2025, time.January), standardRates2025); err != nil {
		return err
	}

	employees := []string{
		`{"id": "office-1", "workplace_id": "wp-office", "name": "홍길동", "hire_date": "2022-03-02",
		  "salary": {"pay_type": "monthly", "base_amount": 2000000}}`,
		`{"id": "office-2", "workplace_id": "wp-office", "name": "김철수", "hire_date": "2021-09-01",
		  "salary": {"pay_type": "monthly", "base_amount": 3000000}}`,
		`{"id": "office-3", "workplace_id": "wp-office", "name": "박민수", "hire_date": "2025-01-06",
		  "salary": {"pay_type": "annual", "base_amount": 30000000}}`,
	}
	if err := h.createEmployees(ctx, employees); err != nil {
		return err
	}

	rec, err := factory.PastPayrollFromJSON("office-1", factory.PastPayrollJSON{
		Start:    "2022-03-02",
		End:      "2022-12-31",
		GrossPay: generic.NewMoney(18500000),
		Note:     "paper ledger before adoption",
	})
	if err != nil {
		return err
	}
	if err := h.Store.SavePastPayroll(ctx, rec); err != nil {
		return err
	}

	// 최영희 is not on the roster and shows up as unmatched.
	_, err = h.Reconciler.ImportLedger(ctx, "wp-office", officeLedgerMarch2025)
	return err
}

func (h *Handler) loadLegacyRatesScenario(ctx context.Context) error {
	rates, err := factory.ParseRates(standardRates2025)
	if err != nil {
		return err
	}
	rates2023 := rates
	rates2023.Employee.LongTermCare = decimal.RequireFromString("12.81")
	rates2023.PensionBaseCeiling = generic.NewMoney(5900000)

	legacy := []generic.LegacyRateSet{
		{Year: 2023, EffectiveFrom: generic.Date(2023, time.January, 1), EffectiveTo: generic.Date(2023, time.December, 31), RateValues: rates2023},
		{Year: 2024, EffectiveFrom: generic.Date(2024, time.January, 1), RateValues: rates},
	}
	for _, rs := range legacy {
		if _, err := h.Rates.InsertLegacy(ctx, rs); err != nil {
			return err
		}
	}

	return h.createEmployees(ctx, []string{
		`{"id": "legacy-1", "workplace_id": "wp-legacy", "name": "정수빈", "hire_date": "2022-07-01",
		  "salary": {"pay_type": "monthly", "base_amount": 2500000}}`,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) writeMonthlyRates(ctx context.Context, ym generic.YearMonth, jsonStr string) error {
	values, err := factory.ParseRates(jsonStr)
	if err != nil {
		return err
	}
	_, err = h.Rates.UpsertMonthly(ctx, ym, values)
	return err
}

func (h *Handler) createEmployees(ctx context.Context, jsonStrs []string) error {
	for _, s := range jsonStrs {
		emp, err := factory.ParseEmployee(s)
		if err != nil {
			return err
		}
		if err := h.Store.SaveEmployee(ctx, emp); err != nil {
			return err
		}
	}
	return nil
}

func weekdays(d time.Time) bool {
	return d.Weekday() != time.Saturday && d.Weekday() != time.Sunday
}

func weekends(d time.Time) bool { return !weekdays(d) }

// addShifts adds one shift of hours starting at startHour on every day in
// [from, to] accepted by include.
func (h *Handler) addShifts(ctx context.Context, id generic.EmployeeID, from, to time.Time, include func(time.Time) bool, startHour, hours int) error {
	var shifts []factory.AttendanceJSON
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if !include(d) {
			continue
		}
		in := d.Add(time.Duration(startHour) * time.Hour)
		shifts = append(shifts, factory.AttendanceJSON{CheckIn: in, CheckOut: in.Add(time.Duration(hours) * time.Hour)})
	}
	intervals, err := factory.IntervalsFromJSON(id, shifts)
	if err != nil {
		return err
	}
	return h.Store.AddIntervals(ctx, intervals)
}

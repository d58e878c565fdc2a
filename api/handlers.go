/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes payroll computation, severance, rate administration and ledger
  reconciliation via REST API. Handles HTTP request/response and JSON
  serialization, and delegates to the domain packages.

ENDPOINTS:
  Roster:
    POST   /api/employees                         Create or update employee
    GET    /api/employees?workplace_id=           List a workplace roster
    GET    /api/employees/{id}                    Get employee
    POST   /api/employees/{id}/attendance         Add completed intervals
    POST   /api/employees/{id}/past-payroll       Add pre-adoption pay

  Computation:
    GET    /api/employees/{id}/payroll?start=&end=
    GET    /api/employees/{id}/severance?as_of=
    GET    /api/workplaces/{wid}/liability?as_of=

  Rates:
    GET    /api/rates                             Timeline
    GET    /api/rates/resolve?date=               Rate set in force on date
    PUT    /api/rates/{yearMonth}                 Write monthly rates
    GET    /api/rates/legacy                      Legacy table
    POST   /api/rates/legacy                      Insert legacy record
    DELETE /api/rates/legacy/{id}
    POST   /api/rates/legacy/migrate              Copy legacy onto timeline

  Ledger:
    POST   /api/workplaces/{wid}/ledger-imports   text/plain ledger body
    GET    /api/workplaces/{wid}/ledger-imports   Import audit trail
    GET    /api/workplaces/{wid}/slips?period=YYYY-MM
    GET    /api/workplaces/{wid}/slips/{employeeID}/{period}/pdf

ERROR HANDLING:
  Domain errors map to status codes in writeDomainError:
  - 400: Validation errors, invalid input
  - 404: Employee, slip or applicable rate set not found
  - 409: Duplicate legacy record
  - 422: Ledger text that cannot be parsed or fails strict checksum
  - 500: Internal errors

SECURITY NOTE:
  No authentication. Deploy behind an authenticating proxy.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/metrics"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/rates"
	"github.com/warp/payroll-engine/reconcile"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the handlers persist through.
type Store interface {
	generic.RosterStore
	generic.AttendanceStore
	generic.RateStore
	generic.TxSlipStore
	generic.PastPayrollStore

	// Reset clears all data. Used by demo scenarios.
	Reset(ctx context.Context) error
}

// Options configure the domain services built by NewHandler.
type Options struct {
	Proration    payroll.Proration
	Reconcile    reconcile.Options
	Payslip      payslip.Renderer
	MaxBodyBytes int64

	// Location dates attendance check-ins. Nil means UTC.
	Location *time.Location
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      Store
	Rates      *rates.Resolver
	Payroll    *payroll.Service
	Reconciler *reconcile.Reconciler
	Payslips   payslip.Renderer
	Logger     *zap.Logger

	maxBodyBytes int64

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler wires the domain services over store.
func NewHandler(store Store, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	resolver := rates.NewResolver(store)
	payrollService := payroll.NewService(store, store, store, resolver, payroll.Calculator{Proration: opts.Proration}, logger.Named("payroll"))
	payrollService.Location = opts.Location
	return &Handler{
		Store:        store,
		Rates:        resolver,
		Payroll:      payrollService,
		Reconciler:   reconcile.NewReconciler(store, store, opts.Reconcile, logger.Named("reconcile")),
		Payslips:     opts.Payslip,
		Logger:       logger,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

// =============================================================================
// ROSTER HANDLERS
// =============================================================================

// CreateEmployee creates or replaces a roster entry.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req factory.EmployeeJSON
	if !h.decode(w, r, &req) {
		return
	}

	emp, err := factory.EmployeeFromJSON(req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}

	saved, err := h.Store.GetEmployee(r.Context(), emp.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(*saved))
}

// ListEmployees returns one workplace's roster.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	workplaceID := r.URL.Query().Get("workplace_id")
	if workplaceID == "" {
		writeError(w, http.StatusBadRequest, "workplace_id is required", nil)
		return
	}

	employees, err := h.Store.ListEmployees(r.Context(), generic.WorkplaceID(workplaceID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), employeeID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// AddAttendance stores completed intervals for an existing employee.
func (h *Handler) AddAttendance(w http.ResponseWriter, r *http.Request) {
	id := employeeID(r)
	if _, err := h.Store.GetEmployee(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	var req AddAttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	intervals, err := factory.IntervalsFromJSON(id, req.Intervals)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Store.AddIntervals(r.Context(), intervals); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add attendance", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int{"added": len(intervals)})
}

// AddPastPayroll records pay from before the system was adopted.
func (h *Handler) AddPastPayroll(w http.ResponseWriter, r *http.Request) {
	id := employeeID(r)
	if _, err := h.Store.GetEmployee(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	var req factory.PastPayrollJSON
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := factory.PastPayrollFromJSON(id, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Store.SavePastPayroll(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save past payroll", err)
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// COMPUTATION HANDLERS
// =============================================================================

// GetPayroll computes pay for [start, end].
func (h *Handler) GetPayroll(w http.ResponseWriter, r *http.Request) {
	start, err := queryDate(r, "start", time.Time{})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	end, err := queryDate(r, "end", time.Time{})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	period, err := generic.NewPeriod(start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.Payroll.ComputePayroll(r.Context(), employeeID(r), period)
	metrics.ObserveComputation("payroll", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollDTO(result))
}

// GetSeverance computes severance as of as_of (default today).
func (h *Handler) GetSeverance(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of", generic.Today())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	id := employeeID(r)
	result, err := h.Payroll.ComputeSeverance(r.Context(), id, asOf)
	metrics.ObserveComputation("severance", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSeveranceDTO(id, asOf, result))
}

// GetLiability projects the workplace's severance liability.
func (h *Handler) GetLiability(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of", generic.Today())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	report, err := h.Payroll.LiabilityReport(r.Context(), workplaceID(r), asOf)
	metrics.ObserveComputation("liability", err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLiabilityDTO(report))
}

// =============================================================================
// RATE HANDLERS
// =============================================================================

func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	timeline, err := h.Rates.Timeline(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load rate timeline", err)
		return
	}
	dtos := make([]RateSetDTO, len(timeline))
	for i, rs := range timeline {
		dtos[i] = toRateSetDTO(rs)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ResolveRates returns the rate set in force on date.
func (h *Handler) ResolveRates(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date", time.Time{})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rs, err := h.Rates.Resolve(r.Context(), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRateSetDTO(rs))
}

// PutMonthlyRates writes the rates effective from the first of yearMonth.
func (h *Handler) PutMonthlyRates(w http.ResponseWriter, r *http.Request) {
	ym, err := generic.ParseYearMonth(chi.URLParam(r, "yearMonth"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req factory.RatesJSON
	if !h.decode(w, r, &req) {
		return
	}
	values, err := factory.RatesFromJSON(req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rs, err := h.Rates.UpsertMonthly(r.Context(), ym, values)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRateSetDTO(rs))
}

func (h *Handler) ListLegacyRates(w http.ResponseWriter, r *http.Request) {
	records, err := h.Rates.ListLegacy(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load legacy rates", err)
		return
	}
	dtos := make([]LegacyRateDTO, len(records))
	for i, rs := range records {
		dtos[i] = toLegacyRateDTO(rs)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLegacyRate inserts a year-range record. Duplicates are 409.
func (h *Handler) CreateLegacyRate(w http.ResponseWriter, r *http.Request) {
	var req factory.LegacyRateJSON
	if !h.decode(w, r, &req) {
		return
	}
	rs, err := factory.LegacyFromJSON(req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	saved, err := h.Rates.InsertLegacy(r.Context(), rs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLegacyRateDTO(saved))
}

func (h *Handler) DeleteLegacyRate(w http.ResponseWriter, r *http.Request) {
	if err := h.Rates.DeleteLegacy(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MigrateLegacyRates(w http.ResponseWriter, r *http.Request) {
	report, err := h.Rates.MigrateLegacy(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.Logger.Info("legacy rates migrated",
		zap.Int("migrated", report.Migrated),
		zap.Int("skipped", report.Skipped),
		zap.Int("mismatches", len(report.Mismatches)),
	)
	writeJSON(w, http.StatusOK, toMigrationReportDTO(report))
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// ImportLedger reconciles a pasted ledger (text/plain body).
func (h *Handler) ImportLedger(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Ledger text too large", err)
		return
	}

	result, err := h.Reconciler.ImportLedger(r.Context(), workplaceID(r), string(body))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerImportDTO(result))
}

func (h *Handler) ListImportRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListImportRuns(r.Context(), workplaceID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list imports", err)
		return
	}
	dtos := make([]ImportRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toImportRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListSlips returns one period's slips; period is required.
func (h *Handler) ListSlips(w http.ResponseWriter, r *http.Request) {
	period, err := generic.ParseYearMonth(r.URL.Query().Get("period"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	slips, err := h.Store.ListSlips(r.Context(), workplaceID(r), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list slips", err)
		return
	}
	dtos := make([]SlipDTO, len(slips))
	for i, s := range slips {
		dtos[i] = toSlipDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSlipPDF renders a stored slip.
func (h *Handler) GetSlipPDF(w http.ResponseWriter, r *http.Request) {
	period, err := generic.ParseYearMonth(chi.URLParam(r, "period"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	id := generic.EmployeeID(chi.URLParam(r, "employeeID"))

	slip, err := h.Store.GetSlip(r.Context(), workplaceID(r), id, period)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := h.Payslips.Render(&buf, *emp, *slip); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render payslip", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="payslip-%s-%s.pdf"`, id, period))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// HELPERS
// =============================================================================

func employeeID(r *http.Request) generic.EmployeeID {
	return generic.EmployeeID(chi.URLParam(r, "id"))
}

func workplaceID(r *http.Request) generic.WorkplaceID {
	return generic.WorkplaceID(chi.URLParam(r, "wid"))
}

// queryDate parses a YYYY-MM-DD query parameter. A zero fallback makes it
// required.
func queryDate(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if fallback.IsZero() {
			return time.Time{}, generic.NewValidationError(name, "required")
		}
		return fallback, nil
	}
	d, err := generic.ParseDate(raw)
	if err != nil {
		return time.Time{}, generic.NewValidationError(name, err.Error())
	}
	return d, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the generic error kinds to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		parseErr      *generic.ParseError
		validationErr *generic.ValidationError
		noRateErr     *generic.NoApplicableRateError
	)
	switch {
	case errors.As(err, &parseErr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   parseErr.Error(),
			Code:    "parse_error",
			Details: parseErr.Details,
		})
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   validationErr.Error(),
			Code:    "validation_error",
			Details: validationErr.Field,
		})
	case errors.As(err, &noRateErr):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: noRateErr.Error(), Code: "no_applicable_rate"})
	case errors.Is(err, generic.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, generic.ErrConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict"})
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusRequestTimeout, "Request cancelled", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

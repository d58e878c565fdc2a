/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface the payroll engine consumes
  (roster, attendance, rates, slips, past payroll) on one SQLite file.
  The same schema ports to PostgreSQL with only dialect changes.

INTERFACES IMPLEMENTED:
  generic.RosterStore:      Employees with their salary configuration
  generic.AttendanceStore:  Completed check-in/check-out intervals
  generic.RateStore:        Rate timeline and legacy year-range table
  generic.TxSlipStore:      Payroll slips and ledger import runs
  generic.PastPayrollStore: Pre-adoption pay records

KEY TABLES:
  employees:            Roster, salary columns inlined
  attendance_intervals: One row per completed interval
  rate_timeline:        One row per effective-from date (UNIQUE)
  legacy_rates:         Year-range rows, UNIQUE(year, effective_from)
  payroll_slips:        UNIQUE(workplace_id, employee_id, period)
  ledger_imports:       Audit trail, one row per import
  past_payroll:         Manually entered gross pay

UPSERTS:
  rate_timeline and payroll_slips are written with ON CONFLICT DO UPDATE
  on their natural key. The row id survives the update, so a re-imported
  slip keeps its id.

MONEY:
  Amounts and percentages are stored as decimal TEXT, never REAL.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction; the txStore handed to the callback does not lock.

WAL MODE:
  File databases are opened with WAL (Write-Ahead Logging). ":memory:"
  databases are pinned to one connection so every query sees one schema.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). NewWithDB skips migration and is meant
  for an already prepared database (or a sqlmock in tests).

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

const dateLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewWithDB wraps an open database without migrating it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		workplace_id TEXT NOT NULL,
		name TEXT NOT NULL,
		hire_date TEXT,
		pay_type TEXT NOT NULL,
		base_amount TEXT NOT NULL,
		rest_day_policy TEXT NOT NULL DEFAULT '',
		deduction_scheme TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_workplace_name
		ON employees(workplace_id, name);

	CREATE TABLE IF NOT EXISTS attendance_intervals (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		check_in TEXT NOT NULL,
		check_out TEXT NOT NULL,
		hours TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_employee_check_in
		ON attendance_intervals(employee_id, check_in);

	CREATE TABLE IF NOT EXISTS rate_timeline (
		id TEXT PRIMARY KEY,
		effective_from TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		values_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS legacy_rates (
		id TEXT PRIMARY KEY,
		year INTEGER NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		values_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(year, effective_from)
	);

	CREATE TABLE IF NOT EXISTS payroll_slips (
		id TEXT PRIMARY KEY,
		workplace_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		period TEXT NOT NULL,
		pay_date TEXT,
		base_pay TEXT NOT NULL,
		pension TEXT NOT NULL,
		health_insurance TEXT NOT NULL,
		employment_insurance TEXT NOT NULL,
		long_term_care TEXT NOT NULL,
		income_tax TEXT NOT NULL,
		local_income_tax TEXT NOT NULL,
		total_deductions TEXT NOT NULL,
		net_pay TEXT NOT NULL,
		checksum_ok INTEGER NOT NULL,
		raw_text TEXT NOT NULL,
		imported_at TEXT NOT NULL,
		UNIQUE(workplace_id, employee_id, period)
	);

	CREATE TABLE IF NOT EXISTS ledger_imports (
		id TEXT PRIMARY KEY,
		workplace_id TEXT NOT NULL,
		period TEXT NOT NULL,
		pay_date TEXT,
		imported_count INTEGER NOT NULL,
		unmatched_json TEXT NOT NULL,
		flagged_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_imports_workplace
		ON ledger_imports(workplace_id);

	CREATE TABLE IF NOT EXISTS past_payroll (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		gross_pay TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_past_payroll_employee
		ON past_payroll(employee_id, period_start);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ROSTER
// =============================================================================

// SaveEmployee inserts or replaces an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp generic.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := emp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO employees (id, workplace_id, name, hire_date, pay_type, base_amount,
		                       rest_day_policy, deduction_scheme, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workplace_id = excluded.workplace_id,
			name = excluded.name,
			hire_date = excluded.hire_date,
			pay_type = excluded.pay_type,
			base_amount = excluded.base_amount,
			rest_day_policy = excluded.rest_day_policy,
			deduction_scheme = excluded.deduction_scheme
	`

	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.WorkplaceID, emp.Name,
		nullDate(emp.HireDate),
		emp.Salary.PayType,
		emp.Salary.BaseAmount.String(),
		emp.Salary.RestDayPolicy,
		emp.Salary.DeductionScheme,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

const employeeColumns = `id, workplace_id, name, hire_date, pay_type, base_amount,
	rest_day_policy, deduction_scheme, created_at`

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query employee: %w", err)
	}
	employees, err := scanEmployees(rows)
	if err != nil {
		return nil, err
	}
	if len(employees) == 0 {
		return nil, generic.NewNotFoundError("employee", string(id))
	}
	return &employees[0], nil
}

// ListEmployees returns one workplace's roster ordered by id.
func (s *Store) ListEmployees(ctx context.Context, workplaceID generic.WorkplaceID) ([]generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE workplace_id = ? ORDER BY id",
		workplaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	return scanEmployees(rows)
}

// FindEmployeesByName matches the name exactly within one workplace.
func (s *Store) FindEmployeesByName(ctx context.Context, workplaceID generic.WorkplaceID, name string) ([]generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE workplace_id = ? AND name = ? ORDER BY id",
		workplaceID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	return scanEmployees(rows)
}

func scanEmployees(rows *sql.Rows) ([]generic.Employee, error) {
	defer rows.Close()

	var employees []generic.Employee
	for rows.Next() {
		var (
			emp        generic.Employee
			hireDate   sql.NullString
			baseAmount string
			createdAt  string
		)
		if err := rows.Scan(&emp.ID, &emp.WorkplaceID, &emp.Name, &hireDate,
			&emp.Salary.PayType, &baseAmount, &emp.Salary.RestDayPolicy,
			&emp.Salary.DeductionScheme, &createdAt); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(baseAmount)
		if err != nil {
			return nil, fmt.Errorf("employee %s: invalid base amount %q: %w", emp.ID, baseAmount, err)
		}
		emp.Salary.BaseAmount = generic.MoneyFromDecimal(amount)
		emp.Salary.EmployeeID = emp.ID
		emp.HireDate = parseNullDate(hireDate)
		emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// AddIntervals stores intervals atomically.
func (s *Store) AddIntervals(ctx context.Context, intervals []generic.AttendanceInterval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, iv := range intervals {
		if iv.ID == "" {
			iv.ID = uuid.New().String()
		}
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO attendance_intervals (id, employee_id, check_in, check_out, hours)
			VALUES (?, ?, ?, ?, ?)
		`,
			iv.ID, iv.EmployeeID,
			iv.CheckIn.UTC().Format(time.RFC3339),
			iv.CheckOut.UTC().Format(time.RFC3339),
			iv.Hours.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert interval: %w", err)
		}
	}

	return sqlTx.Commit()
}

// ListIntervals returns intervals whose check-in falls in [from, to].
func (s *Store) ListIntervals(ctx context.Context, employeeID generic.EmployeeID, from, to time.Time) ([]generic.AttendanceInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, check_in, check_out, hours
		FROM attendance_intervals
		WHERE employee_id = ? AND check_in >= ? AND check_in <= ?
		ORDER BY check_in ASC
	`, employeeID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query intervals: %w", err)
	}
	defer rows.Close()

	var intervals []generic.AttendanceInterval
	for rows.Next() {
		var (
			iv                generic.AttendanceInterval
			checkIn, checkOut string
			hours             string
		)
		if err := rows.Scan(&iv.ID, &iv.EmployeeID, &checkIn, &checkOut, &hours); err != nil {
			return nil, err
		}
		iv.CheckIn, _ = time.Parse(time.RFC3339, checkIn)
		iv.CheckOut, _ = time.Parse(time.RFC3339, checkOut)
		if iv.Hours, err = decimal.NewFromString(hours); err != nil {
			return nil, fmt.Errorf("interval %s: invalid hours %q: %w", iv.ID, hours, err)
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

// =============================================================================
// RATES
// =============================================================================

// ListTimeline returns the timeline ordered by effective-from date.
func (s *Store) ListTimeline(ctx context.Context) ([]generic.RateSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, effective_from, source, values_json, updated_at
		FROM rate_timeline
		ORDER BY effective_from ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate timeline: %w", err)
	}
	defer rows.Close()

	var timeline []generic.RateSet
	for rows.Next() {
		var (
			rs                       generic.RateSet
			from, valuesJSON, update string
		)
		if err := rows.Scan(&rs.ID, &from, &rs.Source, &valuesJSON, &update); err != nil {
			return nil, err
		}
		if rs.EffectiveFrom, err = time.Parse(dateLayout, from); err != nil {
			return nil, fmt.Errorf("rate set %s: %w", rs.ID, err)
		}
		if err := json.Unmarshal([]byte(valuesJSON), &rs.RateValues); err != nil {
			return nil, fmt.Errorf("rate set %s: invalid values: %w", rs.ID, err)
		}
		rs.UpdatedAt, _ = time.Parse(time.RFC3339, update)
		timeline = append(timeline, rs)
	}
	return timeline, rows.Err()
}

// UpsertTimeline replaces the entry with the same effective-from date.
func (s *Store) UpsertTimeline(ctx context.Context, rs generic.RateSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	valuesJSON, err := json.Marshal(rs.RateValues)
	if err != nil {
		return fmt.Errorf("failed to encode rate values: %w", err)
	}
	if rs.ID == "" {
		rs.ID = uuid.New().String()
	}
	updatedAt := rs.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rate_timeline (id, effective_from, source, values_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(effective_from) DO UPDATE SET
			source = excluded.source,
			values_json = excluded.values_json,
			updated_at = excluded.updated_at
	`,
		rs.ID,
		rs.EffectiveFrom.Format(dateLayout),
		rs.Source,
		string(valuesJSON),
		updatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rate set: %w", err)
	}
	return nil
}

// DeleteTimeline removes the entry at effectiveFrom.
func (s *Store) DeleteTimeline(ctx context.Context, effectiveFrom time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := effectiveFrom.Format(dateLayout)
	res, err := s.db.ExecContext(ctx, "DELETE FROM rate_timeline WHERE effective_from = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete rate set: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.NewNotFoundError("rate_set", key)
	}
	return nil
}

// ListLegacy returns the legacy table ordered by effective-from date.
func (s *Store) ListLegacy(ctx context.Context) ([]generic.LegacyRateSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, year, effective_from, effective_to, values_json, created_at
		FROM legacy_rates
		ORDER BY effective_from ASC, year ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy rates: %w", err)
	}
	defer rows.Close()

	var records []generic.LegacyRateSet
	for rows.Next() {
		var (
			rs                          generic.LegacyRateSet
			from, valuesJSON, createdAt string
			to                          sql.NullString
		)
		if err := rows.Scan(&rs.ID, &rs.Year, &from, &to, &valuesJSON, &createdAt); err != nil {
			return nil, err
		}
		if rs.EffectiveFrom, err = time.Parse(dateLayout, from); err != nil {
			return nil, fmt.Errorf("legacy rate %s: %w", rs.ID, err)
		}
		rs.EffectiveTo = parseNullDate(to)
		if err := json.Unmarshal([]byte(valuesJSON), &rs.RateValues); err != nil {
			return nil, fmt.Errorf("legacy rate %s: invalid values: %w", rs.ID, err)
		}
		rs.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		records = append(records, rs)
	}
	return records, rows.Err()
}

// InsertLegacy adds a legacy row. A duplicate (year, effective-from) is a
// *ConflictError.
func (s *Store) InsertLegacy(ctx context.Context, rs generic.LegacyRateSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	valuesJSON, err := json.Marshal(rs.RateValues)
	if err != nil {
		return fmt.Errorf("failed to encode rate values: %w", err)
	}
	if rs.ID == "" {
		rs.ID = uuid.New().String()
	}
	createdAt := rs.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO legacy_rates (id, year, effective_from, effective_to, values_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rs.ID, rs.Year,
		rs.EffectiveFrom.Format(dateLayout),
		nullDate(rs.EffectiveTo),
		string(valuesJSON),
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.NewConflictError("legacy_rate", rs.Key())
		}
		return fmt.Errorf("failed to insert legacy rate: %w", err)
	}
	return nil
}

// DeleteLegacy removes a legacy row by id.
func (s *Store) DeleteLegacy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM legacy_rates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete legacy rate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.NewNotFoundError("legacy_rate", id)
	}
	return nil
}

// =============================================================================
// SLIPS
// =============================================================================

// UpsertSlip replaces the slip for (workplace, employee, period).
func (s *Store) UpsertSlip(ctx context.Context, slip generic.PayrollSlip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return upsertSlip(ctx, s.db, slip)
}

func upsertSlip(ctx context.Context, db querier, slip generic.PayrollSlip) error {
	if slip.ID == "" {
		slip.ID = generic.SlipID(uuid.New().String())
	}
	importedAt := slip.ImportedAt
	if importedAt.IsZero() {
		importedAt = time.Now()
	}

	query := `
		INSERT INTO payroll_slips
		(id, workplace_id, employee_id, period, pay_date, base_pay,
		 pension, health_insurance, employment_insurance, long_term_care, income_tax, local_income_tax,
		 total_deductions, net_pay, checksum_ok, raw_text, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workplace_id, employee_id, period) DO UPDATE SET
			pay_date = excluded.pay_date,
			base_pay = excluded.base_pay,
			pension = excluded.pension,
			health_insurance = excluded.health_insurance,
			employment_insurance = excluded.employment_insurance,
			long_term_care = excluded.long_term_care,
			income_tax = excluded.income_tax,
			local_income_tax = excluded.local_income_tax,
			total_deductions = excluded.total_deductions,
			net_pay = excluded.net_pay,
			checksum_ok = excluded.checksum_ok,
			raw_text = excluded.raw_text,
			imported_at = excluded.imported_at
	`

	d := slip.Deductions
	_, err := db.ExecContext(ctx, query,
		slip.ID, slip.WorkplaceID, slip.EmployeeID,
		slip.Period.String(),
		nullTimeDate(slip.PayDate),
		slip.BasePay.String(),
		d.Pension.String(), d.HealthInsurance.String(), d.EmploymentInsurance.String(),
		d.LongTermCare.String(), d.IncomeTax.String(), d.LocalIncomeTax.String(),
		slip.TotalDeductions.String(),
		slip.NetPay.String(),
		slip.ChecksumOK,
		slip.RawText,
		importedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert slip: %w", err)
	}
	return nil
}

const slipColumns = `id, workplace_id, employee_id, period, pay_date, base_pay,
	pension, health_insurance, employment_insurance, long_term_care, income_tax, local_income_tax,
	total_deductions, net_pay, checksum_ok, raw_text, imported_at`

// GetSlip returns a *NotFoundError when no slip exists for the key.
func (s *Store) GetSlip(ctx context.Context, workplaceID generic.WorkplaceID, employeeID generic.EmployeeID, period generic.YearMonth) (*generic.PayrollSlip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getSlip(ctx, s.db, workplaceID, employeeID, period)
}

func getSlip(ctx context.Context, db querier, workplaceID generic.WorkplaceID, employeeID generic.EmployeeID, period generic.YearMonth) (*generic.PayrollSlip, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+slipColumns+" FROM payroll_slips WHERE workplace_id = ? AND employee_id = ? AND period = ?",
		workplaceID, employeeID, period.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query slip: %w", err)
	}
	slips, err := scanSlips(rows)
	if err != nil {
		return nil, err
	}
	if len(slips) == 0 {
		return nil, generic.NewNotFoundError("slip", string(workplaceID)+"/"+string(employeeID)+"/"+period.String())
	}
	return &slips[0], nil
}

// ListSlips returns one period's slips ordered by employee.
func (s *Store) ListSlips(ctx context.Context, workplaceID generic.WorkplaceID, period generic.YearMonth) ([]generic.PayrollSlip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listSlips(ctx, s.db, workplaceID, period)
}

func listSlips(ctx context.Context, db querier, workplaceID generic.WorkplaceID, period generic.YearMonth) ([]generic.PayrollSlip, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+slipColumns+" FROM payroll_slips WHERE workplace_id = ? AND period = ? ORDER BY employee_id",
		workplaceID, period.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query slips: %w", err)
	}
	return scanSlips(rows)
}

func scanSlips(rows *sql.Rows) ([]generic.PayrollSlip, error) {
	defer rows.Close()

	var slips []generic.PayrollSlip
	for rows.Next() {
		var (
			slip       generic.PayrollSlip
			period     string
			payDate    sql.NullString
			amounts    [9]string
			importedAt string
		)
		err := rows.Scan(&slip.ID, &slip.WorkplaceID, &slip.EmployeeID, &period, &payDate,
			&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4], &amounts[5], &amounts[6],
			&amounts[7], &amounts[8], &slip.ChecksumOK, &slip.RawText, &importedAt)
		if err != nil {
			return nil, err
		}

		if slip.Period, err = generic.ParseYearMonth(period); err != nil {
			return nil, fmt.Errorf("slip %s: %w", slip.ID, err)
		}
		money, err := parseAmounts(amounts[:])
		if err != nil {
			return nil, fmt.Errorf("slip %s: %w", slip.ID, err)
		}
		slip.BasePay = money[0]
		slip.Deductions = generic.DeductionsFromSlice(money[1:7])
		slip.TotalDeductions = money[7]
		slip.NetPay = money[8]
		if payDate.Valid {
			d := parseNullDate(payDate)
			slip.PayDate = &d
		}
		slip.ImportedAt, _ = time.Parse(time.RFC3339, importedAt)
		slips = append(slips, slip)
	}
	return slips, rows.Err()
}

// SaveImportRun appends an import audit row.
func (s *Store) SaveImportRun(ctx context.Context, run generic.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveImportRun(ctx, s.db, run)
}

func saveImportRun(ctx context.Context, db querier, run generic.ImportRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	unmatched, _ := json.Marshal(nonNil(run.UnmatchedNames))
	flagged, _ := json.Marshal(nonNil(run.FlaggedNames))

	_, err := db.ExecContext(ctx, `
		INSERT INTO ledger_imports
		(id, workplace_id, period, pay_date, imported_count, unmatched_json, flagged_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.WorkplaceID, run.Period.String(),
		nullTimeDate(run.PayDate),
		run.ImportedCount,
		string(unmatched), string(flagged),
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save import run: %w", err)
	}
	return nil
}

// ListImportRuns returns a workplace's imports, oldest first.
func (s *Store) ListImportRuns(ctx context.Context, workplaceID generic.WorkplaceID) ([]generic.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listImportRuns(ctx, s.db, workplaceID)
}

func listImportRuns(ctx context.Context, db querier, workplaceID generic.WorkplaceID) ([]generic.ImportRun, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, workplace_id, period, pay_date, imported_count, unmatched_json, flagged_json, created_at
		FROM ledger_imports
		WHERE workplace_id = ?
		ORDER BY rowid ASC
	`, workplaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query import runs: %w", err)
	}
	defer rows.Close()

	var runs []generic.ImportRun
	for rows.Next() {
		var (
			run                         generic.ImportRun
			period                      string
			payDate                     sql.NullString
			unmatched, flagged, created string
		)
		if err := rows.Scan(&run.ID, &run.WorkplaceID, &period, &payDate, &run.ImportedCount,
			&unmatched, &flagged, &created); err != nil {
			return nil, err
		}
		if run.Period, err = generic.ParseYearMonth(period); err != nil {
			return nil, fmt.Errorf("import run %s: %w", run.ID, err)
		}
		if payDate.Valid {
			d := parseNullDate(payDate)
			run.PayDate = &d
		}
		_ = json.Unmarshal([]byte(unmatched), &run.UnmatchedNames)
		_ = json.Unmarshal([]byte(flagged), &run.FlaggedNames)
		run.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// PAST PAYROLL
// =============================================================================

func (s *Store) SavePastPayroll(ctx context.Context, rec generic.PastPayrollRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO past_payroll (id, employee_id, period_start, period_end, gross_pay, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.EmployeeID,
		rec.Period.Start.Format(dateLayout),
		rec.Period.End.Format(dateLayout),
		rec.GrossPay.String(),
		rec.Note,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save past payroll: %w", err)
	}
	return nil
}

func (s *Store) ListPastPayroll(ctx context.Context, employeeID generic.EmployeeID) ([]generic.PastPayrollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, period_start, period_end, gross_pay, note, created_at
		FROM past_payroll
		WHERE employee_id = ?
		ORDER BY period_start ASC
	`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query past payroll: %w", err)
	}
	defer rows.Close()

	var records []generic.PastPayrollRecord
	for rows.Next() {
		var (
			rec                          generic.PastPayrollRecord
			start, end, gross, createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.EmployeeID, &start, &end, &gross, &rec.Note, &createdAt); err != nil {
			return nil, err
		}
		rec.Period.Start, _ = time.Parse(dateLayout, start)
		rec.Period.End, _ = time.Parse(dateLayout, end)
		amount, err := decimal.NewFromString(gross)
		if err != nil {
			return nil, fmt.Errorf("past payroll %s: invalid gross pay %q: %w", rec.ID, gross, err)
		}
		rec.GrossPay = generic.MoneyFromDecimal(amount)
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"payroll_slips", "ledger_imports", "past_payroll", "attendance_intervals",
		"legacy_rates", "rate_timeline", "employees"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(generic.SlipStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore is the SlipStore view inside WithTx. The parent lock is held.
type txStore struct {
	tx *sql.Tx
}

func (t *txStore) UpsertSlip(ctx context.Context, slip generic.PayrollSlip) error {
	return upsertSlip(ctx, t.tx, slip)
}

func (t *txStore) GetSlip(ctx context.Context, workplaceID generic.WorkplaceID, employeeID generic.EmployeeID, period generic.YearMonth) (*generic.PayrollSlip, error) {
	return getSlip(ctx, t.tx, workplaceID, employeeID, period)
}

func (t *txStore) ListSlips(ctx context.Context, workplaceID generic.WorkplaceID, period generic.YearMonth) ([]generic.PayrollSlip, error) {
	return listSlips(ctx, t.tx, workplaceID, period)
}

func (t *txStore) SaveImportRun(ctx context.Context, run generic.ImportRun) error {
	return saveImportRun(ctx, t.tx, run)
}

func (t *txStore) ListImportRuns(ctx context.Context, workplaceID generic.WorkplaceID) ([]generic.ImportRun, error) {
	return listImportRuns(ctx, t.tx, workplaceID)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func nullTimeDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return nullDate(*t)
}

func parseNullDate(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, _ := time.Parse(dateLayout, s.String)
	return t
}

func parseAmounts(values []string) ([]generic.Money, error) {
	out := make([]generic.Money, len(values))
	for i, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", v, err)
		}
		out[i] = generic.MoneyFromDecimal(d)
	}
	return out, nil
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

var (
	_ generic.RosterStore      = (*Store)(nil)
	_ generic.AttendanceStore  = (*Store)(nil)
	_ generic.RateStore        = (*Store)(nil)
	_ generic.TxSlipStore      = (*Store)(nil)
	_ generic.PastPayrollStore = (*Store)(nil)
)

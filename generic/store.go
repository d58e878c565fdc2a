/*
store.go - Persistence interfaces consumed by the payroll engine

PURPOSE:
  Defines the boundary between the domain logic and whatever database
  backs it. Computation packages only read through these interfaces; the
  reconciler is the single writer of slips.

KEY INTERFACES:
  Roster:           Employees and their salary configuration
  AttendanceSource: Completed attendance intervals
  RateStore:        The rate timeline plus the legacy year-range table
  SlipStore:        Payroll slips and ledger import runs
  TxSlipStore:      SlipStore with atomic multi-write support
  PastPayrollStore: Manually entered pre-adoption pay

SLIP WRITES:
  Slips are never patched. UpsertSlip replaces the whole row keyed by
  (workplace, employee, period); an import writes all of its slips inside
  one WithTx call so a re-import never leaves a period without its slip.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - reconcile/reconciler.go: the only SlipStore writer
  - rates/resolver.go: RateStore consumer
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// ROSTER & ATTENDANCE
// =============================================================================

// Roster gives read access to employees.
type Roster interface {
	// GetEmployee returns a *NotFoundError when the employee does not exist.
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)

	ListEmployees(ctx context.Context, workplaceID WorkplaceID) ([]Employee, error)

	// FindEmployeesByName matches the name exactly within one workplace.
	FindEmployeesByName(ctx context.Context, workplaceID WorkplaceID, name string) ([]Employee, error)
}

// RosterStore adds writes, used by admin endpoints and scenarios.
type RosterStore interface {
	Roster
	SaveEmployee(ctx context.Context, emp Employee) error
}

// AttendanceSource returns completed intervals whose check-in falls in [from, to].
type AttendanceSource interface {
	ListIntervals(ctx context.Context, employeeID EmployeeID, from, to time.Time) ([]AttendanceInterval, error)
}

type AttendanceStore interface {
	AttendanceSource
	AddIntervals(ctx context.Context, intervals []AttendanceInterval) error
}

// =============================================================================
// RATES
// =============================================================================

// RateStore persists the rate timeline and the legacy rate table.
type RateStore interface {
	// ListTimeline returns all timeline entries ordered by EffectiveFrom.
	ListTimeline(ctx context.Context) ([]RateSet, error)

	// UpsertTimeline fully replaces the entry with the same EffectiveFrom.
	UpsertTimeline(ctx context.Context, rs RateSet) error

	// DeleteTimeline removes the entry at effectiveFrom. A missing entry
	// is a *NotFoundError.
	DeleteTimeline(ctx context.Context, effectiveFrom time.Time) error

	ListLegacy(ctx context.Context) ([]LegacyRateSet, error)

	// InsertLegacy does not upsert. Callers check for duplicate
	// (year, effective-from) first; the store still rejects them with a
	// *ConflictError.
	InsertLegacy(ctx context.Context, rs LegacyRateSet) error

	// DeleteLegacy returns a *NotFoundError for an unknown id.
	DeleteLegacy(ctx context.Context, id string) error
}

// =============================================================================
// SLIPS
// =============================================================================

// SlipStore persists reconciled slips and import runs.
type SlipStore interface {
	UpsertSlip(ctx context.Context, slip PayrollSlip) error
	GetSlip(ctx context.Context, workplaceID WorkplaceID, employeeID EmployeeID, period YearMonth) (*PayrollSlip, error)
	ListSlips(ctx context.Context, workplaceID WorkplaceID, period YearMonth) ([]PayrollSlip, error)
	SaveImportRun(ctx context.Context, run ImportRun) error
	ListImportRuns(ctx context.Context, workplaceID WorkplaceID) ([]ImportRun, error)
}

// TxSlipStore wraps SlipStore with transaction support.
type TxSlipStore interface {
	SlipStore

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(SlipStore) error) error
}

// =============================================================================
// PAST PAYROLL
// =============================================================================

type PastPayrollStore interface {
	ListPastPayroll(ctx context.Context, employeeID EmployeeID) ([]PastPayrollRecord, error)
	SavePastPayroll(ctx context.Context, rec PastPayrollRecord) error
}

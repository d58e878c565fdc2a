// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	employees map[generic.EmployeeID]generic.Employee
	intervals map[generic.EmployeeID][]generic.AttendanceInterval
	timeline  map[time.Time]generic.RateSet
	legacy    map[string]generic.LegacyRateSet
	slips     map[slipKey]generic.PayrollSlip
	runs      []generic.ImportRun
	past      map[generic.EmployeeID][]generic.PastPayrollRecord
}

type slipKey struct {
	WorkplaceID generic.WorkplaceID
	EmployeeID  generic.EmployeeID
	Period      generic.YearMonth
}

func NewMemory() *Memory {
	return &Memory{
		employees: make(map[generic.EmployeeID]generic.Employee),
		intervals: make(map[generic.EmployeeID][]generic.AttendanceInterval),
		timeline:  make(map[time.Time]generic.RateSet),
		legacy:    make(map[string]generic.LegacyRateSet),
		slips:     make(map[slipKey]generic.PayrollSlip),
		past:      make(map[generic.EmployeeID][]generic.PastPayrollRecord),
	}
}

// =============================================================================
// ROSTER
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, emp generic.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = time.Now()
	}
	emp.Salary.EmployeeID = emp.ID
	m.employees[emp.ID] = emp
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	emp, ok := m.employees[id]
	if !ok {
		return nil, generic.NewNotFoundError("employee", string(id))
	}
	return &emp, nil
}

func (m *Memory) ListEmployees(_ context.Context, workplaceID generic.WorkplaceID) ([]generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []generic.Employee
	for _, emp := range m.employees {
		if emp.WorkplaceID == workplaceID {
			result = append(result, emp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) FindEmployeesByName(ctx context.Context, workplaceID generic.WorkplaceID, name string) ([]generic.Employee, error) {
	all, err := m.ListEmployees(ctx, workplaceID)
	if err != nil {
		return nil, err
	}
	var result []generic.Employee
	for _, emp := range all {
		if emp.Name == name {
			result = append(result, emp)
		}
	}
	return result, nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (m *Memory) AddIntervals(_ context.Context, intervals []generic.AttendanceInterval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, iv := range intervals {
		if iv.ID == "" {
			iv.ID = uuid.New().String()
		}
		list := append(m.intervals[iv.EmployeeID], iv)
		sort.Slice(list, func(i, j int) bool { return list[i].CheckIn.Before(list[j].CheckIn) })
		m.intervals[iv.EmployeeID] = list
	}
	return nil
}

func (m *Memory) ListIntervals(_ context.Context, employeeID generic.EmployeeID, from, to time.Time) ([]generic.AttendanceInterval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []generic.AttendanceInterval
	for _, iv := range m.intervals[employeeID] {
		if !iv.CheckIn.Before(from) && !iv.CheckIn.After(to) {
			result = append(result, iv)
		}
	}
	return result, nil
}

// =============================================================================
// RATES
// =============================================================================

func (m *Memory) ListTimeline(_ context.Context) ([]generic.RateSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]generic.RateSet, 0, len(m.timeline))
	for _, rs := range m.timeline {
		result = append(result, rs)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EffectiveFrom.Before(result[j].EffectiveFrom) })
	return result, nil
}

func (m *Memory) UpsertTimeline(_ context.Context, rs generic.RateSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := generic.TruncateDay(rs.EffectiveFrom)
	rs.EffectiveFrom = k
	if existing, ok := m.timeline[k]; ok {
		rs.ID = existing.ID
	}
	if rs.ID == "" {
		rs.ID = uuid.New().String()
	}
	if rs.UpdatedAt.IsZero() {
		rs.UpdatedAt = time.Now()
	}
	m.timeline[k] = rs
	return nil
}

func (m *Memory) DeleteTimeline(_ context.Context, effectiveFrom time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := generic.TruncateDay(effectiveFrom)
	if _, ok := m.timeline[k]; !ok {
		return generic.NewNotFoundError("rate_set", k.Format("2006-01-02"))
	}
	delete(m.timeline, k)
	return nil
}

func (m *Memory) ListLegacy(_ context.Context) ([]generic.LegacyRateSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]generic.LegacyRateSet, 0, len(m.legacy))
	for _, rs := range m.legacy {
		result = append(result, rs)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EffectiveFrom.Before(result[j].EffectiveFrom) })
	return result, nil
}

func (m *Memory) InsertLegacy(_ context.Context, rs generic.LegacyRateSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.legacy {
		if existing.Key() == rs.Key() {
			return generic.NewConflictError("legacy_rate", rs.Key())
		}
	}
	if rs.ID == "" {
		rs.ID = uuid.New().String()
	}
	if rs.CreatedAt.IsZero() {
		rs.CreatedAt = time.Now()
	}
	m.legacy[rs.ID] = rs
	return nil
}

func (m *Memory) DeleteLegacy(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.legacy[id]; !ok {
		return generic.NewNotFoundError("legacy_rate", id)
	}
	delete(m.legacy, id)
	return nil
}

// =============================================================================
// SLIPS
// =============================================================================

func (m *Memory) UpsertSlip(_ context.Context, slip generic.PayrollSlip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertSlipLocked(slip)
	return nil
}

func (m *Memory) upsertSlipLocked(slip generic.PayrollSlip) {
	k := slipKey{WorkplaceID: slip.WorkplaceID, EmployeeID: slip.EmployeeID, Period: slip.Period}
	if existing, ok := m.slips[k]; ok {
		slip.ID = existing.ID
	}
	if slip.ID == "" {
		slip.ID = generic.SlipID(uuid.New().String())
	}
	m.slips[k] = slip
}

func (m *Memory) GetSlip(_ context.Context, workplaceID generic.WorkplaceID, employeeID generic.EmployeeID, period generic.YearMonth) (*generic.PayrollSlip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSlipLocked(workplaceID, employeeID, period)
}

func (m *Memory) getSlipLocked(workplaceID generic.WorkplaceID, employeeID generic.EmployeeID, period generic.YearMonth) (*generic.PayrollSlip, error) {
	slip, ok := m.slips[slipKey{WorkplaceID: workplaceID, EmployeeID: employeeID, Period: period}]
	if !ok {
		return nil, generic.NewNotFoundError("slip", string(workplaceID)+"/"+string(employeeID)+"/"+period.String())
	}
	return &slip, nil
}

func (m *Memory) ListSlips(_ context.Context, workplaceID generic.WorkplaceID, period generic.YearMonth) ([]generic.PayrollSlip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSlipsLocked(workplaceID, period), nil
}

func (m *Memory) listSlipsLocked(workplaceID generic.WorkplaceID, period generic.YearMonth) []generic.PayrollSlip {
	var result []generic.PayrollSlip
	for k, slip := range m.slips {
		if k.WorkplaceID == workplaceID && k.Period == period {
			result = append(result, slip)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EmployeeID < result[j].EmployeeID })
	return result
}

func (m *Memory) SaveImportRun(_ context.Context, run generic.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveImportRunLocked(run)
	return nil
}

func (m *Memory) saveImportRunLocked(run generic.ImportRun) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	m.runs = append(m.runs, run)
}

func (m *Memory) ListImportRuns(_ context.Context, workplaceID generic.WorkplaceID) ([]generic.ImportRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listImportRunsLocked(workplaceID), nil
}

func (m *Memory) listImportRunsLocked(workplaceID generic.WorkplaceID) []generic.ImportRun {
	var result []generic.ImportRun
	for _, run := range m.runs {
		if run.WorkplaceID == workplaceID {
			result = append(result, run)
		}
	}
	return result
}

// =============================================================================
// PAST PAYROLL
// =============================================================================

func (m *Memory) SavePastPayroll(_ context.Context, rec generic.PastPayrollRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.past[rec.EmployeeID] = append(m.past[rec.EmployeeID], rec)
	return nil
}

func (m *Memory) ListPastPayroll(_ context.Context, employeeID generic.EmployeeID) ([]generic.PastPayrollRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]generic.PastPayrollRecord, len(m.past[employeeID]))
	copy(result, m.past[employeeID])
	return result, nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	fresh := NewMemory()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees, m.intervals, m.timeline, m.legacy = fresh.employees, fresh.intervals, fresh.timeline, fresh.legacy
	m.slips, m.runs, m.past = fresh.slips, nil, fresh.past
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(generic.SlipStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()

	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	slips map[slipKey]generic.PayrollSlip
	runs  []generic.ImportRun
}

func (m *Memory) snapshot() memorySnapshot {
	slips := make(map[slipKey]generic.PayrollSlip, len(m.slips))
	for k, v := range m.slips {
		slips[k] = v
	}
	return memorySnapshot{slips: slips, runs: append([]generic.ImportRun{}, m.runs...)}
}

func (m *Memory) restore(s memorySnapshot) {
	m.slips = s.slips
	m.runs = s.runs
}

// txMemoryView runs with the parent's lock already held.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) UpsertSlip(_ context.Context, slip generic.PayrollSlip) error {
	tv.parent.upsertSlipLocked(slip)
	return nil
}

func (tv *txMemoryView) GetSlip(_ context.Context, workplaceID generic.WorkplaceID, employeeID generic.EmployeeID, period generic.YearMonth) (*generic.PayrollSlip, error) {
	return tv.parent.getSlipLocked(workplaceID, employeeID, period)
}

func (tv *txMemoryView) ListSlips(_ context.Context, workplaceID generic.WorkplaceID, period generic.YearMonth) ([]generic.PayrollSlip, error) {
	return tv.parent.listSlipsLocked(workplaceID, period), nil
}

func (tv *txMemoryView) SaveImportRun(_ context.Context, run generic.ImportRun) error {
	tv.parent.saveImportRunLocked(run)
	return nil
}

func (tv *txMemoryView) ListImportRuns(_ context.Context, workplaceID generic.WorkplaceID) ([]generic.ImportRun, error) {
	return tv.parent.listImportRunsLocked(workplaceID), nil
}

var (
	_ generic.RosterStore      = (*Memory)(nil)
	_ generic.AttendanceStore  = (*Memory)(nil)
	_ generic.RateStore        = (*Memory)(nil)
	_ generic.TxSlipStore      = (*Memory)(nil)
	_ generic.PastPayrollStore = (*Memory)(nil)
)

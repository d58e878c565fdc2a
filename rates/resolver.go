/*
Package rates resolves the statutory deduction rates in force on a date.

PURPOSE:
  Rates change over time. Every change is one entry on a single timeline
  keyed by its effective-from date; an entry stays in force until a later
  one supersedes it. Resolution is always "the greatest key not after the
  date", so exactly one entry applies to any date after the first.

KEY CONCEPTS:
  - Timeline entry (generic.RateSet): written per year-month, keyed by the
    first day of that month. Writes fully replace the entry.
  - Legacy record (generic.LegacyRateSet): the older year-range table.
    Never answers Resolve directly. MigrateLegacy copies it onto the
    timeline; after that, InsertLegacy and DeleteLegacy keep the migrated
    entries in step with the table.

TIES:
  A monthly entry and a migrated legacy entry can never share a key in the
  store; MigrateLegacy skips a legacy row whose date already holds a
  monthly entry, and UpsertMonthly overwrites a migrated one.

USAGE:
  r := rates.NewResolver(store)
  rs, err := r.Resolve(ctx, generic.Date(2025, 3, 15))

SEE ALSO:
  - generic/rateset.go: RateSet, LegacyRateSet
  - payroll/deductions.go: applies a resolved RateSet to gross pay
*/
package rates

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/warp/payroll-engine/generic"
)

// Resolver reads and writes the rate timeline through a RateStore.
type Resolver struct {
	Store generic.RateStore
	Now   func() time.Time
}

func NewResolver(store generic.RateStore) *Resolver {
	return &Resolver{Store: store, Now: time.Now}
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Resolve returns the entry with the greatest EffectiveFrom not after date.
// Returns *generic.NoApplicableRateError when date precedes every entry.
func (r *Resolver) Resolve(ctx context.Context, date time.Time) (generic.RateSet, error) {
	timeline, err := r.Store.ListTimeline(ctx)
	if err != nil {
		return generic.RateSet{}, fmt.Errorf("load rate timeline: %w", err)
	}
	if rs, ok := Pick(timeline, date); ok {
		return rs, nil
	}
	return generic.RateSet{}, &generic.NoApplicableRateError{Date: generic.TruncateDay(date)}
}

// Pick applies the resolution rule to an in-memory timeline in any order.
// At equal dates a monthly entry beats a legacy one.
func Pick(timeline []generic.RateSet, date time.Time) (generic.RateSet, bool) {
	day := generic.TruncateDay(date)
	var best generic.RateSet
	found := false
	for _, rs := range timeline {
		key := generic.TruncateDay(rs.EffectiveFrom)
		if key.After(day) {
			continue
		}
		if !found || key.After(best.EffectiveFrom) ||
			(key.Equal(best.EffectiveFrom) && rs.Source == generic.RateSourceMonthly && best.Source != generic.RateSourceMonthly) {
			best = rs
			best.EffectiveFrom = key
			found = true
		}
	}
	return best, found
}

// Timeline returns all entries in effective order.
func (r *Resolver) Timeline(ctx context.Context) ([]generic.RateSet, error) {
	timeline, err := r.Store.ListTimeline(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].EffectiveFrom.Before(timeline[j].EffectiveFrom)
	})
	return timeline, nil
}

// =============================================================================
// WRITES
// =============================================================================

// UpsertMonthly writes the rates in force from the first day of ym.
// A second write for the same month replaces every field of the first.
func (r *Resolver) UpsertMonthly(ctx context.Context, ym generic.YearMonth, values generic.RateValues) (generic.RateSet, error) {
	if err := ym.Validate(); err != nil {
		return generic.RateSet{}, err
	}
	if err := values.Validate(); err != nil {
		return generic.RateSet{}, err
	}

	rs := generic.RateSet{
		ID:            uuid.New().String(),
		EffectiveFrom: ym.FirstDay(),
		Source:        generic.RateSourceMonthly,
		RateValues:    values,
		UpdatedAt:     r.Now(),
	}
	if err := r.Store.UpsertTimeline(ctx, rs); err != nil {
		return generic.RateSet{}, fmt.Errorf("upsert rates for %s: %w", ym, err)
	}
	return r.Resolve(ctx, rs.EffectiveFrom)
}

// InsertLegacy adds a year-range record. There is no upsert: a record
// with the same (year, effective-from) is a *generic.ConflictError.
func (r *Resolver) InsertLegacy(ctx context.Context, rs generic.LegacyRateSet) (generic.LegacyRateSet, error) {
	rs.EffectiveFrom = generic.TruncateDay(rs.EffectiveFrom)
	if !rs.EffectiveTo.IsZero() {
		rs.EffectiveTo = generic.TruncateDay(rs.EffectiveTo)
	}
	if err := rs.Validate(); err != nil {
		return generic.LegacyRateSet{}, err
	}

	existing, err := r.Store.ListLegacy(ctx)
	if err != nil {
		return generic.LegacyRateSet{}, fmt.Errorf("load legacy rates: %w", err)
	}
	for _, e := range existing {
		if e.Key() == rs.Key() {
			return generic.LegacyRateSet{}, generic.NewConflictError("legacy_rate", rs.Key())
		}
	}

	if rs.ID == "" {
		rs.ID = uuid.New().String()
	}
	rs.CreatedAt = r.Now()
	if err := r.Store.InsertLegacy(ctx, rs); err != nil {
		return generic.LegacyRateSet{}, err
	}

	timeline, err := r.Store.ListTimeline(ctx)
	if err != nil {
		return generic.LegacyRateSet{}, fmt.Errorf("load rate timeline: %w", err)
	}
	if migrated(timeline) && !occupiedAt(timeline, rs.EffectiveFrom) {
		if err := r.Store.UpsertTimeline(ctx, legacyEntry(rs, r.Now())); err != nil {
			return generic.LegacyRateSet{}, fmt.Errorf("migrate legacy rate %s: %w", rs.Key(), err)
		}
	}
	return rs, nil
}

// DeleteLegacy removes a legacy record. A migrated copy of it leaves the
// timeline too, unless another legacy record starts on the same date, in
// which case that one takes its place. Monthly entries are never touched.
func (r *Resolver) DeleteLegacy(ctx context.Context, id string) error {
	legacy, err := r.Store.ListLegacy(ctx)
	if err != nil {
		return fmt.Errorf("load legacy rates: %w", err)
	}
	var target *generic.LegacyRateSet
	for i := range legacy {
		if legacy[i].ID == id {
			target = &legacy[i]
			break
		}
	}
	if target == nil {
		return generic.NewNotFoundError("legacy_rate", id)
	}
	if err := r.Store.DeleteLegacy(ctx, id); err != nil {
		return err
	}

	timeline, err := r.Store.ListTimeline(ctx)
	if err != nil {
		return fmt.Errorf("load rate timeline: %w", err)
	}
	key := generic.TruncateDay(target.EffectiveFrom)
	var entry *generic.RateSet
	for i := range timeline {
		if generic.TruncateDay(timeline[i].EffectiveFrom).Equal(key) {
			entry = &timeline[i]
			break
		}
	}
	if entry == nil || entry.Source != generic.RateSourceLegacy {
		return nil
	}
	for _, l := range legacy {
		if l.ID != id && generic.TruncateDay(l.EffectiveFrom).Equal(key) {
			return r.Store.UpsertTimeline(ctx, legacyEntry(l, r.Now()))
		}
	}
	if err := r.Store.DeleteTimeline(ctx, key); err != nil {
		return fmt.Errorf("remove migrated rate %s: %w", target.Key(), err)
	}
	return nil
}

func (r *Resolver) ListLegacy(ctx context.Context) ([]generic.LegacyRateSet, error) {
	return r.Store.ListLegacy(ctx)
}

package rates

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// LEGACY MIGRATION - One-time copy of the year-range table onto the timeline
// =============================================================================

// MigrationReport summarizes one MigrateLegacy run.
type MigrationReport struct {
	Migrated int
	Skipped  int // a timeline entry already existed at that date

	// Mismatches lists legacy effective dates whose old lookup and new
	// timeline lookup disagree after migration.
	Mismatches []time.Time
}

// MigrateLegacy copies every legacy record onto the timeline at its
// effective-from date with Source=legacy. A date that already holds an
// entry is left untouched, so running it twice migrates nothing new.
func (r *Resolver) MigrateLegacy(ctx context.Context) (MigrationReport, error) {
	legacy, err := r.Store.ListLegacy(ctx)
	if err != nil {
		return MigrationReport{}, fmt.Errorf("load legacy rates: %w", err)
	}
	timeline, err := r.Store.ListTimeline(ctx)
	if err != nil {
		return MigrationReport{}, fmt.Errorf("load rate timeline: %w", err)
	}

	occupied := make(map[time.Time]bool, len(timeline))
	for _, rs := range timeline {
		occupied[generic.TruncateDay(rs.EffectiveFrom)] = true
	}

	sort.Slice(legacy, func(i, j int) bool { return legacy[i].EffectiveFrom.Before(legacy[j].EffectiveFrom) })

	var report MigrationReport
	for _, l := range legacy {
		key := generic.TruncateDay(l.EffectiveFrom)
		if occupied[key] {
			report.Skipped++
			continue
		}
		if err := r.Store.UpsertTimeline(ctx, legacyEntry(l, r.Now())); err != nil {
			return report, fmt.Errorf("migrate legacy rate %s: %w", l.Key(), err)
		}
		occupied[key] = true
		report.Migrated++
	}

	report.Mismatches, err = r.verify(ctx, legacy)
	return report, err
}

func legacyEntry(l generic.LegacyRateSet, now time.Time) generic.RateSet {
	return generic.RateSet{
		ID:            uuid.New().String(),
		EffectiveFrom: generic.TruncateDay(l.EffectiveFrom),
		Source:        generic.RateSourceLegacy,
		RateValues:    l.RateValues,
		UpdatedAt:     now,
	}
}

// migrated reports whether MigrateLegacy has copied anything still present.
func migrated(timeline []generic.RateSet) bool {
	for _, rs := range timeline {
		if rs.Source == generic.RateSourceLegacy {
			return true
		}
	}
	return false
}

func occupiedAt(timeline []generic.RateSet, date time.Time) bool {
	day := generic.TruncateDay(date)
	for _, rs := range timeline {
		if generic.TruncateDay(rs.EffectiveFrom).Equal(day) {
			return true
		}
	}
	return false
}

func (r *Resolver) verify(ctx context.Context, legacy []generic.LegacyRateSet) ([]time.Time, error) {
	timeline, err := r.Store.ListTimeline(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rate timeline: %w", err)
	}
	var mismatches []time.Time
	for _, l := range legacy {
		day := generic.TruncateDay(l.EffectiveFrom)
		old, okOld := ResolveLegacy(legacy, day)
		cur, okNew := Pick(timeline, day)
		if okOld != okNew || (okOld && !sameValues(old.RateValues, cur.RateValues)) {
			mismatches = append(mismatches, day)
		}
	}
	return mismatches, nil
}

// ResolveLegacy reproduces the year-range lookup: among records of the
// date's year, the latest whose window contains the date, else the latest
// one starting on or before it. Only the migration report uses it.
func ResolveLegacy(records []generic.LegacyRateSet, date time.Time) (generic.LegacyRateSet, bool) {
	day := generic.TruncateDay(date)
	var covering, started *generic.LegacyRateSet
	for i := range records {
		l := &records[i]
		if l.Year != day.Year() || l.EffectiveFrom.After(day) {
			continue
		}
		if l.Covers(day) && (covering == nil || l.EffectiveFrom.After(covering.EffectiveFrom)) {
			covering = l
		}
		if started == nil || l.EffectiveFrom.After(started.EffectiveFrom) {
			started = l
		}
	}
	switch {
	case covering != nil:
		return *covering, true
	case started != nil:
		return *started, true
	}
	return generic.LegacyRateSet{}, false
}

func sameValues(a, b generic.RateValues) bool {
	pairs := [][2]generic.InsuranceRates{{a.Employee, b.Employee}, {a.Employer, b.Employer}}
	for _, p := range pairs {
		x, y := p[0], p[1]
		if !x.Pension.Equal(y.Pension) || !x.Health.Equal(y.Health) ||
			!x.LongTermCare.Equal(y.LongTermCare) || !x.Employment.Equal(y.Employment) {
			return false
		}
	}
	return a.PensionBaseFloor.Equal(b.PensionBaseFloor) &&
		a.PensionBaseCeiling.Equal(b.PensionBaseCeiling) &&
		a.FlatWithholding.Equal(b.FlatWithholding)
}

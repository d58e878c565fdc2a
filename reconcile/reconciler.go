/*
Package reconcile turns a pasted payroll ledger into stored payroll slips.

PURPOSE:
  The only writer of PayrollSlip rows. Parses the ledger, matches every
  employee block to the workplace roster by exact name and upserts one
  slip per (workplace, employee, period).

FLOW:
  1. ledger.Parse; any failure rejects the whole import
  2. exact-name match; a name with no roster entry, or with more than one,
     is reported as unmatched together with close roster names
  3. optional strict mode: a matched block failing the net pay checksum
     rejects the whole import before anything is written
  4. all matched slips and the import run are written in one transaction

INVARIANTS:
  - ImportedCount + len(UnmatchedNames) == number of parsed blocks
  - re-importing the same text leaves exactly one slip per employee/period

SEE ALSO:
  - ledger/parser.go
  - generic/store.go: TxSlipStore
*/
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/texttheater/golang-levenshtein/levenshtein"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/metrics"
)

// Options tune an import.
type Options struct {
	// RejectChecksumMismatch refuses the whole import when a matched block's
	// base - deductions differs from its net pay.
	RejectChecksumMismatch bool

	// MaxSuggestions caps the roster names offered per unmatched name.
	MaxSuggestions int

	// MaxSuggestionDistance is the largest edit distance still suggested.
	MaxSuggestionDistance int
}

func DefaultOptions() Options {
	return Options{MaxSuggestions: 3, MaxSuggestionDistance: 2}
}

// LedgerImportResult summarizes one import.
type LedgerImportResult struct {
	ImportRunID    string
	Period         generic.YearMonth
	PayDate        *time.Time
	ImportedCount  int
	UnmatchedNames []string
	FlaggedNames   []string
	Suggestions    map[string][]string
	Discarded      int
}

type Reconciler struct {
	Roster  generic.Roster
	Slips   generic.TxSlipStore
	Options Options
	Logger  *zap.Logger
	Now     func() time.Time
}

func NewReconciler(roster generic.Roster, slips generic.TxSlipStore, opts Options, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{Roster: roster, Slips: slips, Options: opts, Logger: logger, Now: time.Now}
}

type match struct {
	candidate ledger.Candidate
	employee  generic.Employee
}

// ImportLedger parses raw and reconciles it into slips for workplaceID.
func (r *Reconciler) ImportLedger(ctx context.Context, workplaceID generic.WorkplaceID, raw string) (*LedgerImportResult, error) {
	started := time.Now()
	log := r.Logger.With(zap.String("workplace_id", string(workplaceID)))

	doc, err := ledger.Parse(raw)
	if err != nil {
		metrics.ObserveImport(metrics.OutcomeParseError, 0, 0, 0, time.Since(started))
		log.Warn("ledger rejected", zap.Error(err))
		return nil, err
	}

	result := &LedgerImportResult{
		Period:         doc.Period,
		PayDate:        doc.PayDate,
		UnmatchedNames: []string{},
		FlaggedNames:   []string{},
		Suggestions:    map[string][]string{},
		Discarded:      doc.Discarded,
	}

	var matched []match
	var mismatched []string
	flagged := make(map[string]bool)
	flag := func(name string) {
		if !flagged[name] {
			flagged[name] = true
			result.FlaggedNames = append(result.FlaggedNames, name)
		}
	}
	written := make(map[generic.EmployeeID]bool)
	for _, c := range doc.Candidates {
		found, err := r.Roster.FindEmployeesByName(ctx, workplaceID, c.Name)
		if err != nil {
			return nil, fmt.Errorf("match %q: %w", c.Name, err)
		}
		if len(found) != 1 {
			result.UnmatchedNames = append(result.UnmatchedNames, c.Name)
			continue
		}
		// A repeated block for the same employee writes no slip, so it
		// counts as unmatched and is flagged for review. The first block wins.
		if written[found[0].ID] {
			result.UnmatchedNames = append(result.UnmatchedNames, c.Name)
			flag(c.Name)
			continue
		}
		written[found[0].ID] = true
		matched = append(matched, match{candidate: c, employee: found[0]})
		if !c.ChecksumOK || c.Incomplete {
			flag(c.Name)
		}
		if !c.ChecksumOK {
			mismatched = append(mismatched, c.Name)
		}
	}

	if len(result.UnmatchedNames) > 0 {
		if result.Suggestions, err = r.suggest(ctx, workplaceID, result.UnmatchedNames); err != nil {
			return nil, err
		}
	}

	if r.Options.RejectChecksumMismatch && len(mismatched) > 0 {
		metrics.ObserveImport(metrics.OutcomeChecksumRejected, 0, len(result.UnmatchedNames), len(result.FlaggedNames), time.Since(started))
		log.Warn("ledger rejected on checksum", zap.Strings("names", mismatched))
		return nil, generic.NewParseError("net pay checksum mismatch", mismatched...)
	}

	now := r.Now()
	run := generic.ImportRun{
		ID:             uuid.New().String(),
		WorkplaceID:    workplaceID,
		Period:         doc.Period,
		PayDate:        doc.PayDate,
		ImportedCount:  len(matched),
		UnmatchedNames: result.UnmatchedNames,
		FlaggedNames:   result.FlaggedNames,
		CreatedAt:      now,
	}

	err = r.Slips.WithTx(ctx, func(tx generic.SlipStore) error {
		for _, m := range matched {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := tx.UpsertSlip(ctx, toSlip(workplaceID, doc, m, now)); err != nil {
				return fmt.Errorf("upsert slip for %s: %w", m.employee.ID, err)
			}
		}
		return tx.SaveImportRun(ctx, run)
	})
	if err != nil {
		metrics.ObserveImport(metrics.OutcomeStoreError, 0, len(result.UnmatchedNames), len(result.FlaggedNames), time.Since(started))
		return nil, err
	}

	result.ImportRunID = run.ID
	result.ImportedCount = len(matched)

	metrics.ObserveImport(metrics.OutcomeOK, result.ImportedCount, len(result.UnmatchedNames), len(result.FlaggedNames), time.Since(started))
	log.Info("ledger imported",
		zap.String("period", doc.Period.String()),
		zap.Int("imported", result.ImportedCount),
		zap.Int("unmatched", len(result.UnmatchedNames)),
		zap.Int("flagged", len(result.FlaggedNames)),
		zap.Int("discarded", doc.Discarded),
	)
	return result, nil
}

func toSlip(workplaceID generic.WorkplaceID, doc *ledger.Document, m match, now time.Time) generic.PayrollSlip {
	c := m.candidate
	return generic.PayrollSlip{
		ID:              generic.SlipID(uuid.New().String()),
		WorkplaceID:     workplaceID,
		EmployeeID:      m.employee.ID,
		Period:          doc.Period,
		PayDate:         doc.PayDate,
		BasePay:         c.BasePay,
		Deductions:      c.Deductions,
		TotalDeductions: c.TotalDeductions,
		NetPay:          c.NetPay,
		ChecksumOK:      c.ChecksumOK,
		RawText:         c.Raw,
		ImportedAt:      now,
	}
}

// suggest offers roster names within the edit distance limit, closest first.
func (r *Reconciler) suggest(ctx context.Context, workplaceID generic.WorkplaceID, names []string) (map[string][]string, error) {
	roster, err := r.Roster.ListEmployees(ctx, workplaceID)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}

	out := make(map[string][]string, len(names))
	for _, name := range names {
		type scored struct {
			name string
			dist int
		}
		var candidates []scored
		seen := map[string]bool{}
		for _, emp := range roster {
			if seen[emp.Name] {
				continue
			}
			seen[emp.Name] = true
			d := levenshtein.DistanceForStrings([]rune(name), []rune(emp.Name), levenshtein.DefaultOptionsWithSub)
			if d <= r.Options.MaxSuggestionDistance {
				candidates = append(candidates, scored{name: emp.Name, dist: d})
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].dist != candidates[j].dist {
				return candidates[i].dist < candidates[j].dist
			}
			return candidates[i].name < candidates[j].name
		})

		limit := r.Options.MaxSuggestions
		if limit <= 0 || limit > len(candidates) {
			limit = len(candidates)
		}
		list := make([]string, 0, limit)
		for _, c := range candidates[:limit] {
			list = append(list, c.name)
		}
		out[name] = list
	}
	return out, nil
}

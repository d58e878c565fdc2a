// Package metrics exposes Prometheus counters for ledger imports and
// payroll computations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	_metricsLedgerImports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payroll_ledger_imports_total",
		Help: "number of ledger imports by outcome (ok, parse_error, checksum_rejected, store_error)",
	}, []string{"outcome"})

	_metricsSlipsImported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payroll_ledger_slips_imported_total",
		Help: "number of payroll slips written by ledger imports",
	})

	_metricsUnmatchedNames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payroll_ledger_unmatched_names_total",
		Help: "number of ledger employee blocks that matched no roster entry",
	})

	_metricsFlaggedBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payroll_ledger_flagged_blocks_total",
		Help: "number of ledger employee blocks that failed the net pay checksum or were incomplete",
	})

	_metricsImportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payroll_ledger_import_seconds",
		Buckets: prometheus.ExponentialBucketsRange(0.001, 10.0, 16),
		Help:    "histogram of time spent importing one ledger",
	})

	_metricsComputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payroll_computations_total",
		Help: "number of payroll and severance computations by kind and outcome",
	}, []string{"kind", "outcome"})
)

// Import outcomes.
const (
	OutcomeOK               = "ok"
	OutcomeParseError       = "parse_error"
	OutcomeChecksumRejected = "checksum_rejected"
	OutcomeStoreError       = "store_error"
)

// ObserveImport records one finished ledger import.
func ObserveImport(outcome string, imported, unmatched, flagged int, took time.Duration) {
	_metricsLedgerImports.WithLabelValues(outcome).Inc()
	_metricsSlipsImported.Add(float64(imported))
	_metricsUnmatchedNames.Add(float64(unmatched))
	_metricsFlaggedBlocks.Add(float64(flagged))
	_metricsImportDuration.Observe(took.Seconds())
}

// ObserveComputation records one payroll ("payroll") or severance
// ("severance") computation.
func ObserveComputation(kind string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = "error"
	}
	_metricsComputations.WithLabelValues(kind, outcome).Inc()
}

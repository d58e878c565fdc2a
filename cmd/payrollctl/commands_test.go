package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/rates"
	"github.com/warp/payroll-engine/store/sqlite"
)

const ratesJSON = `{
	"employee": {"pension": 4.5, "health": 3.545, "long_term_care": 12.95, "employment": 0.9},
	"employer": {"pension": 4.5, "health": 3.545, "long_term_care": 12.95, "employment": 1.15},
	"pension_base_floor": 390000,
	"pension_base_ceiling": 6170000,
	"flat_withholding": 3.3
}`

const ledgerText = `2025년 3월 귀속 급여대장 지급일 2025년 4월 10일
1 홍길동 2,000,000 90,000 70,900 18,000 11,560 19,520 1,770 1,788,250
2 김철수 3,000,000 135,000 106,350 27,000 13,770 50,000 5,000 2,662,880
3 최영희 2,200,000 99,000 77,990 19,800 10,090 21,000 2,100 1,970,020`

func seededStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	values, err := factory.ParseRates(ratesJSON)
	require.NoError(t, err)
	_, err = rates.NewResolver(store).UpsertMonthly(ctx, generic.NewYearMonth(2025, time.January), values)
	require.NoError(t, err)

	for _, s := range []string{
		`{"id": "office-1", "workplace_id": "wp-office", "name": "홍길동", "hire_date": "2022-03-02",
		  "salary": {"pay_type": "monthly", "base_amount": 2000000}}`,
		`{"id": "office-2", "workplace_id": "wp-office", "name": "김철수", "hire_date": "2024-09-01",
		  "salary": {"pay_type": "monthly", "base_amount": 3000000}}`,
	} {
		emp, err := factory.ParseEmployee(s)
		require.NoError(t, err)
		require.NoError(t, store.SaveEmployee(ctx, emp))
	}
	return store
}

// run executes one payrollctl invocation against store.
func run(t *testing.T, store *sqlite.Store, stdin string, args ...string) (string, error) {
	t.Helper()
	cl := newCommandline()
	cl.store = store

	cmd := cl.root()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestImport_ThenListSlips(t *testing.T) {
	store := seededStore(t)

	// WHEN: Importing a ledger from stdin
	out, err := run(t, store, ledgerText, "import", "--workplace", "wp-office")
	require.NoError(t, err)

	// THEN: Matched names become slips, the stranger is listed
	assert.Contains(t, out, "period 2025-03, pay date 2025-04-10: 2 imported, 1 unmatched")
	assert.Contains(t, out, "최영희")

	out, err = run(t, store, "", "slips", "wp-office", "--period", "2025-03")
	require.NoError(t, err)
	assert.Contains(t, out, "1,788,250")
	assert.Contains(t, out, "2,662,880")
	assert.NotContains(t, out, "MISMATCH")
}

func TestImport_FromFile(t *testing.T) {
	store := seededStore(t)
	path := filepath.Join(t.TempDir(), "march.txt")
	require.NoError(t, os.WriteFile(path, []byte(ledgerText), 0o600))

	out, err := run(t, store, "", "import", "-w", "wp-office", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 imported")

	_, err = run(t, store, "", "import", path)
	assert.Error(t, err, "workplace is required")
}

func TestPayroll_PrintsBreakdown(t *testing.T) {
	store := seededStore(t)

	out, err := run(t, store, "", "payroll", "office-1", "--start", "2025-03-01", "--end", "2025-03-31")
	require.NoError(t, err)
	assert.Contains(t, out, "2,000,000")
	assert.Contains(t, out, "1,811,918")

	_, err = run(t, store, "", "payroll", "office-1", "--start", "2024-03-01", "--end", "2024-03-31")
	var noRate *generic.NoApplicableRateError
	assert.ErrorAs(t, err, &noRate)
}

func TestResolve_AndMigrate(t *testing.T) {
	store := seededStore(t)

	out, err := run(t, store, "", "resolve", "2025-03-15")
	require.NoError(t, err)
	assert.Contains(t, out, "effective from 2025-01-01 (monthly)")
	assert.Contains(t, out, "3.545")

	out, err = run(t, store, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrated 0, skipped 0")
}

func TestSeveranceAndLiability(t *testing.T) {
	store := seededStore(t)

	out, err := run(t, store, "", "severance", "office-2", "--as-of", "2025-04-01")
	require.NoError(t, err)
	assert.Contains(t, out, "not eligible")

	out, err = run(t, store, "", "severance", "office-1", "--as-of", "2025-04-01")
	require.NoError(t, err)
	assert.Contains(t, out, "severance pay")

	out, err = run(t, store, "", "liability", "wp-office", "--as-of", "2025-04-01")
	require.NoError(t, err)
	assert.Contains(t, out, "office-1")
	assert.Contains(t, out, "office-2")
	assert.Contains(t, out, "Total")
}

func TestPayslip_WritesPDF(t *testing.T) {
	store := seededStore(t)
	_, err := run(t, store, ledgerText, "import", "-w", "wp-office")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "slip.pdf")
	out, err := run(t, store, "", "payslip", "wp-office", "office-1", "2025-03", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))

	_, err = run(t, store, "", "payslip", "wp-office", "office-1", "2025-02", "-o", path)
	assert.True(t, generic.IsNotFound(err))
}

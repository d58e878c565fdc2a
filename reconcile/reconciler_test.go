package reconcile_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/generic/store"
	"github.com/warp/payroll-engine/reconcile"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const march2025 = `2025년 3월 귀속 급여대장 지급일 2025년 4월 10일
번호 성명 기본급 국민연금 건강보험 고용보험 장기요양 소득세 지방소득세 실지급액
1 홍길동 2,000,000 90,000 70,900 18,000 11,560 19,520 1,770 1,788,250
2 김철수 3,000,000 135,000 106,350 27,000 13,770 50,000 5,000 2,662,880
3 박민수 2,500,000 112,500 88,620 22,500 11,470 30,000 3,000 2,231,910`

var period = generic.NewYearMonth(2025, time.March)

func newTestReconciler(t *testing.T, names ...string) (*reconcile.Reconciler, *store.Memory) {
	m := store.NewMemory()
	ctx := context.Background()
	for i, name := range names {
		require.NoError(t, m.SaveEmployee(ctx, generic.Employee{
			ID:          generic.EmployeeID("emp-" + string(rune('a'+i))),
			WorkplaceID: "wp-1",
			Name:        name,
			HireDate:    generic.Date(2024, 1, 1),
			Salary:      generic.SalaryConfiguration{PayType: generic.PayMonthly, BaseAmount: generic.NewMoney(2000000)},
		}))
	}
	return reconcile.NewReconciler(m, m, reconcile.DefaultOptions(), zaptest.NewLogger(t)), m
}

func slipsFor(t *testing.T, m *store.Memory) []generic.PayrollSlip {
	slips, err := m.ListSlips(context.Background(), "wp-1", period)
	require.NoError(t, err)
	return slips
}

// =============================================================================
// IMPORT
// =============================================================================

func TestImportLedger_AllMatched(t *testing.T) {
	ctx := context.Background()
	r, m := newTestReconciler(t, "홍길동", "김철수", "박민수")

	res, err := r.ImportLedger(ctx, "wp-1", march2025)
	require.NoError(t, err)

	assert.Equal(t, period, res.Period)
	require.NotNil(t, res.PayDate)
	assert.Equal(t, generic.Date(2025, 4, 10), *res.PayDate)
	assert.Equal(t, 3, res.ImportedCount)
	assert.Empty(t, res.UnmatchedNames)
	assert.Empty(t, res.FlaggedNames)

	slip, err := m.GetSlip(ctx, "wp-1", "emp-a", period)
	require.NoError(t, err)
	assert.Equal(t, int64(2000000), slip.BasePay.Int64())
	assert.Equal(t, int64(211750), slip.TotalDeductions.Int64())
	assert.Equal(t, int64(1788250), slip.NetPay.Int64())
	assert.True(t, slip.ChecksumOK)
	assert.True(t, strings.HasPrefix(slip.RawText, "1 홍길동"))
}

func TestImportLedger_Idempotent(t *testing.T) {
	// GIVEN: the same ledger text
	// WHEN: imported twice
	// THEN: exactly one slip per employee and period, same slip id
	ctx := context.Background()
	r, m := newTestReconciler(t, "홍길동", "김철수", "박민수")

	_, err := r.ImportLedger(ctx, "wp-1", march2025)
	require.NoError(t, err)
	first := slipsFor(t, m)

	_, err = r.ImportLedger(ctx, "wp-1", march2025)
	require.NoError(t, err)
	second := slipsFor(t, m)

	require.Len(t, second, 3)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}

	runs, err := m.ListImportRuns(ctx, "wp-1")
	require.NoError(t, err)
	assert.Len(t, runs, 2, "every import is audited")
}

func TestImportLedger_ReimportReplacesValues(t *testing.T) {
	ctx := context.Background()
	r, m := newTestReconciler(t, "홍길동")

	_, err := r.ImportLedger(ctx, "wp-1", "2025년 3월 귀속 1 홍길동 2,000,000 90,000 70,900 18,000 11,560 19,520 1,770 1,788,250")
	require.NoError(t, err)
	_, err = r.ImportLedger(ctx, "wp-1", "2025년 3월 귀속 1 홍길동 2,100,000 94,500 74,440 18,900 9,640 21,000 2,100 1,879,420")
	require.NoError(t, err)

	slips := slipsFor(t, m)
	require.Len(t, slips, 1)
	assert.Equal(t, int64(2100000), slips[0].BasePay.Int64())
	assert.Equal(t, int64(1879420), slips[0].NetPay.Int64())
}

func TestImportLedger_UnmatchedNamesCounted(t *testing.T) {
	ctx := context.Background()
	r, m := newTestReconciler(t, "홍길동", "김철순")

	res, err := r.ImportLedger(ctx, "wp-1", march2025)
	require.NoError(t, err)

	assert.Equal(t, 1, res.ImportedCount)
	assert.Equal(t, []string{"김철수", "박민수"}, res.UnmatchedNames)
	assert.Equal(t, 3, res.ImportedCount+len(res.UnmatchedNames))
	assert.Equal(t, []string{"김철순"}, res.Suggestions["김철수"])
	assert.Empty(t, res.Suggestions["박민수"])
	assert.Len(t, slipsFor(t, m), 1, "matched slips are still written")
}

func TestImportLedger_AmbiguousNameUnmatched(t *testing.T) {
	ctx := context.Background()
	r, m := newTestReconciler(t, "홍길동", "홍길동", "김철수", "박민수")

	res, err := r.ImportLedger(ctx, "wp-1", march2025)
	require.NoError(t, err)

	assert.Equal(t, 2, res.ImportedCount)
	assert.Equal(t, []string{"홍길동"}, res.UnmatchedNames)
	assert.Len(t, slipsFor(t, m), 2)
}

func TestImportLedger_RepeatedNameUnmatchedAndFlagged(t *testing.T) {
	// GIVEN: a ledger listing 홍길동 twice
	// WHEN: importing it
	// THEN: the first block becomes the slip; the repeat is unmatched and flagged
	ctx := context.Background()
	r, m := newTestReconciler(t, "홍길동", "김철수")
	raw := `2025년 3월 귀속
1 홍길동 2,000,000 90,000 70,900 18,000 11,560 19,520 1,770 1,788,250
2 김철수 3,000,000 135,000 106,350 27,000 13,770 50,000 5,000 2,662,880
3 홍길동 2,100,000 90,000 70,900 18,000 11,560 19,520 1,770 1,888,250`

	res, err := r.ImportLedger(ctx, "wp-1", raw)
	require.NoError(t, err)

	assert.Equal(t, 2, res.ImportedCount)
	assert.Equal(t, []string{"홍길동"}, res.UnmatchedNames)
	assert.Equal(t, []string{"홍길동"}, res.FlaggedNames)
	assert.Equal(t, 3, res.ImportedCount+len(res.UnmatchedNames))
	assert.Len(t, slipsFor(t, m), res.ImportedCount)

	slip, err := m.GetSlip(ctx, "wp-1", "emp-a", period)
	require.NoError(t, err)
	assert.Equal(t, int64(2000000), slip.BasePay.Int64())
}

func TestImportLedger_OtherWorkplaceRosterIgnored(t *testing.T) {
	ctx := context.Background()
	r, m := newTestReconciler(t)
	require.NoError(t, m.SaveEmployee(ctx, generic.Employee{ID: "x", WorkplaceID: "wp-2", Name: "홍길동"}))

	res, err := r.ImportLedger(ctx, "wp-1", march2025)
	require.NoError(t, err)
	assert.Zero(t, res.ImportedCount)
	assert.Len(t, res.UnmatchedNames, 3)
}

// =============================================================================
// CHECKSUM
// =============================================================================

const mismatchLedger = `2025년 3월 귀속
1 홍길동 2,000,000 90,000 70,900 18,000 11,560 19,520 1,770 1,788,250
2 김철수 3,000,000 135,000 106,350 27,000 13,770 50,000 5,000 2,600,000`

func TestImportLedger_ChecksumMismatchFlagged(t *testing.T) {
	ctx := context.Background()
	r, m := newTestReconciler(t, "홍길동", "김철수")

	res, err := r.ImportLedger(ctx, "wp-1", mismatchLedger)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ImportedCount)
	assert.Equal(t, []string{"김철수"}, res.FlaggedNames)

	slip, err := m.GetSlip(ctx, "wp-1", "emp-b", period)
	require.NoError(t, err)
	assert.False(t, slip.ChecksumOK)
}

func TestImportLedger_StrictChecksumRejectsWholeImport(t *testing.T) {
	ctx := context.Background()
	r, m := newTestReconciler(t, "홍길동", "김철수")
	r.Options.RejectChecksumMismatch = true

	_, err := r.ImportLedger(ctx, "wp-1", mismatchLedger)
	var parseErr *generic.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, []string{"김철수"}, parseErr.Details)

	assert.Empty(t, slipsFor(t, m), "nothing written")
	runs, _ := m.ListImportRuns(ctx, "wp-1")
	assert.Empty(t, runs)
}

func TestImportLedger_StrictIgnoresUnmatchedMismatch(t *testing.T) {
	// a failing block that matches nobody cannot block the import
	ctx := context.Background()
	r, _ := newTestReconciler(t, "홍길동")
	r.Options.RejectChecksumMismatch = true

	res, err := r.ImportLedger(ctx, "wp-1", mismatchLedger)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportedCount)
}

// =============================================================================
// FAILURES
// =============================================================================

func TestImportLedger_ParseErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	r, m := newTestReconciler(t, "홍길동")

	_, err := r.ImportLedger(ctx, "wp-1", "1 홍길동 2,000,000 90,000")
	assert.ErrorIs(t, err, generic.ErrParse)
	runs, _ := m.ListImportRuns(ctx, "wp-1")
	assert.Empty(t, runs)
}

// failingSlips fails the upsert for one employee inside the transaction.
type failingSlips struct {
	*store.Memory
	failOn generic.EmployeeID
}

type failingView struct {
	generic.SlipStore
	failOn generic.EmployeeID
}

var errDisk = errors.New("disk full")

func (f *failingSlips) WithTx(ctx context.Context, fn func(generic.SlipStore) error) error {
	return f.Memory.WithTx(ctx, func(tx generic.SlipStore) error {
		return fn(&failingView{SlipStore: tx, failOn: f.failOn})
	})
}

func (v *failingView) UpsertSlip(ctx context.Context, slip generic.PayrollSlip) error {
	if slip.EmployeeID == v.failOn {
		return errDisk
	}
	return v.SlipStore.UpsertSlip(ctx, slip)
}

func TestImportLedger_StoreFailureRollsBackAll(t *testing.T) {
	ctx := context.Background()
	_, m := newTestReconciler(t, "홍길동", "김철수", "박민수")
	r := reconcile.NewReconciler(m, &failingSlips{Memory: m, failOn: "emp-b"}, reconcile.DefaultOptions(), nil)

	_, err := r.ImportLedger(ctx, "wp-1", march2025)
	assert.ErrorIs(t, err, errDisk)
	assert.Empty(t, slipsFor(t, m), "first slip rolled back")
}

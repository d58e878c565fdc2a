package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// PERIOD TESTS
// =============================================================================

func TestPeriod_LengthAndWeeks(t *testing.T) {
	p := generic.Period{Start: generic.Date(2025, time.March, 3), End: generic.Date(2025, time.March, 9)}
	assert.Equal(t, 7, p.LengthDays())
	assert.Equal(t, 1, p.Weeks())

	p.End = generic.Date(2025, time.March, 10)
	assert.Equal(t, 8, p.LengthDays())
	assert.Equal(t, 2, p.Weeks(), "partial trailing week counts")
}

func TestPeriod_Validate(t *testing.T) {
	_, err := generic.NewPeriod(time.Time{}, generic.Date(2025, 1, 31))
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = generic.NewPeriod(generic.Date(2025, 2, 1), generic.Date(2025, 1, 31))
	var vErr *generic.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "period", vErr.Field)

	p, err := generic.NewPeriod(generic.Date(2025, 1, 1), generic.Date(2025, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, p.LengthDays())
}

func TestPeriod_CalendarMonths_IgnoresDays(t *testing.T) {
	// GIVEN: Jan 31 to Feb 1 (two days)
	// THEN: the calendar-naive count is two months
	p := generic.Period{Start: generic.Date(2025, 1, 31), End: generic.Date(2025, 2, 1)}
	assert.Equal(t, 2, p.CalendarMonths())

	p = generic.Period{Start: generic.Date(2024, 11, 1), End: generic.Date(2025, 2, 28)}
	assert.Equal(t, 4, p.CalendarMonths())
}

func TestPeriod_ProratedMonths(t *testing.T) {
	whole := generic.NewYearMonth(2025, time.March).Period()
	assert.True(t, whole.ProratedMonths().Equal(decimal.NewFromInt(1)))

	// Jan 16..31 is 16 of 31 days
	half := generic.Period{Start: generic.Date(2025, 1, 16), End: generic.Date(2025, 1, 31)}
	expected := decimal.NewFromInt(16).Div(decimal.NewFromInt(31))
	assert.True(t, half.ProratedMonths().Equal(expected), "got %s", half.ProratedMonths())

	// Jan 31..Feb 1: 1/31 + 1/28
	edge := generic.Period{Start: generic.Date(2025, 1, 31), End: generic.Date(2025, 2, 1)}
	assert.True(t, edge.ProratedMonths().LessThan(decimal.NewFromInt(1)))
}

func TestLastMonths(t *testing.T) {
	w := generic.LastMonths(generic.Date(2025, time.April, 10), 3)
	assert.Equal(t, generic.Date(2025, time.January, 1), w.Start)
	assert.Equal(t, generic.Date(2025, time.March, 31), w.End)

	w = generic.LastMonths(generic.Date(2025, time.February, 1), 3)
	assert.Equal(t, generic.Date(2024, time.November, 1), w.Start)
	assert.Equal(t, generic.Date(2025, time.January, 31), w.End)
}

// =============================================================================
// YEAR-MONTH TESTS
// =============================================================================

func TestParseYearMonth(t *testing.T) {
	for _, in := range []string{"2024-03", "2024.03", "2024/3", "202403"} {
		ym, err := generic.ParseYearMonth(in)
		require.NoError(t, err, in)
		assert.Equal(t, generic.NewYearMonth(2024, time.March), ym, in)
	}

	for _, in := range []string{"2024-13", "2024-00", "0999-01", "march", ""} {
		_, err := generic.ParseYearMonth(in)
		assert.ErrorIs(t, err, generic.ErrValidation, in)
	}
}

func TestYearMonth_Arithmetic(t *testing.T) {
	ym := generic.NewYearMonth(2024, time.December)
	assert.Equal(t, generic.NewYearMonth(2025, time.January), ym.AddMonths(1))
	assert.Equal(t, generic.Date(2024, time.December, 31), ym.LastDay())
	assert.True(t, ym.Before(ym.AddMonths(1)))
	assert.Equal(t, "2024-12", ym.String())
	assert.Equal(t, 29, generic.DaysInMonth(2024, time.February))
}

func TestYearMonth_JSON(t *testing.T) {
	var v struct {
		Period generic.YearMonth `json:"period"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"period":"2025-03"}`), &v))
	assert.Equal(t, generic.NewYearMonth(2025, time.March), v.Period)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"period":"2025-03"}`, string(out))
}

// =============================================================================
// MONEY & DEDUCTIONS
// =============================================================================

func TestParseMoney_Grouped(t *testing.T) {
	m, err := generic.ParseMoney("2,000,000")
	require.NoError(t, err)
	assert.Equal(t, int64(2000000), m.Int64())

	_, err = generic.ParseMoney("two")
	assert.Error(t, err)
}

func TestMoney_RoundHalfAwayFromZero(t *testing.T) {
	m := generic.MoneyFromDecimal(decimal.RequireFromString("1234.5"))
	assert.Equal(t, int64(1235), m.Round().Int64())
	assert.Equal(t, int64(-1235), m.Neg().Round().Int64())
}

func TestDeductionsFromSlice_MissingSlotsZero(t *testing.T) {
	d := generic.DeductionsFromSlice([]generic.Money{generic.NewMoney(90000), generic.NewMoney(70900)})
	assert.Equal(t, int64(70900), d.HealthInsurance.Int64())
	assert.True(t, d.LocalIncomeTax.IsZero())
	assert.Equal(t, int64(160900), d.Total().Int64())
	assert.Len(t, d.Values(), generic.DeductionCount)
}

// =============================================================================
// CONFIGURATION VALIDATION
// =============================================================================

func TestSalaryConfiguration_Validate(t *testing.T) {
	cfg := generic.SalaryConfiguration{PayType: generic.PayHourly, BaseAmount: generic.NewMoney(10000)}
	assert.NoError(t, cfg.Validate())

	cfg.PayType = "weekly"
	assert.ErrorIs(t, cfg.Validate(), generic.ErrValidation)

	cfg.PayType = generic.PayMonthly
	cfg.RestDayPolicy = "sometimes"
	assert.ErrorIs(t, cfg.Validate(), generic.ErrValidation)
}

func TestRateValues_Validate(t *testing.T) {
	v := generic.RateValues{
		Employee: generic.InsuranceRates{Pension: decimal.RequireFromString("4.5")},
	}
	assert.NoError(t, v.Validate())

	v.Employee.Health = decimal.NewFromInt(100)
	assert.ErrorIs(t, v.Validate(), generic.ErrValidation)

	v.Employee.Health = decimal.Zero
	v.PensionBaseFloor = generic.NewMoney(400000)
	v.PensionBaseCeiling = generic.NewMoney(300000)
	assert.ErrorIs(t, v.Validate(), generic.ErrValidation)
}

func TestLegacyRateSet_Covers(t *testing.T) {
	l := generic.LegacyRateSet{
		Year:          2023,
		EffectiveFrom: generic.Date(2023, 1, 1),
		EffectiveTo:   generic.Date(2023, 6, 30),
	}
	assert.True(t, l.Covers(generic.Date(2023, 6, 30)))
	assert.False(t, l.Covers(generic.Date(2023, 7, 1)))
	assert.False(t, l.Covers(generic.Date(2022, 12, 31)))

	l.EffectiveTo = time.Time{}
	assert.True(t, l.Covers(generic.Date(2030, 1, 1)))
}

func TestErrors_Classification(t *testing.T) {
	assert.True(t, generic.IsClientError(generic.NewParseError("no period marker")))
	assert.True(t, generic.IsNotFound(&generic.NoApplicableRateError{Date: generic.Date(2020, 1, 1)}))
	assert.True(t, generic.IsConflict(generic.NewConflictError("legacy_rate", "2024/2024-01-01")))
	assert.False(t, generic.IsClientError(generic.NewNotFoundError("employee", "x")))
}

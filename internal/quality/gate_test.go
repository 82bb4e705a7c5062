package quality

import (
	"log/slog"
	"testing"
	"time"

	"github.com/leapstack-labs/salesload/internal/source"
	"github.com/leapstack-labs/salesload/internal/testutil"
	"github.com/leapstack-labs/salesload/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
}

func row(overrides map[string]string) map[string]string {
	r := map[string]string{
		core.ColTimestamp:   "2023-01-05 10:30:00",
		core.ColQuantity:    "2",
		core.ColCompany:     "Allianz",
		core.ColProduct:     "Auto|Collision",
		core.ColPremium:     "120.50",
		core.ColPersonalID:  "p1",
		core.ColName:        "John//Doe",
		core.ColCountry:     "Spain",
		core.ColYearOfBirth: "1980",
		core.ColIncomeRange: "High",
	}
	for k, v := range overrides {
		r[k] = v
	}
	return r
}

func batchOf(rows ...map[string]string) *source.Batch {
	return &source.Batch{Columns: core.RequiredColumns, Rows: rows}
}

func newGate(t *testing.T) *Gate {
	return New(Config{Now: fixedNow, Logger: testutil.NewTestLogger(t)})
}

func TestGate_Normalizes(t *testing.T) {
	out, report, err := newGate(t).Apply(batchOf(row(nil)))
	require.NoError(t, err)
	require.Len(t, out, 1)

	rec := out[0]
	assert.Equal(t, "P1", rec.PersonalID)
	assert.Equal(t, "JOHN//DOE", rec.Name)
	assert.Equal(t, "SPAIN", rec.Country)
	assert.Equal(t, "ALLIANZ", rec.Company)
	assert.Equal(t, "AUTO|COLLISION", rec.Product)
	assert.Equal(t, "HIGH", rec.IncomeRange)
	assert.Equal(t, 1980, rec.Year())
	assert.Equal(t, int64(2), rec.Quantity)
	assert.Equal(t, "120.5", core.CanonicalDecimal(&rec.Premium))
	assert.Equal(t, time.Date(2023, 1, 5, 10, 30, 0, 0, time.UTC), rec.Timestamp)

	assert.Equal(t, 1, report.RowsIn)
	assert.Equal(t, 1, report.RowsOut)
	assert.Zero(t, report.DroppedTotal())
}

func TestGate_Filters(t *testing.T) {
	tests := []struct {
		name   string
		row    map[string]string
		reason Reason
	}{
		{name: "too young", row: row(map[string]string{core.ColYearOfBirth: "2010"}), reason: ReasonAgeOutOfRange},
		{name: "too old", row: row(map[string]string{core.ColYearOfBirth: "1900"}), reason: ReasonAgeOutOfRange},
		{name: "negative premium", row: row(map[string]string{core.ColPremium: "-5"}), reason: ReasonNegativePremium},
		{name: "missing premium", row: row(map[string]string{core.ColPremium: ""}), reason: ReasonMissingValue},
		{name: "bad quantity", row: row(map[string]string{core.ColQuantity: "two"}), reason: ReasonUnparseable},
		{name: "bad timestamp", row: row(map[string]string{core.ColTimestamp: "yesterday"}), reason: ReasonUnparseable},
		{name: "bad premium", row: row(map[string]string{core.ColPremium: "NaN"}), reason: ReasonUnparseable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, capture := testutil.NewCaptureLogger()
			gate := New(Config{Now: fixedNow, Logger: logger})

			out, report, err := gate.Apply(batchOf(row(nil), tt.row))
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, 1, report.Dropped[tt.reason])

			entry, ok := capture.Find("dropped rows")
			require.True(t, ok, "dropped rows must be logged")
			assert.Equal(t, slog.LevelWarn, entry.Level)
			assert.Equal(t, string(tt.reason), entry.Attrs["reason"].String())
		})
	}
}

func TestGate_AgeBoundsInclusive(t *testing.T) {
	out, report, err := newGate(t).Apply(batchOf(
		row(map[string]string{core.ColYearOfBirth: "2007"}), // 17
		row(map[string]string{core.ColYearOfBirth: "1924"}), // 100
		row(map[string]string{core.ColYearOfBirth: "2008"}), // 16
		row(map[string]string{core.ColYearOfBirth: "1923"}), // 101
	))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 2007, out[0].Year())
	assert.Equal(t, 1924, out[1].Year())
	assert.Equal(t, 2, report.Dropped[ReasonAgeOutOfRange])
}

func TestGate_FillsMissing(t *testing.T) {
	logger, capture := testutil.NewCaptureLogger()
	gate := New(Config{Now: fixedNow, Logger: logger, DefaultIncomeRange: "Unknown"})

	out, report, err := gate.Apply(batchOf(
		row(map[string]string{core.ColYearOfBirth: "1980"}),
		row(map[string]string{core.ColYearOfBirth: "1991.0"}),
		row(map[string]string{core.ColYearOfBirth: "", core.ColIncomeRange: ""}),
	))
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, 1991, out[1].Year())
	assert.Equal(t, 1986, out[2].Year(), "mean of 1980 and 1991 rounds to 1986")
	assert.Equal(t, "UNKNOWN", out[2].IncomeRange)
	assert.Equal(t, 1, report.FilledYear)
	assert.Equal(t, 1, report.FilledIncome)

	_, ok := capture.Find("Missing values found in the data.")
	assert.True(t, ok)
}

func TestGate_DefaultIncomeRange(t *testing.T) {
	out, _, err := newGate(t).Apply(batchOf(row(map[string]string{core.ColIncomeRange: ""})))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, DefaultIncomeRange, out[0].IncomeRange)
}

func TestGate_NoKnownYear(t *testing.T) {
	out, report, err := newGate(t).Apply(batchOf(
		row(map[string]string{core.ColYearOfBirth: ""}),
		row(map[string]string{core.ColYearOfBirth: ""}),
	))
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 2, report.Dropped[ReasonMissingYear])
}

func TestGate_SchemaError(t *testing.T) {
	batch := &source.Batch{Columns: []string{core.ColPersonalID, core.ColName}}

	_, _, err := newGate(t).Apply(batch)
	var schemaErr *core.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Missing, core.ColPremium)
}

func TestGate_Invariants(t *testing.T) {
	rows := []map[string]string{
		row(nil),
		row(map[string]string{core.ColYearOfBirth: "1850"}),
		row(map[string]string{core.ColPremium: "-0.01"}),
		row(map[string]string{core.ColPremium: "0"}),
		row(map[string]string{core.ColYearOfBirth: "2020"}),
	}
	out, report, err := newGate(t).Apply(batchOf(rows...))
	require.NoError(t, err)

	for _, rec := range out {
		age := fixedNow().Year() - rec.Year()
		assert.GreaterOrEqual(t, age, MinAge)
		assert.LessOrEqual(t, age, MaxAge)
		assert.GreaterOrEqual(t, rec.Premium.Sign(), 0)
	}
	assert.Equal(t, report.RowsIn, report.RowsOut+report.DroppedTotal())
}

func TestGate_KeepsSourceRowNumbers(t *testing.T) {
	batch := batchOf(row(nil), row(map[string]string{core.ColPremium: "-1"}), row(nil))
	batch.Offset = 100

	out, _, err := newGate(t).Apply(batch)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 101, out[0].Row)
	assert.Equal(t, 103, out[1].Row)
}

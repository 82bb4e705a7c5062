// Package quality normalizes and filters source batches before they reach
// the dimension extractor.
package quality

import (
	"log/slog"
	"math"
	"time"

	"github.com/leapstack-labs/salesload/internal/source"
	"github.com/leapstack-labs/salesload/pkg/core"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Defaults for the gate's thresholds.
const (
	DefaultIncomeRange = "MIDDLE EARNER"
	MinAge             = 17
	MaxAge             = 100
)

// Reason identifies why a row was dropped.
type Reason string

// Drop reasons.
const (
	ReasonUnparseable     Reason = "unparseable"
	ReasonMissingValue    Reason = "missing_value"
	ReasonMissingYear     Reason = "missing_year_of_birth"
	ReasonAgeOutOfRange   Reason = "age_out_of_range"
	ReasonNegativePremium Reason = "negative_premium"
)

// mandatory columns cannot be defaulted; a row without one of them is dropped.
var mandatory = []string{
	core.ColPersonalID,
	core.ColCompany,
	core.ColProduct,
	core.ColPremium,
	core.ColQuantity,
	core.ColTimestamp,
}

// Config configures a Gate.
type Config struct {
	// DefaultIncomeRange replaces a missing income_range.
	DefaultIncomeRange string
	// Now supplies the current year for the age check. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Report summarizes what the gate did to one batch.
type Report struct {
	Batch        int
	RowsIn       int
	RowsOut      int
	FilledYear   int
	FilledIncome int
	Dropped      map[Reason]int
}

// DroppedTotal returns the number of rows removed from the batch.
func (r *Report) DroppedTotal() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

// Gate is the data-quality stage. It is not safe for concurrent use.
type Gate struct {
	incomeDefault string
	now           func() time.Time
	logger        *slog.Logger
	upper         cases.Caser
}

// New creates a Gate.
func New(cfg Config) *Gate {
	g := &Gate{
		incomeDefault: cfg.DefaultIncomeRange,
		now:           cfg.Now,
		logger:        cfg.Logger,
		upper:         cases.Upper(language.Und),
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.logger == nil {
		g.logger = slog.New(slog.DiscardHandler)
	}
	if g.incomeDefault == "" {
		g.incomeDefault = DefaultIncomeRange
	}
	g.incomeDefault = g.upper.String(g.incomeDefault)
	return g
}

// candidate is a decoded row still carrying its source row number.
type candidate struct {
	row int
	rec core.RawRecord
}

// Apply normalizes and filters a batch. The only error it returns is a
// *core.SchemaError for a batch missing required columns; data-quality
// problems are logged and counted in the Report.
func (g *Gate) Apply(batch *source.Batch) ([]core.RawRecord, *Report, error) {
	if err := core.CheckColumns(batch.Columns); err != nil {
		return nil, nil, err
	}

	report := &Report{Batch: batch.Index, RowsIn: len(batch.Rows), Dropped: map[Reason]int{}}
	dropped := map[Reason][]int{}
	drop := func(reason Reason, row int) {
		report.Dropped[reason]++
		dropped[reason] = append(dropped[reason], row)
	}

	candidates := make([]candidate, 0, len(batch.Rows))
	for i, raw := range batch.Rows {
		rowNum := batch.Offset + i + 1
		row := make(map[string]string, len(raw))
		for k, v := range raw {
			row[k] = g.upper.String(v)
		}

		if missingMandatory(row) {
			drop(ReasonMissingValue, rowNum)
			continue
		}
		rec, err := decodeRecord(row)
		if err != nil {
			g.logger.Debug("row could not be decoded", slog.Int("row", rowNum), slog.String("error", err.Error()))
			drop(ReasonUnparseable, rowNum)
			continue
		}
		candidates = append(candidates, candidate{row: rowNum, rec: rec})
	}

	g.fillMissing(candidates, report)

	year := g.now().Year()
	out := make([]core.RawRecord, 0, len(candidates))
	for _, c := range candidates {
		rec := c.rec
		rec.Row = c.row
		switch {
		case rec.YearOfBirth == nil:
			drop(ReasonMissingYear, c.row)
		case year-*rec.YearOfBirth < MinAge || year-*rec.YearOfBirth > MaxAge:
			drop(ReasonAgeOutOfRange, c.row)
		case rec.Premium.Sign() < 0:
			drop(ReasonNegativePremium, c.row)
		default:
			out = append(out, rec)
		}
	}
	report.RowsOut = len(out)

	for _, reason := range []Reason{ReasonMissingValue, ReasonUnparseable, ReasonMissingYear, ReasonAgeOutOfRange, ReasonNegativePremium} {
		if rows := dropped[reason]; len(rows) > 0 {
			g.logger.Warn("dropped rows",
				slog.Int("batch", batch.Index),
				slog.String("reason", string(reason)),
				slog.Int("count", len(rows)),
				slog.Any("rows", rows))
		}
	}
	return out, report, nil
}

// fillMissing replaces missing year_of_birth with the rounded batch mean
// and missing income_range with the configured default.
func (g *Gate) fillMissing(candidates []candidate, report *Report) {
	var sum, known int
	for _, c := range candidates {
		if c.rec.YearOfBirth != nil {
			sum += *c.rec.YearOfBirth
			known++
		}
	}

	for i := range candidates {
		rec := &candidates[i].rec
		if rec.YearOfBirth == nil && known > 0 {
			mean := int(math.Round(float64(sum) / float64(known)))
			rec.YearOfBirth = &mean
			report.FilledYear++
		}
		if rec.IncomeRange == "" {
			rec.IncomeRange = g.incomeDefault
			report.FilledIncome++
		}
	}

	if report.FilledYear > 0 || report.FilledIncome > 0 {
		g.logger.Warn("Missing values found in the data.",
			slog.Int("batch", report.Batch),
			slog.Int("year_of_birth_filled", report.FilledYear),
			slog.Int("income_range_filled", report.FilledIncome))
	}
}

func missingMandatory(row map[string]string) bool {
	for _, col := range mandatory {
		if row[col] == "" {
			return true
		}
	}
	return false
}

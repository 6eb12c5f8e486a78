package aggregate

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/farxc/vintage-cohorts/internal/logger"
	"github.com/farxc/vintage-cohorts/internal/vintage"
)

func mustMonth(t *testing.T, s string) vintage.Month {
	t.Helper()
	m, err := vintage.ParseMonth(s)
	if err != nil {
		t.Fatalf("failed to parse month %q: %v", s, err)
	}
	return m
}

type recordOpt func(*vintage.LoanRecord)

func withAttr(name, value string) recordOpt {
	return func(r *vintage.LoanRecord) { r.Attributes[name] = value }
}

func newRecord(t *testing.T, loan, cohort string, age int, disbursed, exposure float64, days int, opts ...recordOpt) vintage.LoanRecord {
	t.Helper()
	r := vintage.LoanRecord{
		CustomerID:          loan,
		LoanKey:             loan,
		DisbursedAmount:     disbursed,
		OutstandingExposure: exposure,
		DaysOverdue:         days,
		Attributes:          map[string]string{},
		Cohort:              mustMonth(t, cohort),
		AgeInMonths:         age,
		HasCohort:           true,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// scenarioA is three loans of the 2024-01 cohort observed at 2024-03, one of them 45 days
// overdue with 90 outstanding.
func scenarioA(t *testing.T) []vintage.LoanRecord {
	return []vintage.LoanRecord{
		newRecord(t, "L1", "2024-01", 2, 100, 90, 45, withAttr(vintage.AttrAdviser, "ana")),
		newRecord(t, "L2", "2024-01", 2, 100, 80, 0, withAttr(vintage.AttrAdviser, "ana")),
		newRecord(t, "L3", "2024-01", 2, 100, 70, 5, withAttr(vintage.AttrAdviser, "bob")),
	}
}

func newAggregator() *Aggregator {
	return New(nil, logger.Discard())
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeScenarios(t *testing.T) {
	jan := mustMonth(t, "2024-01")

	t.Run("delinquent exposure over cohort principal", func(t *testing.T) {
		report, err := newAggregator().Compute(scenarioA(t), Params{ThresholdDays: 30})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !reflect.DeepEqual(report.Matrix.Cohorts, []vintage.Month{jan}) {
			t.Fatalf("expected cohorts [2024-01], got %v", report.Matrix.Cohorts)
		}
		if !reflect.DeepEqual(report.Matrix.Ages, []int{2}) {
			t.Fatalf("expected ages [2], got %v", report.Matrix.Ages)
		}

		cell, ok := report.Matrix.Cell(jan, 2)
		if !ok || cell.Ratio == nil {
			t.Fatalf("expected a ratio at (2024-01, 2), got %+v", cell)
		}
		if !almostEqual(*cell.Ratio, 0.30) {
			t.Fatalf("expected ratio 0.30, got %v", *cell.Ratio)
		}
		if report.Rows != 3 || report.DelinquentRows != 1 {
			t.Fatalf("expected 3 rows and 1 delinquent row, got %d and %d", report.Rows, report.DelinquentRows)
		}
	})

	t.Run("threshold above every overdue count gives no result", func(t *testing.T) {
		report, err := newAggregator().Compute(scenarioA(t), Params{ThresholdDays: 60})
		if !errors.Is(err, vintage.ErrEmptyResult) {
			t.Fatalf("expected ErrEmptyResult, got %v", err)
		}
		if report != nil {
			t.Fatalf("expected no report, got %+v", report)
		}
	})

	t.Run("records without a cohort stay out of the denominator", func(t *testing.T) {
		records := scenarioA(t)
		orphan := newRecord(t, "L4", "2024-01", 2, 1000, 1000, 90)
		orphan.HasCohort = false
		orphan.Cohort = vintage.Month{}
		records = append(records, orphan)

		report, err := newAggregator().Compute(records, Params{ThresholdDays: 30})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		cell, _ := report.Matrix.Cell(jan, 2)
		if cell.Ratio == nil || !almostEqual(*cell.Ratio, 0.30) {
			t.Fatalf("expected ratio 0.30, got %+v", cell)
		}
		if report.Rows != 3 {
			t.Fatalf("expected 3 rows, got %d", report.Rows)
		}
	})

	t.Run("a cohort emptied by filters has no row", func(t *testing.T) {
		records := append(scenarioA(t),
			newRecord(t, "M1", "2024-02", 1, 200, 150, 100, withAttr(vintage.AttrAdviser, "carl")),
		)

		report, err := newAggregator().Compute(records, Params{
			ThresholdDays: 30,
			Filters:       vintage.Filters{vintage.AttrAdviser: {"ana"}},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !reflect.DeepEqual(report.Matrix.Cohorts, []vintage.Month{jan}) {
			t.Fatalf("expected only cohort 2024-01, got %v", report.Matrix.Cohorts)
		}

		// Denominator is the principal of the two "ana" loans.
		cell, _ := report.Matrix.Cell(jan, 2)
		if cell.Ratio == nil || !almostEqual(*cell.Ratio, 90.0/200.0) {
			t.Fatalf("expected ratio 0.45, got %+v", cell)
		}
	})
}

func TestComputeRejectsInvalidParams(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr error
	}{
		{"zero threshold", Params{ThresholdDays: 0}, vintage.ErrInvalidThreshold},
		{"negative threshold", Params{ThresholdDays: -30}, vintage.ErrInvalidThreshold},
		{"unknown attribute", Params{ThresholdDays: 30, Filters: vintage.Filters{"colour": {"red"}}}, vintage.ErrUnknownAttribute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newAggregator().Compute(scenarioA(t), tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestComputeAcceptsAnyPositiveThreshold(t *testing.T) {
	report, err := newAggregator().Compute(scenarioA(t), Params{ThresholdDays: 44})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.ThresholdDays != 44 {
		t.Fatalf("expected threshold 44 in report, got %d", report.ThresholdDays)
	}
}

func TestComputeEmptyInput(t *testing.T) {
	_, err := newAggregator().Compute(nil, Params{ThresholdDays: 30})
	if !errors.Is(err, vintage.ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
}

func TestComputeAcceptAllTokens(t *testing.T) {
	tokens := [][]string{nil, {}, {"Todos"}, {"all"}, {"*"}, {"ana", "ALL"}}

	want, err := newAggregator().Compute(scenarioA(t), Params{ThresholdDays: 30})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for _, values := range tokens {
		got, err := newAggregator().Compute(scenarioA(t), Params{
			ThresholdDays: 30,
			Filters:       vintage.Filters{vintage.AttrAdviser: values},
		})
		if err != nil {
			t.Fatalf("values %v: expected no error, got %v", values, err)
		}
		if got.Rows != want.Rows {
			t.Fatalf("values %v: expected %d rows, got %d", values, want.Rows, got.Rows)
		}
	}
}

func TestDenominatorModes(t *testing.T) {
	jan := mustMonth(t, "2024-01")
	// One loan observed in three months plus one loan observed once; only the first is
	// delinquent, at age 2.
	records := []vintage.LoanRecord{
		newRecord(t, "L1", "2024-01", 0, 100, 100, 0),
		newRecord(t, "L1", "2024-01", 1, 100, 90, 10),
		newRecord(t, "L1", "2024-01", 2, 100, 80, 40),
		newRecord(t, "L2", "2024-01", 0, 300, 300, 0),
	}

	tests := []struct {
		name      string
		mode      DenominatorMode
		wantRatio float64
		wantCount int
	}{
		{"per row counts each snapshot", DenominatorPerRow, 80.0 / 600.0, 4},
		{"per loan counts each loan once", DenominatorPerLoan, 80.0 / 400.0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := newAggregator().Compute(records, Params{ThresholdDays: 30, Denominator: tt.mode})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			cell, _ := report.Matrix.Cell(jan, 2)
			if cell.Ratio == nil || !almostEqual(*cell.Ratio, tt.wantRatio) {
				t.Fatalf("expected ratio %v, got %+v", tt.wantRatio, cell)
			}
			if len(report.Totals) != 1 || report.Totals[0].Loans != 2 || report.Totals[0].Rows != 4 {
				t.Fatalf("expected totals with 2 loans over 4 rows, got %+v", report.Totals)
			}
			for _, agg := range report.Aggregates {
				if agg.CountDisbursed != tt.wantCount {
					t.Fatalf("expected disbursed count %d, got %d", tt.wantCount, agg.CountDisbursed)
				}
			}
		})
	}
}

func TestNumeratorBasisDisbursed(t *testing.T) {
	jan := mustMonth(t, "2024-01")
	report, err := newAggregator().Compute(scenarioA(t), Params{ThresholdDays: 30, Numerator: NumeratorDisbursed})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	cell, _ := report.Matrix.Cell(jan, 2)
	if cell.Ratio == nil || !almostEqual(*cell.Ratio, 100.0/300.0) {
		t.Fatalf("expected ratio 1/3, got %+v", cell)
	}
	if report.Numerator != "disbursed" {
		t.Fatalf("expected numerator name disbursed, got %q", report.Numerator)
	}
}

func TestMatrixCellsWithoutDelinquency(t *testing.T) {
	jan := mustMonth(t, "2024-01")
	records := []vintage.LoanRecord{
		newRecord(t, "L1", "2024-01", 1, 100, 100, 0),
		newRecord(t, "L1", "2024-01", 3, 100, 100, 60),
		newRecord(t, "L2", "2024-01", 1, 100, 100, 0),
		newRecord(t, "L2", "2024-01", 2, 100, 100, 0),
		newRecord(t, "L2", "2024-01", 3, 100, 100, 90),
	}

	report, err := newAggregator().Compute(records, Params{ThresholdDays: 30})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Only ages with a delinquent cell become columns.
	if !reflect.DeepEqual(report.Matrix.Ages, []int{3}) {
		t.Fatalf("expected ages [3], got %v", report.Matrix.Ages)
	}

	// Age 1 was observed but clean: a real zero, not missing data.
	var ageOne *CohortAggregate
	for i := range report.Aggregates {
		if report.Aggregates[i].AgeInMonths == 1 {
			ageOne = &report.Aggregates[i]
		}
	}
	if ageOne == nil {
		t.Fatalf("expected an aggregate row for age 1")
	}
	if ageOne.Ratio != nil || !ageOne.HasData {
		t.Fatalf("expected null ratio with data at age 1, got %+v", ageOne)
	}
	v, ok := Cell{Ratio: ageOne.Ratio, HasData: ageOne.HasData}.Value()
	if !ok || v != 0 {
		t.Fatalf("expected value 0 with data, got %v %v", v, ok)
	}

	if _, ok := report.Matrix.Cell(jan, 1); ok {
		t.Fatalf("expected no column for age 1")
	}
}

func TestZeroDenominatorCohortIsOmitted(t *testing.T) {
	records := append(scenarioA(t),
		newRecord(t, "Z1", "2023-12", 3, 0, 50, 90),
	)

	report, err := newAggregator().Compute(records, Params{ThresholdDays: 30})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, c := range report.Matrix.Cohorts {
		if c == mustMonth(t, "2023-12") {
			t.Fatalf("expected cohort 2023-12 without principal to be omitted")
		}
	}
	for _, agg := range report.Aggregates {
		if agg.Cohort == mustMonth(t, "2023-12") && (agg.Ratio != nil || agg.HasData) {
			t.Fatalf("expected null ratio without data for zero denominator, got %+v", agg)
		}
	}
}

func TestComputeProperties(t *testing.T) {
	records := []vintage.LoanRecord{
		newRecord(t, "A1", "2023-11", 0, 500, 500, 0, withAttr(vintage.AttrAdviser, "ana"), withAttr(vintage.AttrMotive, "car")),
		newRecord(t, "A1", "2023-11", 1, 500, 450, 35, withAttr(vintage.AttrAdviser, "ana"), withAttr(vintage.AttrMotive, "car")),
		newRecord(t, "A1", "2023-11", 2, 500, 420, 65, withAttr(vintage.AttrAdviser, "ana"), withAttr(vintage.AttrMotive, "car")),
		newRecord(t, "B1", "2023-11", 0, 300, 300, 0, withAttr(vintage.AttrAdviser, "bob"), withAttr(vintage.AttrMotive, "home")),
		newRecord(t, "B1", "2023-11", 1, 300, 290, 95, withAttr(vintage.AttrAdviser, "bob"), withAttr(vintage.AttrMotive, "home")),
		newRecord(t, "C1", "2023-12", 0, 800, 800, 0, withAttr(vintage.AttrAdviser, "ana"), withAttr(vintage.AttrMotive, "home")),
		newRecord(t, "C1", "2023-12", 1, 800, 780, 45, withAttr(vintage.AttrAdviser, "ana"), withAttr(vintage.AttrMotive, "home")),
		newRecord(t, "D1", "2024-01", 0, 250, 250, 31, withAttr(vintage.AttrAdviser, "carl"), withAttr(vintage.AttrMotive, "car")),
	}
	agg := newAggregator()

	t.Run("more constraints never add rows", func(t *testing.T) {
		chain := []vintage.Filters{
			{},
			{vintage.AttrAdviser: {"ana", "bob"}},
			{vintage.AttrAdviser: {"ana", "bob"}, vintage.AttrMotive: {"home"}},
			{vintage.AttrAdviser: {"ana"}, vintage.AttrMotive: {"home"}},
		}
		prev := -1
		for i, f := range chain {
			df, err := agg.FilteredFrame(records, f)
			if err != nil {
				t.Fatalf("filters %d: expected no error, got %v", i, err)
			}
			if prev >= 0 && df.Nrow() > prev {
				t.Fatalf("filters %d: rows grew from %d to %d", i, prev, df.Nrow())
			}
			prev = df.Nrow()
		}
		if prev != 2 {
			t.Fatalf("expected 2 rows under the narrowest filters, got %d", prev)
		}
	})

	t.Run("ratios stay within bounds", func(t *testing.T) {
		for _, threshold := range vintage.SupportedThresholds {
			for _, mode := range []DenominatorMode{DenominatorPerRow, DenominatorPerLoan} {
				report, err := agg.Compute(records, Params{ThresholdDays: threshold, Denominator: mode})
				if errors.Is(err, vintage.ErrEmptyResult) {
					continue
				}
				if err != nil {
					t.Fatalf("threshold %d: expected no error, got %v", threshold, err)
				}
				for _, row := range report.Matrix.Cells {
					for _, cell := range row {
						if cell.Ratio != nil && (*cell.Ratio < 0 || *cell.Ratio > 1) {
							t.Fatalf("threshold %d mode %s: ratio %v out of bounds", threshold, mode, *cell.Ratio)
						}
					}
				}
			}
		}
	})

	t.Run("identical calls give identical reports", func(t *testing.T) {
		p := Params{ThresholdDays: 30, Filters: vintage.Filters{vintage.AttrMotive: {"car", "home"}}}
		first, err := agg.Compute(records, p)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := agg.Compute(records, p)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("expected identical reports, got %+v and %+v", first, second)
		}
	})

	t.Run("input records are not modified", func(t *testing.T) {
		before := make([]vintage.LoanRecord, len(records))
		copy(before, records)
		if _, err := agg.Compute(records, Params{ThresholdDays: 30}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !reflect.DeepEqual(before, records) {
			t.Fatalf("expected records to be unchanged")
		}
	})
}

func TestOptions(t *testing.T) {
	records := scenarioA(t)
	orphan := newRecord(t, "X", "2024-01", 0, 1, 1, 0, withAttr(vintage.AttrAdviser, "zoe"))
	orphan.HasCohort = false
	records = append(records, orphan)

	opts := newAggregator().Options(records)

	if got := opts.Attributes[vintage.AttrAdviser]; !reflect.DeepEqual(got, []string{"ana", "bob"}) {
		t.Fatalf("expected advisers [ana bob], got %v", got)
	}
	if got := opts.Attributes[vintage.AttrMotive]; len(got) != 0 {
		t.Fatalf("expected no motives, got %v", got)
	}
	if len(opts.Attributes) != len(vintage.DefaultAttributes) {
		t.Fatalf("expected %d attributes, got %d", len(vintage.DefaultAttributes), len(opts.Attributes))
	}
	if !reflect.DeepEqual(opts.Thresholds, []int{30, 60, 90, 120}) {
		t.Fatalf("expected thresholds [30 60 90 120], got %v", opts.Thresholds)
	}
}

func TestParseModes(t *testing.T) {
	if m, err := ParseDenominatorMode(""); err != nil || m != DenominatorPerRow {
		t.Fatalf("expected row default, got %v %v", m, err)
	}
	if m, err := ParseDenominatorMode("LOAN"); err != nil || m != DenominatorPerLoan {
		t.Fatalf("expected loan, got %v %v", m, err)
	}
	if _, err := ParseDenominatorMode("cohort"); !errors.Is(err, vintage.ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
	if b, err := ParseNumeratorBasis(""); err != nil || b != NumeratorExposure {
		t.Fatalf("expected exposure default, got %v %v", b, err)
	}
	if b, err := ParseNumeratorBasis("disbursed"); err != nil || b != NumeratorDisbursed {
		t.Fatalf("expected disbursed, got %v %v", b, err)
	}
	if _, err := ParseNumeratorBasis("balance"); !errors.Is(err, vintage.ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
}

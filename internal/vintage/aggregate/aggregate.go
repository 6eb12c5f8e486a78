package aggregate

import (
	"fmt"
	"sort"

	"github.com/farxc/vintage-cohorts/internal/logger"
	"github.com/farxc/vintage-cohorts/internal/vintage"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/floats"
)

// Working frame columns. Attribute columns are prefixed so that a registry entry can
// never shadow one of these.
const (
	colLoanKey    = "loan_key"
	colCohort     = "cohort_key"
	colAge        = "age_in_months"
	colDisbursed  = "disbursed_amount"
	colExposure   = "outstanding_exposure"
	colDays       = "days_overdue"
	attrColPrefix = "attr_"
)

type Aggregator struct {
	registry  *vintage.Registry
	appLogger *logger.Logger
}

func New(registry *vintage.Registry, appLogger *logger.Logger) *Aggregator {
	if registry == nil {
		registry = vintage.DefaultRegistry()
	}
	return &Aggregator{registry: registry, appLogger: appLogger}
}

type cellKey struct {
	cohort vintage.Month
	age    int
}

type cellStats struct {
	rows int
	sum  float64
}

type cohortDenominator struct {
	rows  int
	loans int
	count int
	sum   float64
}

/*
Compute builds the delinquency matrix for the records that pass the filters.

The denominator of a cohort is the disbursed value of its filtered rows, counted per
row or per loan. The numerator of a (cohort, age) cell is the exposure (or principal)
of the rows more than ThresholdDays overdue at that age. When no row survives the
filters, or none of the survivors is delinquent, vintage.ErrEmptyResult is returned.

records is only read; concurrent calls over the same slice are safe.
*/
func (a *Aggregator) Compute(records []vintage.LoanRecord, p Params) (*Report, error) {
	const component = "Aggregator"

	if p.ThresholdDays <= 0 {
		return nil, fmt.Errorf("%w: %d", vintage.ErrInvalidThreshold, p.ThresholdDays)
	}

	// 1. Filters
	filtered, err := a.FilteredFrame(records, p.Filters)
	if err != nil {
		return nil, err
	}
	if filtered.Nrow() == 0 {
		a.appLogger.Debug(component, "No rows after filters: constraints=%d", len(p.Filters.Constrained()))
		return nil, vintage.ErrEmptyResult
	}

	// 2. Denominator per cohort, and the observed population per cell
	denominators, err := a.denominators(filtered, p.Denominator)
	if err != nil {
		return nil, err
	}
	population, err := sumByCell(filtered, colExposure)
	if err != nil {
		return nil, err
	}

	// 3. Threshold restriction
	delinquent := filtered.Filter(dataframe.F{
		Colname:    colDays,
		Comparator: series.Greater,
		Comparando: p.ThresholdDays,
	})
	if delinquent.Error() != nil {
		return nil, fmt.Errorf("failed to apply threshold: %w", delinquent.Error())
	}

	// 4. Nothing delinquent under these filters
	if delinquent.Nrow() == 0 {
		a.appLogger.Debug(component, "No delinquent rows: rows=%d threshold=%d", filtered.Nrow(), p.ThresholdDays)
		return nil, vintage.ErrEmptyResult
	}

	// 5. Numerator per (cohort, age)
	basisCol := colExposure
	if p.Numerator == NumeratorDisbursed {
		basisCol = colDisbursed
	}
	numerators, err := sumByCell(delinquent, basisCol)
	if err != nil {
		return nil, err
	}

	// 6. Join and divide
	aggregates := buildAggregates(population, numerators, denominators)

	// 7-8. Reshape, leaving out cohorts without a denominator or without any ratio
	matrix := buildMatrix(aggregates, numerators)
	if matrix.IsEmpty() {
		a.appLogger.Debug(component, "Matrix is empty: rows=%d delinquentRows=%d", filtered.Nrow(), delinquent.Nrow())
		return nil, vintage.ErrEmptyResult
	}

	report := &Report{
		ThresholdDays:  p.ThresholdDays,
		Denominator:    p.Denominator.String(),
		Numerator:      p.Numerator.String(),
		Rows:           filtered.Nrow(),
		DelinquentRows: delinquent.Nrow(),
		Matrix:         matrix,
		Aggregates:     aggregates,
		Totals:         buildTotals(aggregates, denominators),
	}

	a.appLogger.Debug(component, "Cohort matrix computed: rows=%d delinquentRows=%d cohorts=%d ages=%d threshold=%d denominator=%s numerator=%s",
		report.Rows, report.DelinquentRows, len(matrix.Cohorts), len(matrix.Ages), p.ThresholdDays, p.Denominator, p.Numerator)

	return report, nil
}

// FilteredFrame returns the working frame of the cohorted records that pass the filters.
// Constraints combine with AND across attributes and OR within one attribute.
func (a *Aggregator) FilteredFrame(records []vintage.LoanRecord, filters vintage.Filters) (dataframe.DataFrame, error) {
	if err := a.registry.Validate(filters); err != nil {
		return dataframe.DataFrame{}, err
	}

	df := a.buildFrame(records)
	if df.Error() != nil {
		return dataframe.DataFrame{}, fmt.Errorf("failed to build working frame: %w", df.Error())
	}

	for _, c := range filters.Constrained() {
		if df.Nrow() == 0 {
			break
		}
		df = df.Filter(dataframe.F{
			Colname:    attrColPrefix + c.Attribute,
			Comparator: series.In,
			Comparando: c.Values,
		})
		if df.Error() != nil {
			return dataframe.DataFrame{}, fmt.Errorf("failed to filter on %s: %w", c.Attribute, df.Error())
		}
	}

	return df, nil
}

func (a *Aggregator) buildFrame(records []vintage.LoanRecord) dataframe.DataFrame {
	attrs := a.registry.Names()

	var (
		loanKeys   []string
		cohorts    []string
		ages       []int
		disbursed  []float64
		exposures  []float64
		daysColumn []int
	)
	attrValues := make([][]string, len(attrs))

	for _, r := range records {
		if !r.HasCohort {
			continue
		}
		loanKeys = append(loanKeys, r.LoanKey)
		cohorts = append(cohorts, r.Cohort.String())
		ages = append(ages, r.AgeInMonths)
		disbursed = append(disbursed, r.DisbursedAmount)
		exposures = append(exposures, r.OutstandingExposure)
		daysColumn = append(daysColumn, r.DaysOverdue)
		for i, attr := range attrs {
			attrValues[i] = append(attrValues[i], r.Attribute(attr))
		}
	}

	cols := []series.Series{
		series.New(nonNil(loanKeys), series.String, colLoanKey),
		series.New(nonNil(cohorts), series.String, colCohort),
		series.New(nonNilInts(ages), series.Int, colAge),
		series.New(nonNilFloats(disbursed), series.Float, colDisbursed),
		series.New(nonNilFloats(exposures), series.Float, colExposure),
		series.New(nonNilInts(daysColumn), series.Int, colDays),
	}
	for i, attr := range attrs {
		cols = append(cols, series.New(nonNil(attrValues[i]), series.String, attrColPrefix+attr))
	}

	return dataframe.New(cols...)
}

func (a *Aggregator) denominators(df dataframe.DataFrame, mode DenominatorMode) (map[vintage.Month]cohortDenominator, error) {
	groups, err := groupFrames(df, colCohort)
	if err != nil {
		return nil, err
	}

	out := make(map[vintage.Month]cohortDenominator, len(groups))
	for _, g := range groups {
		cohort, err := vintage.ParseMonth(g.Col(colCohort).Elem(0).String())
		if err != nil {
			return nil, err
		}

		keys := g.Col(colLoanKey).Records()
		amounts := g.Col(colDisbursed).Float()

		// First row of each loan stands for it in the per-loan denominator.
		seen := make(map[string]bool, len(keys))
		perLoan := make([]float64, 0, len(keys))
		for i, k := range keys {
			if seen[k] {
				continue
			}
			seen[k] = true
			perLoan = append(perLoan, amounts[i])
		}

		d := cohortDenominator{rows: len(amounts), loans: len(perLoan)}
		switch mode {
		case DenominatorPerLoan:
			d.count = len(perLoan)
			d.sum = floats.Sum(perLoan)
		default:
			d.count = len(amounts)
			d.sum = floats.Sum(amounts)
		}
		out[cohort] = d
	}
	return out, nil
}

// sumByCell groups df by (cohort, age) and sums valueCol in each group.
func sumByCell(df dataframe.DataFrame, valueCol string) (map[cellKey]cellStats, error) {
	out := make(map[cellKey]cellStats)
	if df.Nrow() == 0 {
		return out, nil
	}

	groups, err := groupFrames(df, colCohort, colAge)
	if err != nil {
		return nil, err
	}

	for _, g := range groups {
		cohort, err := vintage.ParseMonth(g.Col(colCohort).Elem(0).String())
		if err != nil {
			return nil, err
		}
		age, err := g.Col(colAge).Elem(0).Int()
		if err != nil {
			return nil, fmt.Errorf("invalid age in group %s: %w", cohort, err)
		}
		values := g.Col(valueCol).Float()
		out[cellKey{cohort: cohort, age: age}] = cellStats{rows: len(values), sum: floats.Sum(values)}
	}
	return out, nil
}

// groupFrames returns the groups of df by cols in a stable order.
func groupFrames(df dataframe.DataFrame, cols ...string) ([]dataframe.DataFrame, error) {
	grouped := df.GroupBy(cols...)
	if grouped == nil {
		return nil, fmt.Errorf("group by: no columns given")
	}
	if grouped.Err != nil {
		return nil, fmt.Errorf("group by %v: %w", cols, grouped.Err)
	}

	groups := grouped.GetGroups()
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]dataframe.DataFrame, 0, len(keys))
	for _, k := range keys {
		out = append(out, groups[k])
	}
	return out, nil
}

func ratioOf(numerator, denominator float64) *float64 {
	if denominator <= 0 || numerator == 0 {
		return nil
	}
	r := numerator / denominator
	return &r
}

func buildAggregates(population, numerators map[cellKey]cellStats, denominators map[vintage.Month]cohortDenominator) []CohortAggregate {
	out := make([]CohortAggregate, 0, len(population))
	for key, pop := range population {
		den := denominators[key.cohort]
		num := numerators[key]
		out = append(out, CohortAggregate{
			Cohort:          key.cohort,
			AgeInMonths:     key.age,
			CountObserved:   pop.rows,
			SumExposure:     pop.sum,
			CountDisbursed:  den.count,
			SumDisbursed:    den.sum,
			CountDelinquent: num.rows,
			SumDelinquent:   num.sum,
			Ratio:           ratioOf(num.sum, den.sum),
			HasData:         pop.rows > 0 && den.sum > 0,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Cohort != out[j].Cohort {
			return out[i].Cohort.Before(out[j].Cohort)
		}
		return out[i].AgeInMonths < out[j].AgeInMonths
	})
	return out
}

// buildMatrix keeps the cohorts with at least one ratio and the ages that carry a
// delinquent cell in those cohorts.
func buildMatrix(aggregates []CohortAggregate, numerators map[cellKey]cellStats) CohortMatrix {
	byCell := make(map[cellKey]CohortAggregate, len(aggregates))
	keep := make(map[vintage.Month]bool)
	for _, agg := range aggregates {
		byCell[cellKey{cohort: agg.Cohort, age: agg.AgeInMonths}] = agg
		if agg.Ratio != nil {
			keep[agg.Cohort] = true
		}
	}

	ageSet := make(map[int]bool)
	for key := range numerators {
		if keep[key.cohort] {
			ageSet[key.age] = true
		}
	}

	m := CohortMatrix{
		Cohorts: make([]vintage.Month, 0, len(keep)),
		Ages:    make([]int, 0, len(ageSet)),
	}
	for c := range keep {
		m.Cohorts = append(m.Cohorts, c)
	}
	sort.Slice(m.Cohorts, func(i, j int) bool { return m.Cohorts[i].Before(m.Cohorts[j]) })
	for age := range ageSet {
		m.Ages = append(m.Ages, age)
	}
	sort.Ints(m.Ages)

	m.Cells = make([][]Cell, len(m.Cohorts))
	for i, c := range m.Cohorts {
		row := make([]Cell, len(m.Ages))
		for j, age := range m.Ages {
			if agg, ok := byCell[cellKey{cohort: c, age: age}]; ok {
				row[j] = Cell{Ratio: agg.Ratio, HasData: agg.HasData}
			}
		}
		m.Cells[i] = row
	}
	return m
}

func buildTotals(aggregates []CohortAggregate, denominators map[vintage.Month]cohortDenominator) []CohortTotal {
	byCohort := make(map[vintage.Month]*CohortTotal)
	var order []vintage.Month
	for _, agg := range aggregates {
		t, ok := byCohort[agg.Cohort]
		if !ok {
			den := denominators[agg.Cohort]
			t = &CohortTotal{
				Cohort:       agg.Cohort,
				Loans:        den.loans,
				Rows:         den.rows,
				SumDisbursed: den.sum,
			}
			byCohort[agg.Cohort] = t
			order = append(order, agg.Cohort)
		}
		t.DelinquentRows += agg.CountDelinquent
		t.SumDelinquent += agg.SumDelinquent
		if agg.AgeInMonths > t.MaxAge {
			t.MaxAge = agg.AgeInMonths
		}
	}

	out := make([]CohortTotal, 0, len(order))
	for _, c := range order {
		out = append(out, *byCohort[c])
	}
	return out
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func nonNilFloats(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

package aggregate

import (
	"fmt"
	"strings"

	"github.com/farxc/vintage-cohorts/internal/vintage"
)

// DenominatorMode selects how disbursed value is counted in a cohort's denominator.
type DenominatorMode int

const (
	// DenominatorPerRow sums the disbursed amount of every snapshot row, so a loan observed
	// in n months contributes n times. This matches the reference report.
	DenominatorPerRow DenominatorMode = iota
	// DenominatorPerLoan counts each loan once per cohort.
	DenominatorPerLoan
)

// NumeratorBasis selects the value summed over delinquent rows.
type NumeratorBasis int

const (
	// NumeratorExposure sums the outstanding balance of delinquent rows.
	NumeratorExposure NumeratorBasis = iota
	// NumeratorDisbursed sums the original principal of delinquent rows.
	NumeratorDisbursed
)

var denominatorNames = map[DenominatorMode]string{
	DenominatorPerRow:  "row",
	DenominatorPerLoan: "loan",
}

var numeratorNames = map[NumeratorBasis]string{
	NumeratorExposure:  "exposure",
	NumeratorDisbursed: "disbursed",
}

func (d DenominatorMode) String() string {
	if name, ok := denominatorNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DenominatorMode(%d)", int(d))
}

func (n NumeratorBasis) String() string {
	if name, ok := numeratorNames[n]; ok {
		return name
	}
	return fmt.Sprintf("NumeratorBasis(%d)", int(n))
}

// ParseDenominatorMode accepts "row" or "loan". Blank means row.
func ParseDenominatorMode(s string) (DenominatorMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DenominatorPerRow, nil
	}
	for mode, name := range denominatorNames {
		if s == name {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("%w: denominator %q", vintage.ErrInvalidOption, s)
}

// ParseNumeratorBasis accepts "exposure" or "disbursed". Blank means exposure.
func ParseNumeratorBasis(s string) (NumeratorBasis, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return NumeratorExposure, nil
	}
	for basis, name := range numeratorNames {
		if s == name {
			return basis, nil
		}
	}
	return 0, fmt.Errorf("%w: numerator basis %q", vintage.ErrInvalidOption, s)
}

type Params struct {
	Filters       vintage.Filters
	ThresholdDays int
	Denominator   DenominatorMode
	Numerator     NumeratorBasis
}

// Cell is one (cohort, age) entry of the matrix. Ratio is nil both when nothing is
// delinquent and when no data exists, which is how the report displays them; HasData
// tells the two apart.
type Cell struct {
	Ratio   *float64 `json:"ratio"`
	HasData bool     `json:"has_data"`
}

// Value returns the ratio, reading a cell with data but no ratio as a true zero.
func (c Cell) Value() (float64, bool) {
	if c.Ratio != nil {
		return *c.Ratio, true
	}
	if c.HasData {
		return 0, true
	}
	return 0, false
}

// CohortMatrix is the vintage triangle: one row per cohort, one column per age.
type CohortMatrix struct {
	Cohorts []vintage.Month `json:"cohorts"`
	Ages    []int           `json:"ages"`
	Cells   [][]Cell        `json:"cells"`
}

func (m CohortMatrix) Cell(cohort vintage.Month, age int) (Cell, bool) {
	for i, c := range m.Cohorts {
		if c != cohort {
			continue
		}
		for j, a := range m.Ages {
			if a == age {
				return m.Cells[i][j], true
			}
		}
	}
	return Cell{}, false
}

func (m CohortMatrix) IsEmpty() bool {
	return len(m.Cohorts) == 0
}

// CohortAggregate is one row of the flat (cohort, age) table.
type CohortAggregate struct {
	Cohort          vintage.Month `json:"cohort"`
	AgeInMonths     int           `json:"age_in_months"`
	CountObserved   int           `json:"count_observed"`
	SumExposure     float64       `json:"sum_exposure"`
	CountDisbursed  int           `json:"count_disbursed"`
	SumDisbursed    float64       `json:"sum_disbursed"`
	CountDelinquent int           `json:"count_delinquent"`
	SumDelinquent   float64       `json:"sum_delinquent"`
	Ratio           *float64      `json:"ratio"`
	HasData         bool          `json:"has_data"`
}

// CohortTotal summarises one cohort over every age.
type CohortTotal struct {
	Cohort         vintage.Month `json:"cohort"`
	Loans          int           `json:"loans"`
	Rows           int           `json:"rows"`
	DelinquentRows int           `json:"delinquent_rows"`
	SumDisbursed   float64       `json:"sum_disbursed"`
	SumDelinquent  float64       `json:"sum_delinquent"`
	MaxAge         int           `json:"max_age"`
}

type Report struct {
	ThresholdDays  int               `json:"threshold_days"`
	Denominator    string            `json:"denominator"`
	Numerator      string            `json:"numerator"`
	Rows           int               `json:"rows"`
	DelinquentRows int               `json:"delinquent_rows"`
	Matrix         CohortMatrix      `json:"matrix"`
	Aggregates     []CohortAggregate `json:"aggregates"`
	Totals         []CohortTotal     `json:"totals"`
}

// FilterOptions are the values a report user can pick from.
type FilterOptions struct {
	Attributes map[string][]string `json:"attributes"`
	Thresholds []int               `json:"thresholds"`
}

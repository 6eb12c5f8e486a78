package normalize

import (
	"fmt"
	"strconv"
	"time"

	"github.com/farxc/vintage-cohorts/internal/logger"
	"github.com/farxc/vintage-cohorts/internal/vintage"
	"github.com/farxc/vintage-cohorts/internal/vintage/utils"
	"github.com/go-gota/gota/dataframe"
)

type Options struct {
	CohortPolicy vintage.CohortPolicy
	// KeepMissingDisbursement keeps rows without a disbursement date as records with no
	// cohort instead of dropping them. The aggregator ignores such records either way.
	KeepMissingDisbursement bool
	// Attributes are the filterable columns carried onto each record. Defaults to
	// vintage.DefaultAttributes.
	Attributes []string
}

type Normalizer struct {
	opts      Options
	appLogger *logger.Logger
}

func New(opts Options, appLogger *logger.Logger) *Normalizer {
	if len(opts.Attributes) == 0 {
		opts.Attributes = vintage.DefaultAttributes
	}
	return &Normalizer{opts: opts, appLogger: appLogger}
}

// ValidateColumns fails when a structural column is absent from the whole frame. Missing
// values inside a present column are a row-level concern handled later.
func (n *Normalizer) ValidateColumns(df dataframe.DataFrame) error {
	required := append([]string(nil), vintage.RequiredColumns...)
	if n.opts.CohortPolicy == vintage.CohortByCustomer {
		required = append(required, vintage.ColCustomerID)
	}

	if missing := utils.MissingColumns(&df, required); len(missing) > 0 {
		return &vintage.MissingFieldError{Fields: missing}
	}
	return nil
}

// Normalize turns a raw string frame into the dataset every aggregation runs against.
// The input frame is not modified.
func (n *Normalizer) Normalize(df dataframe.DataFrame) (*vintage.Dataset, error) {
	const component = "Normalizer"

	if df.Error() != nil {
		return nil, fmt.Errorf("invalid input frame: %w", df.Error())
	}

	// 1. Structural validation
	if err := n.ValidateColumns(df); err != nil {
		return nil, err
	}

	// 2. Parse dates and numeric fields
	records, stats := n.ParseRows(df)

	// 3. Drop rows that cannot be bucketed
	var dropped int
	records, dropped = DropMissingDisbursement(records, !n.opts.KeepMissingDisbursement)
	stats.MissingDisbursement = dropped

	// 4. Cohort assignment
	records = AssignCohort(records, n.opts.CohortPolicy)

	// 5. Months on book
	var missingObs, negative int
	records, missingObs, negative = ComputeAge(records)
	stats.MissingObservation = missingObs
	stats.NegativeAge = negative
	stats.Output = len(records)

	n.appLogger.Info(component, "Dataset normalized: policy=%s input=%d output=%d missingDisbursement=%d missingObservation=%d unparseable=%d negativeAge=%d",
		n.opts.CohortPolicy, stats.Input, stats.Output, stats.MissingDisbursement, stats.MissingObservation, stats.Unparseable, stats.NegativeAge)

	return vintage.NewDataset(records, n.opts.CohortPolicy, stats), nil
}

// ParseRows reads every row of the frame into a record. Unparseable dates become zero
// times; rows whose amounts or day counts cannot be parsed are skipped and counted.
func (n *Normalizer) ParseRows(df dataframe.DataFrame) ([]vintage.LoanRecord, vintage.Stats) {
	const component = "RowParser"

	stats := vintage.Stats{Input: df.Nrow()}

	customers := utils.ColumnValues(vintage.ColCustomerID, &df)
	disbursements := utils.ColumnValues(vintage.ColDisbursementDate, &df)
	observations := utils.ColumnValues(vintage.ColObservationDate, &df)
	amounts := utils.ColumnValues(vintage.ColDisbursedAmount, &df)
	exposures := utils.ColumnValues(vintage.ColExposure, &df)
	overdue := utils.ColumnValues(vintage.ColDaysOverdue, &df)
	if disbursements == nil || observations == nil || amounts == nil || exposures == nil || overdue == nil {
		return nil, stats
	}

	attrCols := make(map[string][]string, len(n.opts.Attributes))
	for _, attr := range n.opts.Attributes {
		if vintage.DerivedAttributes[attr] {
			continue
		}
		attrCols[attr] = utils.ColumnValues(attr, &df)
	}

	records := make([]vintage.LoanRecord, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		amount, okAmount := utils.ParseAmount(amounts[i])
		exposure, okExposure := utils.ParseAmount(exposures[i])
		days, okDays := utils.ParseDays(overdue[i])
		if !okAmount || !okExposure || !okDays {
			stats.Unparseable++
			n.appLogger.Debug(component, "Skipping unparseable row: row=%d debt_amount=%q aum=%q days_overdue=%q", i, amounts[i], exposures[i], overdue[i])
			continue
		}

		disbursed, _ := utils.ParseDate(disbursements[i])
		observed, _ := utils.ParseDate(observations[i])

		customer := ""
		if customers != nil {
			customer = customers[i]
		}

		loanKey := vintage.LoanKeyFor(customer, disbursed)
		if customer == "" {
			// Without a customer id every row is its own loan.
			loanKey = "row-" + strconv.Itoa(i)
		}

		attrs := make(map[string]string, len(n.opts.Attributes))
		for attr, values := range attrCols {
			if values != nil {
				attrs[attr] = values[i]
			} else {
				attrs[attr] = ""
			}
		}
		if !disbursed.IsZero() {
			attrs[vintage.AttrYearDisbursement] = strconv.Itoa(disbursed.Year())
		} else {
			attrs[vintage.AttrYearDisbursement] = ""
		}

		records = append(records, vintage.LoanRecord{
			CustomerID:          customer,
			LoanKey:             loanKey,
			DisbursementDate:    disbursed,
			ObservationDate:     observed,
			DisbursedAmount:     amount,
			OutstandingExposure: exposure,
			DaysOverdue:         days,
			Attributes:          attrs,
		})
	}

	return records, stats
}

// DropMissingDisbursement removes records without a disbursement date when drop is set
// and reports how many were removed. Kept records are left without a cohort.
func DropMissingDisbursement(records []vintage.LoanRecord, drop bool) ([]vintage.LoanRecord, int) {
	out := make([]vintage.LoanRecord, 0, len(records))
	missing := 0
	for _, r := range records {
		if r.DisbursementDate.IsZero() {
			missing++
			if drop {
				continue
			}
		}
		out = append(out, r)
	}
	if !drop {
		return out, 0
	}
	return out, missing
}

// AssignCohort sets each record's cohort to the earliest disbursement month within its
// group. Under the loan policy every record is its own group; under the customer policy
// records sharing a customer id form one group. Records without a disbursement date take
// no part in the minimum and get no cohort.
func AssignCohort(records []vintage.LoanRecord, policy vintage.CohortPolicy) []vintage.LoanRecord {
	groupKey := func(i int, r vintage.LoanRecord) string {
		if policy == vintage.CohortByCustomer && r.CustomerID != "" {
			return "c:" + r.CustomerID
		}
		return "r:" + strconv.Itoa(i)
	}

	earliest := make(map[string]vintage.Month)
	for i, r := range records {
		if r.DisbursementDate.IsZero() {
			continue
		}
		key := groupKey(i, r)
		m := vintage.MonthOf(r.DisbursementDate)
		if current, ok := earliest[key]; !ok || m.Before(current) {
			earliest[key] = m
		}
	}

	out := make([]vintage.LoanRecord, len(records))
	for i, r := range records {
		if r.DisbursementDate.IsZero() {
			r.Cohort = vintage.Month{}
			r.HasCohort = false
		} else {
			r.Cohort = earliest[groupKey(i, r)]
			r.HasCohort = true
		}
		out[i] = r
	}
	return out
}

// calendarDay drops the time of day so exports with and without timestamps compare alike.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ComputeAge sets the months on book of every record with a cohort, measured from the
// cohort month to the observation month. Records without an observation date, observed
// on a calendar day before their own disbursement day or before their cohort month, are
// dropped. Records
// kept without a cohort pass through.
func ComputeAge(records []vintage.LoanRecord) (out []vintage.LoanRecord, missingObservation, negative int) {
	out = make([]vintage.LoanRecord, 0, len(records))
	for _, r := range records {
		if !r.HasCohort {
			out = append(out, r)
			continue
		}
		if r.ObservationDate.IsZero() {
			missingObservation++
			continue
		}
		age := r.Cohort.MonthsUntil(vintage.MonthOf(r.ObservationDate))
		if age < 0 || calendarDay(r.ObservationDate).Before(calendarDay(r.DisbursementDate)) {
			negative++
			continue
		}
		r.AgeInMonths = age
		out = append(out, r)
	}
	return out, missingObservation, negative
}

package vintage

import (
	"fmt"
	"strings"
	"time"
)

// CohortPolicy selects how a record's cohort month is assigned.
type CohortPolicy int

const (
	// CohortByLoan uses the record's own disbursement month.
	CohortByLoan CohortPolicy = iota
	// CohortByCustomer uses the earliest disbursement month seen for the customer.
	CohortByCustomer
)

var cohortPolicyNames = map[CohortPolicy]string{
	CohortByLoan:     "loan",
	CohortByCustomer: "customer",
}

func (p CohortPolicy) String() string {
	if name, ok := cohortPolicyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("CohortPolicy(%d)", int(p))
}

func ParseCohortPolicy(s string) (CohortPolicy, error) {
	for p, name := range cohortPolicyNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: cohort policy %q", ErrInvalidOption, s)
}

// LoanRecord is one loan observed at one monthly snapshot, with derived fields filled in
// by the normalizer.
type LoanRecord struct {
	CustomerID          string
	LoanKey             string
	DisbursementDate    time.Time
	ObservationDate     time.Time
	DisbursedAmount     float64
	OutstandingExposure float64
	DaysOverdue         int
	Attributes          map[string]string

	Cohort      Month
	AgeInMonths int
	// HasCohort is false only for records kept without a disbursement date.
	HasCohort bool
}

// LoanKeyFor builds the natural loan key (customer, disbursement date).
func LoanKeyFor(customerID string, disbursement time.Time) string {
	if disbursement.IsZero() {
		return customerID + "|"
	}
	return customerID + "|" + disbursement.Format(time.DateOnly)
}

func (r LoanRecord) IsDelinquent(thresholdDays int) bool {
	return r.DaysOverdue > thresholdDays
}

func (r LoanRecord) DelinquentExposure(thresholdDays int) float64 {
	if r.IsDelinquent(thresholdDays) {
		return r.OutstandingExposure
	}
	return 0
}

func (r LoanRecord) Attribute(name string) string {
	return r.Attributes[name]
}

// Stats counts what the normalizer kept and why rows were dropped.
type Stats struct {
	Input               int `json:"input"`
	MissingDisbursement int `json:"missing_disbursement"`
	MissingObservation  int `json:"missing_observation"`
	Unparseable         int `json:"unparseable"`
	NegativeAge         int `json:"negative_age"`
	Output              int `json:"output"`
}

// Dataset is the normalized, read-only record set shared by every aggregation run.
type Dataset struct {
	records []LoanRecord
	Policy  CohortPolicy
	Stats   Stats
}

func NewDataset(records []LoanRecord, policy CohortPolicy, stats Stats) *Dataset {
	return &Dataset{records: records, Policy: policy, Stats: stats}
}

// Records returns the shared backing slice. Callers must treat it as read-only.
func (d *Dataset) Records() []LoanRecord {
	if d == nil {
		return nil
	}
	return d.records
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

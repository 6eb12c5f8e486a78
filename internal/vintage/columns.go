package vintage

// Raw column names as they come out of the vintage report export.
const (
	ColCustomerID       = "vat"
	ColDisbursementDate = "disbursement_date"
	ColObservationDate  = "last_date_of_month"
	ColDisbursedAmount  = "debt_amount"
	ColExposure         = "aum"
	ColDaysOverdue      = "days_overdue"
)

// Filterable attribute names.
const (
	AttrAdviser            = "adviser"
	AttrAnalyst            = "analyst"
	AttrMotive             = "motive"
	AttrEvaluationType     = "evaluation_type"
	AttrScoreRange         = "score_range"
	AttrWorstScore         = "worst_score"
	AttrCondition          = "condition"
	AttrGuaranteeZone      = "guarantee_zone"
	AttrGuaranteeOwnership = "guarantee_ownership"
	AttrAgeRange           = "age_range"
	AttrDTIRange           = "dti_range"
	AttrExceptions         = "exceptions"
	AttrYearDisbursement   = "year_disbursement"
)

// RequiredColumns must be present in every raw frame, whatever the cohort policy.
var RequiredColumns = []string{
	ColDisbursementDate,
	ColObservationDate,
	ColDisbursedAmount,
	ColExposure,
	ColDaysOverdue,
}

// DefaultAttributes is the attribute set of the vintage report export, in the order the
// filters are presented.
var DefaultAttributes = []string{
	AttrAdviser,
	AttrAnalyst,
	AttrMotive,
	AttrEvaluationType,
	AttrScoreRange,
	AttrWorstScore,
	AttrCondition,
	AttrGuaranteeZone,
	AttrGuaranteeOwnership,
	AttrAgeRange,
	AttrDTIRange,
	AttrExceptions,
	AttrYearDisbursement,
}

// DerivedAttributes are computed by the normalizer instead of being read from the source.
var DerivedAttributes = map[string]bool{
	AttrYearDisbursement: true,
}

// SupportedThresholds are the day thresholds offered to report users. The aggregation
// itself accepts any positive threshold.
var SupportedThresholds = []int{30, 60, 90, 120}

// DefaultThresholdDays is the threshold used when a caller does not pick one.
const DefaultThresholdDays = 30

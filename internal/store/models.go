package store

import (
	"database/sql"
	"time"
)

// LoanSnapshot represents one row of the 'loan_snapshots' table: a loan as observed at
// the end of a month. Nullable columns stay nullable so the normalizer can apply its own
// missing-value policy.
type LoanSnapshot struct {
	ID                 int64           `db:"id"`
	CustomerID         string          `db:"vat"`
	DisbursementDate   sql.NullTime    `db:"disbursement_date"`
	LastDateOfMonth    sql.NullTime    `db:"last_date_of_month"`
	DebtAmount         sql.NullFloat64 `db:"debt_amount"`
	AUM                sql.NullFloat64 `db:"aum"`
	DaysOverdue        sql.NullInt64   `db:"days_overdue"`
	Adviser            sql.NullString  `db:"adviser"`
	Analyst            sql.NullString  `db:"analyst"`
	Motive             sql.NullString  `db:"motive"`
	EvaluationType     sql.NullString  `db:"evaluation_type"`
	ScoreRange         sql.NullString  `db:"score_range"`
	WorstScore         sql.NullString  `db:"worst_score"`
	Condition          sql.NullString  `db:"condition"`
	GuaranteeZone      sql.NullString  `db:"guarantee_zone"`
	GuaranteeOwnership sql.NullString  `db:"guarantee_ownership"`
	AgeRange           sql.NullString  `db:"age_range"`
	DTIRange           sql.NullString  `db:"dti_range"`
	Exceptions         sql.NullString  `db:"exceptions"`
	InsertedAt         time.Time       `db:"inserted_at"`
}

// SnapshotFilter narrows the rows read from the table. Zero values impose no limit.
type SnapshotFilter struct {
	ObservedFrom time.Time
	ObservedTo   time.Time
	CustomerIDs  []string
}

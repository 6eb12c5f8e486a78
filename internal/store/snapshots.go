package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type SnapshotStore struct {
	db GenericQueryer
}

/*
ListSnapshots reads the monthly loan snapshots used as input of the cohort analysis.
Open bounds are passed as NULL so rows with a NULL observation date still come back when
no range is requested; the normalizer, not the query, decides what a malformed row means.
*/
func (ss *SnapshotStore) ListSnapshots(ctx context.Context, f SnapshotFilter) ([]LoanSnapshot, error) {
	query := `
	SELECT
		id,
		vat,
		disbursement_date,
		last_date_of_month,
		debt_amount,
		aum,
		days_overdue,
		adviser,
		analyst,
		motive,
		evaluation_type,
		score_range,
		worst_score,
		condition,
		guarantee_zone,
		guarantee_ownership,
		age_range,
		dti_range,
		exceptions,
		inserted_at
	FROM
		loan_snapshots
	WHERE
		($1::date IS NULL OR last_date_of_month >= $1)
		AND ($2::date IS NULL OR last_date_of_month <= $2)
		AND (cardinality($3::text[]) = 0 OR vat = ANY($3))
	ORDER BY
		vat,
		disbursement_date,
		last_date_of_month;
	`

	from := sql.NullTime{Time: f.ObservedFrom, Valid: !f.ObservedFrom.IsZero()}
	to := sql.NullTime{Time: f.ObservedTo, Valid: !f.ObservedTo.IsZero()}

	customerIDs := f.CustomerIDs
	if customerIDs == nil {
		customerIDs = []string{}
	}

	var rows []LoanSnapshot
	if err := ss.db.SelectContext(ctx, &rows, query, from, to, pq.Array(customerIDs)); err != nil {
		return nil, fmt.Errorf("failed to query loan snapshots: %w", err)
	}

	return rows, nil
}

// insertBatchSize keeps one multi-row insert well under the postgres parameter limit.
const insertBatchSize = 1000

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

/*
ReplaceObserved deletes the snapshots observed between from and to (inclusive) and
inserts rows in their place, so re-importing a month never duplicates it. When the
underlying handle can open transactions both steps commit together.
*/
func (ss *SnapshotStore) ReplaceObserved(ctx context.Context, from, to time.Time, rows []LoanSnapshot) (int64, error) {
	q := ss.db
	var tx *sqlx.Tx
	if b, ok := ss.db.(txBeginner); ok {
		var err error
		tx, err = b.BeginTxx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()
		q = tx
	}

	deleteQuery := `DELETE FROM loan_snapshots WHERE last_date_of_month BETWEEN $1 AND $2`
	if _, err := q.ExecContext(ctx, deleteQuery, from, to); err != nil {
		return 0, fmt.Errorf("failed to delete loan snapshots: %w", err)
	}

	inserted, err := insertSnapshots(ctx, q, rows)
	if err != nil {
		return 0, err
	}

	if tx != nil {
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("failed to commit loan snapshots: %w", err)
		}
	}
	return inserted, nil
}

func insertSnapshots(ctx context.Context, q GenericQueryer, rows []LoanSnapshot) (int64, error) {
	query := `INSERT INTO loan_snapshots (
		vat,
		disbursement_date,
		last_date_of_month,
		debt_amount,
		aum,
		days_overdue,
		adviser,
		analyst,
		motive,
		evaluation_type,
		score_range,
		worst_score,
		condition,
		guarantee_zone,
		guarantee_ownership,
		age_range,
		dti_range,
		exceptions
	) VALUES (
		:vat,
		:disbursement_date,
		:last_date_of_month,
		:debt_amount,
		:aum,
		:days_overdue,
		:adviser,
		:analyst,
		:motive,
		:evaluation_type,
		:score_range,
		:worst_score,
		:condition,
		:guarantee_zone,
		:guarantee_ownership,
		:age_range,
		:dti_range,
		:exceptions
	)`

	var total int64
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		result, err := q.NamedExecContext(ctx, query, rows[start:end])
		if err != nil {
			return total, fmt.Errorf("failed to insert loan snapshots: %w", err)
		}
		affected, _ := result.RowsAffected()
		total += affected
	}
	return total, nil
}

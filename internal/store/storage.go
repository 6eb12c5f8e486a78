package store

import (
	"context"
	"database/sql"
	"time"
)

// GenericQueryer is the subset of sqlx used by the stores, satisfied by *sqlx.DB and
// *sqlx.Tx.
type GenericQueryer interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

type Storage struct {
	Snapshots interface {
		ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]LoanSnapshot, error)
		ReplaceObserved(ctx context.Context, from, to time.Time, rows []LoanSnapshot) (int64, error)
	}
}

func NewStorage(db GenericQueryer) *Storage {
	return &Storage{
		Snapshots: &SnapshotStore{db: db},
	}
}

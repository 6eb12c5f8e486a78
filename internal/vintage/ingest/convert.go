package ingest

import (
	"database/sql"
	"time"

	"github.com/farxc/vintage-cohorts/internal/store"
	"github.com/farxc/vintage-cohorts/internal/vintage"
	"github.com/farxc/vintage-cohorts/internal/vintage/utils"
	"github.com/go-gota/gota/dataframe"
)

// FrameToSnapshots maps a raw export frame onto table rows. Blank or unparseable cells
// become NULLs; deciding what a NULL means is left to the normalizer at read time.
func FrameToSnapshots(df dataframe.DataFrame) ([]store.LoanSnapshot, error) {
	if missing := utils.MissingColumns(&df, vintage.RequiredColumns); len(missing) > 0 {
		return nil, &vintage.MissingFieldError{Fields: missing}
	}

	column := func(name string) []string {
		values := utils.ColumnValues(name, &df)
		if values == nil {
			values = make([]string, df.Nrow())
		}
		return values
	}

	customers := column(vintage.ColCustomerID)
	disbursements := column(vintage.ColDisbursementDate)
	observations := column(vintage.ColObservationDate)
	amounts := column(vintage.ColDisbursedAmount)
	exposures := column(vintage.ColExposure)
	overdue := column(vintage.ColDaysOverdue)

	attrs := make(map[string][]string, len(vintage.DefaultAttributes))
	for _, attr := range vintage.DefaultAttributes {
		if vintage.DerivedAttributes[attr] {
			continue
		}
		attrs[attr] = column(attr)
	}

	rows := make([]store.LoanSnapshot, df.Nrow())
	for i := range rows {
		rows[i] = store.LoanSnapshot{
			CustomerID:         customers[i],
			DisbursementDate:   nullDate(disbursements[i]),
			LastDateOfMonth:    nullDate(observations[i]),
			DebtAmount:         nullAmount(amounts[i]),
			AUM:                nullAmount(exposures[i]),
			DaysOverdue:        nullDays(overdue[i]),
			Adviser:            nullString(attrs[vintage.AttrAdviser][i]),
			Analyst:            nullString(attrs[vintage.AttrAnalyst][i]),
			Motive:             nullString(attrs[vintage.AttrMotive][i]),
			EvaluationType:     nullString(attrs[vintage.AttrEvaluationType][i]),
			ScoreRange:         nullString(attrs[vintage.AttrScoreRange][i]),
			WorstScore:         nullString(attrs[vintage.AttrWorstScore][i]),
			Condition:          nullString(attrs[vintage.AttrCondition][i]),
			GuaranteeZone:      nullString(attrs[vintage.AttrGuaranteeZone][i]),
			GuaranteeOwnership: nullString(attrs[vintage.AttrGuaranteeOwnership][i]),
			AgeRange:           nullString(attrs[vintage.AttrAgeRange][i]),
			DTIRange:           nullString(attrs[vintage.AttrDTIRange][i]),
			Exceptions:         nullString(attrs[vintage.AttrExceptions][i]),
		}
	}
	return rows, nil
}

func nullDate(s string) sql.NullTime {
	t, ok := utils.ParseDate(s)
	if !ok {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.Truncate(24 * time.Hour), Valid: true}
}

func nullAmount(s string) sql.NullFloat64 {
	v, ok := utils.ParseAmount(s)
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func nullDays(s string) sql.NullInt64 {
	v, ok := utils.ParseDays(s)
	return sql.NullInt64{Int64: int64(v), Valid: ok}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package source

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/farxc/vintage-cohorts/internal/logger"
	"github.com/farxc/vintage-cohorts/internal/store"
	"github.com/farxc/vintage-cohorts/internal/vintage"
	"github.com/farxc/vintage-cohorts/internal/vintage/downloader"
	"github.com/farxc/vintage-cohorts/internal/vintage/files"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

type Kind string

const (
	KindAuto     Kind = ""
	KindCSV      Kind = "csv"
	KindZip      Kind = "zip"
	KindURL      Kind = "url"
	KindPostgres Kind = "postgres"
)

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindAuto, KindCSV, KindZip, KindURL, KindPostgres:
		return k, nil
	}
	return "", fmt.Errorf("%w: data source %q", vintage.ErrInvalidOption, s)
}

type Config struct {
	Kind      Kind
	Path      string
	CSV       files.CSVOptions
	TempDir   string
	Snapshots store.SnapshotFilter

	// HTTPClient is used by the url kind. Nil means a client with a five minute timeout.
	HTTPClient *http.Client
}

// Resolve picks the concrete kind for KindAuto from the path.
func (c Config) Resolve() Kind {
	if c.Kind != KindAuto {
		return c.Kind
	}
	switch {
	case strings.HasPrefix(c.Path, "http://"), strings.HasPrefix(c.Path, "https://"):
		return KindURL
	case strings.EqualFold(filepath.Ext(c.Path), ".zip"):
		return KindZip
	default:
		return KindCSV
	}
}

// Load returns the raw export as a frame of string columns. storage is only used by the
// postgres kind and may be nil otherwise.
func Load(ctx context.Context, cfg Config, storage *store.Storage, appLogger *logger.Logger) (dataframe.DataFrame, error) {
	const component = "SourceLoader"

	kind := cfg.Resolve()
	appLogger.Info(component, "Loading dataset: kind=%s path=%s", kind, cfg.Path)

	switch kind {
	case KindCSV:
		return files.OpenFileAndDecode(cfg.Path, cfg.CSV)
	case KindZip:
		return files.OpenArchive(cfg.Path, cfg.CSV, appLogger)
	case KindURL:
		localPath, err := downloader.FetchFile(ctx, cfg.HTTPClient, cfg.Path, cfg.TempDir, appLogger)
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		defer os.Remove(localPath)

		local := cfg
		local.Kind = KindAuto
		local.Path = localPath
		return Load(ctx, local, storage, appLogger)
	case KindPostgres:
		if storage == nil {
			return dataframe.DataFrame{}, fmt.Errorf("postgres source requires a database connection")
		}
		rows, err := storage.Snapshots.ListSnapshots(ctx, cfg.Snapshots)
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		appLogger.Info(component, "Snapshots loaded: rows=%d", len(rows))
		return SnapshotsToFrame(rows)
	}
	return dataframe.DataFrame{}, fmt.Errorf("%w: data source %q", vintage.ErrInvalidOption, kind)
}

var snapshotColumns = []string{
	vintage.ColCustomerID,
	vintage.ColDisbursementDate,
	vintage.ColObservationDate,
	vintage.ColDisbursedAmount,
	vintage.ColExposure,
	vintage.ColDaysOverdue,
	vintage.AttrAdviser,
	vintage.AttrAnalyst,
	vintage.AttrMotive,
	vintage.AttrEvaluationType,
	vintage.AttrScoreRange,
	vintage.AttrWorstScore,
	vintage.AttrCondition,
	vintage.AttrGuaranteeZone,
	vintage.AttrGuaranteeOwnership,
	vintage.AttrAgeRange,
	vintage.AttrDTIRange,
	vintage.AttrExceptions,
}

// SnapshotsToFrame renders table rows in the same all-string shape as a CSV export, with
// NULLs as empty cells. An empty table gives a frame with the snapshot columns and no rows.
func SnapshotsToFrame(rows []store.LoanSnapshot) (dataframe.DataFrame, error) {
	if len(rows) == 0 {
		columns := make([]series.Series, len(snapshotColumns))
		for i, name := range snapshotColumns {
			columns[i] = series.New([]string{}, series.String, name)
		}
		df := dataframe.New(columns...)
		return df, df.Error()
	}

	records := make([][]string, 0, len(rows)+1)
	records = append(records, snapshotColumns)
	for _, r := range rows {
		records = append(records, []string{
			r.CustomerID,
			formatDate(r.DisbursementDate.Time, r.DisbursementDate.Valid),
			formatDate(r.LastDateOfMonth.Time, r.LastDateOfMonth.Valid),
			formatFloat(r.DebtAmount.Float64, r.DebtAmount.Valid),
			formatFloat(r.AUM.Float64, r.AUM.Valid),
			formatInt(r.DaysOverdue.Int64, r.DaysOverdue.Valid),
			r.Adviser.String,
			r.Analyst.String,
			r.Motive.String,
			r.EvaluationType.String,
			r.ScoreRange.String,
			r.WorstScore.String,
			r.Condition.String,
			r.GuaranteeZone.String,
			r.GuaranteeOwnership.String,
			r.AgeRange.String,
			r.DTIRange.String,
			r.Exceptions.String,
		})
	}

	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	return df, df.Error()
}

func formatDate(t time.Time, valid bool) string {
	if !valid {
		return ""
	}
	return t.Format(time.DateOnly)
}

func formatFloat(v float64, valid bool) string {
	if !valid {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatInt(v int64, valid bool) string {
	if !valid {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

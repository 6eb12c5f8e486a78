package main

import (
	"context"
	"fmt"

	"github.com/farxc/vintage-cohorts/internal/db"
	"github.com/farxc/vintage-cohorts/internal/logger"
	"github.com/farxc/vintage-cohorts/internal/store"
	"github.com/farxc/vintage-cohorts/internal/vintage"
	"github.com/farxc/vintage-cohorts/internal/vintage/files"
	"github.com/farxc/vintage-cohorts/internal/vintage/normalize"
	"github.com/farxc/vintage-cohorts/internal/vintage/source"
)

// loadDataset reads the configured source once and normalizes it. The returned dataset
// is shared read-only by every request.
func loadDataset(ctx context.Context, cfg config, appLogger *logger.Logger) (*vintage.Dataset, error) {
	const component = "DatasetLoader"

	kind, err := source.ParseKind(cfg.data.source)
	if err != nil {
		return nil, err
	}
	encoding, err := files.ParseEncoding(cfg.data.encoding)
	if err != nil {
		return nil, err
	}
	delimiter, err := files.ParseDelimiter(cfg.data.delimiter)
	if err != nil {
		return nil, err
	}
	policy, err := vintage.ParseCohortPolicy(cfg.data.cohortPolicy)
	if err != nil {
		return nil, err
	}

	srcCfg := source.Config{
		Kind: kind,
		Path: cfg.data.path,
		CSV:  files.CSVOptions{Encoding: encoding, Delimiter: delimiter},
	}

	var storage *store.Storage
	if srcCfg.Resolve() == source.KindPostgres {
		database, err := db.New(ctx,
			cfg.db.addr,
			cfg.db.maxOpenConns,
			cfg.db.maxIdleConns,
			cfg.db.maxIdleTime)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		defer database.Close()
		appLogger.Info(component, "Database connection pool established")
		storage = store.NewStorage(database)
	}

	raw, err := source.Load(ctx, srcCfg, storage, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s source: %w", srcCfg.Resolve(), err)
	}

	normalizer := normalize.New(normalize.Options{
		CohortPolicy:            policy,
		KeepMissingDisbursement: cfg.data.keepMissingDisbursement,
	}, appLogger)

	return normalizer.Normalize(raw)
}

package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/farxc/vintage-cohorts/internal/logger"
	"github.com/farxc/vintage-cohorts/internal/store"
	"github.com/farxc/vintage-cohorts/internal/vintage"
	"golang.org/x/sync/errgroup"
)

// Job replaces one observation month of the snapshot table.
type Job struct {
	Month   vintage.Month
	Rows    []store.LoanSnapshot
	Attempt int
}

type Result struct {
	Job      Job
	Inserted int64
	Error    error
}

type Summary struct {
	Months    int
	Failed    int
	Inserted  int64
	Unplanned int
}

// PlanJobs splits rows into one job per observation month, oldest first. Rows without an
// observation date cannot be replaced idempotently and are only counted.
func PlanJobs(rows []store.LoanSnapshot) (jobs []Job, unplanned int) {
	byMonth := make(map[vintage.Month][]store.LoanSnapshot)
	for _, r := range rows {
		if !r.LastDateOfMonth.Valid {
			unplanned++
			continue
		}
		m := vintage.MonthOf(r.LastDateOfMonth.Time)
		byMonth[m] = append(byMonth[m], r)
	}

	jobs = make([]Job, 0, len(byMonth))
	for m, monthRows := range byMonth {
		jobs = append(jobs, Job{Month: m, Rows: monthRows, Attempt: 1})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Month.Before(jobs[j].Month) })
	return jobs, unplanned
}

type Orchestrator struct {
	storage   *store.Storage
	appLogger *logger.Logger

	// Settings
	maxConcurrency int
	retryLimit     int
	retryDelay     time.Duration

	// Internal State
	mu        sync.Mutex
	completed map[vintage.Month]int64
}

func NewOrchestrator(storage *store.Storage, appLogger *logger.Logger, concurrency int) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		storage:        storage,
		appLogger:      appLogger,
		maxConcurrency: concurrency,
		retryLimit:     3,
		retryDelay:     2 * time.Second,
		completed:      make(map[vintage.Month]int64),
	}
}

// Run feeds jobs to a fixed pool of workers and waits for all of them. A job that keeps
// failing after the retry limit is reported in the summary; Run itself only fails when
// ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) (Summary, error) {
	const component = "Orchestrator"
	o.appLogger.Info(component, "Starting orchestrator: concurrency=%d months=%d", o.maxConcurrency, len(jobs))

	jobChan := make(chan Job)
	resultChan := make(chan Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)

	// 1. Start Workers
	for i := 0; i < o.maxConcurrency; i++ {
		g.Go(func() error {
			return o.worker(gctx, jobChan, resultChan)
		})
	}

	// 2. Feed jobs
	g.Go(func() error {
		defer close(jobChan)
		for _, job := range jobs {
			select {
			case jobChan <- job:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	err := g.Wait()
	close(resultChan)

	// 3. Collect results
	summary := Summary{}
	for result := range resultChan {
		summary.Months++
		if result.Error != nil {
			summary.Failed++
			continue
		}
		summary.Inserted += result.Inserted
	}

	if err != nil {
		return summary, err
	}
	o.appLogger.Info(component, "Orchestrator finished: months=%d failed=%d inserted=%d", summary.Months, summary.Failed, summary.Inserted)
	return summary, nil
}

func (o *Orchestrator) worker(ctx context.Context, jobs <-chan Job, results chan<- Result) error {
	const component = "Worker"

	for job := range jobs {
		result := o.process(ctx, job)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if result.Error != nil {
			o.appLogger.Error(component, "Job failed after max retries: month=%s attempts=%d err=%v", job.Month, result.Job.Attempt, result.Error)
		} else {
			o.appLogger.Info(component, "Job completed successfully: month=%s inserted=%d", job.Month, result.Inserted)
			o.mu.Lock()
			o.completed[job.Month] = result.Inserted
			o.mu.Unlock()
		}
		results <- result
	}
	return nil
}

func (o *Orchestrator) process(ctx context.Context, job Job) Result {
	const component = "Processor"

	from := time.Date(job.Month.Year, job.Month.Month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	for {
		o.appLogger.Debug(component, "Processing job: month=%s rows=%d attempt=%d", job.Month, len(job.Rows), job.Attempt)

		inserted, err := o.storage.Snapshots.ReplaceObserved(ctx, from, to, job.Rows)
		if err == nil {
			return Result{Job: job, Inserted: inserted}
		}
		if job.Attempt >= o.retryLimit || ctx.Err() != nil {
			return Result{Job: job, Error: fmt.Errorf("month %s: %w", job.Month, err)}
		}

		o.appLogger.Warn(component, "Job failed, retrying: month=%s attempt=%d err=%v", job.Month, job.Attempt, err)
		job.Attempt++

		select {
		case <-time.After(o.retryDelay):
		case <-ctx.Done():
			return Result{Job: job, Error: ctx.Err()}
		}
	}
}

// Completed returns the months written so far with their inserted row counts.
func (o *Orchestrator) Completed() map[vintage.Month]int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[vintage.Month]int64, len(o.completed))
	for m, n := range o.completed {
		out[m] = n
	}
	return out
}

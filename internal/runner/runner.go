package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/dshills/gather-mcp/internal/gather"
	"github.com/dshills/gather-mcp/internal/logger"
	"github.com/dshills/gather-mcp/internal/storage"
	"github.com/dshills/gather-mcp/pkg/types"
)

// ErrRunInProgress is returned when another stored-dataset run holds the lock
var ErrRunInProgress = errors.New("a gather run is already in progress")

// Runner coordinates the stored pipeline: load -> gather -> store
type Runner struct {
	storage storage.Storage
	log     *charmlog.Logger
	lock    RunLock

	// Worker pool configuration
	workers int
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the logger used for run summaries
func WithLogger(l *charmlog.Logger) Option {
	return func(r *Runner) {
		r.log = l
	}
}

// WithWorkers sets the default number of document groups formatted at once
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// Request describes one run over a stored dataset
type Request struct {
	Dataset       string         // Input dataset name
	OutputDataset string         // Created or replaced with the results when set
	Config        map[string]any // Raw gather operation config
	Workers       int            // Overrides the runner default when > 0
}

// Statistics contains statistics about one run
type Statistics struct {
	Records  int
	Groups   int
	Cost     float64
	Duration time.Duration
	Output   []types.Record
}

// New creates a new Runner instance
func New(store storage.Storage, opts ...Option) *Runner {
	r := &Runner{
		storage: store,
		log:     logger.Default(),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Gather runs the stage over in-memory records. It takes no lock and touches no
// storage.
func (r *Runner) Gather(ctx context.Context, records []types.Record, raw map[string]any, workers int) (*Statistics, error) {
	st, err := gather.NewStage(raw, gather.WithLogger(r.log))
	if err != nil {
		return nil, err
	}
	return r.gather(ctx, st, records, workers)
}

// Run executes the stage over a stored dataset, optionally storing the output
// as another dataset. Only one Run may be active per Runner.
func (r *Runner) Run(ctx context.Context, req Request) (*Statistics, error) {
	if !r.lock.TryAcquire() {
		return nil, ErrRunInProgress
	}
	defer r.lock.Release()

	// Validate before loading anything
	st, err := gather.NewStage(req.Config, gather.WithLogger(r.log))
	if err != nil {
		return nil, err
	}

	ds, err := r.storage.GetDataset(ctx, req.Dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %q: %w", req.Dataset, err)
	}
	records, err := r.storage.ListRecords(ctx, ds.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records of %q: %w", req.Dataset, err)
	}

	stats, err := r.gather(ctx, st, records, req.Workers)
	if err != nil {
		return nil, err
	}

	run := &storage.Run{
		InputDataset:  req.Dataset,
		OutputDataset: req.OutputDataset,
		RecordCount:   stats.Records,
		GroupCount:    stats.Groups,
		Cost:          stats.Cost,
		Duration:      stats.Duration,
	}
	if req.OutputDataset == "" {
		if err := r.storage.RecordRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
	} else if err := r.storeOutput(ctx, req.OutputDataset, stats.Output, run); err != nil {
		return nil, err
	}

	r.log.Info("gather run complete",
		"dataset", req.Dataset,
		"output", req.OutputDataset,
		"records", stats.Records,
		"groups", stats.Groups,
		"duration", stats.Duration)
	return stats, nil
}

// storeOutput replaces the output dataset's records and records the run in one
// transaction, creating the dataset if needed
func (r *Runner) storeOutput(ctx context.Context, name string, records []types.Record, run *storage.Run) error {
	tx, err := r.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ds, err := tx.GetDataset(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		ds = &storage.Dataset{Name: name}
		err = tx.CreateDataset(ctx, ds)
	}
	if err != nil {
		return fmt.Errorf("failed to prepare output dataset %q: %w", name, err)
	}

	if err = tx.ReplaceRecords(ctx, ds.ID, records); err != nil {
		return fmt.Errorf("failed to store output records: %w", err)
	}
	if err = tx.RecordRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit output: %w", err)
	}
	return nil
}

func (r *Runner) gather(ctx context.Context, st *gather.Stage, records []types.Record, workers int) (*Statistics, error) {
	if workers <= 0 {
		workers = r.workers
	}
	start := time.Now()

	out, cost, err := st.ExecuteParallel(ctx, records, workers)
	if err != nil {
		return nil, err
	}

	return &Statistics{
		Records:  len(out),
		Groups:   countGroups(out, st.Config().DocIDKey),
		Cost:     cost,
		Duration: time.Since(start),
		Output:   out,
	}, nil
}

// countGroups counts distinct document ids. Records have already been grouped
// successfully, so every id is present and usable as a key.
func countGroups(records []types.Record, docIDKey string) int {
	seen := make(map[string]struct{})
	for _, rec := range records {
		key, err := types.DocumentKey(rec[docIDKey])
		if err != nil {
			continue
		}
		seen[key] = struct{}{}
	}
	return len(seen)
}

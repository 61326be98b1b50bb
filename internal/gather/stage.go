package gather

import (
	"context"
	"time"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/gather-mcp/internal/logger"
	"github.com/dshills/gather-mcp/pkg/types"
)

// Stage adds peripheral context to every chunk of its input
type Stage struct {
	cfg *Config
	log *charmlog.Logger
}

// Option configures a Stage
type Option func(*Stage)

// WithLogger sets the logger used for per-execution summaries
func WithLogger(l *charmlog.Logger) Option {
	return func(s *Stage) {
		s.log = l
	}
}

// NewStage validates raw and returns a stage ready to execute. A configuration
// error means no stage is built and nothing is processed.
func NewStage(raw map[string]any, opts ...Option) (*Stage, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	return NewStageFromConfig(cfg, opts...), nil
}

// NewStageFromConfig wraps an already validated configuration
func NewStageFromConfig(cfg *Config, opts ...Option) *Stage {
	s := &Stage{cfg: cfg, log: logger.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the validated configuration
func (s *Stage) Config() *Config {
	return s.cfg
}

// Execute groups records by document and returns one enriched copy per record,
// in group first-seen order and sorted order within each group. The cost is
// always zero: nothing here is metered.
func (s *Stage) Execute(ctx context.Context, records []types.Record) ([]types.Record, float64, error) {
	start := time.Now()

	groups, err := GroupByDocument(records, s.cfg.DocIDKey, s.cfg.OrderKey)
	if err != nil {
		return nil, 0, err
	}

	results := make([]types.Record, 0, len(records))
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		out, err := s.formatGroup(g)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, out...)
	}

	s.log.Debug("gather executed", "records", len(results), "groups", len(groups), "duration", time.Since(start))
	return results, 0, nil
}

// ExecuteParallel produces exactly the output of Execute, formatting up to
// workers document groups at a time. Groups share no state, so each worker
// writes only its own result slot.
func (s *Stage) ExecuteParallel(ctx context.Context, records []types.Record, workers int) ([]types.Record, float64, error) {
	if workers <= 1 {
		return s.Execute(ctx, records)
	}
	start := time.Now()

	groups, err := GroupByDocument(records, s.cfg.DocIDKey, s.cfg.OrderKey)
	if err != nil {
		return nil, 0, err
	}

	slots := make([][]types.Record, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := s.formatGroup(groups[i])
			if err != nil {
				return err
			}
			slots[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	results := make([]types.Record, 0, len(records))
	for _, out := range slots {
		results = append(results, out...)
	}

	s.log.Debug("gather executed", "records", len(results), "groups", len(groups),
		"workers", workers, "duration", time.Since(start))
	return results, 0, nil
}

func (s *Stage) formatGroup(g Group) ([]types.Record, error) {
	out := make([]types.Record, len(g.Chunks))
	key := s.cfg.FormattedKey()
	for i, chunk := range g.Chunks {
		formatted, err := FormatChunkWithContext(g.Chunks, i, s.cfg)
		if err != nil {
			return nil, &DataError{DocID: g.DocID, Index: i, Err: err}
		}
		res := chunk.Clone()
		res[key] = formatted
		out[i] = res
	}
	return out, nil
}

package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/DrKenReid/DeadLinkScraper/internal/model"
)

// SessionFactory builds a configured Session for one target. The batch
// processor calls it once per target so each session gets its own
// frontier, sink, and check cache.
type SessionFactory func(target string) (*Session, error)

// BatchResult pairs a target with its scan outcome. Exactly one of
// Report and Err is set.
type BatchResult struct {
	Target string
	Report *model.ScanReport
	Err    error
}

// BatchProcessor scans multiple targets with bounded parallelism across
// sites. Each site still uses its session's own worker pool internally.
type BatchProcessor struct {
	factory  SessionFactory
	parallel int
	logger   *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchParallelism bounds how many sites scan at once.
func WithBatchParallelism(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.parallel = n
		}
	}
}

// WithBatchLogger sets the structured logger for batch progress.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) { b.logger = logger }
}

// NewBatchProcessor creates a BatchProcessor around a session factory.
func NewBatchProcessor(factory SessionFactory, opts ...BatchOption) (*BatchProcessor, error) {
	if factory == nil {
		return nil, fmt.Errorf("batch processor: nil session factory")
	}
	b := &BatchProcessor{
		factory:  factory,
		parallel: 2,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Run scans every target and returns one result per target, in input
// order. A target that fails (unreachable base, bad URL) gets an error
// result; it never aborts the other targets.
func (b *BatchProcessor) Run(ctx context.Context, targets []string) []BatchResult {
	results := make([]BatchResult, len(targets))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallel)

	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			b.logger.Info("batch scan starting", "target", target)

			res := BatchResult{Target: target}
			session, err := b.factory(target)
			if err != nil {
				res.Err = err
			} else {
				res.Report, res.Err = session.Run(gctx)
			}

			if res.Err != nil {
				b.logger.Warn("batch scan failed", "target", target, "error", res.Err)
			} else {
				b.logger.Info("batch scan finished",
					"target", target,
					"pagesScanned", res.Report.PagesScanned,
					"deadLinks", res.Report.DeadLinkCount(),
				)
			}

			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // per-target failures live in results

	return results
}

// Package engine drives one audit run: it wires the history enumerator,
// the deduplicating content cache, the pattern classification workers, and
// the single-consumer aggregator into a report.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ukbb-tools/gitaudit/internal/aggregate"
	"github.com/ukbb-tools/gitaudit/internal/classify"
	"github.com/ukbb-tools/gitaudit/internal/contentcache"
	"github.com/ukbb-tools/gitaudit/internal/history"
	"github.com/ukbb-tools/gitaudit/internal/observability"
	"github.com/ukbb-tools/gitaudit/internal/report"
)

// eventBuffer decouples classification workers from the aggregator enough
// to ride out blob-size variance without unbounded growth.
const eventBuffer = 256

// Options configures one audit run.
type Options struct {
	// Workers bounds concurrent classification. Zero means GOMAXPROCS.
	Workers int
	// TruncatedPolicy decides how truncated scans weight into frequency
	// totals.
	TruncatedPolicy aggregate.TruncatedPolicy
	// RepoPath is recorded in the report metadata.
	RepoPath string
	// OnCommit, when set, observes every visited commit header. Used to
	// build the contributor table alongside the audit.
	OnCommit func(history.CommitNode)
}

// Engine runs audits against one object store.
type Engine struct {
	store      history.Store
	classifier *classify.Engine
	cache      *contentcache.Cache
	logger     *slog.Logger
	metrics    *observability.Metrics
	opts       Options
}

// New creates an engine. metrics may be nil.
func New(store history.Store, classifier *classify.Engine, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	return &Engine{
		store:      store,
		classifier: classifier,
		cache:      contentcache.New(store, classifier),
		logger:     logger,
		metrics:    metrics,
		opts:       opts,
	}
}

// Cache exposes the content cache, mainly for checkpointing and tests.
func (e *Engine) Cache() *contentcache.Cache {
	return e.cache
}

// Run executes the audit. Traversal is sequential over the commit graph;
// classification fans out across the worker pool; the aggregator is the
// single consumer of the event stream. On a fatal traversal error the
// already-aggregated partial report is returned together with the error.
func (e *Engine) Run(ctx context.Context) (*report.Report, error) {
	started := time.Now()

	refs, err := e.store.ListRefs()
	if err != nil {
		return nil, err
	}

	e.logger.Info("starting audit", "repo", e.opts.RepoPath, "refs", len(refs), "workers", e.opts.Workers)

	agg := aggregate.New(e.opts.TruncatedPolicy)
	events := make(chan aggregate.Event, eventBuffer)
	aggDone := make(chan struct{})

	go func() {
		defer close(aggDone)

		for ev := range events {
			agg.Add(ev)
		}
	}()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.opts.Workers)

	enumerator := history.NewEnumerator(e.store, e.logger)
	enumerator.OnCommit = e.opts.OnCommit

	stats, walkErr := enumerator.Enumerate(groupCtx, refs, func(occ history.Occurrence) error {
		e.metrics.RecordOccurrence(groupCtx)

		if occ.Unresolvable {
			events <- aggregate.Event{Occ: occ}

			return nil
		}

		group.Go(func() error {
			return e.classifyOccurrence(groupCtx, occ, events)
		})

		// Stop issuing work once a worker failed fatally.
		return context.Cause(groupCtx)
	})

	workerErr := group.Wait()
	close(events)
	<-aggDone

	e.metrics.RecordCommits(ctx, stats.Commits)

	meta := report.Meta{
		RepoPath:      e.opts.RepoPath,
		RepoName:      filepath.Base(e.opts.RepoPath),
		Refs:          stats.Refs,
		Commits:       stats.Commits,
		DistinctBlobs: e.cache.Len(),
		ScanRuns:      e.cache.Invocations(),
		ReadErrors:    stats.ReadErrors,
		StartedAt:     started,
		FinishedAt:    time.Now(),
	}

	runErr := errors.Join(walkErr, workerErr)
	rep := agg.Finalize(meta, runErr != nil)

	if runErr != nil {
		e.logger.Error("audit ended early, report is partial",
			"err", runErr, "rows", len(rep.Rows))

		return rep, runErr
	}

	e.logger.Info("audit complete",
		"commits", stats.Commits,
		"occurrences", stats.Occurrences,
		"distinct_blobs", meta.DistinctBlobs,
		"scans", meta.ScanRuns,
		"duration", time.Since(started))

	return rep, nil
}

// classifyOccurrence resolves one occurrence's classification through the
// cache and emits the event. Read failures mark the occurrence
// unresolvable; only invariant violations propagate as fatal.
func (e *Engine) classifyOccurrence(ctx context.Context, occ history.Occurrence, events chan<- aggregate.Event) error {
	ev := aggregate.Event{
		Occ:          occ,
		PathFindings: e.classifier.ClassifyPath(occ.Path),
	}

	scanStart := time.Now()

	result, computed, err := e.cache.Classify(ctx, occ.Content)

	switch {
	case err == nil:
		ev.Result = result
		e.recordScan(ctx, result, computed, time.Since(scanStart))
	case errors.Is(err, contentcache.ErrCacheCoordination):
		return err
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		// One unreadable object; flag and continue.
		e.logger.Warn("content unreadable", "content", occ.Content.Short(), "path", occ.Path, "err", err)
		e.metrics.RecordReadError(ctx)
		ev.Occ.Unresolvable = true
	}

	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

func (e *Engine) recordScan(ctx context.Context, result *classify.Result, computed bool, elapsed time.Duration) {
	if !computed {
		e.metrics.RecordCacheHit(ctx)

		return
	}

	e.metrics.RecordScan(ctx, elapsed, result.Truncated)

	for kind, summary := range result.Kinds {
		e.metrics.RecordFindings(ctx, kind, summary.Count)
	}
}

package history

import (
	"context"
	"log/slog"

	"github.com/ukbb-tools/gitaudit/pkg/gitlib"
)

// EmitFunc receives occurrences as traversal produces them. Returning an
// error stops the traversal.
type EmitFunc func(Occurrence) error

// Enumerator walks the full commit graph and yields one occurrence per
// (commit, changed path) pair. Traversal order is topological, oldest
// ancestor first, and each commit is visited exactly once regardless of how
// many refs reach it.
type Enumerator struct {
	store  Store
	logger *slog.Logger

	// OnCommit, when set, is called once per visited commit before its
	// occurrences are emitted. Used for contributor bookkeeping.
	OnCommit func(CommitNode)
}

// NewEnumerator creates an enumerator over the given store.
func NewEnumerator(store Store, logger *slog.Logger) *Enumerator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Enumerator{store: store, logger: logger}
}

// Enumerate walks all commits reachable from refs and emits occurrences.
// Per-object read failures are tolerated: the affected paths are emitted
// flagged unresolvable (when known) or counted in Stats.ReadErrors, and
// traversal continues. Graph-level failures abort with ErrGraphIntegrity.
func (e *Enumerator) Enumerate(ctx context.Context, refs []gitlib.Ref, emit EmitFunc) (Stats, error) {
	stats := Stats{Refs: len(refs)}

	graph, err := loadGraph(ctx, e.store, refs, e.logger)
	if err != nil {
		return stats, err
	}

	stats.ReadErrors += graph.loadFails

	order, err := graph.topoOrder()
	if err != nil {
		return stats, err
	}

	for orderKey, idx := range order {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stats, ctxErr
		}

		if e.OnCommit != nil {
			e.OnCommit(graph.nodes[idx])
		}

		emitted, commitErr := e.emitCommit(ctx, graph, idx, orderKey, &stats, emit)
		stats.Occurrences += emitted
		stats.Commits++

		if commitErr != nil {
			return stats, commitErr
		}
	}

	return stats, nil
}

// Commits walks the graph reachable from refs and returns every commit
// header in topological order, without touching trees or blobs. Used when
// only commit metadata is needed.
func (e *Enumerator) Commits(ctx context.Context, refs []gitlib.Ref) ([]CommitNode, error) {
	graph, err := loadGraph(ctx, e.store, refs, e.logger)
	if err != nil {
		return nil, err
	}

	order, err := graph.topoOrder()
	if err != nil {
		return nil, err
	}

	nodes := make([]CommitNode, 0, len(order))
	for _, idx := range order {
		nodes = append(nodes, graph.nodes[idx])
	}

	return nodes, nil
}

// emitCommit produces the occurrences for one commit: the full tree listing
// for roots, otherwise the union of diffs against each parent keyed by path
// (first parent wins on conflicts, so merge bookkeeping is deterministic).
func (e *Enumerator) emitCommit(ctx context.Context, graph *commitGraph, idx, orderKey int, stats *Stats, emit EmitFunc) (int, error) {
	node := graph.nodes[idx]

	if len(graph.parents[idx]) == 0 {
		return e.emitRoot(ctx, node, orderKey, stats, emit)
	}

	type pathChange struct {
		content gitlib.Hash
		kind    ChangeKind
	}

	merged := make(map[string]pathChange)
	paths := make([]string, 0)
	readFailed := 0

	for _, parentIdx := range graph.parents[idx] {
		parent := graph.nodes[parentIdx]

		changes, diffErr := e.store.Diff(ctx, node.ID, parent.ID)
		if diffErr != nil {
			e.logger.Warn("diff failed, parent side skipped",
				"commit", node.ID.Short(), "parent", parent.ID.Short(), "err", diffErr)

			readFailed++
			stats.ReadErrors++

			continue
		}

		for _, change := range changes {
			path, content, kind := splitChange(change)
			if _, seen := merged[path]; seen {
				continue
			}

			merged[path] = pathChange{content: content, kind: kind}
			paths = append(paths, path)
		}
	}

	if readFailed == len(graph.parents[idx]) {
		// Every parent diff failed; the commit's changes are unknown.
		// Record the gap rather than abort.
		return 0, e.emitUnresolvableCommit(node, orderKey, emit)
	}

	emitted := 0

	for _, path := range paths {
		change := merged[path]

		err := emit(Occurrence{
			Commit:  node.ID,
			Order:   orderKey,
			Path:    path,
			Content: change.content,
			Change:  change.kind,
		})
		if err != nil {
			return emitted, err
		}

		emitted++
	}

	return emitted, nil
}

// emitRoot lists the full tree of a root commit; every blob is an addition.
func (e *Enumerator) emitRoot(ctx context.Context, node CommitNode, orderKey int, stats *Stats, emit EmitFunc) (int, error) {
	entries, err := e.store.Tree(ctx, node.Tree)
	if err != nil {
		e.logger.Warn("root tree unreadable", "commit", node.ID.Short(), "err", err)
		stats.ReadErrors++

		return 0, e.emitUnresolvableCommit(node, orderKey, emit)
	}

	emitted := 0

	for _, entry := range entries {
		emitErr := emit(Occurrence{
			Commit:  node.ID,
			Order:   orderKey,
			Path:    entry.Path,
			Content: entry.Hash,
			Change:  Added,
		})
		if emitErr != nil {
			return emitted, emitErr
		}

		emitted++
	}

	return emitted, nil
}

// emitUnresolvableCommit emits a single flagged occurrence so the gap shows
// up in the report instead of being silently dropped.
func (e *Enumerator) emitUnresolvableCommit(node CommitNode, orderKey int, emit EmitFunc) error {
	return emit(Occurrence{
		Commit:       node.ID,
		Order:        orderKey,
		Path:         "",
		Content:      gitlib.ZeroHash(),
		Change:       Unchanged,
		Unresolvable: true,
	})
}

// splitChange maps a tree diff change onto the occurrence fields. Deleted
// paths keep the content id of the last known version.
func splitChange(change *gitlib.Change) (path string, content gitlib.Hash, kind ChangeKind) {
	switch change.Action {
	case gitlib.Insert:
		return change.To.Name, change.To.Hash, Added
	case gitlib.Delete:
		return change.From.Name, change.From.Hash, Deleted
	case gitlib.Modify:
		return change.To.Name, change.To.Hash, Modified
	default:
		return change.To.Name, change.To.Hash, Unchanged
	}
}

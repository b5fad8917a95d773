package history

import (
	"bytes"
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ukbb-tools/gitaudit/pkg/gitlib"
)

// commitGraph is an arena of commit nodes indexed densely, with the parent
// relation kept as integer adjacency. Keeping the graph off the call stack
// avoids recursion depth limits on long histories.
type commitGraph struct {
	nodes     []CommitNode
	parents   [][]int
	children  [][]int
	index     map[gitlib.Hash]int
	loadFails int
}

// loadGraph walks commits reachable from the given ref tips with an explicit
// work queue and a visited set, loading each commit header exactly once.
// Parents missing from the object store (shallow boundaries) are treated as
// roots; a commit listed as its own ancestor is an integrity violation.
func loadGraph(ctx context.Context, store Store, refs []gitlib.Ref, logger *slog.Logger) (*commitGraph, error) {
	graph := &commitGraph{index: make(map[gitlib.Hash]int)}

	queue := make([]gitlib.Hash, 0, len(refs))
	queued := make(map[gitlib.Hash]struct{}, len(refs))

	for _, ref := range refs {
		if _, seen := queued[ref.Target]; seen {
			continue
		}

		queued[ref.Target] = struct{}{}
		queue = append(queue, ref.Target)
	}

	for len(queue) > 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		hash := queue[0]
		queue = queue[1:]

		node, err := store.Commit(ctx, hash)
		if err != nil {
			// A missing tip or an unreadable interior commit loses that
			// subgraph but not the audit.
			logger.Warn("skipping unreadable commit", "commit", hash.Short(), "err", err)
			graph.loadFails++

			continue
		}

		graph.index[hash] = len(graph.nodes)
		graph.nodes = append(graph.nodes, node)

		for _, parent := range node.Parents {
			if parent == hash {
				return nil, fmt.Errorf("commit %s is its own parent: %w", hash.Short(), ErrGraphIntegrity)
			}

			if _, seen := queued[parent]; !seen {
				queued[parent] = struct{}{}
				queue = append(queue, parent)
			}
		}
	}

	graph.parents = make([][]int, len(graph.nodes))
	graph.children = make([][]int, len(graph.nodes))

	for idx, node := range graph.nodes {
		for _, parent := range node.Parents {
			parentIdx, ok := graph.index[parent]
			if !ok {
				// Shallow boundary: the parent was announced but never
				// loaded. Treat the commit as a root on that side.
				continue
			}

			graph.parents[idx] = append(graph.parents[idx], parentIdx)
			graph.children[parentIdx] = append(graph.children[parentIdx], idx)
		}
	}

	return graph, nil
}

// topoOrder returns commit indices ordered oldest ancestor first using
// Kahn's algorithm. Ties are broken by commit time then hash, which makes
// the order stable regardless of the order refs were pushed. Any node left
// unprocessed belongs to a cycle.
func (g *commitGraph) topoOrder() ([]int, error) {
	n := len(g.nodes)
	remaining := make([]int, n)
	ready := &commitHeap{graph: g}

	for idx := range n {
		remaining[idx] = len(g.parents[idx])
		if remaining[idx] == 0 {
			heap.Push(ready, idx)
		}
	}

	order := make([]int, 0, n)

	for ready.Len() > 0 {
		idx, _ := heap.Pop(ready).(int)
		order = append(order, idx)

		for _, child := range g.children[idx] {
			remaining[child]--
			if remaining[child] == 0 {
				heap.Push(ready, child)
			}
		}
	}

	if len(order) != n {
		return nil, fmt.Errorf("%d commits form a cycle: %w", n-len(order), ErrGraphIntegrity)
	}

	return order, nil
}

func (g *commitGraph) whenOf(idx int) time.Time {
	return g.nodes[idx].When
}

// commitHeap orders ready commit indices by (commit time, hash).
type commitHeap struct {
	graph *commitGraph
	items []int
}

func (h *commitHeap) Len() int { return len(h.items) }

func (h *commitHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]

	if !h.graph.whenOf(a).Equal(h.graph.whenOf(b)) {
		return h.graph.whenOf(a).Before(h.graph.whenOf(b))
	}

	return bytes.Compare(h.graph.nodes[a].ID[:], h.graph.nodes[b].ID[:]) < 0
}

func (h *commitHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *commitHeap) Push(x any) {
	idx, _ := x.(int)
	h.items = append(h.items, idx)
}

func (h *commitHeap) Pop() any {
	last := len(h.items) - 1
	idx := h.items[last]
	h.items = h.items[:last]

	return idx
}

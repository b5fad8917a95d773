package history

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ukbb-tools/gitaudit/pkg/gitlib"
)

// MemStore is an in-memory Store used by tests across the engine packages.
// Repositories are assembled commit by commit; diffs are derived from the
// recorded tree listings. Individual objects can be marked corrupt to
// exercise partial-failure paths.
type MemStore struct {
	refs    []gitlib.Ref
	commits map[gitlib.Hash]CommitNode
	trees   map[gitlib.Hash][]gitlib.PathEntry
	blobs   map[gitlib.Hash][]byte
	corrupt map[gitlib.Hash]bool

	openCalls atomic.Int64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		commits: make(map[gitlib.Hash]CommitNode),
		trees:   make(map[gitlib.Hash][]gitlib.PathEntry),
		blobs:   make(map[gitlib.Hash][]byte),
		corrupt: make(map[gitlib.Hash]bool),
	}
}

// AddBlob records a content object under the given short hex id.
func (m *MemStore) AddBlob(id string, data []byte) gitlib.Hash {
	hash := gitlib.NewHash(id)
	m.blobs[hash] = data

	return hash
}

// AddCommit records a commit whose tree contains the given path to blob-id
// mapping. The tree id is derived from the commit id. Returns the commit
// hash.
func (m *MemStore) AddCommit(id string, parents []string, when time.Time, files map[string]string) gitlib.Hash {
	hash := gitlib.NewHash(id)
	treeID := treeIDFor(hash)

	entries := make([]gitlib.PathEntry, 0, len(files))
	for path, blobID := range files {
		entries = append(entries, gitlib.PathEntry{Path: path, Hash: gitlib.NewHash(blobID), Mode: 0o100644})
	}

	parentHashes := make([]gitlib.Hash, 0, len(parents))
	for _, parent := range parents {
		parentHashes = append(parentHashes, gitlib.NewHash(parent))
	}

	m.commits[hash] = CommitNode{ID: hash, Parents: parentHashes, Tree: treeID, When: when}
	m.trees[treeID] = entries

	return hash
}

// AddRef records a named entry point.
func (m *MemStore) AddRef(name, commitID string) {
	m.refs = append(m.refs, gitlib.Ref{Name: name, Target: gitlib.NewHash(commitID)})
}

// MarkCorrupt makes every read of the given object fail.
func (m *MemStore) MarkCorrupt(id string) {
	m.corrupt[gitlib.NewHash(id)] = true
}

// OpenCalls reports how many times OpenContent was invoked.
func (m *MemStore) OpenCalls() int64 {
	return m.openCalls.Load()
}

// ListRefs implements Store.
func (m *MemStore) ListRefs() ([]gitlib.Ref, error) {
	refs := make([]gitlib.Ref, len(m.refs))
	copy(refs, m.refs)

	return refs, nil
}

// Commit implements Store.
func (m *MemStore) Commit(_ context.Context, id gitlib.Hash) (CommitNode, error) {
	if m.corrupt[id] {
		return CommitNode{}, fmt.Errorf("commit %s: %w", id.Short(), ErrObjectRead)
	}

	node, ok := m.commits[id]
	if !ok {
		return CommitNode{}, fmt.Errorf("commit %s not found: %w", id.Short(), ErrObjectRead)
	}

	return node, nil
}

// Tree implements Store.
func (m *MemStore) Tree(_ context.Context, id gitlib.Hash) ([]gitlib.PathEntry, error) {
	if m.corrupt[id] {
		return nil, fmt.Errorf("tree %s: %w", id.Short(), ErrObjectRead)
	}

	entries, ok := m.trees[id]
	if !ok {
		return nil, fmt.Errorf("tree %s not found: %w", id.Short(), ErrObjectRead)
	}

	return entries, nil
}

// Diff implements Store by comparing recorded tree listings.
func (m *MemStore) Diff(ctx context.Context, commit, parent gitlib.Hash) (gitlib.Changes, error) {
	commitNode, err := m.Commit(ctx, commit)
	if err != nil {
		return nil, err
	}

	parentNode, err := m.Commit(ctx, parent)
	if err != nil {
		return nil, err
	}

	current, err := m.Tree(ctx, commitNode.Tree)
	if err != nil {
		return nil, err
	}

	previous, err := m.Tree(ctx, parentNode.Tree)
	if err != nil {
		return nil, err
	}

	return diffListings(previous, current), nil
}

// OpenContent implements Store.
func (m *MemStore) OpenContent(_ context.Context, id gitlib.Hash) ([]byte, int64, error) {
	m.openCalls.Add(1)

	if m.corrupt[id] {
		return nil, 0, fmt.Errorf("blob %s: %w", id.Short(), ErrObjectRead)
	}

	data, ok := m.blobs[id]
	if !ok {
		return nil, 0, fmt.Errorf("blob %s not found: %w", id.Short(), ErrObjectRead)
	}

	return data, int64(len(data)), nil
}

func diffListings(previous, current []gitlib.PathEntry) gitlib.Changes {
	prevByPath := make(map[string]gitlib.PathEntry, len(previous))
	for _, entry := range previous {
		prevByPath[entry.Path] = entry
	}

	var changes gitlib.Changes

	for _, entry := range current {
		prev, existed := prevByPath[entry.Path]
		delete(prevByPath, entry.Path)

		switch {
		case !existed:
			changes = append(changes, &gitlib.Change{
				Action: gitlib.Insert,
				To:     gitlib.ChangeEntry{Name: entry.Path, Hash: entry.Hash},
			})
		case prev.Hash != entry.Hash:
			changes = append(changes, &gitlib.Change{
				Action: gitlib.Modify,
				From:   gitlib.ChangeEntry{Name: prev.Path, Hash: prev.Hash},
				To:     gitlib.ChangeEntry{Name: entry.Path, Hash: entry.Hash},
			})
		}
	}

	deleted := make([]string, 0, len(prevByPath))
	for path := range prevByPath {
		deleted = append(deleted, path)
	}

	sort.Strings(deleted)

	for _, path := range deleted {
		prev := prevByPath[path]
		changes = append(changes, &gitlib.Change{
			Action: gitlib.Delete,
			From:   gitlib.ChangeEntry{Name: prev.Path, Hash: prev.Hash},
		})
	}

	return changes
}

func treeIDFor(commit gitlib.Hash) gitlib.Hash {
	tree := commit
	tree[gitlib.HashSize-1] ^= 0xff

	return tree
}

package history

import (
	"context"
	"time"

	"github.com/ukbb-tools/gitaudit/pkg/gitlib"
)

// CommitNode is the immutable commit header the enumerator traverses on.
type CommitNode struct {
	ID        gitlib.Hash
	Parents   []gitlib.Hash
	Tree      gitlib.Hash
	When      time.Time
	Author    gitlib.Signature
	Committer gitlib.Signature
}

// Store is the read-only object store boundary. The enumerator and the
// content cache reach the repository only through it, which keeps the
// engine testable against an in-memory implementation.
type Store interface {
	// ListRefs returns every entry point into the commit graph.
	ListRefs() ([]gitlib.Ref, error)
	// Commit returns the commit header for the given id.
	Commit(ctx context.Context, id gitlib.Hash) (CommitNode, error)
	// Tree returns the full recursive blob listing of the given tree.
	Tree(ctx context.Context, id gitlib.Hash) ([]gitlib.PathEntry, error)
	// Diff returns the path-level changes from parent to commit.
	Diff(ctx context.Context, commit, parent gitlib.Hash) (gitlib.Changes, error)
	// OpenContent returns the bytes and size of a content object.
	OpenContent(ctx context.Context, id gitlib.Hash) ([]byte, int64, error)
}

// GitStore adapts a gitlib repository to the Store interface.
type GitStore struct {
	repo *gitlib.Repository
}

// NewGitStore wraps an open repository.
func NewGitStore(repo *gitlib.Repository) *GitStore {
	return &GitStore{repo: repo}
}

// ListRefs implements Store.
func (s *GitStore) ListRefs() ([]gitlib.Ref, error) {
	return s.repo.ListRefs()
}

// Commit implements Store.
func (s *GitStore) Commit(ctx context.Context, id gitlib.Hash) (CommitNode, error) {
	commit, err := s.repo.LookupCommit(ctx, id)
	if err != nil {
		return CommitNode{}, err
	}
	defer commit.Free()

	return CommitNode{
		ID:        commit.Hash(),
		Parents:   commit.ParentHashes(),
		Tree:      commit.TreeHash(),
		When:      commit.Committer().When,
		Author:    commit.Author(),
		Committer: commit.Committer(),
	}, nil
}

// Tree implements Store.
func (s *GitStore) Tree(_ context.Context, id gitlib.Hash) ([]gitlib.PathEntry, error) {
	tree, err := s.repo.LookupTree(id)
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	return gitlib.ListTree(s.repo, tree)
}

// Diff implements Store.
func (s *GitStore) Diff(ctx context.Context, commit, parent gitlib.Hash) (gitlib.Changes, error) {
	current, err := s.treeOf(ctx, commit)
	if err != nil {
		return nil, err
	}
	defer current.Free()

	previous, err := s.treeOf(ctx, parent)
	if err != nil {
		return nil, err
	}
	defer previous.Free()

	return gitlib.TreeDiff(s.repo, previous, current)
}

// OpenContent implements Store.
func (s *GitStore) OpenContent(ctx context.Context, id gitlib.Hash) ([]byte, int64, error) {
	return s.repo.ReadBlob(ctx, id)
}

func (s *GitStore) treeOf(ctx context.Context, commitID gitlib.Hash) (*gitlib.Tree, error) {
	commit, err := s.repo.LookupCommit(ctx, commitID)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	return commit.Tree()
}

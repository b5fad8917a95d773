package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeAction is the kind of change a path underwent between two trees.
type ChangeAction int

const (
	// Insert indicates a new file was added.
	Insert ChangeAction = iota
	// Delete indicates a file was removed.
	Delete
	// Modify indicates a file was modified (renames and copies included).
	Modify
)

// String returns the lowercase name used in reports.
func (a ChangeAction) String() string {
	switch a {
	case Insert:
		return "added"
	case Delete:
		return "deleted"
	case Modify:
		return "modified"
	default:
		return "unknown"
	}
}

// Change is a single file change between two trees. Deleted paths keep the
// last known blob hash in From so later classification can still reach the
// removed content.
type Change struct {
	Action ChangeAction
	From   ChangeEntry
	To     ChangeEntry
}

// ChangeEntry is one side of a change.
type ChangeEntry struct {
	Name string
	Hash Hash
	Size int64
	Mode uint16
}

// Changes is a collection of Change objects.
type Changes []*Change

// TreeDiff computes the changes between two trees. Identical tree ids skip
// the diff entirely (metadata-only commits).
func TreeDiff(repo *Repository, oldTree, newTree *Tree) (Changes, error) {
	if oldTree != nil && newTree != nil && oldTree.Hash() == newTree.Hash() {
		return Changes{}, nil
	}

	diff, err := repo.DiffTreeToTree(oldTree, newTree)
	if err != nil {
		return nil, err
	}
	defer func() { _ = diff.Free() }()

	numDeltas, numErr := diff.NumDeltas()
	if numErr != nil {
		return nil, fmt.Errorf("get num deltas: %w", numErr)
	}

	changes := make(Changes, 0, numDeltas)

	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			return nil, fmt.Errorf("read delta %d: %w", i, deltaErr)
		}

		change := &Change{}

		switch delta.Status {
		case git2go.DeltaAdded:
			change.Action = Insert
			change.To = ChangeEntry{
				Name: delta.NewFile.Path,
				Hash: HashFromOid(delta.NewFile.Oid),
				Size: int64(delta.NewFile.Size),
			}
		case git2go.DeltaDeleted:
			change.Action = Delete
			change.From = ChangeEntry{
				Name: delta.OldFile.Path,
				Hash: HashFromOid(delta.OldFile.Oid),
				Size: int64(delta.OldFile.Size),
			}
		case git2go.DeltaModified, git2go.DeltaRenamed, git2go.DeltaCopied:
			change.Action = Modify
			change.From = ChangeEntry{
				Name: delta.OldFile.Path,
				Hash: HashFromOid(delta.OldFile.Oid),
				Size: int64(delta.OldFile.Size),
			}
			change.To = ChangeEntry{
				Name: delta.NewFile.Path,
				Hash: HashFromOid(delta.NewFile.Oid),
				Size: int64(delta.NewFile.Size),
			}
		case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked,
			git2go.DeltaTypeChange, git2go.DeltaUnreadable, git2go.DeltaConflicted:
			continue
		}

		changes = append(changes, change)
	}

	return changes, nil
}

// InitialTreeChanges creates changes for a root commit: every blob in its
// tree is an insertion.
func InitialTreeChanges(repo *Repository, tree *Tree) (Changes, error) {
	if tree == nil {
		return nil, nil
	}

	entries, err := ListTree(repo, tree)
	if err != nil {
		return nil, err
	}

	changes := make(Changes, 0, len(entries))

	for _, entry := range entries {
		changes = append(changes, &Change{
			Action: Insert,
			To:     ChangeEntry{Name: entry.Path, Hash: entry.Hash, Mode: uint16(entry.Mode)},
		})
	}

	return changes, nil
}

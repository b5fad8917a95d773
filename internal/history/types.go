// Package history enumerates every piece of content that ever existed in a
// repository's commit graph. It walks all refs, visits each commit exactly
// once, and emits one occurrence per (commit, changed path) pair, including
// paths that were later deleted or renamed away.
package history

import (
	"errors"

	"github.com/ukbb-tools/gitaudit/pkg/gitlib"
)

// ErrGraphIntegrity indicates a malformed commit graph (a cycle, or a parent
// pointing at itself). Traversal cannot guarantee correctness past this
// point, so it halts; results aggregated so far remain reportable.
var ErrGraphIntegrity = errors.New("commit graph integrity violation")

// ErrObjectRead indicates a single object could not be read. Recovered:
// the affected occurrence is flagged and traversal continues.
var ErrObjectRead = errors.New("object read failed")

// ChangeKind describes what happened to a path at a commit.
type ChangeKind int

const (
	// Added means the path first appeared at this commit.
	Added ChangeKind = iota
	// Modified means the path's content changed at this commit.
	Modified
	// Deleted means the path was removed at this commit. The occurrence
	// still carries the last known content id.
	Deleted
	// Unchanged means the path was carried through without content change
	// (merge bookkeeping).
	Unchanged
)

// String returns the report form of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Occurrence is one (commit, path) pairing pointing at a content object.
// This is the unit consumed by the aggregator.
type Occurrence struct {
	Commit       gitlib.Hash
	Order        int // dense topological order key, oldest ancestor first
	Path         string
	Content      gitlib.Hash
	Change       ChangeKind
	Unresolvable bool // the object behind this entry could not be read
}

// Stats summarizes one traversal.
type Stats struct {
	Commits     int
	Refs        int
	Occurrences int
	ReadErrors  int
}

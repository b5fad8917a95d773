// Package report holds the finalized, deterministic result set of one audit
// run and serializes it for auditors: CSV reports, an HTML frequency chart,
// and a terminal summary.
package report

import (
	"time"

	"github.com/ukbb-tools/gitaudit/internal/classify"
	"github.com/ukbb-tools/gitaudit/pkg/gitlib"
)

// RowStatus tells report consumers whether a row's data is trustworthy.
type RowStatus string

const (
	// StatusComplete means the content was fully scanned.
	StatusComplete RowStatus = "complete"
	// StatusTruncated means the scan stopped at the size limit; results
	// may be incomplete for this object.
	StatusTruncated RowStatus = "truncated"
	// StatusUnresolvable means the object could not be read.
	StatusUnresolvable RowStatus = "unresolvable"
	// StatusBinarySkipped means binary content was skipped by configuration.
	StatusBinarySkipped RowStatus = "binary-skipped"
)

// AuditRow is one row per distinct (path, content id) ever observed in
// history. Immutable once the report is built.
type AuditRow struct {
	Path        string
	Content     gitlib.Hash
	FirstSeen   gitlib.Hash
	LastSeen    gitlib.Hash
	Deleted     bool
	Occurrences int // how many commits referenced this (path, content) pair
	Size        int64
	LineCount   int
	Status      RowStatus
	Matches     map[string]*classify.KindSummary
	PathMatches int // identifier hits in the file name itself
}

// TotalMatches sums content matches and path-name matches for the row.
func (r *AuditRow) TotalMatches() int {
	total := r.PathMatches
	for _, summary := range r.Matches {
		total += summary.Count
	}

	return total
}

// FrequencyEntry is one normalized matched value with its cumulative count
// across history. Occurrences are counted once per distinct content object,
// never per commit or per path.
type FrequencyEntry struct {
	Kind     string
	Value    string
	Count    int
	Contents []gitlib.Hash // distinct content ids the value appeared in, sorted
	Partial  bool          // includes evidence from truncated scans
}

// Meta describes the run that produced a report.
type Meta struct {
	RepoPath      string
	RepoName      string
	Refs          int
	Commits       int
	DistinctBlobs int
	ScanRuns      int64 // actual classification invocations
	ReadErrors    int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Report is the finalized result set handed to writers. Read-only by
// convention: writers never mutate it.
type Report struct {
	Meta      Meta
	Rows      []AuditRow
	Frequency []FrequencyEntry
	// UnresolvedCommits lists commits whose changes could not be
	// enumerated at all; their paths are missing from Rows.
	UnresolvedCommits []gitlib.Hash
	// Partial marks a report cut short by a fatal traversal error. Rows
	// aggregated before the failure are present and valid.
	Partial bool
}

// MatchedRows counts rows with at least one finding.
func (r *Report) MatchedRows() int {
	matched := 0

	for i := range r.Rows {
		if r.Rows[i].TotalMatches() > 0 {
			matched++
		}
	}

	return matched
}

// Package aggregate folds per-content classification results into per-path
// history rows and repository-wide frequency tables. It is the single
// consumer of the traversal event stream; workers emit immutable events and
// need no shared locks.
package aggregate

import (
	"bytes"
	"sort"

	"github.com/ukbb-tools/gitaudit/internal/classify"
	"github.com/ukbb-tools/gitaudit/internal/history"
	"github.com/ukbb-tools/gitaudit/internal/report"
	"github.com/ukbb-tools/gitaudit/pkg/gitlib"
)

// TruncatedPolicy decides how findings from truncated scans weight into
// frequency totals. Row-level summaries always show them.
type TruncatedPolicy string

const (
	// CountFull counts truncated-scan findings like any other (default).
	CountFull TruncatedPolicy = "count_full"
	// CountPartial counts them but marks the affected entries partial.
	CountPartial TruncatedPolicy = "count_partial"
	// Exclude leaves truncated-scan findings out of frequency totals.
	Exclude TruncatedPolicy = "exclude"
)

// Event pairs one history occurrence with the classification of its
// content. Result is nil when the content could not be read.
type Event struct {
	Occ          history.Occurrence
	Result       *classify.Result
	PathFindings []classify.Finding
}

type rowKey struct {
	path    string
	content gitlib.Hash
}

type rowState struct {
	firstOrder   int
	firstCommit  gitlib.Hash
	lastOrder    int
	lastCommit   gitlib.Hash
	deleted      bool
	occurrences  int
	unresolvable bool
	result       *classify.Result
	pathMatches  int
}

type freqKey struct {
	kind  string
	value string
}

type freqState struct {
	count    int
	contents map[gitlib.Hash]struct{}
	partial  bool
}

// Aggregator consumes events in any order and produces the final report.
// First/last-seen bounds come from the traversal order key, not arrival
// order, so concurrent classification cannot skew them.
type Aggregator struct {
	policy TruncatedPolicy

	rows        map[rowKey]*rowState
	counted     map[gitlib.Hash]struct{} // content ids already in frequency totals
	freq        map[freqKey]*freqState
	unresolved  []gitlib.Hash
	unreadable  map[gitlib.Hash]struct{} // content ids that could not be read
	occurrences int
}

// New creates an aggregator with the given truncation policy. An empty
// policy selects CountFull.
func New(policy TruncatedPolicy) *Aggregator {
	if policy == "" {
		policy = CountFull
	}

	return &Aggregator{
		policy:     policy,
		rows:       make(map[rowKey]*rowState),
		counted:    make(map[gitlib.Hash]struct{}),
		freq:       make(map[freqKey]*freqState),
		unreadable: make(map[gitlib.Hash]struct{}),
	}
}

// Add consumes one event.
func (a *Aggregator) Add(ev Event) {
	a.occurrences++

	if ev.Occ.Path == "" && ev.Occ.Unresolvable {
		// A whole commit whose changes could not be enumerated. The
		// traversal already counted the failure in its stats.
		a.unresolved = append(a.unresolved, ev.Occ.Commit)

		return
	}

	a.updateRow(ev)
	a.updateFrequency(ev)
}

func (a *Aggregator) updateRow(ev Event) {
	key := rowKey{path: ev.Occ.Path, content: ev.Occ.Content}

	row, ok := a.rows[key]
	if !ok {
		row = &rowState{
			firstOrder:  ev.Occ.Order,
			firstCommit: ev.Occ.Commit,
			lastOrder:   ev.Occ.Order,
			lastCommit:  ev.Occ.Commit,
		}
		a.rows[key] = row
	}

	if ev.Occ.Order < row.firstOrder {
		row.firstOrder = ev.Occ.Order
		row.firstCommit = ev.Occ.Commit
	}

	if ev.Occ.Order >= row.lastOrder {
		row.lastOrder = ev.Occ.Order
		row.lastCommit = ev.Occ.Commit
	}

	row.occurrences++

	if ev.Occ.Change == history.Deleted {
		row.deleted = true
	}

	if ev.Occ.Unresolvable || ev.Result == nil {
		// An unreadable object counts once however many commits
		// referenced it.
		row.unresolvable = true
		a.unreadable[ev.Occ.Content] = struct{}{}
	} else {
		row.result = ev.Result
	}

	row.pathMatches = len(ev.PathFindings)
}

// updateFrequency counts each content id exactly once, whatever order the
// events arrive in and however many paths share the content.
func (a *Aggregator) updateFrequency(ev Event) {
	if ev.Result == nil || ev.Result.Empty() {
		return
	}

	if _, done := a.counted[ev.Occ.Content]; done {
		return
	}

	a.counted[ev.Occ.Content] = struct{}{}

	if ev.Result.Truncated && a.policy == Exclude {
		return
	}

	partial := ev.Result.Truncated && a.policy == CountPartial

	for kind, summary := range ev.Result.Kinds {
		for value, count := range summary.Values {
			key := freqKey{kind: kind, value: value}

			entry := a.freq[key]
			if entry == nil {
				entry = &freqState{contents: make(map[gitlib.Hash]struct{})}
				a.freq[key] = entry
			}

			entry.count += count
			entry.contents[ev.Occ.Content] = struct{}{}

			if partial {
				entry.partial = true
			}
		}
	}
}

// Finalize builds the immutable report. meta's traversal fields are filled
// by the caller; unreadable blobs discovered during classification are
// added on top, once per distinct object.
func (a *Aggregator) Finalize(meta report.Meta, partial bool) *report.Report {
	meta.ReadErrors += len(a.unreadable)

	rep := &report.Report{
		Meta:              meta,
		Rows:              a.buildRows(),
		Frequency:         a.buildFrequency(),
		UnresolvedCommits: append([]gitlib.Hash(nil), a.unresolved...),
		Partial:           partial,
	}

	return rep
}

func (a *Aggregator) buildRows() []report.AuditRow {
	rows := make([]report.AuditRow, 0, len(a.rows))

	for key, state := range a.rows {
		row := report.AuditRow{
			Path:        key.path,
			Content:     key.content,
			FirstSeen:   state.firstCommit,
			LastSeen:    state.lastCommit,
			Deleted:     state.deleted,
			Occurrences: state.occurrences,
			Status:      report.StatusComplete,
			PathMatches: state.pathMatches,
		}

		switch {
		case state.unresolvable:
			row.Status = report.StatusUnresolvable
		case state.result != nil && state.result.Binary:
			row.Status = report.StatusBinarySkipped
		case state.result != nil && state.result.Truncated:
			row.Status = report.StatusTruncated
		}

		if state.result != nil {
			row.Size = state.result.Size
			row.LineCount = state.result.LineCount
			row.Matches = state.result.Kinds
		}

		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Path != rows[j].Path {
			return rows[i].Path < rows[j].Path
		}

		return bytes.Compare(rows[i].Content[:], rows[j].Content[:]) < 0
	})

	return rows
}

func (a *Aggregator) buildFrequency() []report.FrequencyEntry {
	entries := make([]report.FrequencyEntry, 0, len(a.freq))

	for key, state := range a.freq {
		contents := make([]gitlib.Hash, 0, len(state.contents))
		for content := range state.contents {
			contents = append(contents, content)
		}

		sort.Slice(contents, func(i, j int) bool {
			return bytes.Compare(contents[i][:], contents[j][:]) < 0
		})

		entries = append(entries, report.FrequencyEntry{
			Kind:     key.kind,
			Value:    key.value,
			Count:    state.count,
			Contents: contents,
			Partial:  state.partial,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}

		if entries[i].Kind != entries[j].Kind {
			return entries[i].Kind < entries[j].Kind
		}

		return entries[i].Value < entries[j].Value
	})

	return entries
}

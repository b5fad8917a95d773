package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukbb-tools/gitaudit/internal/classify"
	"github.com/ukbb-tools/gitaudit/internal/history"
	"github.com/ukbb-tools/gitaudit/internal/report"
	"github.com/ukbb-tools/gitaudit/pkg/gitlib"
)

func resultWith(values map[string]int) *classify.Result {
	summary := &classify.KindSummary{Values: values}
	for _, count := range values {
		summary.Count += count
	}

	return &classify.Result{Kinds: map[string]*classify.KindSummary{"eid": summary}, Size: 10, LineCount: 1}
}

func occ(commit string, order int, path, content string, change history.ChangeKind) history.Occurrence {
	return history.Occurrence{
		Commit:  gitlib.NewHash(commit),
		Order:   order,
		Path:    path,
		Content: gitlib.NewHash(content),
		Change:  change,
	}
}

func TestAggregator_AddModifyDeleteLifecycle(t *testing.T) {
	t.Parallel()

	agg := New(CountFull)
	leak := resultWith(map[string]int{"1234567": 1})

	// v1 added, modified to v2, then deleted.
	agg.Add(Event{Occ: occ("0a", 0, "data.csv", "aa", history.Added), Result: leak})
	agg.Add(Event{Occ: occ("0b", 1, "data.csv", "bb", history.Modified), Result: resultWith(map[string]int{"2345678": 1})})
	agg.Add(Event{Occ: occ("0c", 2, "data.csv", "bb", history.Deleted), Result: resultWith(map[string]int{"2345678": 1})})

	rep := agg.Finalize(report.Meta{}, false)
	require.Len(t, rep.Rows, 2)

	v1 := rep.Rows[0]
	assert.Equal(t, gitlib.NewHash("aa"), v1.Content)
	assert.Equal(t, gitlib.NewHash("0a"), v1.FirstSeen)
	assert.Equal(t, gitlib.NewHash("0a"), v1.LastSeen)
	assert.False(t, v1.Deleted)

	v2 := rep.Rows[1]
	assert.Equal(t, gitlib.NewHash("bb"), v2.Content)
	assert.Equal(t, gitlib.NewHash("0b"), v2.FirstSeen)
	assert.Equal(t, gitlib.NewHash("0c"), v2.LastSeen)
	assert.True(t, v2.Deleted, "deleted content must stay in the report")

	// Each distinct content counts once however many commits touched it.
	require.Len(t, rep.Frequency, 2)
	for _, entry := range rep.Frequency {
		assert.Equal(t, 1, entry.Count, "value %s", entry.Value)
	}
}

func TestAggregator_IdenticalContentTwoPaths(t *testing.T) {
	t.Parallel()

	agg := New(CountFull)
	shared := resultWith(map[string]int{"1234567": 1})

	agg.Add(Event{Occ: occ("0a", 0, "a/data.csv", "aa", history.Added), Result: shared})
	agg.Add(Event{Occ: occ("0a", 0, "b/copy.csv", "aa", history.Added), Result: shared})

	rep := agg.Finalize(report.Meta{}, false)

	// Two rows, one per path.
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, "a/data.csv", rep.Rows[0].Path)
	assert.Equal(t, "b/copy.csv", rep.Rows[1].Path)

	// But the shared content id weights frequency once.
	require.Len(t, rep.Frequency, 1)
	assert.Equal(t, 1, rep.Frequency[0].Count)
	assert.Equal(t, []gitlib.Hash{gitlib.NewHash("aa")}, rep.Frequency[0].Contents)
}

func TestAggregator_DistinctContentSameValueSumsCounts(t *testing.T) {
	t.Parallel()

	agg := New(CountFull)

	agg.Add(Event{Occ: occ("0a", 0, "a.csv", "aa", history.Added), Result: resultWith(map[string]int{"1234567": 1})})
	agg.Add(Event{Occ: occ("0b", 1, "b.csv", "bb", history.Added), Result: resultWith(map[string]int{"1234567": 3})})

	rep := agg.Finalize(report.Meta{}, false)

	require.Len(t, rep.Frequency, 1)
	assert.Equal(t, "1234567", rep.Frequency[0].Value)
	assert.Equal(t, 4, rep.Frequency[0].Count)
	assert.Len(t, rep.Frequency[0].Contents, 2)
}

func TestAggregator_OrderIndependentFrequency(t *testing.T) {
	t.Parallel()

	events := []Event{
		{Occ: occ("0a", 0, "a.csv", "aa", history.Added), Result: resultWith(map[string]int{"1234567": 2})},
		{Occ: occ("0b", 1, "a.csv", "aa", history.Unchanged), Result: resultWith(map[string]int{"1234567": 2})},
		{Occ: occ("0c", 2, "b.csv", "bb", history.Added), Result: resultWith(map[string]int{"1234567": 1})},
	}

	forward := New(CountFull)
	for _, ev := range events {
		forward.Add(ev)
	}

	backward := New(CountFull)
	for i := len(events) - 1; i >= 0; i-- {
		backward.Add(events[i])
	}

	repForward := forward.Finalize(report.Meta{}, false)
	repBackward := backward.Finalize(report.Meta{}, false)

	assert.Equal(t, repForward.Frequency, repBackward.Frequency)
	assert.Equal(t, repForward.Rows, repBackward.Rows)
}

func TestAggregator_FirstLastSeenFromOrderKeysNotArrival(t *testing.T) {
	t.Parallel()

	agg := New(CountFull)
	res := resultWith(map[string]int{"1234567": 1})

	// Events arrive newest first, as concurrent classification allows.
	agg.Add(Event{Occ: occ("0c", 2, "a.csv", "aa", history.Unchanged), Result: res})
	agg.Add(Event{Occ: occ("0a", 0, "a.csv", "aa", history.Added), Result: res})
	agg.Add(Event{Occ: occ("0b", 1, "a.csv", "aa", history.Modified), Result: res})

	rep := agg.Finalize(report.Meta{}, false)
	require.Len(t, rep.Rows, 1)

	assert.Equal(t, gitlib.NewHash("0a"), rep.Rows[0].FirstSeen)
	assert.Equal(t, gitlib.NewHash("0c"), rep.Rows[0].LastSeen)
	assert.Equal(t, 3, rep.Rows[0].Occurrences)
}

func TestAggregator_UnresolvableOccurrence(t *testing.T) {
	t.Parallel()

	agg := New(CountFull)

	unresolvable := occ("0a", 0, "gone.csv", "aa", history.Modified)
	unresolvable.Unresolvable = true

	agg.Add(Event{Occ: unresolvable})

	rep := agg.Finalize(report.Meta{}, false)

	require.Len(t, rep.Rows, 1)
	assert.Equal(t, report.StatusUnresolvable, rep.Rows[0].Status)
	assert.Equal(t, 1, rep.Meta.ReadErrors)
	assert.Empty(t, rep.Frequency)
}

func TestAggregator_UnresolvableCommitListedSeparately(t *testing.T) {
	t.Parallel()

	agg := New(CountFull)

	wholeCommit := history.Occurrence{Commit: gitlib.NewHash("0a"), Unresolvable: true}
	agg.Add(Event{Occ: wholeCommit})

	rep := agg.Finalize(report.Meta{}, false)

	assert.Empty(t, rep.Rows)
	require.Len(t, rep.UnresolvedCommits, 1)
	assert.Equal(t, gitlib.NewHash("0a"), rep.UnresolvedCommits[0])

	// The traversal already counted this failure; adding it again here
	// would double it.
	assert.Zero(t, rep.Meta.ReadErrors)
}

func TestAggregator_UnreadableObjectCountedOncePerBlob(t *testing.T) {
	t.Parallel()

	agg := New(CountFull)

	// The same corrupt blob is referenced from three commits and two
	// paths.
	for i, path := range []string{"a.csv", "a.csv", "b/copy.csv"} {
		bad := occ("0a", i, path, "aa", history.Modified)
		bad.Unresolvable = true
		agg.Add(Event{Occ: bad})
	}

	rep := agg.Finalize(report.Meta{}, false)

	require.Len(t, rep.Rows, 2)
	assert.Equal(t, 1, rep.Meta.ReadErrors)
}

func TestAggregator_TruncatedPolicies(t *testing.T) {
	t.Parallel()

	truncated := resultWith(map[string]int{"1234567": 1})
	truncated.Truncated = true

	cases := []struct {
		policy      TruncatedPolicy
		wantEntries int
		wantPartial bool
	}{
		{CountFull, 1, false},
		{CountPartial, 1, true},
		{Exclude, 0, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.policy), func(t *testing.T) {
			t.Parallel()

			agg := New(tc.policy)
			agg.Add(Event{Occ: occ("0a", 0, "big.csv", "aa", history.Added), Result: truncated})

			rep := agg.Finalize(report.Meta{}, false)

			require.Len(t, rep.Frequency, tc.wantEntries)

			if tc.wantEntries > 0 {
				assert.Equal(t, tc.wantPartial, rep.Frequency[0].Partial)
			}

			// The row always reports the truncation.
			require.Len(t, rep.Rows, 1)
			assert.Equal(t, report.StatusTruncated, rep.Rows[0].Status)
		})
	}
}

func TestAggregator_PartialFlagPropagates(t *testing.T) {
	t.Parallel()

	agg := New(CountFull)
	rep := agg.Finalize(report.Meta{}, true)

	assert.True(t, rep.Partial)
}

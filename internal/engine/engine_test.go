package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukbb-tools/gitaudit/internal/aggregate"
	"github.com/ukbb-tools/gitaudit/internal/classify"
	"github.com/ukbb-tools/gitaudit/internal/history"
	"github.com/ukbb-tools/gitaudit/internal/report"
	"github.com/ukbb-tools/gitaudit/pkg/gitlib"
)

func testTime(offset int) time.Time {
	return time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Minute)
}

func newEngine(store history.Store, opts Options) *Engine {
	classifier := classify.NewEngine(classify.DefaultRuleset(), classify.Options{})
	logger := slog.New(slog.DiscardHandler)

	return New(store, classifier, logger, nil, opts)
}

// leakStore builds the canonical lifecycle: an identifier is committed,
// modified, then deleted.
func leakStore() *history.MemStore {
	store := history.NewMemStore()
	store.AddBlob("aa", []byte("id,age\n1234567,40\n"))
	store.AddBlob("bb", []byte("id,age\n1234567,40\n2345678,51\n"))

	store.AddCommit("01", nil, testTime(0), map[string]string{"exports/data.csv": "aa"})
	store.AddCommit("02", []string{"01"}, testTime(1), map[string]string{"exports/data.csv": "bb"})
	store.AddCommit("03", []string{"02"}, testTime(2), map[string]string{})
	store.AddRef("refs/heads/main", "03")

	return store
}

func findRow(t *testing.T, rep *report.Report, content string) *report.AuditRow {
	t.Helper()

	want := gitlib.NewHash(content)
	for i := range rep.Rows {
		if rep.Rows[i].Content == want {
			return &rep.Rows[i]
		}
	}

	t.Fatalf("no row for content %s", content)

	return nil
}

func TestEngine_DeletedContentSurvivesInReport(t *testing.T) {
	t.Parallel()

	eng := newEngine(leakStore(), Options{RepoPath: "leak"})

	rep, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Partial)

	// Version 1: added at 01, replaced at 02, never itself deleted.
	v1 := findRow(t, rep, "aa")
	assert.Equal(t, gitlib.NewHash("01"), v1.FirstSeen)
	assert.False(t, v1.Deleted)

	// Version 2: added at 02, deleted at 03; still fully reported.
	v2 := findRow(t, rep, "bb")
	assert.Equal(t, gitlib.NewHash("02"), v2.FirstSeen)
	assert.Equal(t, gitlib.NewHash("03"), v2.LastSeen)
	assert.True(t, v2.Deleted)
	require.Contains(t, v2.Matches, "eid")
	assert.Equal(t, 2, v2.Matches["eid"].Count)

	// 1234567 appears in two distinct blobs: counted once per blob.
	require.NotEmpty(t, rep.Frequency)
	assert.Equal(t, "1234567", rep.Frequency[0].Value)
	assert.Equal(t, 2, rep.Frequency[0].Count)
}

func TestEngine_IdenticalContentScannedOnce(t *testing.T) {
	t.Parallel()

	store := history.NewMemStore()
	store.AddBlob("aa", []byte("eid 1234567\n"))

	// The same blob lives at two paths across many commits.
	store.AddCommit("01", nil, testTime(0), map[string]string{"a/data.csv": "aa"})
	store.AddCommit("02", []string{"01"}, testTime(1),
		map[string]string{"a/data.csv": "aa", "b/copy.csv": "aa"})
	store.AddCommit("03", []string{"02"}, testTime(2),
		map[string]string{"a/data.csv": "aa", "b/copy.csv": "aa", "c/third.csv": "aa"})
	store.AddRef("refs/heads/main", "03")

	eng := newEngine(store, Options{RepoPath: "dups", Workers: 4})

	rep, err := eng.Run(context.Background())
	require.NoError(t, err)

	// One physical scan despite three paths referencing the content.
	assert.Equal(t, int64(1), store.OpenCalls())
	assert.Equal(t, int64(1), rep.Meta.ScanRuns)
	assert.Equal(t, 1, rep.Meta.DistinctBlobs)

	// One row per path.
	assert.Len(t, rep.Rows, 3)

	// The value weights frequency once for the single distinct blob.
	require.Len(t, rep.Frequency, 2) // eid kind + keyword kind
	assert.Equal(t, 1, rep.Frequency[0].Count)
}

func TestEngine_Deterministic(t *testing.T) {
	t.Parallel()

	run := func() *report.Report {
		eng := newEngine(leakStore(), Options{RepoPath: "leak", Workers: 8})

		rep, err := eng.Run(context.Background())
		require.NoError(t, err)

		return rep
	}

	first := run()
	second := run()

	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.Frequency, second.Frequency)
}

func TestEngine_CorruptBlobMarksRowUnresolvable(t *testing.T) {
	t.Parallel()

	store := leakStore()
	store.MarkCorrupt("aa")

	eng := newEngine(store, Options{RepoPath: "leak"})

	rep, err := eng.Run(context.Background())
	require.NoError(t, err, "one unreadable object must not abort the audit")

	bad := findRow(t, rep, "aa")
	assert.Equal(t, report.StatusUnresolvable, bad.Status)

	good := findRow(t, rep, "bb")
	assert.Equal(t, report.StatusComplete, good.Status)
	assert.Positive(t, rep.Meta.ReadErrors)
}

func TestEngine_GraphIntegrityFailureReturnsPartialReport(t *testing.T) {
	t.Parallel()

	store := history.NewMemStore()
	store.AddBlob("aa", []byte("x"))
	store.AddCommit("01", []string{"01"}, testTime(0), map[string]string{"a.txt": "aa"})
	store.AddRef("refs/heads/main", "01")

	eng := newEngine(store, Options{RepoPath: "cycle"})

	rep, err := eng.Run(context.Background())

	require.ErrorIs(t, err, history.ErrGraphIntegrity)
	require.NotNil(t, rep, "partial report must accompany the error")
	assert.True(t, rep.Partial)
}

func TestEngine_MultipleRefsSharedHistoryCountedOnce(t *testing.T) {
	t.Parallel()

	store := history.NewMemStore()
	store.AddBlob("aa", []byte("eid 1234567\n"))

	store.AddCommit("01", nil, testTime(0), map[string]string{"data.csv": "aa"})
	store.AddRef("refs/heads/main", "01")
	store.AddRef("refs/heads/backup", "01")
	store.AddRef("refs/tags/v1", "01")

	eng := newEngine(store, Options{RepoPath: "refs"})

	rep, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Meta.Commits)
	assert.Equal(t, 3, rep.Meta.Refs)
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, 1, rep.Rows[0].Occurrences)
}

func TestEngine_TruncatedPolicyExclude(t *testing.T) {
	t.Parallel()

	store := history.NewMemStore()
	big := append([]byte("1234567 "), make([]byte, 1024)...)
	store.AddBlob("aa", big)
	store.AddCommit("01", nil, testTime(0), map[string]string{"big.csv": "aa"})
	store.AddRef("refs/heads/main", "01")

	classifier := classify.NewEngine(classify.DefaultRuleset(), classify.Options{MaxScanSize: 512})
	logger := slog.New(slog.DiscardHandler)

	eng := New(store, classifier, logger, nil, Options{
		RepoPath:        "big",
		TruncatedPolicy: aggregate.Exclude,
	})

	rep, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Rows, 1)
	assert.Equal(t, report.StatusTruncated, rep.Rows[0].Status)
	assert.Empty(t, rep.Frequency, "truncated evidence excluded by policy")
}

func TestEngine_PathOnlyFindings(t *testing.T) {
	t.Parallel()

	store := history.NewMemStore()
	store.AddBlob("aa", []byte("no identifiers in the content\n"))
	store.AddCommit("01", nil, testTime(0), map[string]string{"exports/3240971.tsv": "aa"})
	store.AddRef("refs/heads/main", "01")

	eng := newEngine(store, Options{RepoPath: "paths"})

	rep, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Rows, 1)
	assert.Positive(t, rep.Rows[0].PathMatches, "identifier in the file name must be flagged")
	assert.Positive(t, rep.Rows[0].TotalMatches())
}

func TestEngine_CancelledContextStops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := newEngine(leakStore(), Options{RepoPath: "leak"})

	_, err := eng.Run(ctx)

	assert.Error(t, err)
}

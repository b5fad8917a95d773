package report

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukbb-tools/gitaudit/internal/classify"
	"github.com/ukbb-tools/gitaudit/pkg/gitlib"
)

func sampleReport() *Report {
	return &Report{
		Meta: Meta{RepoName: "biobank-pipeline", Commits: 3, Refs: 1},
		Rows: []AuditRow{
			{
				Path:        "clean/notes.md",
				Content:     gitlib.NewHash("bb"),
				FirstSeen:   gitlib.NewHash("02"),
				LastSeen:    gitlib.NewHash("02"),
				Occurrences: 1,
				Size:        12,
				LineCount:   2,
				Status:      StatusComplete,
			},
			{
				Path:        "exports/data.csv",
				Content:     gitlib.NewHash("aa"),
				FirstSeen:   gitlib.NewHash("01"),
				LastSeen:    gitlib.NewHash("03"),
				Deleted:     true,
				Occurrences: 3,
				Size:        100,
				LineCount:   5,
				Status:      StatusComplete,
				Matches: map[string]*classify.KindSummary{
					"eid": {Count: 3, Values: map[string]int{"1234567": 2, "2345678": 1}},
				},
			},
		},
		Frequency: []FrequencyEntry{
			{Kind: "eid", Value: "1234567", Count: 2, Contents: []gitlib.Hash{gitlib.NewHash("aa")}},
			{Kind: "eid", Value: "2345678", Count: 1, Contents: []gitlib.Hash{gitlib.NewHash("aa")}},
		},
	}
}

func parseCSV(t *testing.T, data []byte) [][]string {
	t.Helper()

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)

	return records
}

func TestWriteAuditCSV_HottestRowsFirst(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteAuditCSV(&buf, sampleReport()))

	records := parseCSV(t, buf.Bytes())
	require.Len(t, records, 3)

	header := records[0]
	assert.Equal(t, "repo_name", header[0])
	assert.Contains(t, header, "eid_occ")
	assert.Contains(t, header, "eid_unique")
	assert.Contains(t, header, "found_values")

	// The flagged row sorts above the clean one.
	assert.Equal(t, "exports/data.csv", records[1][1])
	assert.Equal(t, "clean/notes.md", records[2][1])
}

func TestWriteAuditCSV_RowFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteAuditCSV(&buf, sampleReport()))

	records := parseCSV(t, buf.Bytes())
	header, flagged := records[0], records[1]

	byName := func(name string) string {
		for i, col := range header {
			if col == name {
				return flagged[i]
			}
		}

		t.Fatalf("missing column %q", name)

		return ""
	}

	assert.Equal(t, "biobank-pipeline", byName("repo_name"))
	assert.Equal(t, gitlib.NewHash("aa").String(), byName("blob_hash"))
	assert.Equal(t, "true", byName("deleted"))
	assert.Equal(t, "3", byName("commit_occurrences"))
	assert.Equal(t, "complete", byName("scan_status"))
	assert.Equal(t, "3", byName("eid_occ"))
	assert.Equal(t, "2", byName("eid_unique"))
	assert.Equal(t, "1234567:2;2345678:1", byName("found_values"))
}

func TestWriteFrequencyCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteFrequencyCSV(&buf, sampleReport()))

	records := parseCSV(t, buf.Bytes())
	require.Len(t, records, 3)

	assert.Equal(t, []string{"kind", "value", "count", "distinct_blobs", "partial", "example_blobs"}, records[0])
	assert.Equal(t, "1234567", records[1][1])
	assert.Equal(t, "2", records[1][2])
	assert.Equal(t, gitlib.NewHash("aa").Short(), records[1][5])
}

func TestWriteAuditCSV_EmptyReport(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteAuditCSV(&buf, &Report{Meta: Meta{RepoName: "empty"}}))

	records := parseCSV(t, buf.Bytes())
	assert.Len(t, records, 1, "header only")
}

func TestAuditRow_TotalMatchesIncludesPathHits(t *testing.T) {
	t.Parallel()

	row := AuditRow{
		PathMatches: 1,
		Matches: map[string]*classify.KindSummary{
			"eid": {Count: 2, Values: map[string]int{"1234567": 2}},
		},
	}

	assert.Equal(t, 3, row.TotalMatches())
}

func TestReport_MatchedRows(t *testing.T) {
	t.Parallel()

	rep := sampleReport()

	assert.Equal(t, 1, rep.MatchedRows())
}

package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// sampleValuesLimit caps the found-values column per row.
const sampleValuesLimit = 5

// exampleBlobsLimit caps the example-locations column of the frequency
// table.
const exampleBlobsLimit = 3

// WriteAuditCSV serializes the audit rows. Column layout follows the
// historical audit spreadsheets: one row per (path, content) pair with
// per-pattern-kind match counts appended, ordered by total occurrences so
// the hottest files surface first.
func WriteAuditCSV(w io.Writer, rep *Report) error {
	kinds := collectKinds(rep)

	writer := csv.NewWriter(w)

	header := []string{
		"repo_name", "path", "blob_hash",
		"first_seen", "last_seen", "deleted", "commit_occurrences",
		"size_bytes", "line_count", "scan_status",
		"path_occ", "total_occ",
	}
	for _, kind := range kinds {
		header = append(header, kind+"_occ", kind+"_unique")
	}

	header = append(header, "found_values")

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write audit header: %w", err)
	}

	rows := make([]AuditRow, len(rep.Rows))
	copy(rows, rep.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalMatches() > rows[j].TotalMatches()
	})

	for i := range rows {
		if err := writer.Write(auditRecord(rep, &rows[i], kinds)); err != nil {
			return fmt.Errorf("write audit row: %w", err)
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush audit csv: %w", err)
	}

	return nil
}

func auditRecord(rep *Report, row *AuditRow, kinds []string) []string {
	record := []string{
		rep.Meta.RepoName,
		row.Path,
		row.Content.String(),
		row.FirstSeen.String(),
		row.LastSeen.String(),
		strconv.FormatBool(row.Deleted),
		strconv.Itoa(row.Occurrences),
		strconv.FormatInt(row.Size, 10),
		strconv.Itoa(row.LineCount),
		string(row.Status),
		strconv.Itoa(row.PathMatches),
		strconv.Itoa(row.TotalMatches()),
	}

	var samples []string

	for _, kind := range kinds {
		summary, ok := row.Matches[kind]
		if !ok {
			record = append(record, "0", "0")

			continue
		}

		record = append(record, strconv.Itoa(summary.Count), strconv.Itoa(summary.Unique()))

		for _, pair := range summary.TopValues(sampleValuesLimit) {
			samples = append(samples, fmt.Sprintf("%s:%d", pair.Value, pair.Count))
		}
	}

	return append(record, strings.Join(samples, ";"))
}

// WriteFrequencyCSV serializes the value frequency table, highest count
// first.
func WriteFrequencyCSV(w io.Writer, rep *Report) error {
	writer := csv.NewWriter(w)

	header := []string{"kind", "value", "count", "distinct_blobs", "partial", "example_blobs"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write frequency header: %w", err)
	}

	for _, entry := range rep.Frequency {
		examples := make([]string, 0, exampleBlobsLimit)
		for _, content := range entry.Contents {
			if len(examples) == exampleBlobsLimit {
				break
			}

			examples = append(examples, content.Short())
		}

		record := []string{
			entry.Kind,
			entry.Value,
			strconv.Itoa(entry.Count),
			strconv.Itoa(len(entry.Contents)),
			strconv.FormatBool(entry.Partial),
			strings.Join(examples, ";"),
		}

		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write frequency row: %w", err)
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush frequency csv: %w", err)
	}

	return nil
}

// collectKinds returns the sorted union of pattern kinds present in the
// report, so every row gets the same columns.
func collectKinds(rep *Report) []string {
	set := make(map[string]struct{})

	for i := range rep.Rows {
		for kind := range rep.Rows[i].Matches {
			set[kind] = struct{}{}
		}
	}

	kinds := make([]string, 0, len(set))
	for kind := range set {
		kinds = append(kinds, kind)
	}

	sort.Strings(kinds)

	return kinds
}

package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

// summaryTopRows caps how many flagged files the terminal summary shows.
const summaryTopRows = 15

// WriteSummary renders a human-readable run summary to w: run totals, the
// most-flagged files, and data-quality warnings. The CSVs carry the full
// detail; this is the at-a-glance view.
func WriteSummary(w io.Writer, rep *Report, noColor bool) {
	if noColor {
		color.NoColor = true
	}

	header := color.New(color.FgCyan, color.Bold)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed, color.Bold)

	_, _ = header.Fprintf(w, "Audit of %s\n", rep.Meta.RepoName)

	if rep.Partial {
		_, _ = bad.Fprintln(w, "PARTIAL REPORT: traversal ended early; rows below are valid but incomplete")
	}

	fmt.Fprintf(w, "refs %d, commits %d, distinct blobs %d, scans %d, duration %s\n",
		rep.Meta.Refs, rep.Meta.Commits, rep.Meta.DistinctBlobs, rep.Meta.ScanRuns,
		rep.Meta.FinishedAt.Sub(rep.Meta.StartedAt).Round(1e6))

	if rep.Meta.ReadErrors > 0 {
		_, _ = warn.Fprintf(w, "%d objects were unreadable; affected rows are marked unresolvable\n", rep.Meta.ReadErrors)
	}

	if len(rep.UnresolvedCommits) > 0 {
		_, _ = warn.Fprintf(w, "%d commits could not be enumerated at all\n", len(rep.UnresolvedCommits))
	}

	matched := rep.MatchedRows()
	if matched == 0 {
		fmt.Fprintln(w, "No identifier findings.")

		return
	}

	_, _ = bad.Fprintf(w, "%d of %d historical file versions contain identifier findings\n", matched, len(rep.Rows))

	flagged := make([]*AuditRow, 0, matched)

	for i := range rep.Rows {
		if rep.Rows[i].TotalMatches() > 0 {
			flagged = append(flagged, &rep.Rows[i])
		}
	}

	sort.SliceStable(flagged, func(i, j int) bool {
		return flagged[i].TotalMatches() > flagged[j].TotalMatches()
	})

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Path", "Blob", "Matches", "Size", "Deleted", "Status"})

	for i, row := range flagged {
		if i == summaryTopRows {
			tbl.AppendFooter(table.Row{fmt.Sprintf("... and %d more flagged versions", matched-i)})

			break
		}

		tbl.AppendRow(table.Row{
			row.Path,
			row.Content.Short(),
			row.TotalMatches(),
			humanize.Bytes(uint64(row.Size)),
			row.Deleted,
			row.Status,
		})
	}

	tbl.Render()
}

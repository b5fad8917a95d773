package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	plotTopValues   = 20
	plotLabelRotate = 60
)

// WriteFrequencyChart renders an HTML page with a bar chart of the most
// frequent identifier values across history. Auditors use it to spot the
// handful of participants whose ids leaked widely.
func WriteFrequencyChart(w io.Writer, rep *Report) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Identifier frequency: %s", rep.Meta.RepoName),
			Subtitle: "Counted once per distinct content object, not per commit",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Rotate: plotLabelRotate, Interval: "0"},
		}),
	)

	limit := min(plotTopValues, len(rep.Frequency))

	labels := make([]string, 0, limit)
	values := make([]opts.BarData, 0, limit)

	for _, entry := range rep.Frequency[:limit] {
		labels = append(labels, entry.Value)
		values = append(values, opts.BarData{Value: entry.Count})
	}

	bar.SetXAxis(labels).AddSeries("occurrences", values)

	page := components.NewPage()
	page.AddCharts(bar)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render frequency chart: %w", err)
	}

	return nil
}

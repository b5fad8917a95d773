package classify

import (
	"bytes"

	"github.com/src-d/enry/v2"
)

// DefaultMaxScanSize bounds how many bytes of a single object are scanned.
// Larger objects are truncated and the result flagged, never failed.
const DefaultMaxScanSize = 64 << 20 // 64 MiB

// Options configures the classification engine.
type Options struct {
	// MaxScanSize truncates objects larger than this many bytes.
	// Zero selects DefaultMaxScanSize.
	MaxScanSize int64
	// SkipBinary skips pattern matching on content enry detects as binary.
	// The result is flagged Binary so report consumers see the gap.
	SkipBinary bool
}

// Engine applies a ruleset to content streams.
type Engine struct {
	ruleset     *Ruleset
	maxScanSize int64
	skipBinary  bool
}

// NewEngine creates an engine over the given ruleset.
func NewEngine(ruleset *Ruleset, opts Options) *Engine {
	maxScan := opts.MaxScanSize
	if maxScan <= 0 {
		maxScan = DefaultMaxScanSize
	}

	return &Engine{ruleset: ruleset, maxScanSize: maxScan, skipBinary: opts.SkipBinary}
}

// ClassifyBytes runs every registered matcher over data and returns the
// aggregated result. size is the object's true size, which may exceed
// len(data) when the caller already truncated the read.
func (e *Engine) ClassifyBytes(data []byte, size int64) *Result {
	result := &Result{
		Kinds: make(map[string]*KindSummary),
		Size:  size,
	}

	if size > e.maxScanSize {
		result.Truncated = true
	}

	if int64(len(data)) > e.maxScanSize {
		data = data[:e.maxScanSize]
		result.Truncated = true
	}

	if e.skipBinary && enry.IsBinary(data) {
		result.Binary = true

		return result
	}

	result.LineCount = bytes.Count(data, []byte{'\n'})
	if len(data) > 0 && data[len(data)-1] != '\n' {
		result.LineCount++
	}

	for _, matcher := range e.ruleset.Matchers() {
		findings := matcher.Match(data)
		if len(findings) == 0 {
			continue
		}

		summary := result.Kinds[matcher.Kind()]
		if summary == nil {
			summary = &KindSummary{Values: make(map[string]int)}
			result.Kinds[matcher.Kind()] = summary
		}

		for _, finding := range findings {
			summary.Count++
			summary.Values[finding.Value]++
		}
	}

	return result
}

// ClassifyPath runs the ruleset over a path string, catching identifiers
// embedded in file names (e.g. 3240971.tsv).
func (e *Engine) ClassifyPath(path string) []Finding {
	var findings []Finding

	for _, matcher := range e.ruleset.Matchers() {
		findings = append(findings, matcher.Match([]byte(path))...)
	}

	return findings
}

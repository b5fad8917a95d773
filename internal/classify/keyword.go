package classify

import (
	"bytes"
	"sort"
)

// DefaultKeywordWindow is how many bytes around a keyword are searched for
// an identifier-looking digit run.
const DefaultKeywordWindow = 64

// KeywordMatcher flags digit runs that appear near one of the configured
// keywords (e.g. "eid", "participant"). Catches identifiers that fall
// outside the strict numeric range but sit in incriminating context.
type KeywordMatcher struct {
	kind     string
	keywords [][]byte
	window   int
	minRun   int
}

// NewKeywordMatcher creates a matcher for the given keywords. Matching is
// case-insensitive; window selects the proximity in bytes (0 = default);
// minRun is the minimum digit run length to report (0 = 5).
func NewKeywordMatcher(kind string, keywords []string, window, minRun int) *KeywordMatcher {
	if window <= 0 {
		window = DefaultKeywordWindow
	}

	if minRun <= 0 {
		minRun = 5
	}

	lowered := make([][]byte, 0, len(keywords))
	for _, keyword := range keywords {
		if keyword != "" {
			lowered = append(lowered, bytes.ToLower([]byte(keyword)))
		}
	}

	return &KeywordMatcher{kind: kind, keywords: lowered, window: window, minRun: minRun}
}

// Kind implements Matcher.
func (m *KeywordMatcher) Kind() string {
	return m.kind
}

// Match implements Matcher. For each keyword occurrence, the surrounding
// window is scanned for digit runs of at least minRun digits; each run is
// reported once even when several keywords cover it.
func (m *KeywordMatcher) Match(data []byte) []Finding {
	if len(m.keywords) == 0 {
		return nil
	}

	lower := bytes.ToLower(data)
	seen := make(map[int]struct{})

	var findings []Finding

	for _, keyword := range m.keywords {
		from := 0

		for {
			idx := bytes.Index(lower[from:], keyword)
			if idx < 0 {
				break
			}

			hit := from + idx
			winStart := max(0, hit-m.window)
			winEnd := min(len(data), hit+len(keyword)+m.window)

			findings = m.collectRuns(data, winStart, winEnd, seen, findings)
			from = hit + len(keyword)
		}
	}

	// Keyword iteration order can interleave offsets; restore offset order
	// for determinism.
	sortFindingsByOffset(findings)

	return findings
}

func (m *KeywordMatcher) collectRuns(data []byte, from, to int, seen map[int]struct{}, findings []Finding) []Finding {
	pos := from

	// A run straddling the window start is reported whole, not as the
	// suffix that happens to fall inside the window.
	if pos < to && isDigit(data[pos]) {
		for pos > 0 && isDigit(data[pos-1]) {
			pos--
		}
	}

	for pos < to {
		if !isDigit(data[pos]) {
			pos++

			continue
		}

		start := pos
		for pos < len(data) && isDigit(data[pos]) {
			pos++
		}

		if pos-start < m.minRun {
			continue
		}

		if _, dup := seen[start]; dup {
			continue
		}

		seen[start] = struct{}{}
		findings = append(findings, Finding{
			Kind:   m.kind,
			Value:  string(data[start:pos]),
			Offset: start,
		})
	}

	return findings
}

func sortFindingsByOffset(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		return findings[i].Offset < findings[j].Offset
	})
}

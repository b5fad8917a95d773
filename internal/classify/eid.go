package classify

import "strconv"

// Default EID numeric bounds: UK Biobank participant identifiers are
// 7-digit values issued in this range.
const (
	DefaultEIDMin = 1_000_000
	DefaultEIDMax = 6_500_000

	eidDigits = 7
)

// EIDMatcher recognizes participant identifiers: an isolated 7-digit run
// inside the configured numeric range. Boundary rules from the upstream
// audit tooling: the run must not be preceded by a digit, a dot (decimal
// fractions), or an rs/RS prefix (SNP identifiers), and must not be
// followed by a digit. RE2 has no lookbehind, so the boundaries are checked
// explicitly around each digit run.
type EIDMatcher struct {
	kind string
	min  int
	max  int
}

// NewEIDMatcher creates a matcher with the given kind name and bounds.
// Zero bounds select the defaults.
func NewEIDMatcher(kind string, minVal, maxVal int) *EIDMatcher {
	if minVal == 0 {
		minVal = DefaultEIDMin
	}

	if maxVal == 0 {
		maxVal = DefaultEIDMax
	}

	return &EIDMatcher{kind: kind, min: minVal, max: maxVal}
}

// Kind implements Matcher.
func (m *EIDMatcher) Kind() string {
	return m.kind
}

// Match implements Matcher. Single pass over the data; memory is bounded by
// the number of findings.
func (m *EIDMatcher) Match(data []byte) []Finding {
	var findings []Finding

	pos := 0

	for pos < len(data) {
		if !isDigit(data[pos]) {
			pos++

			continue
		}

		start := pos
		for pos < len(data) && isDigit(data[pos]) {
			pos++
		}

		if pos-start != eidDigits {
			continue
		}

		if !m.validBoundary(data, start) {
			continue
		}

		value, err := strconv.Atoi(string(data[start:pos]))
		if err != nil || value < m.min || value > m.max {
			continue
		}

		findings = append(findings, Finding{
			Kind:   m.kind,
			Value:  string(data[start:pos]),
			Offset: start,
		})
	}

	return findings
}

// validBoundary applies the left-context rules. The right context (no
// trailing digit) is already guaranteed by scanning maximal digit runs, and
// a leading digit is impossible for the same reason.
func (m *EIDMatcher) validBoundary(data []byte, start int) bool {
	if start == 0 {
		return true
	}

	prev := data[start-1]
	if prev == '.' {
		return false
	}

	// rs1234567 / RS1234567 are SNP ids, not participants.
	if (prev == 's' || prev == 'S') && start >= 2 {
		prev2 := data[start-2]
		if prev2 == 'r' || prev2 == 'R' {
			return false
		}
	}

	return true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

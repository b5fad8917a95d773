// Package classify applies a configurable sensitive-pattern ruleset to raw
// content streams. Content is treated as bytes, never parsed by format, and
// classifying the same bytes twice always yields identical findings.
package classify

import (
	"fmt"
	"sort"
)

// Finding is one pattern hit inside a content object.
type Finding struct {
	Kind   string // registered pattern kind
	Value  string // normalized matched value
	Offset int    // byte offset of the match
}

// Matcher recognizes one pattern kind over a byte stream.
type Matcher interface {
	// Kind returns the registered pattern kind name.
	Kind() string
	// Match scans data and returns findings ordered by offset.
	Match(data []byte) []Finding
}

// Ruleset is a registry of named matchers. New pattern kinds plug in here
// without touching traversal or aggregation.
type Ruleset struct {
	matchers []Matcher
	byKind   map[string]Matcher
}

// NewRuleset creates an empty ruleset.
func NewRuleset() *Ruleset {
	return &Ruleset{byKind: make(map[string]Matcher)}
}

// Register adds a matcher. Duplicate kinds are rejected.
func (r *Ruleset) Register(m Matcher) error {
	kind := m.Kind()
	if _, exists := r.byKind[kind]; exists {
		return fmt.Errorf("pattern kind %q already registered", kind)
	}

	r.byKind[kind] = m
	r.matchers = append(r.matchers, m)

	return nil
}

// Kinds returns the registered kinds, sorted.
func (r *Ruleset) Kinds() []string {
	kinds := make([]string, 0, len(r.byKind))
	for kind := range r.byKind {
		kinds = append(kinds, kind)
	}

	sort.Strings(kinds)

	return kinds
}

// Matchers returns the matchers in registration order.
func (r *Ruleset) Matchers() []Matcher {
	return r.matchers
}

// KindSummary aggregates the findings of one kind inside one content object.
type KindSummary struct {
	// Count is the total number of matches.
	Count int
	// Values maps each distinct matched value to its in-object count.
	Values map[string]int
}

// Unique returns the number of distinct matched values.
func (s *KindSummary) Unique() int {
	return len(s.Values)
}

// TopValues returns up to limit (value, count) pairs, highest count first,
// value as tiebreak. Used for the report sample column.
func (s *KindSummary) TopValues(limit int) []ValueCount {
	pairs := make([]ValueCount, 0, len(s.Values))
	for value, count := range s.Values {
		pairs = append(pairs, ValueCount{Value: value, Count: count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}

		return pairs[i].Value < pairs[j].Value
	})

	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}

	return pairs
}

// ValueCount is one (matched value, count) pair.
type ValueCount struct {
	Value string
	Count int
}

// Result is the classification of one content object. Immutable once
// computed; cached keyed by content id. Holds counts and values only, never
// the raw content.
type Result struct {
	Kinds     map[string]*KindSummary
	Size      int64
	LineCount int
	Truncated bool // scan stopped at the size limit
	Binary    bool // detected binary and skipped by configuration
}

// TotalMatches sums match counts across all kinds.
func (r *Result) TotalMatches() int {
	total := 0
	for _, summary := range r.Kinds {
		total += summary.Count
	}

	return total
}

// Empty reports whether no pattern matched.
func (r *Result) Empty() bool {
	return r.TotalMatches() == 0
}

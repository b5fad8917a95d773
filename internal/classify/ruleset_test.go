package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuleset_BuildsConfiguredMatchers(t *testing.T) {
	t.Parallel()

	raw := []byte(`
patterns:
  - kind: eid
    type: eid-range
    min: 1000000
    max: 6500000
  - kind: context
    type: keyword-proximity
    keywords: [eid, participant]
    window: 32
    min_run: 6
`)

	ruleset, err := ParseRuleset(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"context", "eid"}, ruleset.Kinds())

	findings := ruleset.Matchers()[0].Match([]byte("id 1234567"))
	require.Len(t, findings, 1)
	assert.Equal(t, "eid", findings[0].Kind)
}

func TestParseRuleset_RejectsUnknownField(t *testing.T) {
	t.Parallel()

	raw := []byte(`
patterns:
  - kind: eid
    type: eid-range
    bogus: true
`)

	_, err := ParseRuleset(raw)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRuleset)
}

func TestParseRuleset_RejectsUnknownMatcherType(t *testing.T) {
	t.Parallel()

	raw := []byte(`
patterns:
  - kind: eid
    type: regex
`)

	_, err := ParseRuleset(raw)

	assert.Error(t, err)
}

func TestParseRuleset_RejectsEmptyPatterns(t *testing.T) {
	t.Parallel()

	_, err := ParseRuleset([]byte("patterns: []"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRuleset)
}

func TestParseRuleset_RejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := ParseRuleset([]byte("patterns: ["))

	assert.Error(t, err)
}

func TestParseRuleset_RejectsDuplicateKinds(t *testing.T) {
	t.Parallel()

	raw := []byte(`
patterns:
  - kind: eid
    type: eid-range
  - kind: eid
    type: eid-range
`)

	_, err := ParseRuleset(raw)

	assert.Error(t, err)
}

func TestDefaultRuleset_HasBuiltinKinds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"eid", "keyword"}, DefaultRuleset().Kinds())
}

package persist

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	Name   string         `json:"name"`
	Counts map[string]int `json:"counts"`
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewJSONCodec()
	state := testState{Name: "audit", Counts: map[string]int{"1234567": 3}}

	var buf bytes.Buffer
	require.NoError(t, codec.Encode(&buf, state))

	var decoded testState
	require.NoError(t, codec.Decode(&buf, &decoded))

	assert.Equal(t, state, decoded)
	assert.Equal(t, ".json", codec.Extension())
}

func TestLZ4Codec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewLZ4Codec()

	counts := make(map[string]int, 1000)
	for i := range 1000 {
		counts[string(rune('a'+i%26))+"-entry"] += i
	}

	state := testState{Name: "big", Counts: counts}

	var buf bytes.Buffer
	require.NoError(t, codec.Encode(&buf, state))

	var decoded testState
	require.NoError(t, codec.Decode(&buf, &decoded))

	assert.Equal(t, state, decoded)
	assert.Equal(t, ".json.lz4", codec.Extension())
}

func TestLZ4Codec_RejectsGarbage(t *testing.T) {
	t.Parallel()

	var decoded testState

	err := NewLZ4Codec().Decode(bytes.NewReader([]byte("not lz4")), &decoded)

	assert.Error(t, err)
}

func TestPersister_SaveLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	persister := NewPersister[testState]("snapshot", NewLZ4Codec())

	err := persister.Save(dir, func() *testState {
		return &testState{Name: "run-1", Counts: map[string]int{"x": 1}}
	})
	require.NoError(t, err)

	var restored testState

	err = persister.Load(dir, func(state *testState) {
		restored = *state
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", restored.Name)
	assert.Equal(t, 1, restored.Counts["x"])
}

func TestPersister_SaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	persister := NewPersister[testState]("snapshot", NewJSONCodec())

	require.NoError(t, persister.Save(dir, func() *testState { return &testState{} }))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "snapshot.json", entries[0].Name())
}

func TestPersister_LoadMissingFile(t *testing.T) {
	t.Parallel()

	persister := NewPersister[testState]("snapshot", NewJSONCodec())

	err := persister.Load(t.TempDir(), func(*testState) {})

	assert.Error(t, err)
}

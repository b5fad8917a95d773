package contributors

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukbb-tools/gitaudit/internal/history"
	"github.com/ukbb-tools/gitaudit/pkg/gitlib"
)

func node(id, authorName, authorEmail, committerName, committerEmail string) history.CommitNode {
	return history.CommitNode{
		ID:        gitlib.NewHash(id),
		Author:    gitlib.Signature{Name: authorName, Email: authorEmail},
		Committer: gitlib.Signature{Name: committerName, Email: committerEmail},
	}
}

func TestTable_RecordsDistinctIdentities(t *testing.T) {
	t.Parallel()

	table := NewTable()
	table.Record(node("01", "Alice", "alice@lab.test", "Alice", "alice@lab.test"))
	table.Record(node("02", "Alice", "alice@lab.test", "Bot", "bot@ci.test"))
	table.Record(node("03", "Bob", "bob@lab.test", "Bob", "bob@lab.test"))

	require.Equal(t, 3, table.Len())

	entries := table.Entries()

	// Alice leads with two authored commits.
	assert.Equal(t, "Alice", entries[0].Name)
	assert.Equal(t, 2, entries[0].Commits)
	assert.True(t, entries[0].Author)
	assert.True(t, entries[0].Committer)

	// The CI bot only ever committed.
	var bot *Entry

	for i := range entries {
		if entries[i].Email == "bot@ci.test" {
			bot = &entries[i]
		}
	}

	require.NotNil(t, bot)
	assert.False(t, bot.Author)
	assert.True(t, bot.Committer)
	assert.Equal(t, 1, bot.Commits)
}

func TestTable_SameNameDifferentEmailAreDistinct(t *testing.T) {
	t.Parallel()

	table := NewTable()
	table.Record(node("01", "Alice", "alice@lab.test", "Alice", "alice@lab.test"))
	table.Record(node("02", "Alice", "alice@home.test", "Alice", "alice@home.test"))

	assert.Equal(t, 2, table.Len())
}

func TestTable_WriteCSV(t *testing.T) {
	t.Parallel()

	table := NewTable()
	table.Record(node("01", "Alice", "alice@lab.test", "Alice", "alice@lab.test"))

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, []string{"name", "email", "commits", "author", "committer"}, records[0])
	assert.Equal(t, []string{"Alice", "alice@lab.test", "1", "true", "true"}, records[1])
}

func TestTable_DeterministicOrder(t *testing.T) {
	t.Parallel()

	build := func(order []int) []Entry {
		nodes := []history.CommitNode{
			node("01", "Zoe", "zoe@lab.test", "Zoe", "zoe@lab.test"),
			node("02", "Amy", "amy@lab.test", "Amy", "amy@lab.test"),
		}

		table := NewTable()
		for _, i := range order {
			table.Record(nodes[i])
		}

		return table.Entries()
	}

	assert.Equal(t, build([]int{0, 1}), build([]int{1, 0}))
}

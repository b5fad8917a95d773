// Package checkpoint persists the scan cache between audit runs, so
// re-auditing a repository only classifies content objects that are new
// since the last run.
package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ukbb-tools/gitaudit/internal/classify"
	"github.com/ukbb-tools/gitaudit/internal/contentcache"
	"github.com/ukbb-tools/gitaudit/pkg/gitlib"
	"github.com/ukbb-tools/gitaudit/pkg/persist"
)

// Version guards against decoding snapshots written by an incompatible
// layout.
const Version = 1

const snapshotBasename = "gitaudit-scan-cache"

// ErrVersionMismatch indicates a snapshot from a different layout version.
var ErrVersionMismatch = errors.New("checkpoint version mismatch")

// State is the serialized form of one scan cache snapshot.
type State struct {
	Version   int                         `json:"version"`
	RepoName  string                      `json:"repo_name"`
	CreatedAt string                      `json:"created_at"`
	Results   map[string]*classify.Result `json:"results"`
}

// Store saves and restores scan cache snapshots under a directory.
type Store struct {
	dir       string
	persister *persist.Persister[State]
}

// NewStore creates a checkpoint store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{
		dir:       dir,
		persister: persist.NewPersister[State](snapshotBasename, persist.NewLZ4Codec()),
	}
}

// Save snapshots the cache's classified results.
func (s *Store) Save(repoName string, cache *contentcache.Cache) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	return s.persister.Save(s.dir, func() *State {
		snapshot := cache.Snapshot()

		results := make(map[string]*classify.Result, len(snapshot))
		for id, result := range snapshot {
			results[id.String()] = result
		}

		return &State{
			Version:   Version,
			RepoName:  repoName,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
			Results:   results,
		}
	})
}

// Load restores a prior snapshot into the cache. A missing snapshot is not
// an error; the audit just starts cold.
func (s *Store) Load(repoName string, cache *contentcache.Cache) (bool, error) {
	if _, err := os.Stat(s.persister.Path(s.dir)); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	var loaded bool

	err := s.persister.Load(s.dir, func(state *State) {
		if state.Version != Version || state.RepoName != repoName {
			return
		}

		results := make(map[gitlib.Hash]*classify.Result, len(state.Results))

		for hex, result := range state.Results {
			if len(hex) != gitlib.HashHexSize {
				continue
			}

			results[gitlib.NewHash(hex)] = result
		}

		cache.Restore(results)
		loaded = true
	})
	if err != nil {
		return false, err
	}

	return loaded, nil
}

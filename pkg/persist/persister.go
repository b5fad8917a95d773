package persist

import (
	"fmt"
	"os"
	"path/filepath"
)

// Persister handles I/O for a specific state type using a Codec. Writes go
// through a temp file plus rename, so an interrupted save never clobbers a
// previous good snapshot.
type Persister[T any] struct {
	basename string
	codec    Codec
}

// NewPersister creates a persister with the given basename and codec.
func NewPersister[T any](basename string, codec Codec) *Persister[T] {
	return &Persister[T]{basename: basename, codec: codec}
}

// Path returns the file path a snapshot occupies under dir.
func (p *Persister[T]) Path(dir string) string {
	return filepath.Join(dir, p.basename+p.codec.Extension())
}

// Save writes the state built by buildState into dir.
func (p *Persister[T]) Save(dir string, buildState func() *T) error {
	path := p.Path(dir)

	tmp, err := os.CreateTemp(dir, p.basename+".*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}

	encErr := p.codec.Encode(tmp, buildState())
	closeErr := tmp.Close()

	if encErr != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("encode snapshot: %w", encErr)
	}

	if closeErr != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("close snapshot temp file: %w", closeErr)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("commit snapshot: %w", err)
	}

	return nil
}

// Load restores state from dir and hands it to restoreState.
func (p *Persister[T]) Load(dir string, restoreState func(*T)) error {
	file, err := os.Open(p.Path(dir))
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	var state T
	if err := p.codec.Decode(file, &state); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	restoreState(&state)

	return nil
}

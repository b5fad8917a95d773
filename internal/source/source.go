// Package source resolves audit targets into ready-to-read repository
// handles: a local working copy, a URL to clone, or a CSV batch of URLs.
// The engine itself never clones or authenticates.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ukbb-tools/gitaudit/pkg/gitlib"
)

// ErrNoTargets indicates a batch file contained no usable URLs.
var ErrNoTargets = errors.New("no audit targets")

// Target is one resolved repository ready for auditing.
type Target struct {
	Repo *gitlib.Repository
	// Name is the repository's short name, used in report file names.
	Name string
	// Owner is the hosting account when known (URL sources only).
	Owner string
}

// Resolver turns user-provided locations into repository handles.
type Resolver struct {
	// WorkDir is where clones are materialized.
	WorkDir string
	Logger  *slog.Logger
}

// FromPath opens an existing local repository.
func (r *Resolver) FromPath(path string) (Target, error) {
	repo, err := gitlib.OpenRepository(path)
	if err != nil {
		return Target{}, err
	}

	abs, absErr := filepath.Abs(path)
	if absErr != nil {
		abs = path
	}

	return Target{Repo: repo, Name: filepath.Base(abs)}, nil
}

// FromURL clones (or reuses an existing clone of) the repository at url
// under WorkDir.
func (r *Resolver) FromURL(url string) (Target, error) {
	owner, name, err := SplitOwnerRepo(url)
	if err != nil {
		return Target{}, err
	}

	local := filepath.Join(r.WorkDir, owner, name)

	if _, statErr := os.Stat(filepath.Join(local, ".git")); statErr == nil {
		r.logger().Info("reusing existing clone", "path", local)

		repo, openErr := gitlib.OpenRepository(local)
		if openErr != nil {
			return Target{}, openErr
		}

		return Target{Repo: repo, Name: name, Owner: owner}, nil
	}

	r.logger().Info("cloning", "url", url, "path", local)

	repo, cloneErr := gitlib.Clone(url, local)
	if cloneErr != nil {
		return Target{}, cloneErr
	}

	return Target{Repo: repo, Name: name, Owner: owner}, nil
}

// URLsFromCSV reads a batch file: one repository URL per row, first column.
// Blank rows are skipped.
func URLsFromCSV(reader io.Reader) ([]string, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	var urls []string

	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read batch csv: %w", err)
		}

		if len(record) == 0 {
			continue
		}

		url := strings.TrimSpace(record[0])
		if url != "" {
			urls = append(urls, url)
		}
	}

	if len(urls) == 0 {
		return nil, ErrNoTargets
	}

	return urls, nil
}

// SplitOwnerRepo extracts the owner and repository name from a hosting URL
// like https://github.com/owner/repo.git.
func SplitOwnerRepo(url string) (owner, name string, err error) {
	trimmed := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	parts := strings.Split(trimmed, "/")

	const minParts = 2
	if len(parts) < minParts {
		return "", "", fmt.Errorf("cannot parse owner/repo from %q", url)
	}

	owner = parts[len(parts)-2]
	name = parts[len(parts)-1]

	if owner == "" || name == "" {
		return "", "", fmt.Errorf("cannot parse owner/repo from %q", url)
	}

	// SSH form: git@github.com:owner/repo.
	if idx := strings.LastIndex(owner, ":"); idx >= 0 {
		owner = owner[idx+1:]
	}

	return owner, name, nil
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}

	return slog.Default()
}

package gitlib

import (
	"context"
	"fmt"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// DefaultReadAttempts is the retry budget for blob reads. Transient I/O
// failures on networked filesystems get this many attempts before the
// object is surfaced as unreadable.
const DefaultReadAttempts = 3

// Repository wraps a libgit2 repository opened for read-only auditing.
type Repository struct {
	repo         *git2go.Repository
	path         string
	readAttempts int
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path, readAttempts: DefaultReadAttempts}, nil
}

// Clone clones the repository at url into path and returns a handle to it.
// Used by source resolution only; the audit engine itself never clones.
func Clone(url, path string) (*Repository, error) {
	repo, err := git2go.Clone(url, path, &git2go.CloneOptions{})
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}

	return &Repository{repo: repo, path: path, readAttempts: DefaultReadAttempts}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// SetReadAttempts overrides the blob read retry budget. Values below one
// are clamped to one.
func (r *Repository) SetReadAttempts(n int) {
	if n < 1 {
		n = 1
	}

	r.readAttempts = n
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Ref is one named entry point into the commit graph.
type Ref struct {
	Name   string
	Target Hash
}

// ListRefs returns every local branch, remote-tracking branch and tag,
// peeled to the commit it points at. Abandoned branches count: sensitive
// content may only be reachable from them. Symbolic refs (HEAD aliases)
// are skipped since their targets appear under their own names.
func (r *Repository) ListRefs() ([]Ref, error) {
	iter, err := r.repo.NewReferenceIterator()
	if err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	defer iter.Free()

	var refs []Ref

	for {
		ref, nextErr := iter.Next()
		if nextErr != nil {
			if git2go.IsErrorCode(nextErr, git2go.ErrorCodeIterOver) {
				break
			}

			return nil, fmt.Errorf("next reference: %w", nextErr)
		}

		name := ref.Name()

		if ref.Type() == git2go.ReferenceSymbolic || !strings.HasPrefix(name, "refs/") {
			ref.Free()

			continue
		}

		// Peel through annotated tags down to the commit.
		obj, peelErr := ref.Peel(git2go.ObjectCommit)
		ref.Free()

		if peelErr != nil {
			// Refs that do not resolve to a commit (e.g. tag of a blob)
			// contribute nothing to the commit graph.
			continue
		}

		refs = append(refs, Ref{Name: name, Target: HashFromOid(obj.Id())})
		obj.Free()
	}

	return refs, nil
}

// Head returns the HEAD commit hash.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(_ context.Context, hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", hash.Short(), err)
	}

	return &Commit{commit: commit, repo: r}, nil
}

// LookupTree returns the tree with the given hash.
func (r *Repository) LookupTree(hash Hash) (*Tree, error) {
	tree, err := r.repo.LookupTree(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup tree %s: %w", hash.Short(), err)
	}

	return &Tree{tree: tree, repo: r}, nil
}

// LookupBlob returns the blob with the given hash.
func (r *Repository) LookupBlob(_ context.Context, hash Hash) (*Blob, error) {
	blob, err := r.repo.LookupBlob(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup blob %s: %w", hash.Short(), err)
	}

	return &Blob{blob: blob}, nil
}

// ReadBlob returns the full contents and size of the blob with the given
// hash, retrying up to the configured attempt budget. The returned bytes
// are an owned copy, valid after the underlying object is freed.
func (r *Repository) ReadBlob(ctx context.Context, hash Hash) ([]byte, int64, error) {
	var lastErr error

	for attempt := 0; attempt < r.readAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}

		blob, err := r.LookupBlob(ctx, hash)
		if err != nil {
			lastErr = err

			continue
		}

		size := blob.Size()
		data := make([]byte, len(blob.Contents()))
		copy(data, blob.Contents())
		blob.Free()

		return data, size, nil
	}

	return nil, 0, fmt.Errorf("read blob %s after %d attempts: %w", hash.Short(), r.readAttempts, lastErr)
}

// DiffTreeToTree computes the diff between two trees.
func (r *Repository) DiffTreeToTree(oldTree, newTree *Tree) (*git2go.Diff, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	var oldT, newT *git2go.Tree
	if oldTree != nil {
		oldT = oldTree.tree
	}

	if newTree != nil {
		newT = newTree.tree
	}

	diff, err := r.repo.DiffTreeToTree(oldT, newT, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	return diff, nil
}

// Native returns the underlying libgit2 repository for advanced operations.
func (r *Repository) Native() *git2go.Repository {
	return r.repo
}

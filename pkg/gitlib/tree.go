package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Tree wraps a libgit2 tree.
type Tree struct {
	tree *git2go.Tree
	repo *Repository
}

// Hash returns the tree hash.
func (t *Tree) Hash() Hash {
	return HashFromOid(t.tree.Id())
}

// EntryCount returns the number of entries in the tree.
func (t *Tree) EntryCount() uint64 {
	return t.tree.EntryCount()
}

// EntryByIndex returns the tree entry at the given index.
func (t *Tree) EntryByIndex(i uint64) *TreeEntry {
	entry := t.tree.EntryByIndex(i)
	if entry == nil {
		return nil
	}

	return &TreeEntry{entry: entry}
}

// Free releases the tree resources.
func (t *Tree) Free() {
	if t.tree != nil {
		t.tree.Free()
		t.tree = nil
	}
}

// TreeEntry wraps a libgit2 tree entry.
type TreeEntry struct {
	entry *git2go.TreeEntry
}

// Name returns the entry name.
func (e *TreeEntry) Name() string {
	return e.entry.Name
}

// Hash returns the entry object hash.
func (e *TreeEntry) Hash() Hash {
	return HashFromOid(e.entry.Id)
}

// Mode returns the entry filemode bits.
func (e *TreeEntry) Mode() uint32 {
	return uint32(e.entry.Filemode)
}

// IsBlob returns true if the entry is a blob.
func (e *TreeEntry) IsBlob() bool {
	return e.entry.Type == git2go.ObjectBlob
}

// IsTree returns true if the entry is a subtree.
func (e *TreeEntry) IsTree() bool {
	return e.entry.Type == git2go.ObjectTree
}

// PathEntry is a (path, content id, mode) triple as it appears in one
// commit's tree. Ephemeral: produced during traversal, not persisted.
type PathEntry struct {
	Path string
	Hash Hash
	Mode uint32
}

// ListTree walks the tree rooted at root and returns one PathEntry per blob,
// depth first, in tree order. Submodules are skipped; an unreadable subtree
// fails the whole listing so missing paths never go unnoticed.
func ListTree(repo *Repository, root *Tree) ([]PathEntry, error) {
	var entries []PathEntry

	err := walkTree(repo, root, "", func(path string, entry *TreeEntry) error {
		entries = append(entries, PathEntry{Path: path, Hash: entry.Hash(), Mode: entry.Mode()})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tree: %w", err)
	}

	return entries, nil
}

func walkTree(repo *Repository, tree *Tree, prefix string, cb func(path string, entry *TreeEntry) error) error {
	count := tree.EntryCount()

	for i := range count {
		entry := tree.EntryByIndex(i)
		if entry == nil {
			continue
		}

		path := entry.Name()
		if prefix != "" {
			path = prefix + "/" + path
		}

		if entry.IsBlob() {
			if cbErr := cb(path, entry); cbErr != nil {
				return cbErr
			}

			continue
		}

		if !entry.IsTree() {
			continue
		}

		subtree, lookupErr := repo.LookupTree(entry.Hash())
		if lookupErr != nil {
			return fmt.Errorf("subtree %s at %s: %w", entry.Hash().Short(), path, lookupErr)
		}

		walkErr := walkTree(repo, subtree, path, cb)
		subtree.Free()

		if walkErr != nil {
			return walkErr
		}
	}

	return nil
}

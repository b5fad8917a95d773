// Package contributors builds a table of everyone who authored or committed
// in a repository's history, optionally enriched with hosting metadata such
// as the owner's account email and the set of forks.
package contributors

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/google/go-github/v57/github"

	"github.com/ukbb-tools/gitaudit/internal/history"
)

// Entry is one distinct identity seen in the commit history.
type Entry struct {
	Name    string
	Email   string
	Commits int
	// Roles records how the identity appeared: author, committer, or both.
	Author    bool
	Committer bool
}

// Table accumulates identities across a history walk.
type Table struct {
	entries map[string]*Entry
}

// NewTable returns an empty contributor table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Record adds one commit's author and committer signatures.
func (t *Table) Record(node history.CommitNode) {
	author := t.entry(node.Author.Name, node.Author.Email)
	author.Commits++
	author.Author = true

	committer := t.entry(node.Committer.Name, node.Committer.Email)
	committer.Committer = true

	if committer != author {
		committer.Commits++
	}
}

func (t *Table) entry(name, email string) *Entry {
	key := name + "\x00" + email

	e, ok := t.entries[key]
	if !ok {
		e = &Entry{Name: name, Email: email}
		t.entries[key] = e
	}

	return e
}

// Entries returns all identities sorted by commit count descending, then
// by name for determinism.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Commits != out[j].Commits {
			return out[i].Commits > out[j].Commits
		}

		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}

		return out[i].Email < out[j].Email
	})

	return out
}

// Len reports the number of distinct identities.
func (t *Table) Len() int {
	return len(t.entries)
}

// WriteCSV writes the table with one identity per row.
func (t *Table) WriteCSV(w io.Writer) error {
	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write([]string{"name", "email", "commits", "author", "committer"}); err != nil {
		return fmt.Errorf("write contributors header: %w", err)
	}

	for _, e := range t.Entries() {
		row := []string{
			e.Name,
			e.Email,
			strconv.Itoa(e.Commits),
			strconv.FormatBool(e.Author),
			strconv.FormatBool(e.Committer),
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("write contributors row: %w", err)
		}
	}

	csvWriter.Flush()

	return csvWriter.Error()
}

// Fork describes one fork of a hosted repository.
type Fork struct {
	FullName string
	Owner    string
	URL      string
}

// HostingInfo is metadata fetched from the hosting API for one repository.
type HostingInfo struct {
	OwnerEmail string
	Forks      []Fork
}

// Enricher fetches hosting metadata via the GitHub API.
type Enricher struct {
	client *github.Client
}

// NewEnricher builds an Enricher. An empty token yields anonymous access
// with the API's unauthenticated rate limits.
func NewEnricher(token string) *Enricher {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Enricher{client: client}
}

// Fetch returns the owner's public email and the repository's forks.
func (e *Enricher) Fetch(ctx context.Context, owner, repo string) (HostingInfo, error) {
	var info HostingInfo

	user, _, err := e.client.Users.Get(ctx, owner)
	if err != nil {
		return info, fmt.Errorf("fetch owner %s: %w", owner, err)
	}

	info.OwnerEmail = user.GetEmail()

	opts := &github.RepositoryListForksOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		forks, resp, listErr := e.client.Repositories.ListForks(ctx, owner, repo, opts)
		if listErr != nil {
			return info, fmt.Errorf("list forks of %s/%s: %w", owner, repo, listErr)
		}

		for _, f := range forks {
			info.Forks = append(info.Forks, Fork{
				FullName: f.GetFullName(),
				Owner:    f.GetOwner().GetLogin(),
				URL:      f.GetHTMLURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return info, nil
}

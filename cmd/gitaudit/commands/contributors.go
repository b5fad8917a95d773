package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ukbb-tools/gitaudit/internal/config"
	"github.com/ukbb-tools/gitaudit/internal/contributors"
	"github.com/ukbb-tools/gitaudit/internal/history"
	"github.com/ukbb-tools/gitaudit/internal/source"
)

// ContributorsCommand holds the flags for the contributors command.
type ContributorsCommand struct {
	configPath string
	url        string
	workDir    string
	output     string
	forks      bool
	verbose    bool
}

// NewContributorsCommand creates and configures the contributors command.
func NewContributorsCommand() *cobra.Command {
	cmd := &ContributorsCommand{}

	cobraCmd := &cobra.Command{
		Use:   "contributors [path]",
		Short: "List everyone who authored or committed in the history",
		Long: `Contributors walks the full commit graph and tabulates every
distinct author and committer identity. With --forks it also asks the
hosting API for the repository owner's email and the list of forks.`,
		Args: cobra.MaximumNArgs(1),
		RunE: cmd.Run,
	}

	flags := cobraCmd.Flags()
	flags.StringVarP(&cmd.configPath, "config", "c", "", "config file (default: .gitaudit.yaml)")
	flags.StringVar(&cmd.url, "url", "", "repository URL to clone and inspect")
	flags.StringVar(&cmd.workDir, "work-dir", "repos", "directory for clones")
	flags.StringVarP(&cmd.output, "output", "o", "", "write CSV here instead of stdout")
	flags.BoolVar(&cmd.forks, "forks", false, "fetch owner email and forks from the hosting API")
	flags.BoolVarP(&cmd.verbose, "verbose", "v", false, "verbose logging")

	return cobraCmd
}

// Run executes the contributors command.
func (c *ContributorsCommand) Run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	logger := newLogger(c.verbose)
	resolver := &source.Resolver{WorkDir: c.workDir, Logger: logger}

	var target source.Target

	switch {
	case c.url != "":
		target, err = resolver.FromURL(c.url)
	case len(args) > 0:
		target, err = resolver.FromPath(args[0])
	default:
		return ErrNoTarget
	}

	if err != nil {
		return err
	}
	defer target.Repo.Free()

	store := history.NewGitStore(target.Repo)

	refs, err := store.ListRefs()
	if err != nil {
		return err
	}

	nodes, err := history.NewEnumerator(store, logger).Commits(cmd.Context(), refs)
	if err != nil {
		return err
	}

	table := contributors.NewTable()
	for _, node := range nodes {
		table.Record(node)
	}

	logger.Info("history walked", "commits", len(nodes), "identities", table.Len())

	if c.forks {
		if hostErr := c.printHostingInfo(cmd, target, cfg.GitHub.Token); hostErr != nil {
			logger.Warn("hosting metadata unavailable", "err", hostErr)
		}
	}

	return c.writeTable(table)
}

// printHostingInfo fetches and prints owner email and forks. Requires the
// target to have come from a URL so the owner is known.
func (c *ContributorsCommand) printHostingInfo(cmd *cobra.Command, target source.Target, token string) error {
	if target.Owner == "" {
		return fmt.Errorf("owner unknown for %s: --forks needs --url", target.Name)
	}

	info, err := contributors.NewEnricher(token).Fetch(cmd.Context(), target.Owner, target.Name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "owner: %s email: %s\n", target.Owner, displayEmail(info.OwnerEmail))
	fmt.Fprintf(out, "forks: %d\n", len(info.Forks))

	for _, fork := range info.Forks {
		fmt.Fprintf(out, "  %s %s\n", fork.FullName, fork.URL)
	}

	return nil
}

func (c *ContributorsCommand) writeTable(table *contributors.Table) error {
	if c.output == "" {
		return table.WriteCSV(os.Stdout)
	}

	if dir := filepath.Dir(c.output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.Create(c.output)
	if err != nil {
		return fmt.Errorf("create contributors file: %w", err)
	}
	defer file.Close()

	return table.WriteCSV(file)
}

func displayEmail(email string) string {
	if email == "" {
		return "(not public)"
	}

	return email
}

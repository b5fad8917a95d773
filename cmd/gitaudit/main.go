// Package main provides the entry point for the gitaudit CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ukbb-tools/gitaudit/cmd/gitaudit/commands"
	"github.com/ukbb-tools/gitaudit/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gitaudit",
		Short: "Gitaudit - full-history repository audit for sensitive identifiers",
		Long: `Gitaudit scans a repository's entire commit history, including
deleted and renamed content, for sensitive identifiers.

Commands:
  audit         Scan a local repository, a URL, or a CSV batch of URLs
  contributors  List everyone who ever touched the repository`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewAuditCommand())
	rootCmd.AddCommand(commands.NewContributorsCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "gitaudit %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

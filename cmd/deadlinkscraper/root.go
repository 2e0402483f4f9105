// Package main provides the entry point for the DeadLinkScraper CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for DeadLinkScraper.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadlinkscraper",
		Short: "Find dead links on a website",
		Long: `DeadLinkScraper crawls a website and reports every dead link it finds,
along with the page the link was found on.

It follows internal links up to a configurable depth and page budget,
checks the liveness of every link it encounters (internal, subdomain,
and external), and remembers recent results so repeat scans skip URLs
checked within the freshness window.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

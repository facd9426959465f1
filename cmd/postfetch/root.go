package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for postfetch.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postfetch",
		Short: "Resilient chunked blog post assembly",
		Long: `postfetch fetches and assembles blog posts from a chunked post API.

Text chunks are fetched concurrently and verified against the manifest.
When a chunk or image placeholder is missing, the monolithic document is
used instead. Each request tries the configured origins in order and falls
back to a local cache when none of them answers.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	// Add subcommands
	cmd.AddCommand(NewAssembleCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewCacheCmd())
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

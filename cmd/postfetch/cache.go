package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/postfetch/internal/cache"
	"github.com/nao1215/postfetch/internal/config"
	"github.com/nao1215/postfetch/internal/report"
)

// NewCacheCmd creates the cache command and its subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and purge the persistent fetch cache",
		Long: `Cache operates on the SQLite cache that backs every fetch when all
origins fail. Entries are keyed by their cache key ("manifest:<id>",
"chunk:<id>:<n>", "doc:<id>" and "config").

Examples:
  # List cached entries, newest first
  postfetch cache list

  # Show one entry
  postfetch cache get manifest:hello-world

  # Remove entries older than a week
  postfetch cache purge --older-than 168h`,
	}

	cmd.AddCommand(newCacheListCmd())
	cmd.AddCommand(newCacheGetCmd())
	cmd.AddCommand(newCachePurgeCmd())

	return cmd
}

// addCacheCommandFlags registers the flags that locate the cache.
func addCacheCommandFlags(cmd *cobra.Command) {
	addCacheFlags(cmd)
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .postfetch in current or home directory)")
}

func newCacheListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached entries",
		Args:  cobra.NoArgs,
		RunE:  runCacheListCmd,
	}
	addCacheCommandFlags(cmd)
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	return cmd
}

func newCacheGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Show a cached entry",
		Args:  cobra.ExactArgs(1),
		RunE:  runCacheGetCmd,
	}
	addCacheCommandFlags(cmd)
	cmd.Flags().BoolP("json", "j", false, "Output the entry as JSON")
	return cmd
}

func newCachePurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove cached entries",
		Args:  cobra.NoArgs,
		RunE:  runCachePurgeCmd,
	}
	addCacheCommandFlags(cmd)
	cmd.Flags().Duration("older-than", 0,
		"Only remove entries written longer ago than this (0 = all)")
	return cmd
}

// openCacheForCmd opens the SQLite cache configured for cmd.
func openCacheForCmd(cmd *cobra.Command) (*cache.SQLiteStore, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.CacheBackend != config.CacheSQLite {
		return nil, fmt.Errorf("cache commands need the sqlite backend, got %q", cfg.CacheBackend)
	}
	logger := setupLogger(cmd, cfg.Verbose)
	return openSQLite(cfg, logger)
}

func runCacheListCmd(cmd *cobra.Command, _ []string) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	store, err := openCacheForCmd(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		if entries == nil {
			entries = []cache.EntryInfo{}
		}
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(entries)
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "Cache is empty")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSIZE\tUPDATED\tDIGEST")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", e.Key, e.Size, e.UpdatedAt.Format(time.RFC3339), shortDigest(e.Digest))
	}
	return tw.Flush()
}

func runCacheGetCmd(cmd *cobra.Command, args []string) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	store, err := openCacheForCmd(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	entry, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("no cache entry for %q", args[0])
	}

	out := cmd.OutOrStdout()
	if asJSON {
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(entry)
		return err
	}

	integrity := "ok"
	if cache.Digest(entry.Payload) != entry.Digest {
		integrity = "mismatch (entry is ignored by fetches)"
	}

	fmt.Fprintf(out, "Key:           %s\n", entry.Key)
	fmt.Fprintf(out, "Updated:       %s\n", entry.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Digest:        %s (%s)\n", entry.Digest, integrity)
	if entry.ETag != "" {
		fmt.Fprintf(out, "ETag:          %s\n", entry.ETag)
	}
	if entry.LastModified != "" {
		fmt.Fprintf(out, "Last-Modified: %s\n", entry.LastModified)
	}
	fmt.Fprintln(out)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, entry.Payload, "", "  "); err != nil {
		// Corrupted rows are shown as stored.
		pretty.Reset()
		pretty.Write(entry.Payload)
	}
	fmt.Fprintln(out, pretty.String())
	return nil
}

func runCachePurgeCmd(cmd *cobra.Command, _ []string) error {
	olderThan, err := cmd.Flags().GetDuration("older-than")
	if err != nil {
		return err
	}
	if olderThan < 0 {
		return fmt.Errorf("invalid --older-than %s: must not be negative", olderThan)
	}

	store, err := openCacheForCmd(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.PurgeOlderThan(cmd.Context(), olderThan)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries from %s\n", removed, store.Path())
	return nil
}

// shortDigest abbreviates a hex digest for tables.
func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

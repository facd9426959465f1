package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/nao1215/postfetch/internal/assembly"
	"github.com/nao1215/postfetch/internal/config"
	"github.com/nao1215/postfetch/internal/model"
	"github.com/nao1215/postfetch/internal/render"
	"github.com/nao1215/postfetch/internal/report"
	"github.com/nao1215/postfetch/internal/watch"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [document-id]...",
		Short: "Watch the version heartbeat and re-assemble posts on change",
		Long: `Watch polls the version endpoint and reports every change of the
document index or the site configuration.

When document ids are given, each of them is assembled again whenever the
document index changes. A new assembly of a document abandons the previous
one, including images still being hydrated.

Examples:
  # Report version changes every 10 seconds
  postfetch watch --site-url https://blog.example.com

  # Re-assemble two posts whenever the index changes, as JSON lines
  postfetch watch -j --interval 30s --site-url https://blog.example.com post-a post-b`,
		Args: cobra.ArbitraryArgs,
		RunE: runWatchCmd,
	}

	addOriginFlags(cmd)

	cmd.Flags().Duration("interval", config.DefaultPollInterval,
		"Time between version checks")
	cmd.Flags().BoolP("json", "j", false,
		"Output one JSON object per event")
	cmd.Flags().Bool("no-images", false,
		"Skip image hydration when re-assembling")

	return cmd
}

// runWatchCmd executes the watch command.
func runWatchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	err = runWatch(ctx, cmd.OutOrStdout(), cfg, args, logger)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watcher reacts to version changes.
type watcher struct {
	out       io.Writer
	cfg       *config.Config
	fetcher   assembly.Fetcher
	assembler *assembly.Assembler
	writer    report.Writer
	logger    *slog.Logger

	// events is set in JSON mode and receives version changes.
	events *report.JSONWriter

	// documentIDs are re-assembled on every index change.
	documentIDs []string

	mu       sync.Mutex
	site     *model.SiteConfig
	sessions map[string]*assembly.Session
}

// runWatch polls until ctx is done.
func runWatch(ctx context.Context, out io.Writer, cfg *config.Config, documentIDs []string, logger *slog.Logger) error {
	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("failed to close cache", "error", err)
		}
	}()

	fetcher, err := newFetcher(cfg, store, logger)
	if err != nil {
		return err
	}

	w := &watcher{
		out:         out,
		cfg:         cfg,
		fetcher:     fetcher,
		assembler:   newAssembler(cfg, fetcher, logger),
		writer:      report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose)),
		logger:      logger,
		documentIDs: documentIDs,
		site:        assembly.LoadSiteConfig(ctx, fetcher, cfg.APIPrefix),
		sessions:    make(map[string]*assembly.Session, len(documentIDs)),
	}
	defer w.close()

	if cfg.JSONReport {
		// One compact object per line.
		w.events = report.NewJSONWriter(out)
		w.writer = w.events
	}

	poller := watch.New(fetcher,
		watch.WithInterval(cfg.PollInterval),
		watch.WithAPIPrefix(cfg.APIPrefix),
		watch.WithLogger(logger),
	)

	if w.events == nil {
		fmt.Fprintf(out, "Watching %s every %s...\n", model.VersionRequest(cfg.APIPrefix).Path, cfg.PollInterval)
	}
	return poller.Run(ctx, func(c watch.Change) {
		w.handle(ctx, c)
	})
}

// handle reports a change and refreshes what it invalidates.
func (w *watcher) handle(ctx context.Context, c watch.Change) {
	if err := w.writeChange(c); err != nil {
		w.logger.Error("failed to write change", "error", err)
	}

	if c.ConfigChanged() {
		site := assembly.LoadSiteConfig(ctx, w.fetcher, w.cfg.APIPrefix)
		w.mu.Lock()
		w.site = site
		w.mu.Unlock()
		w.logger.Info("site configuration reloaded", "site", site.SiteName)
	}

	if c.DocsChanged() {
		for _, id := range w.documentIDs {
			if ctx.Err() != nil {
				return
			}
			w.reassemble(ctx, id)
		}
	}
}

func (w *watcher) writeChange(c watch.Change) error {
	if w.events != nil {
		_, err := w.events.WriteValue(map[string]any{"change": c})
		return err
	}
	_, err := fmt.Fprintf(w.out, "[%s] docsVersion %d -> %d, configVersion %d -> %d\n",
		c.At.Format("15:04:05"),
		c.Previous.DocsVersion, c.Current.DocsVersion,
		c.Previous.ConfigVersion, c.Current.ConfigVersion,
	)
	return err
}

// reassemble opens a new view of documentID, abandoning the previous one.
func (w *watcher) reassemble(ctx context.Context, documentID string) {
	w.mu.Lock()
	sess, ok := w.sessions[documentID]
	if !ok {
		sess = assembly.NewSession(w.assembler)
		w.sessions[documentID] = sess
	}
	site := w.site
	w.mu.Unlock()

	var sink assembly.Sink
	if !w.cfg.NoImages {
		surface, _ := render.NewSurface("") //nolint:errcheck // an empty body always parses
		sink = surface
	}

	view, err := sess.Open(ctx, documentID, sink)
	if view == nil {
		w.logger.Debug("re-assembly abandoned", "document", documentID, "error", err)
		return
	}
	if _, err := w.writer.WriteView(report.NewViewReport(view, site, err)); err != nil {
		w.logger.Error("failed to write view", "document", documentID, "error", err)
	}
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sess := range w.sessions {
		sess.Close()
	}
}

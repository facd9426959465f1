package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/postfetch/internal/assembly"
	"github.com/nao1215/postfetch/internal/config"
	"github.com/nao1215/postfetch/internal/pipeline"
	"github.com/nao1215/postfetch/internal/report"
)

// errLoadFailed is returned when at least one document could not be
// loaded at all. Degraded documents (fallbacks, failed images) are not
// failures.
var errLoadFailed = errors.New("some documents could not be loaded")

// NewAssembleCmd creates the assemble command.
func NewAssembleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assemble <document-id>...",
		Short: "Fetch, verify and hydrate blog posts",
		Long: `Assemble loads each document the way the blog front end does.

For every document id it:
- Loads the chunk manifest, or the monolithic document when none exists
- Fetches all text chunks concurrently and verifies image placeholders
- Falls back to the monolithic document when verification fails
- Hydrates image chunks into the placeholders

Each request tries --api-base, then every --origin, then the path relative
to --site-url, and finally the local cache.

Examples:
  # Assemble one post
  postfetch assemble --site-url https://blog.example.com hello-world

  # Assemble several posts, three at a time
  postfetch assemble -b 3 --site-url https://blog.example.com post-a post-b post-c

  # Print the hydrated HTML body
  postfetch assemble --html --site-url https://blog.example.com hello-world

  # Write standalone pages and a Markdown report
  postfetch assemble --pages out/ -m -o out/report.md hello-world

  # Try a mirror first and skip images
  postfetch assemble --api-base https://api.example.com --no-images hello-world`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAssembleCmd,
	}

	addOriginFlags(cmd)

	// Assembly flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of documents assembled concurrently")
	cmd.Flags().Bool("no-images", false,
		"Skip image hydration and leave placeholders in place")

	// Output flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().Bool("html", false,
		"Output the hydrated HTML body instead of a report")
	cmd.Flags().StringP("output", "o", "",
		"Write output to specified file path (creates directories if needed)")
	cmd.Flags().String("pages", "",
		"Write a standalone HTML page per document into this directory")

	return cmd
}

// runAssembleCmd executes the assemble command.
func runAssembleCmd(cmd *cobra.Command, args []string) error {
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

	return runAssemble(ctx, cmd, cfg, args, logger)
}

// runAssemble assembles documentIDs and writes the requested output.
func runAssemble(ctx context.Context, cmd *cobra.Command, cfg *config.Config, documentIDs []string, logger *slog.Logger) error {
	logger.Info("starting assembly",
		"documents", documentIDs,
		"batchSize", cfg.BatchSize,
		"cache", cfg.CacheBackend,
	)

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

	site := assembly.LoadSiteConfig(ctx, fetcher, cfg.APIPrefix)
	assembler := newAssembler(cfg, fetcher, logger)

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(assembler,
				[]pipeline.Option{pipeline.WithLogger(logger)},
				pipeline.WithPipelineNoImages(cfg.NoImages),
				pipeline.WithPipelinePageDir(cfg.PageDir),
				pipeline.WithPipelineLogger(logger),
			)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
		pipeline.WithSiteConfig(site),
	)

	startTime := time.Now()
	jobs, err := bp.ProcessBatch(ctx, documentIDs)
	if err != nil {
		return err
	}
	logger.Info("assembly complete", "elapsed", time.Since(startTime).Round(time.Millisecond))

	rep := report.NewReport()
	for _, job := range jobs {
		if job == nil {
			continue
		}
		rep.Add(viewReportFor(job))
		if job.PagePath != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", job.PagePath)
		}
	}
	rep.Fetch = fetcher.Stats()

	output, closeOutput, err := openOutput(cmd, cfg.ReportFile)
	if err != nil {
		return err
	}
	defer closeOutput() //nolint:errcheck // write errors are reported below

	if cfg.HTMLOutput {
		err = writeHTML(output, jobs)
	} else {
		_, err = newReportWriter(cfg, output).Write(rep)
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if rep.HasFailures() {
		c := rep.Counts()
		return fmt.Errorf("%w: %d of %d failed", errLoadFailed, c.Failed, c.Total())
	}
	return nil
}

// viewReportFor flattens a finished job. A job without a view never got as
// far as the manifest request.
func viewReportFor(job *pipeline.Job) *report.ViewReport {
	if job.View == nil {
		vr := &report.ViewReport{
			DocumentID: job.DocumentID,
			State:      string(assembly.StateLoadFailed),
			StartedAt:  job.StartedAt,
		}
		if job.Err != nil {
			vr.Error = job.Err.Error()
		}
		return vr
	}
	return report.NewViewReport(job.View, job.Site, job.Err)
}

// newReportWriter picks the report format requested by cfg.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// writeHTML writes the body of every assembled document. Hydrated surfaces
// are preferred; with images disabled the verified text is written as is.
func writeHTML(w io.Writer, jobs []*pipeline.Job) error {
	for _, job := range jobs {
		if job == nil || job.View == nil || job.View.Document == nil {
			continue
		}
		body := job.Surface.HTML()
		if body == "" {
			body = job.View.Document.BodyHTML
		}
		if _, err := fmt.Fprintf(w, "<!-- %s -->\n%s\n", job.DocumentID, body); err != nil {
			return err
		}
	}
	return nil
}

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/postfetch/internal/model"
)

// DefaultConcurrency is the number of documents processed at once when
// WithConcurrency is not used.
const DefaultConcurrency = 4

// BatchProcessor handles concurrent processing of multiple documents.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline so that the Pipeline stays focused on a single
// document.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each document.
	pipelineFactory func() *Pipeline

	// site is attached to every job.
	site *model.SiteConfig

	// concurrency is the maximum number of documents in flight.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent documents.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithSiteConfig sets the site configuration attached to every job.
func WithSiteConfig(site *model.SiteConfig) BatchOption {
	return func(b *BatchProcessor) {
		b.site = site
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each document so that
// pipeline state never leaks between documents.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs the pipeline over multiple documents concurrently.
// It respects the configured concurrency limit and context cancellation.
//
// Returns one job per document in input order, even for documents that
// failed; a job whose document never started is nil. The error is only
// set when the batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, documentIDs []string) ([]*Job, error) {
	jobs := make([]*Job, len(documentIDs))
	err := bp.run(ctx, documentIDs, func(job *Job, i int) {
		jobs[i] = job
	})
	return jobs, err
}

// ProcessBatchWithCallback runs the pipeline over multiple documents and
// calls callback for each completed job. The callback is called from the
// goroutine that completed the job, so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	documentIDs []string,
	callback func(job *Job, index int),
) error {
	return bp.run(ctx, documentIDs, callback)
}

func (bp *BatchProcessor) run(ctx context.Context, documentIDs []string, done func(*Job, int)) error {
	bp.logger.Info("starting batch processing",
		"total_documents", len(documentIDs),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, id := range documentIDs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			job := NewJob(id, bp.site)
			if err := bp.pipelineFactory().Execute(gctx, job); err != nil {
				// Recorded on the job; other documents carry on.
				bp.logger.Warn("document failed", "document", id, "error", err)
			}
			done(job, i)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	bp.logger.Info("batch processing complete",
		"total_documents", len(documentIDs),
		"elapsed", time.Since(startTime),
	)

	return err
}

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/postfetch/internal/assembly"
	"github.com/nao1215/postfetch/internal/render"
)

// Assembler produces a view for one document. *assembly.Assembler
// satisfies it.
type Assembler interface {
	Assemble(ctx context.Context, documentID string, sink assembly.Sink) (*assembly.View, error)
}

// AssembleStep loads and verifies the document text and starts image
// hydration into the job's surface.
type AssembleStep struct {
	assembler Assembler

	// images enables hydration.
	images bool
}

// AssembleStepOption configures an AssembleStep.
type AssembleStepOption func(*AssembleStep)

// WithImages enables or disables image hydration.
func WithImages(enabled bool) AssembleStepOption {
	return func(s *AssembleStep) {
		s.images = enabled
	}
}

// NewAssembleStep creates an assemble step. Images are hydrated by default.
func NewAssembleStep(a Assembler, opts ...AssembleStepOption) *AssembleStep {
	s := &AssembleStep{assembler: a, images: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *AssembleStep) Name() string {
	return "assemble"
}

// Do executes the assemble step. A load failure is returned as the step
// error; the view is recorded on the job either way.
func (s *AssembleStep) Do(ctx context.Context, job *Job) error {
	var sink assembly.Sink
	if s.images && job.Surface != nil {
		sink = job.Surface
	}
	view, err := s.assembler.Assemble(ctx, job.DocumentID, sink)
	job.View = view
	return err
}

// HydrateStep waits for background image hydration to finish.
//
// Design decision: Waiting is a separate step so that a caller that only
// needs the text can leave it out and let images settle on their own.
type HydrateStep struct {
	logger *slog.Logger
}

// NewHydrateStep creates a hydrate step.
func NewHydrateStep(logger *slog.Logger) *HydrateStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &HydrateStep{logger: logger}
}

// Name returns the step name.
func (s *HydrateStep) Name() string {
	return "hydrate"
}

// Do blocks until hydration is done or ctx ends.
func (s *HydrateStep) Do(ctx context.Context, job *Job) error {
	if job.View == nil || job.View.Hydration == nil {
		return nil
	}
	select {
	case <-job.View.Hydration.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	result := job.View.Hydration.Wait()
	if len(result.Failed) > 0 {
		s.logger.Warn("some images could not be hydrated",
			"document", job.DocumentID,
			"failed", len(result.Failed),
		)
	}
	return nil
}

// PageStep writes the assembled document as a standalone HTML page.
type PageStep struct {
	dir string
}

// NewPageStep creates a page step writing into dir.
func NewPageStep(dir string) *PageStep {
	return &PageStep{dir: dir}
}

// Name returns the step name.
func (s *PageStep) Name() string {
	return "page"
}

// Do renders the current surface into <dir>/<document>.html.
func (s *PageStep) Do(_ context.Context, job *Job) error {
	if job.View == nil || job.View.Document == nil {
		return nil
	}

	var body string
	if job.Surface != nil {
		body = job.Surface.HTML()
	}

	var buf bytes.Buffer
	if err := render.Page(&buf, job.View.Document, job.Site, body); err != nil {
		return fmt.Errorf("render page: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create page directory: %w", err)
	}
	path := filepath.Join(s.dir, PageFileName(job.DocumentID))
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write page: %w", err)
	}
	job.PagePath = path
	return nil
}

// PageFileName returns the file name a document's page is written to.
// Path separators in the id are flattened.
func PageFileName(documentID string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(documentID)
	if name == "" || name == "." || name == ".." {
		name = "index"
	}
	return name + ".html"
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// NoImages skips image hydration entirely.
	NoImages bool

	// PageDir enables the page step when non-empty.
	PageDir string

	// Logger is handed to steps that log.
	Logger *slog.Logger
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineNoImages disables image hydration.
func WithPipelineNoImages(noImages bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.NoImages = noImages
	}
}

// WithPipelinePageDir writes an HTML page per document into dir.
func WithPipelinePageDir(dir string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.PageDir = dir
	}
}

// WithPipelineLogger sets the logger used by the steps.
func WithPipelineLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// DefaultPipeline creates the standard pipeline: assemble, wait for
// images, and optionally write a page.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts pipeline config options (WithPipelinePageDir, etc).
func DefaultPipeline(a Assembler, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{}
	for _, opt := range configOpts {
		opt(cfg)
	}

	p.AddStep(NewAssembleStep(a, WithImages(!cfg.NoImages)))
	if !cfg.NoImages {
		p.AddStep(NewHydrateStep(cfg.Logger))
	}
	if cfg.PageDir != "" {
		p.AddStep(NewPageStep(cfg.PageDir))
	}

	return p
}

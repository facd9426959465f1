package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/postfetch/internal/assembly"
	"github.com/nao1215/postfetch/internal/model"
	"github.com/nao1215/postfetch/internal/render"
)

// Job carries one document through the pipeline. Steps read and fill in
// its fields in order.
type Job struct {
	DocumentID string

	// Site is the site configuration used for page titles and meta tags.
	Site *model.SiteConfig

	// Surface receives the assembled body and its images.
	Surface *render.Surface

	// View is set by the assemble step.
	View *assembly.View

	// Err is the error of the step that stopped the job, if any.
	Err error

	// PagePath is where the page step wrote the HTML page.
	PagePath string

	// Steps lists the steps that ran, in order.
	Steps []string

	// TimedOut is set when the context ended before every step ran.
	TimedOut bool

	StartedAt time.Time
}

// NewJob creates a job with an empty surface.
func NewJob(documentID string, site *model.SiteConfig) *Job {
	if site == nil {
		site = model.DefaultSiteConfig()
	}
	surface, _ := render.NewSurface("") //nolint:errcheck // an empty body always parses
	return &Job{
		DocumentID: documentID,
		Site:       site,
		Surface:    surface,
		Steps:      make([]string, 0),
		StartedAt:  time.Now(),
	}
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the job as the
// previous steps left it.
//
// Design decision: We use an interface rather than function types so
// steps can carry configuration state and a Name for logging.
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation, and the job to modify.
	// Returns an error if the step fails critically; non-critical problems
	// should be recorded on the job and return nil.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Failed steps are logged and their errors
// are recorded on the job, but subsequent steps still execute.
//
// Design decision: The default is to stop on error because a document
// that could not be loaded has nothing for later steps to work on.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
// It respects context cancellation and logs each step's execution.
//
// Design decision: We check context.Done() before each step rather than
// during, because steps should handle their own timeouts.
//
// Returns the first error encountered if continueOnError is false,
// or nil if all steps complete (errors are recorded on the job).
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"document", job.DocumentID,
				"reason", ctx.Err(),
			)
			job.TimedOut = true
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"document", job.DocumentID,
		)

		if err := step.Do(ctx, job); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"document", job.DocumentID,
				"error", err,
			)

			job.Err = err

			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"document", job.DocumentID,
			)
		}

		job.Steps = append(job.Steps, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

package assembly

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/postfetch/internal/model"
)

// State is a step of the per-view state machine.
type State string

// View states.
const (
	StateStart             State = "start"
	StateManifestRequested State = "manifest_requested"
	StateChunked           State = "chunked"
	StateMonolithic        State = "monolithic"
	StateTextAssembling    State = "text_assembling"
	StateTextVerified      State = "text_verified"
	StateImagesHydrating   State = "images_hydrating"
	StateIntegrityFailed   State = "integrity_failed"
	StateFallbackRequested State = "fallback_requested"
	StateDone              State = "done"
	StateLoadFailed        State = "load_failed"
)

// View is one document view: the assembled document, how it was
// obtained, and the background image hydration if any.
type View struct {
	// ID identifies the view in logs and reports.
	ID string

	DocumentID string
	Document   *model.AssembledDocument

	// State is the final state, StateDone or StateLoadFailed.
	State State

	// Trace lists every state the view went through, in order.
	Trace []State

	// Integrity is the verification failure that triggered the fallback.
	Integrity *IntegrityError

	// Hydration is nil unless the document has image chunks and a sink
	// was supplied.
	Hydration *Hydration

	StartedAt time.Time
	Elapsed   time.Duration

	mu sync.Mutex
}

func (v *View) enter(s State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.State = s
	v.Trace = append(v.Trace, s)
}

// Assembler runs the per-view state machine.
type Assembler struct {
	loader      *Loader
	reassembler *Reassembler
	hydrator    *Hydrator
	fallback    *FallbackController
	buildTOC    func(string) string
	logger      *slog.Logger
}

// New creates an Assembler whose components all fetch through f.
func New(f Fetcher, opts ...Option) *Assembler {
	s := newSettings(opts)
	return &Assembler{
		loader:      NewLoader(f, opts...),
		reassembler: NewReassembler(f, opts...),
		hydrator:    NewHydrator(f, opts...),
		fallback:    NewFallbackController(f, opts...),
		buildTOC:    s.buildTOC,
		logger:      s.logger,
	}
}

// Assemble loads, verifies and hands off one document.
//
// The returned view is complete except for image hydration, which keeps
// running against sink until View.Hydration finishes. A sink that
// implements Mounter receives the document first. A nil sink skips
// hydration and leaves every placeholder pending.
//
// The only error returned for a reachable document is ErrLoadFailed; the
// view is returned alongside it in StateLoadFailed. When ctx is cancelled
// the context error is returned and the view is abandoned.
func (a *Assembler) Assemble(ctx context.Context, documentID string, sink Sink) (*View, error) {
	view := &View{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		StartedAt:  time.Now(),
	}
	logger := a.logger.With("view_id", view.ID, "document", documentID)
	defer func() { view.Elapsed = time.Since(view.StartedAt) }()

	view.enter(StateStart)
	view.enter(StateManifestRequested)

	loaded, err := a.loader.Load(ctx, documentID)
	if err != nil {
		return a.fail(view, logger, err)
	}

	if loaded.Document != nil {
		view.enter(StateMonolithic)
		view.Document = a.withTOC(model.FromMonolithic(documentID, loaded.Document, model.SourceMonolithic))
		a.mount(sink, view.Document, logger)
		view.enter(StateDone)
		logger.Info("document assembled", "source", model.SourceMonolithic)
		return view, nil
	}

	view.enter(StateChunked)
	view.enter(StateTextAssembling)

	doc, err := a.reassembler.Assemble(ctx, documentID, loaded.Manifest)
	var integrity *IntegrityError
	switch {
	case errors.As(err, &integrity):
		view.Integrity = integrity
		view.enter(StateIntegrityFailed)
		logger.Warn("chunked document failed verification, falling back", "error", err)

		view.enter(StateFallbackRequested)
		doc, err = a.fallback.Resolve(ctx, documentID)
		if err != nil {
			return a.fail(view, logger, err)
		}
		view.Document = a.withTOC(doc)
		a.mount(sink, view.Document, logger)
		view.enter(StateDone)
		logger.Info("document assembled", "source", model.SourceFallback)
		return view, nil
	case err != nil:
		return a.fail(view, logger, err)
	}

	view.enter(StateTextVerified)
	view.Document = a.withTOC(doc)

	mounted := a.mount(sink, view.Document, logger)

	if mounted && len(loaded.Manifest.ImageIndices()) > 0 {
		view.enter(StateImagesHydrating)
		view.Hydration = a.hydrator.Start(ctx, documentID, loaded.Manifest, sink)
	}

	view.enter(StateDone)
	logger.Info("document assembled",
		"source", model.SourceChunked,
		"chunks", loaded.Manifest.TotalChunks,
	)
	return view, nil
}

// fail ends the view. Cancellation is passed through untouched; anything
// else is a load failure.
func (a *Assembler) fail(view *View, logger *slog.Logger, err error) (*View, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Debug("view abandoned", "error", err)
		return view, err
	}
	view.enter(StateLoadFailed)
	logger.Error("document could not be loaded", "error", err)
	if !errors.Is(err, ErrLoadFailed) {
		err = errors.Join(ErrLoadFailed, err)
	}
	return view, err
}

// mount hands the document to sink when it holds a rendered body. It
// reports whether hydration may proceed.
func (a *Assembler) mount(sink Sink, doc *model.AssembledDocument, logger *slog.Logger) bool {
	if sink == nil {
		return false
	}
	m, ok := sink.(Mounter)
	if !ok {
		return true
	}
	if err := m.Mount(doc); err != nil {
		logger.Warn("document could not be mounted, skipping images", "error", err)
		return false
	}
	return true
}

func (a *Assembler) withTOC(doc *model.AssembledDocument) *model.AssembledDocument {
	if doc.TOCHTML == "" && a.buildTOC != nil {
		doc.TOCHTML = a.buildTOC(doc.BodyHTML)
	}
	return doc
}

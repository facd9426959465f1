package assembly

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/postfetch/internal/model"
)

// Sink is the rendering surface that image chunks are hydrated into.
//
// Resolve replaces the placeholder with the resolved image HTML. A
// placeholder with an empty ID has no marker and its HTML is appended to
// the document instead. Fail leaves the placeholder in an empty,
// non-blocking state. Both must be idempotent, safe for concurrent use,
// and independent of call order.
type Sink interface {
	Resolve(p model.Placeholder, html string) error
	Fail(p model.Placeholder)
}

// Mounter is implemented by sinks that hold the rendered body. Mount is
// called with the assembled document before any hydration starts, so that
// every marker exists by the time its image arrives.
type Mounter interface {
	Mount(doc *model.AssembledDocument) error
}

// HydrationResult summarises a finished hydration.
type HydrationResult struct {
	Resolved []model.Placeholder `json:"resolved,omitempty"`
	Failed   []model.Placeholder `json:"failed,omitempty"`

	// Abandoned is true when the view was cancelled before hydration
	// finished. Abandoned placeholders are neither resolved nor failed.
	Abandoned bool `json:"abandoned,omitempty"`
}

// Hydration is a handle on image hydration running in the background.
// A nil *Hydration is a hydration with nothing to do.
type Hydration struct {
	done   chan struct{}
	mu     sync.Mutex
	result HydrationResult
}

// Done is closed when every image chunk has been resolved or failed.
func (h *Hydration) Done() <-chan struct{} {
	if h == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return h.done
}

// Wait blocks until hydration finishes and returns its result.
func (h *Hydration) Wait() HydrationResult {
	if h == nil {
		return HydrationResult{}
	}
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

func (h *Hydration) record(p model.Placeholder, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ok {
		h.result.Resolved = append(h.result.Resolved, p)
	} else {
		h.result.Failed = append(h.result.Failed, p)
	}
}

// Hydrator fetches image chunks and hands them to a Sink.
type Hydrator struct {
	fetcher     Fetcher
	prefix      string
	maxInFlight int
	logger      *slog.Logger
}

// NewHydrator creates a Hydrator.
func NewHydrator(f Fetcher, opts ...Option) *Hydrator {
	s := newSettings(opts)
	return &Hydrator{
		fetcher:     f,
		prefix:      s.prefix,
		maxInFlight: s.maxInFlight,
		logger:      s.logger,
	}
}

// Start begins hydrating every image chunk of m into sink and returns
// immediately. Images are fetched concurrently and independently; there
// is no join deadline and no ordering between them.
//
// A failed image fetch calls sink.Fail and nothing else. When ctx is
// cancelled, outstanding images are abandoned without touching the sink.
func (h *Hydrator) Start(ctx context.Context, documentID string, m *model.DocumentManifest, sink Sink) *Hydration {
	hyd := &Hydration{done: make(chan struct{})}

	var targets []model.Placeholder
	for _, i := range m.ImageIndices() {
		targets = append(targets, model.Placeholder{Index: i, ID: m.PlaceholderIDs[i]})
	}

	go func() {
		defer close(hyd.done)

		var g errgroup.Group
		g.SetLimit(h.maxInFlight)
		for _, p := range targets {
			g.Go(func() error {
				h.hydrateOne(ctx, documentID, p, sink, hyd)
				return nil
			})
		}
		_ = g.Wait() //nolint:errcheck // goroutines never return errors

		if ctx.Err() != nil {
			hyd.mu.Lock()
			hyd.result.Abandoned = true
			hyd.mu.Unlock()
		}
	}()

	return hyd
}

func (h *Hydrator) hydrateOne(ctx context.Context, documentID string, p model.Placeholder, sink Sink, hyd *Hydration) {
	if ctx.Err() != nil {
		return
	}
	raw := h.fetcher.Fetch(ctx, model.ChunkRequest(h.prefix, documentID, p.Index))
	if ctx.Err() != nil {
		return
	}

	chunk, ok := model.ParseChunk(p.Index, raw)
	if !ok {
		h.logger.Debug("image chunk unavailable", "document", documentID, "index", p.Index, "placeholder", p.ID)
		sink.Fail(p)
		hyd.record(p, false)
		return
	}
	if err := sink.Resolve(p, chunk.HTML); err != nil {
		h.logger.Debug("image chunk not applied", "document", documentID, "index", p.Index, "placeholder", p.ID, "error", err)
		sink.Fail(p)
		hyd.record(p, false)
		return
	}
	hyd.record(p, true)
}

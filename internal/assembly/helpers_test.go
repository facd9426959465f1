package assembly

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/postfetch/internal/model"
)

const testPrefix = "/api"

// fakeFetcher serves canned payloads by request path. Paths without a
// payload are absent. Delays are honoured unless ctx is cancelled first.
type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[string]json.RawMessage
	delays   map[string]time.Duration
	block    map[string]bool
	requests []string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		payloads: make(map[string]json.RawMessage),
		delays:   make(map[string]time.Duration),
		block:    make(map[string]bool),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req model.ResourceRequest) json.RawMessage {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, req.Path)
	payload := f.payloads[req.Path]
	delay := f.delays[req.Path]
	block := f.block[req.Path]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return payload
}

func (f *fakeFetcher) set(req model.ResourceRequest, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[req.Path] = raw
}

func (f *fakeFetcher) setDelay(req model.ResourceRequest, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[req.Path] = d
}

func (f *fakeFetcher) setBlocking(req model.ResourceRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block[req.Path] = true
}

func (f *fakeFetcher) requested(req model.ResourceRequest) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.requests {
		if p == req.Path {
			return true
		}
	}
	return false
}

// serveManifest registers a manifest for id.
func (f *fakeFetcher) serveManifest(id string, types []string, ids []any) {
	f.set(model.ManifestRequest(testPrefix, id), map[string]any{
		"slug":        id,
		"title":       "Chunked " + id,
		"date":        "2024-05-01T10:00:00",
		"tags":        []string{"go"},
		"totalChunks": len(types),
		"chunk_types": types,
		"ph_ids":      ids,
	})
}

func (f *fakeFetcher) serveChunk(id string, index int, html string) {
	f.set(model.ChunkRequest(testPrefix, id, index), map[string]any{"slug": id, "index": index, "html": html})
}

func (f *fakeFetcher) serveDocument(id, html string) {
	f.set(model.DocumentRequest(testPrefix, id), map[string]any{
		"slug":         id,
		"title":        "Monolithic " + id,
		"content_html": html,
		"content_text": "plain text",
		"word_count":   2,
	})
}

func marker(id string) string {
	return `<div class="img-ph" data-ph="` + id + `" data-lqip="data:image/webp;base64,AAAA"><div class="lazy-spinner"></div></div>`
}

// recordingSink records sink calls.
type recordingSink struct {
	mu       sync.Mutex
	resolved map[string]string
	failed   []model.Placeholder
	err      error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{resolved: make(map[string]string)}
}

func (s *recordingSink) Resolve(p model.Placeholder, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.resolved[p.ID] = html
	return nil
}

func (s *recordingSink) Fail(p model.Placeholder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, p)
}

func (s *recordingSink) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resolved), len(s.failed)
}

// mountingSink records the mounted document and can refuse it.
type mountingSink struct {
	*recordingSink
	mounted  []*model.AssembledDocument
	mountErr error
}

func (s *mountingSink) Mount(doc *model.AssembledDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounted = append(s.mounted, doc)
	if len(s.resolved)+len(s.failed) > 0 {
		return errors.New("mounted after hydration started")
	}
	return s.mountErr
}

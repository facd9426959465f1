package render

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/postfetch/internal/assembly"
	"github.com/nao1215/postfetch/internal/model"
)

const (
	plainMarker   = `<div class="img-ph" data-ph="ph1"><div class="lazy-spinner"></div></div>`
	previewMarker = `<div class="img-ph" data-ph="ph2" data-lqip="data:image/webp;base64,AAAA"><div class="lazy-spinner"></div></div>`
)

func newTestSurface(t *testing.T, body string) *Surface {
	t.Helper()
	s, err := NewSurface(body)
	if err != nil {
		t.Fatalf("NewSurface() error: %v", err)
	}
	return s
}

// TestSurfaceResolve tests placeholder replacement.
func TestSurfaceResolve(t *testing.T) {
	t.Parallel()

	t.Run("marker is replaced in place", func(t *testing.T) {
		t.Parallel()

		s := newTestSurface(t, "<p>a</p>"+plainMarker+"<p>b</p>")
		if err := s.Resolve(model.Placeholder{Index: 1, ID: "ph1"}, `<img src="/a.webp" alt="a">`); err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		want := `<p>a</p><img src="/a.webp" alt="a"/><p>b</p>`
		if got := s.HTML(); got != want {
			t.Errorf("HTML() = %q, want %q", got, want)
		}
		if len(s.Pending()) != 0 {
			t.Errorf("Pending() = %v", s.Pending())
		}
	})

	t.Run("preview crossfade leaves image carrying the preview", func(t *testing.T) {
		t.Parallel()

		s := newTestSurface(t, previewMarker)
		if err := s.Resolve(model.Placeholder{Index: 0, ID: "ph2"}, `<img src="/b.webp">`); err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		got := s.HTML()
		if got != `<img src="/b.webp" data-lqip="data:image/webp;base64,AAAA"/>` {
			t.Errorf("HTML() = %q", got)
		}
		if strings.Contains(got, PreviewHolderClass) {
			t.Error("preview holder was not discarded")
		}
	})

	t.Run("resolving twice does not duplicate", func(t *testing.T) {
		t.Parallel()

		s := newTestSurface(t, "<p>a</p>"+plainMarker)
		p := model.Placeholder{Index: 1, ID: "ph1"}
		for range 2 {
			if err := s.Resolve(p, `<img src="/a.webp">`); err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
		}
		if got := strings.Count(s.HTML(), "/a.webp"); got != 1 {
			t.Errorf("image appears %d times, want 1", got)
		}
	})

	t.Run("repeat resolution ignores new chunk html", func(t *testing.T) {
		t.Parallel()

		s := newTestSurface(t, plainMarker)
		if err := s.Resolve(model.Placeholder{Index: 0, ID: "ph1"}, `<img src="/a.webp">`); err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if err := s.Resolve(model.Placeholder{Index: 1}, `<img src="/x.webp">`); err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		want := s.HTML()

		if err := s.Resolve(model.Placeholder{Index: 0, ID: "ph1"}, `<p>other`); err != nil {
			t.Errorf("repeat Resolve() error: %v", err)
		}
		if err := s.Resolve(model.Placeholder{Index: 1}, `<p>other`); err != nil {
			t.Errorf("repeat Resolve() of appended chunk error: %v", err)
		}
		if got := s.HTML(); got != want {
			t.Errorf("HTML() = %q, want %q", got, want)
		}
	})

	t.Run("concurrent resolution is order independent", func(t *testing.T) {
		t.Parallel()

		body := `<div class="img-ph" data-ph="a"></div><div class="img-ph" data-ph="b"></div><div class="img-ph" data-ph="c"></div>`
		s := newTestSurface(t, body)

		var wg sync.WaitGroup
		for i, id := range []string{"c", "a", "b", "a", "c"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.Resolve(model.Placeholder{Index: i, ID: id}, `<img src="/`+id+`.webp">`)
			}()
		}
		wg.Wait()

		want := `<img src="/a.webp"/><img src="/b.webp"/><img src="/c.webp"/>`
		if got := s.HTML(); got != want {
			t.Errorf("HTML() = %q, want %q", got, want)
		}
	})

	t.Run("empty id appends once", func(t *testing.T) {
		t.Parallel()

		s := newTestSurface(t, "<p>a</p>")
		p := model.Placeholder{Index: 3}
		_ = s.Resolve(p, `<img src="/x.webp">`)
		_ = s.Resolve(p, `<img src="/x.webp">`)

		if got := s.HTML(); got != `<p>a</p><div><img src="/x.webp"/></div>` {
			t.Errorf("HTML() = %q", got)
		}
	})

	t.Run("unknown id is reported", func(t *testing.T) {
		t.Parallel()

		s := newTestSurface(t, "<p>a</p>")
		err := s.Resolve(model.Placeholder{Index: 1, ID: "nope"}, `<img src="/x.webp">`)
		if !errors.Is(err, ErrPlaceholderNotFound) {
			t.Errorf("expected ErrPlaceholderNotFound, got %v", err)
		}
	})
}

// TestSurfaceFail tests the failed-image state.
func TestSurfaceFail(t *testing.T) {
	t.Parallel()

	t.Run("failed placeholder is emptied", func(t *testing.T) {
		t.Parallel()

		s := newTestSurface(t, "<p>a</p>"+plainMarker)
		s.Fail(model.Placeholder{Index: 1, ID: "ph1"})
		s.Fail(model.Placeholder{Index: 1, ID: "ph1"})

		want := `<p>a</p><div class="img-ph img-ph-empty" data-ph="ph1"></div>`
		if got := s.HTML(); got != want {
			t.Errorf("HTML() = %q, want %q", got, want)
		}
		if len(s.Pending()) != 0 {
			t.Errorf("failed placeholder still pending: %v", s.Pending())
		}
	})

	t.Run("fail after resolve is a no-op", func(t *testing.T) {
		t.Parallel()

		s := newTestSurface(t, plainMarker)
		p := model.Placeholder{Index: 0, ID: "ph1"}
		_ = s.Resolve(p, `<img src="/a.webp">`)
		s.Fail(p)

		if got := s.HTML(); got != `<img src="/a.webp"/>` {
			t.Errorf("HTML() = %q", got)
		}
	})

	t.Run("untouched markers stay pending", func(t *testing.T) {
		t.Parallel()

		s := newTestSurface(t, plainMarker+previewMarker)
		s.Fail(model.Placeholder{ID: "ph1"})
		if got := s.Pending(); len(got) != 1 || got[0] != "ph2" {
			t.Errorf("Pending() = %v", got)
		}
	})
}

// TestSurfaceMount tests mounting a document into a surface.
func TestSurfaceMount(t *testing.T) {
	t.Parallel()

	t.Run("mount replaces the body and resets state", func(t *testing.T) {
		t.Parallel()

		s := newTestSurface(t, plainMarker)
		_ = s.Resolve(model.Placeholder{ID: "ph1"}, `<img src="/old.webp">`)

		if err := s.Mount(&model.AssembledDocument{BodyHTML: "<p>new</p>" + plainMarker}); err != nil {
			t.Fatalf("Mount() error: %v", err)
		}
		if got := s.Pending(); len(got) != 1 || got[0] != "ph1" {
			t.Errorf("Pending() = %v", got)
		}
		if err := s.Resolve(model.Placeholder{ID: "ph1"}, `<img src="/new.webp">`); err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if got := s.HTML(); got != `<p>new</p><img src="/new.webp"/>` {
			t.Errorf("HTML() = %q", got)
		}
	})

	t.Run("assembled document hydrates into an empty surface", func(t *testing.T) {
		t.Parallel()

		payloads := map[string]string{
			model.ManifestRequest(model.DefaultAPIPrefix, "p").Path: `{"title":"P","totalChunks":3,"chunk_types":["text","image","text"],"ph_ids":[null,"ph1",null]}`,
			model.ChunkRequest(model.DefaultAPIPrefix, "p", 0).Path: `{"html":"<p>a</p>` + strings.ReplaceAll(plainMarker, `"`, `\"`) + `"}`,
			model.ChunkRequest(model.DefaultAPIPrefix, "p", 1).Path: `{"html":"<img src=\"/a.webp\">"}`,
			model.ChunkRequest(model.DefaultAPIPrefix, "p", 2).Path: `{"html":"<p>b</p>"}`,
		}
		f := fetcherFunc(func(_ context.Context, req model.ResourceRequest) json.RawMessage {
			if p, ok := payloads[req.Path]; ok {
				return json.RawMessage(p)
			}
			return nil
		})

		s := newTestSurface(t, "")
		view, err := assembly.New(f).Assemble(context.Background(), "p", s)
		if err != nil {
			t.Fatalf("Assemble() error: %v", err)
		}
		view.Hydration.Wait()

		if got := s.HTML(); got != `<p>a</p><img src="/a.webp"/><p>b</p>` {
			t.Errorf("HTML() = %q", got)
		}
		if len(s.Pending()) != 0 {
			t.Errorf("Pending() = %v", s.Pending())
		}
	})
}

type fetcherFunc func(ctx context.Context, req model.ResourceRequest) json.RawMessage

func (f fetcherFunc) Fetch(ctx context.Context, req model.ResourceRequest) json.RawMessage {
	return f(ctx, req)
}

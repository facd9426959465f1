package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nao1215/postfetch/internal/cache"
	"github.com/nao1215/postfetch/internal/model"
)

// jsonHandler serves body as application/json.
func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}

// deadOrigin returns the URL of a server that is no longer listening.
func deadOrigin(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return srv.URL
}

// TestFetch tests the multi-origin fetch algorithm.
func TestFetch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	req := model.ResourceRequest{Path: "/api/post/p", CacheKey: "doc:p", RevalidateOnStale: true}

	t.Run("HTML from first origin falls through to JSON from second", func(t *testing.T) {
		t.Parallel()

		var htmlHits atomic.Int32
		html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			htmlHits.Add(1)
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>rewritten</html>"))
		}))
		defer html.Close()
		good := httptest.NewServer(jsonHandler(`{"title":"second"}`))
		defer good.Close()

		f := New(good.Client(), WithOrigins(html.URL, good.URL))
		got := f.Fetch(ctx, req)

		if string(got) != `{"title":"second"}` {
			t.Fatalf("Fetch() = %s, want second origin payload", got)
		}
		if htmlHits.Load() != 2 {
			t.Errorf("first origin hit %d times, want 2 (original + cache-busted retry)", htmlHits.Load())
		}
	})

	t.Run("HTML then JSON on cache-busted retry is accepted", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get(bustParam) == "" {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<html></html>"))
				return
			}
			jsonHandler(`{"ok":true}`)(w, r)
		}))
		defer srv.Close()

		store := cache.NewMemoryStore()
		f := New(srv.Client(), WithOrigins(srv.URL), WithStore(store))

		if got := f.Fetch(ctx, req); string(got) != `{"ok":true}` {
			t.Fatalf("Fetch() = %s", got)
		}
		if _, ok := store.Read(ctx, "doc:p"); !ok {
			t.Error("payload from retry was not cached")
		}
	})

	t.Run("successful fetch is cached with validators", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("Accept = %q", r.Header.Get("Accept"))
			}
			w.Header().Set("ETag", `"v1"`)
			jsonHandler(`{"a":1}`)(w, r)
		}))
		defer srv.Close()

		store := cache.NewMemoryStore()
		f := New(srv.Client(), WithOrigins(srv.URL), WithStore(store))
		f.Fetch(ctx, req)

		entry, ok := store.Read(ctx, "doc:p")
		if !ok {
			t.Fatal("expected cache entry")
		}
		if string(entry.Payload) != `{"a":1}` || entry.ETag != `"v1"` {
			t.Errorf("entry = %+v", entry)
		}
	})

	t.Run("not modified is answered from the cache", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("If-None-Match") == `"v1"` {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			t.Errorf("expected conditional request, got If-None-Match %q", r.Header.Get("If-None-Match"))
			jsonHandler(`{"fresh":true}`)(w, r)
		}))
		defer srv.Close()

		store := cache.NewMemoryStore()
		_ = store.Write(ctx, model.CacheEntry{Key: "doc:p", Payload: json.RawMessage(`{"cached":true}`), ETag: `"v1"`})

		f := New(srv.Client(), WithOrigins(srv.URL), WithStore(store))
		if got := f.Fetch(ctx, req); string(got) != `{"cached":true}` {
			t.Fatalf("Fetch() = %s, want cached payload", got)
		}
		if f.Stats().NotModified != 1 {
			t.Errorf("NotModified = %d, want 1", f.Stats().NotModified)
		}
	})

	t.Run("not modified without cache revalidates with a cache bust", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get(bustParam) == "" {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			if r.URL.Query().Get("chunked") != "1" {
				t.Errorf("original query lost: %s", r.URL.RawQuery)
			}
			jsonHandler(`{"totalChunks":1}`)(w, r)
		}))
		defer srv.Close()

		f := New(srv.Client(), WithOrigins(srv.URL))
		manifest := model.ResourceRequest{Path: "/api/post/p?chunked=1", CacheKey: "manifest:p", RevalidateOnStale: true}
		if got := f.Fetch(ctx, manifest); string(got) != `{"totalChunks":1}` {
			t.Fatalf("Fetch() = %s", got)
		}
	})

	t.Run("not modified without cache or revalidation moves to next origin", func(t *testing.T) {
		t.Parallel()

		var busted atomic.Bool
		stale := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get(bustParam) != "" {
				busted.Store(true)
			}
			w.WriteHeader(http.StatusNotModified)
		}))
		defer stale.Close()
		good := httptest.NewServer(jsonHandler(`{"html":"<p>x</p>"}`))
		defer good.Close()

		f := New(good.Client(), WithOrigins(stale.URL, good.URL))
		chunk := model.ResourceRequest{Path: "/api/post/p/chunk/0", CacheKey: "chunk:p:0"}
		if got := f.Fetch(ctx, chunk); string(got) != `{"html":"<p>x</p>"}` {
			t.Fatalf("Fetch() = %s", got)
		}
		if busted.Load() {
			t.Error("chunk requests must not be revalidated")
		}
	})

	t.Run("non-2xx and invalid bodies move to next origin", func(t *testing.T) {
		t.Parallel()

		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"detail":"boom"}`, http.StatusBadGateway)
		}))
		defer failing.Close()
		garbled := httptest.NewServer(jsonHandler(`{"truncated":`))
		defer garbled.Close()
		good := httptest.NewServer(jsonHandler(`{"ok":1}`))
		defer good.Close()

		f := New(good.Client(), WithOrigins(failing.URL, garbled.URL, good.URL))
		if got := f.Fetch(ctx, req); string(got) != `{"ok":1}` {
			t.Fatalf("Fetch() = %s", got)
		}
		if f.Stats().OriginFailures != 2 {
			t.Errorf("OriginFailures = %d, want 2", f.Stats().OriginFailures)
		}
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(jsonHandler(`"` + strings.Repeat("x", 100) + `"`))
		defer srv.Close()

		f := New(srv.Client(), WithOrigins(srv.URL), WithMaxBodySize(10))
		if got := f.Fetch(ctx, req); got != nil {
			t.Errorf("Fetch() = %s, want nil", got)
		}
	})

	t.Run("no reachable origin returns cached payload unchanged", func(t *testing.T) {
		t.Parallel()

		store := cache.NewMemoryStore()
		payload := json.RawMessage(`{"title":"remembered","tags":["a"]}`)
		_ = store.Write(ctx, model.CacheEntry{Key: "doc:p", Payload: payload})

		f := New(http.DefaultClient, WithOrigins(deadOrigin(t), deadOrigin(t)), WithStore(store))
		got := f.Fetch(ctx, req)
		if string(got) != string(payload) {
			t.Fatalf("Fetch() = %s, want %s", got, payload)
		}
		if f.Stats().CacheFallbacks != 1 {
			t.Errorf("CacheFallbacks = %d, want 1", f.Stats().CacheFallbacks)
		}
	})

	t.Run("no reachable origin and no cache returns nil", func(t *testing.T) {
		t.Parallel()

		f := New(http.DefaultClient, WithOrigins(deadOrigin(t)), WithStore(cache.NewMemoryStore()))
		if got := f.Fetch(ctx, req); got != nil {
			t.Errorf("Fetch() = %s, want nil", got)
		}
	})

	t.Run("requests without cache key never touch the store", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(jsonHandler(`{"docsVersion":1}`))
		defer srv.Close()

		store := cache.NewMemoryStore()
		f := New(srv.Client(), WithOrigins(srv.URL), WithStore(store))
		f.Fetch(ctx, model.ResourceRequest{Path: "/api/version"})
		if store.Len() != 0 {
			t.Errorf("store has %d entries, want 0", store.Len())
		}
	})

	t.Run("relative origin resolves against site URL", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/post/p" {
				t.Errorf("path = %q", r.URL.Path)
			}
			jsonHandler(`{"ok":true}`)(w, r)
		}))
		defer srv.Close()

		f := New(srv.Client(), WithOrigins(deadOrigin(t)), WithSiteURL(srv.URL+"/blog/"))
		if got := f.Fetch(ctx, req); string(got) != `{"ok":true}` {
			t.Fatalf("Fetch() = %s", got)
		}
	})

	t.Run("cancelled context returns nil", func(t *testing.T) {
		t.Parallel()

		store := cache.NewMemoryStore()
		_ = store.Write(ctx, model.CacheEntry{Key: "doc:p", Payload: json.RawMessage(`1`)})

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		f := New(http.DefaultClient, WithOrigins(deadOrigin(t)), WithStore(store))
		if got := f.Fetch(cctx, req); got != nil {
			t.Errorf("Fetch() = %s, want nil for abandoned fetch", got)
		}
	})
}

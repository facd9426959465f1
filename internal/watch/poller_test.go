package watch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/postfetch/internal/fetch"
	"github.com/nao1215/postfetch/internal/model"
)

// scriptedFetcher returns its payloads in order, repeating the last one.
type scriptedFetcher struct {
	mu       sync.Mutex
	payloads []string
	paths    []string
}

func (f *scriptedFetcher) Fetch(_ context.Context, req model.ResourceRequest) json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, req.Path)
	if len(f.payloads) == 0 {
		return nil
	}
	p := f.payloads[0]
	if len(f.payloads) > 1 {
		f.payloads = f.payloads[1:]
	}
	if p == "" {
		return nil
	}
	return json.RawMessage(p)
}

func TestPollerPoll(t *testing.T) {
	t.Parallel()

	t.Run("first observation only records", func(t *testing.T) {
		t.Parallel()

		p := New(&scriptedFetcher{payloads: []string{`{"docsVersion":3,"configVersion":1}`}})
		if _, changed := p.Poll(context.Background()); changed {
			t.Error("first poll should not report a change")
		}
		last, ok := p.Last()
		if !ok || last.DocsVersion != 3 || last.ConfigVersion != 1 {
			t.Errorf("Last() = %+v, %v", last, ok)
		}
	})

	t.Run("docs and config changes are reported", func(t *testing.T) {
		t.Parallel()

		f := &scriptedFetcher{payloads: []string{
			`{"docsVersion":1,"configVersion":1}`,
			`{"docsVersion":1,"configVersion":1}`,
			`{"docsVersion":2,"configVersion":1}`,
			`{"docsVersion":2,"configVersion":5}`,
		}}
		p := New(f)
		ctx := context.Background()

		p.Poll(ctx)
		if _, changed := p.Poll(ctx); changed {
			t.Error("same version should not be a change")
		}

		c, changed := p.Poll(ctx)
		if !changed || !c.DocsChanged() || c.ConfigChanged() {
			t.Errorf("docs bump: change = %+v, %v", c, changed)
		}
		if c.Previous.DocsVersion != 1 || c.Current.DocsVersion != 2 {
			t.Errorf("versions = %+v", c)
		}

		c, changed = p.Poll(ctx)
		if !changed || c.DocsChanged() || !c.ConfigChanged() {
			t.Errorf("config bump: change = %+v, %v", c, changed)
		}
	})

	t.Run("absent results are ignored", func(t *testing.T) {
		t.Parallel()

		f := &scriptedFetcher{payloads: []string{
			`{"docsVersion":1}`,
			"",
			`{"configVersion":9}`,
			`{"docsVersion":1}`,
		}}
		p := New(f)
		ctx := context.Background()

		for i := 0; i < 4; i++ {
			if c, changed := p.Poll(ctx); changed {
				t.Errorf("poll %d reported %+v", i, c)
			}
		}
		if last, _ := p.Last(); last.DocsVersion != 1 {
			t.Errorf("Last() = %+v", last)
		}
	})

	t.Run("nothing observed yet", func(t *testing.T) {
		t.Parallel()

		p := New(&scriptedFetcher{})
		p.Poll(context.Background())
		if _, ok := p.Last(); ok {
			t.Error("expected no observation")
		}
	})

	t.Run("requests the version path under the prefix", func(t *testing.T) {
		t.Parallel()

		f := &scriptedFetcher{}
		New(f, WithAPIPrefix("/blog/api")).Poll(context.Background())
		if len(f.paths) != 1 || f.paths[0] != "/blog/api/version" {
			t.Errorf("paths = %v", f.paths)
		}
	})
}

func TestNewOptions(t *testing.T) {
	t.Parallel()

	p := New(&scriptedFetcher{}, WithInterval(0))
	if p.interval != DefaultInterval {
		t.Errorf("interval = %v", p.interval)
	}
	p = New(&scriptedFetcher{}, WithInterval(time.Second), WithLogger(nil))
	if p.interval != time.Second || p.logger == nil {
		t.Errorf("interval = %v, logger = %v", p.interval, p.logger)
	}
}

func TestPollerRun(t *testing.T) {
	t.Parallel()

	var version atomic.Int64
	version.Store(1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int64{ //nolint:errcheck // test server
			"docsVersion":   version.Add(1) / 2,
			"configVersion": 1,
		})
	}))
	t.Cleanup(srv.Close)

	f := fetch.New(srv.Client(), fetch.WithOrigins(srv.URL))
	p := New(f, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var changes []Change
	err := p.Run(ctx, func(c Change) {
		changes = append(changes, c)
		if len(changes) == 2 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if len(changes) != 2 {
		t.Fatalf("got %d changes", len(changes))
	}
	if !changes[0].DocsChanged() || changes[1].Current.DocsVersion <= changes[0].Current.DocsVersion {
		t.Errorf("changes = %+v", changes)
	}
	if f.Stats().Fetches < 3 {
		t.Errorf("fetches = %d", f.Stats().Fetches)
	}
}

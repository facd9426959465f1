package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/postfetch/internal/config"
)

// lockedBuffer is a bytes.Buffer safe for one writer and one reader.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestNewWatchCmd tests the watch command creation.
func TestNewWatchCmd(t *testing.T) {
	t.Parallel()

	cmd := NewWatchCmd()
	for _, name := range []string{"interval", "json", "no-images", "api-base", "site-url", "cache"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
	if flag := cmd.Flags().Lookup("interval"); flag != nil && flag.DefValue != config.DefaultPollInterval.String() {
		t.Errorf("interval default = %q", flag.DefValue)
	}
}

// watchUntil runs the watcher, bumping the document version until the
// output satisfies done or the test times out.
func watchUntil(t *testing.T, cfg *config.Config, ids []string, done func(string) bool) string {
	t.Helper()

	srv := newBlogServer(t)
	cfg.APIBase = srv.URL
	cfg.CacheBackend = config.CacheNone
	cfg.PollInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &lockedBuffer{}
	result := make(chan error, 1)
	go func() {
		result <- runWatch(ctx, out, cfg, ids, slog.New(slog.DiscardHandler))
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for !done(out.String()) {
		select {
		case <-deadline:
			t.Fatalf("timed out, output so far:\n%s", out.String())
		case <-tick.C:
			srv.docsVersion.Add(1)
		}
	}

	cancel()
	if err := <-result; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	return out.String()
}

// TestRunWatch tests change reporting and re-assembly.
func TestRunWatch(t *testing.T) {
	t.Parallel()

	t.Run("reports changes as text", func(t *testing.T) {
		t.Parallel()

		out := watchUntil(t, config.NewConfig(), nil, func(s string) bool {
			return strings.Contains(s, "docsVersion")
		})
		if !strings.Contains(out, "Watching /api/version") {
			t.Errorf("expected banner in %q", out)
		}
	})

	t.Run("re-assembles documents as JSON lines", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.JSONReport = true
		out := watchUntil(t, cfg, []string{"hello"}, func(s string) bool {
			return strings.Contains(s, `"document_id":"hello"`)
		})

		if strings.Contains(out, "Watching") {
			t.Error("JSON mode should not print a banner")
		}
		for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
			if !strings.HasPrefix(line, "{") {
				t.Errorf("expected one JSON object per line, got %q", line)
			}
		}
		if !strings.Contains(out, `"change"`) || !strings.Contains(out, `"source":"chunked"`) {
			t.Errorf("unexpected output:\n%s", out)
		}
	})
}

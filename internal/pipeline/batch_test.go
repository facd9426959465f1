package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/postfetch/internal/model"
)

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() })

		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		site := &model.SiteConfig{SiteName: "Notes"}
		bp := NewBatchProcessor(func() *Pipeline { return New() }, WithConcurrency(5), WithSiteConfig(site))

		if bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
		if bp.site != site {
			t.Error("expected site config")
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, WithConcurrency(0))

		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, WithBatchLogger(nil))
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})
}

func stepPipeline(fn func(ctx context.Context, job *Job) error) func() *Pipeline {
	return func() *Pipeline {
		p := New()
		p.AddStep(&mockStep{name: "step", doFunc: fn})
		return p
	}
}

// TestBatchProcessorProcessBatch tests batch processing.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("processes all documents in order", func(t *testing.T) {
		t.Parallel()

		var processed atomic.Int32
		bp := NewBatchProcessor(stepPipeline(func(context.Context, *Job) error {
			processed.Add(1)
			return nil
		}))

		ids := []string{"first", "second", "third"}
		jobs, err := bp.ProcessBatch(context.Background(), ids)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if processed.Load() != 3 {
			t.Errorf("expected 3 processed, got %d", processed.Load())
		}
		for i, job := range jobs {
			if job.DocumentID != ids[i] {
				t.Errorf("jobs[%d] = %q, want %q", i, job.DocumentID, ids[i])
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		var mu sync.Mutex
		bp := NewBatchProcessor(stepPipeline(func(context.Context, *Job) error {
			n := current.Add(1)
			mu.Lock()
			if n > peak.Load() {
				peak.Store(n)
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
			return nil
		}), WithConcurrency(2))

		if _, err := bp.ProcessBatch(context.Background(), make([]string, 8)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency %d, expected <= 2", peak.Load())
		}
	})

	t.Run("continues after an individual failure", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(stepPipeline(func(_ context.Context, job *Job) error {
			if job.DocumentID == "bad" {
				return errors.New("load failed")
			}
			return nil
		}))

		jobs, err := bp.ProcessBatch(context.Background(), []string{"good", "bad", "also-good"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if jobs[1].Err == nil {
			t.Error("expected error recorded on the failed job")
		}
		if jobs[0].Err != nil || jobs[2].Err != nil {
			t.Error("other jobs should succeed")
		}
	})

	t.Run("attaches the site config", func(t *testing.T) {
		t.Parallel()

		site := &model.SiteConfig{SiteName: "Notes"}
		bp := NewBatchProcessor(stepPipeline(nil), WithSiteConfig(site))

		jobs, err := bp.ProcessBatch(context.Background(), []string{"a"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if jobs[0].Site != site {
			t.Error("expected the configured site on the job")
		}
	})

	t.Run("handles context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		var started atomic.Int32
		bp := NewBatchProcessor(stepPipeline(func(ctx context.Context, _ *Job) error {
			started.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
				return nil
			}
		}), WithConcurrency(2))

		time.AfterFunc(50*time.Millisecond, cancel)

		ids := make([]string, 10)
		_, err := bp.ProcessBatch(ctx, ids)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if started.Load() >= int32(len(ids)) {
			t.Error("expected some documents not to start")
		}
	})
}

// TestBatchProcessorProcessBatchWithCallback tests callback-based processing.
func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := make(map[int]string)

	bp := NewBatchProcessor(stepPipeline(nil))
	ids := []string{"first", "second", "third"}
	err := bp.ProcessBatchWithCallback(context.Background(), ids, func(job *Job, i int) {
		mu.Lock()
		defer mu.Unlock()
		seen[i] = job.DocumentID
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, id := range ids {
		if seen[i] != id {
			t.Errorf("callback %d got %q, want %q", i, seen[i], id)
		}
	}
}

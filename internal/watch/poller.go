package watch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/postfetch/internal/model"
)

// DefaultInterval is the time between polls when WithInterval is not used.
const DefaultInterval = 10 * time.Second

// Fetcher is the part of fetch.Fetcher the poller needs.
type Fetcher interface {
	Fetch(ctx context.Context, req model.ResourceRequest) json.RawMessage
}

// Change describes a version bump observed between two polls.
type Change struct {
	Previous model.VersionInfo `json:"previous"`
	Current  model.VersionInfo `json:"current"`
	At       time.Time         `json:"at"`
}

// DocsChanged reports whether the document index changed.
func (c Change) DocsChanged() bool {
	return c.Previous.DocsVersion != c.Current.DocsVersion
}

// ConfigChanged reports whether the site configuration changed.
func (c Change) ConfigChanged() bool {
	return c.Previous.ConfigVersion != c.Current.ConfigVersion
}

// Poller watches the version heartbeat. It is safe for concurrent use,
// though Run is meant to be called once.
type Poller struct {
	fetcher  Fetcher
	prefix   string
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	last *model.VersionInfo
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the time between polls. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithAPIPrefix sets the API path prefix.
func WithAPIPrefix(prefix string) Option {
	return func(p *Poller) {
		p.prefix = prefix
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// New creates a Poller that fetches the heartbeat through f.
func New(f Fetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  f,
		prefix:   model.DefaultAPIPrefix,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Poll fetches the heartbeat once. It returns a Change and true only when
// a previously recorded version differs from the one just fetched.
func (p *Poller) Poll(ctx context.Context) (Change, bool) {
	raw := p.fetcher.Fetch(ctx, model.VersionRequest(p.prefix))
	current, ok := model.ParseVersion(raw)
	if !ok {
		p.logger.Debug("version heartbeat unavailable")
		return Change{}, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	previous := p.last
	p.last = &current
	if previous == nil || *previous == current {
		return Change{}, false
	}

	change := Change{Previous: *previous, Current: current, At: p.now()}
	p.logger.Info("version changed",
		"docs_version", current.DocsVersion,
		"config_version", current.ConfigVersion,
	)
	return change, true
}

// Last returns the most recently observed version.
func (p *Poller) Last() (model.VersionInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return model.VersionInfo{}, false
	}
	return *p.last, true
}

// Run polls immediately and then once per interval until ctx is done,
// calling onChange for every Change. onChange runs on the polling
// goroutine; the next poll waits for it to return. Run returns ctx.Err().
func (p *Poller) Run(ctx context.Context, onChange func(Change)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if change, ok := p.Poll(ctx); ok && onChange != nil {
			onChange(change)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/postfetch/internal/cache"
	"github.com/nao1215/postfetch/internal/model"
)

// DefaultMaxBodySize caps a response body when WithMaxBodySize is not used.
const DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

// Fetcher performs logical fetches against an ordered list of origins with
// cache-aside reads and writes. It is safe for concurrent use.
type Fetcher struct {
	// client issues the HTTP requests. Per-attempt timeouts live here.
	client *http.Client

	// origins is the candidate list built by Origins.
	origins []string

	// siteURL resolves the relative origin.
	siteURL string

	// store backs cache-aside reads and writes.
	store cache.Store

	// limiter throttles HTTP attempts across all fetches. Nil means unlimited.
	limiter *rate.Limiter

	maxBodySize int64
	logger      *slog.Logger
	bust        bustCounter
	stats       counters
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithOrigins sets the primary origin and any extra origins tried after it.
// The relative origin is always appended.
func WithOrigins(primary string, extra ...string) Option {
	return func(f *Fetcher) {
		f.origins = Origins(primary, extra...)
	}
}

// WithSiteURL sets the URL the relative origin resolves against,
// typically the site that serves both pages and API.
func WithSiteURL(siteURL string) Option {
	return func(f *Fetcher) {
		f.siteURL = siteURL
	}
}

// WithStore sets the fallback cache. The default remembers nothing.
func WithStore(store cache.Store) Option {
	return func(f *Fetcher) {
		if store != nil {
			f.store = store
		}
	}
}

// WithRateLimit caps HTTP attempts per second. Zero or less disables it.
func WithRateLimit(perSecond float64) Option {
	return func(f *Fetcher) {
		if perSecond > 0 {
			burst := int(perSecond)
			if burst < 1 {
				burst = 1
			}
			f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithMaxBodySize caps response bodies.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher that issues requests with client.
// Without WithOrigins only the relative origin is tried.
func New(client *http.Client, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{
		client:      client,
		origins:     Origins(""),
		store:       cache.Nop{},
		maxBodySize: DefaultMaxBodySize,
	}
	f.bust.now = time.Now

	for _, opt := range opts {
		opt(f)
	}

	if f.logger == nil {
		f.logger = slog.Default()
	}

	return f
}

// Origins returns the candidate origins in the order they are tried.
func (f *Fetcher) Origins() []string {
	return append([]string(nil), f.origins...)
}

// attempt is the outcome of trying one origin.
type attempt int

const (
	attemptNext   attempt = iota // move on to the next origin
	attemptFresh                 // fresh payload from the network
	attemptCached                // 304 answered from the cache
)

// Fetch performs one logical fetch and returns the JSON payload, or nil
// when no origin produced one and nothing is cached under req.CacheKey.
//
// Fetch never surfaces network errors. A cancelled ctx abandons the fetch
// and returns nil.
func (f *Fetcher) Fetch(ctx context.Context, req model.ResourceRequest) json.RawMessage {
	f.stats.fetches.Add(1)
	cached := f.readCache(ctx, req.CacheKey)

	for _, origin := range f.origins {
		if ctx.Err() != nil {
			return nil
		}

		payload, validators, outcome := f.tryOrigin(ctx, origin, req, cached)
		switch outcome {
		case attemptCached:
			f.stats.notModified.Add(1)
			return cached.Payload
		case attemptFresh:
			f.writeCache(ctx, req.CacheKey, payload, validators)
			return payload
		case attemptNext:
			f.stats.originFailures.Add(1)
		}
	}

	if ctx.Err() != nil {
		return nil
	}

	// Every origin failed: fall back to whatever the store holds now.
	if entry := f.readCache(ctx, req.CacheKey); entry != nil {
		f.stats.cacheFallbacks.Add(1)
		f.logger.Debug("all origins failed, serving cached payload", "key", req.CacheKey)
		return entry.Payload
	}

	f.stats.misses.Add(1)
	f.logger.Debug("all origins failed", "path", req.Path)
	return nil
}

// tryOrigin runs the per-origin algorithm: conditional request, 304
// handling, status check, content-type verification with one cache-busting
// retry, and JSON decoding.
func (f *Fetcher) tryOrigin(
	ctx context.Context,
	origin string,
	req model.ResourceRequest,
	cached *model.CacheEntry,
) (json.RawMessage, validators, attempt) {
	logger := f.logger.With("origin", originLabel(origin), "path", req.Path)

	resp, err := f.do(ctx, origin, req.Path, cached)
	if err != nil {
		logger.Debug("request failed", "error", err)
		return nil, validators{}, attemptNext
	}

	if resp.StatusCode == http.StatusNotModified {
		drain(resp)
		if cached != nil {
			return nil, validators{}, attemptCached
		}
		if !req.RevalidateOnStale {
			logger.Debug("not modified with nothing cached, skipping origin")
			return nil, validators{}, attemptNext
		}
		resp, err = f.do(ctx, origin, withBust(req.Path, f.nextBust()), nil)
		if err != nil {
			logger.Debug("revalidation failed", "error", err)
			return nil, validators{}, attemptNext
		}
	}

	if !isSuccess(resp.StatusCode) {
		drain(resp)
		logger.Debug("unsuccessful status", "status", resp.StatusCode)
		return nil, validators{}, attemptNext
	}

	if !isJSON(resp) {
		// An intermediary may have rewritten the API path to an HTML page.
		// Retry once past any caches before giving up on this origin.
		logger.Debug("non-JSON content type, retrying with cache bust", "content_type", resp.Header.Get("Content-Type"))
		drain(resp)
		resp, err = f.do(ctx, origin, withBust(req.Path, f.nextBust()), nil)
		if err != nil {
			logger.Debug("retry failed", "error", err)
			return nil, validators{}, attemptNext
		}
		if !isSuccess(resp.StatusCode) {
			drain(resp)
			logger.Debug("unsuccessful status on retry", "status", resp.StatusCode)
			return nil, validators{}, attemptNext
		}
		if !isJSON(resp) {
			drain(resp)
			logger.Debug("still not JSON after cache bust")
			return nil, validators{}, attemptNext
		}
	}

	payload, err := f.readJSON(resp)
	if err != nil {
		logger.Debug("invalid response body", "error", err)
		return nil, validators{}, attemptNext
	}
	return payload, validatorsOf(resp), attemptFresh
}

// do issues a single GET. When cached carries validators the request is
// made conditional.
func (f *Fetcher) do(ctx context.Context, origin, path string, cached *model.CacheEntry) (*http.Response, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	target, err := resolveURL(origin, f.siteURL, path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if cached.HasValidators() {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	f.stats.requests.Add(1)
	return f.client.Do(req)
}

// readJSON reads and validates a JSON body, enforcing the size limit.
func (f *Fetcher) readJSON(resp *http.Response) (json.RawMessage, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, errBodyTooLarge
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: body does not decode", errNotJSON)
	}
	return json.RawMessage(body), nil
}

func (f *Fetcher) readCache(ctx context.Context, key string) *model.CacheEntry {
	if key == "" {
		return nil
	}
	entry, ok := f.store.Read(ctx, key)
	if !ok {
		return nil
	}
	return entry
}

// writeCache is best-effort: a failed write (full disk, locked database)
// is logged and otherwise ignored.
func (f *Fetcher) writeCache(ctx context.Context, key string, payload json.RawMessage, v validators) {
	if key == "" {
		return
	}
	err := f.store.Write(ctx, model.CacheEntry{
		Key:          key,
		Payload:      payload,
		ETag:         v.etag,
		LastModified: v.lastModified,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		f.logger.Debug("cache write failed", "key", key, "error", err)
	}
}

func (f *Fetcher) nextBust() string {
	f.stats.busts.Add(1)
	return f.bust.next()
}

// validators are the revalidation headers of a response.
type validators struct {
	etag         string
	lastModified string
}

func validatorsOf(resp *http.Response) validators {
	return validators{
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func isJSON(resp *http.Response) bool {
	return strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "application/json")
}

// drain discards the rest of a body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // best-effort drain
	_ = resp.Body.Close()
}

func originLabel(origin string) string {
	if origin == "" {
		return "(relative)"
	}
	return origin
}

// Stats is a snapshot of fetcher activity.
type Stats struct {
	// Fetches is the number of logical fetches.
	Fetches int64 `json:"fetches"`

	// Requests is the number of HTTP requests issued, retries included.
	Requests int64 `json:"requests"`

	// OriginFailures counts origins abandoned during a fetch.
	OriginFailures int64 `json:"origin_failures"`

	// NotModified counts 304 answers served from the cache.
	NotModified int64 `json:"not_modified"`

	// CacheBusts counts retries issued with a cache-busting parameter.
	CacheBusts int64 `json:"cache_busts"`

	// CacheFallbacks counts fetches answered from the cache after every
	// origin failed.
	CacheFallbacks int64 `json:"cache_fallbacks"`

	// Misses counts fetches that returned nil.
	Misses int64 `json:"misses"`
}

type counters struct {
	fetches        atomic.Int64
	requests       atomic.Int64
	originFailures atomic.Int64
	notModified    atomic.Int64
	busts          atomic.Int64
	cacheFallbacks atomic.Int64
	misses         atomic.Int64
}

// Stats returns current fetch statistics.
func (f *Fetcher) Stats() Stats {
	return Stats{
		Fetches:        f.stats.fetches.Load(),
		Requests:       f.stats.requests.Load(),
		OriginFailures: f.stats.originFailures.Load(),
		NotModified:    f.stats.notModified.Load(),
		CacheBusts:     f.stats.busts.Load(),
		CacheFallbacks: f.stats.cacheFallbacks.Load(),
		Misses:         f.stats.misses.Load(),
	}
}

package config

import (
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/postfetch/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "postfetch"

	// DefaultTimeout bounds a single HTTP attempt against one origin. A slow
	// origin should cost seconds, not minutes, because the next origin may
	// answer immediately.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxInFlight is the maximum number of concurrent chunk requests
	// per document view.
	DefaultMaxInFlight = 8

	// DefaultFanoutTimeout is the join deadline for all text chunks of one
	// document. Chunks that have not arrived by then count as missing.
	DefaultFanoutTimeout = 20 * time.Second

	// DefaultMaxBodySize limits the maximum response body size to read.
	// Manifests and chunks are small; 5MB leaves room for large monolithic
	// documents while preventing memory exhaustion.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultUserAgent identifies postfetch in HTTP requests.
	DefaultUserAgent = "postfetch/1.0"

	// DefaultCacheBackend persists cache entries across runs.
	DefaultCacheBackend = CacheSQLite

	// DefaultCacheMaxEntries bounds the number of cache rows.
	DefaultCacheMaxEntries = 10000

	// DefaultCacheMaxAge drops cache entries that have not been refreshed
	// for a month.
	DefaultCacheMaxAge = 30 * 24 * time.Hour

	// DefaultPollInterval matches the interval at which the blog front end
	// checks /api/version.
	DefaultPollInterval = 10 * time.Second

	// DefaultBatchSize is the number of documents assembled concurrently by
	// `postfetch assemble` when several ids are given.
	DefaultBatchSize = 4
)

// Cache backend names.
const (
	CacheSQLite = "sqlite"
	CacheMemory = "memory"
	CacheNone   = "none"
)

// Config holds all configuration options for postfetch.
// This struct is populated from defaults, the .postfetch file, the
// environment, and CLI flags, in that order, and then passed through the
// application rather than kept in global state.
//
// Design decision: We use a single flat struct instead of nested structs
// for simplicity. The YAML file groups cache settings under "cache", but
// File.Apply flattens them here.
type Config struct {
	// APIBase is the primary API origin (scheme://host[:port]). Empty means
	// only extra origins and the relative origin are tried.
	APIBase string

	// SiteURL is the URL of the blog page itself. The relative origin
	// resolves API paths against it, the way a browser resolves "/api/..."
	// against the page that issued the request.
	SiteURL string

	// ExtraOrigins are additional API origins tried after APIBase and
	// before the relative origin.
	ExtraOrigins []string

	// APIPrefix is the path prefix of the blog API.
	APIPrefix string

	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration

	// MaxInFlight is the maximum number of concurrent chunk requests.
	MaxInFlight int

	// FanoutTimeout is the join deadline for all text chunks of a document.
	FanoutTimeout time.Duration

	// RequestsPerSecond limits the request rate of one fetcher.
	// Zero means unlimited.
	RequestsPerSecond float64

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// ProxyAddress routes requests through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// Headers are added to every API request, e.g. a preview token for a
	// staging deployment.
	Headers map[string]string

	// CacheBackend selects the CacheStore: "sqlite", "memory" or "none".
	CacheBackend string

	// CacheDir is the directory holding the SQLite cache database.
	// Defaults to XDG cache directory (~/.cache/postfetch on Linux).
	CacheDir string

	// CacheMaxEntries bounds the number of cached payloads.
	CacheMaxEntries int

	// CacheMaxAge drops cached payloads older than this.
	CacheMaxAge time.Duration

	// PollInterval is the interval between /api/version checks in watch mode.
	PollInterval time.Duration

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .postfetch in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of human-readable format.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// HTMLOutput prints the hydrated document body instead of a report.
	HTMLOutput bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// BatchSize is the number of documents assembled concurrently.
	BatchSize int

	// NoImages skips image hydration; placeholders stay in the output.
	NoImages bool

	// PageDir, when set, receives one standalone HTML page per document.
	PageDir string
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
func NewConfig() *Config {
	return &Config{
		APIPrefix:       model.DefaultAPIPrefix,
		Timeout:         DefaultTimeout,
		MaxInFlight:     DefaultMaxInFlight,
		FanoutTimeout:   DefaultFanoutTimeout,
		MaxBodySize:     DefaultMaxBodySize,
		UserAgent:       DefaultUserAgent,
		CacheBackend:    DefaultCacheBackend,
		CacheDir:        XDGCacheDir(),
		CacheMaxEntries: DefaultCacheMaxEntries,
		CacheMaxAge:     DefaultCacheMaxAge,
		PollInterval:    DefaultPollInterval,
		BatchSize:       DefaultBatchSize,
		Headers:         map[string]string{},
	}
}

// XDGConfigDir returns the XDG config directory for postfetch.
// On Linux: ~/.config/postfetch
// On macOS: ~/Library/Application Support/postfetch
// On Windows: %APPDATA%\postfetch
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for postfetch.
// On Linux: ~/.cache/postfetch
// On macOS: ~/Library/Caches/postfetch
// On Windows: %LOCALAPPDATA%\postfetch\cache
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We return the first error found rather than collecting
// all errors because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if c.APIBase == "" && c.SiteURL == "" && len(c.ExtraOrigins) == 0 {
		return ErrNoOrigin
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxInFlight <= 0 {
		return ErrInvalidMaxInFlight
	}
	if c.FanoutTimeout <= 0 {
		return ErrInvalidFanoutTimeout
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	switch c.CacheBackend {
	case CacheSQLite, CacheMemory, CacheNone:
	default:
		return ErrInvalidCacheBackend
	}
	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if c.ProxyAddress != "" && !validHostPort(c.ProxyAddress) {
		return ErrInvalidProxyAddress
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

func validHostPort(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

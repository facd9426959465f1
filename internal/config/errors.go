package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoOrigin is returned when no origin can be resolved. The relative
	// origin needs SiteURL, so at least one of APIBase, ExtraOrigins or
	// SiteURL must be set.
	ErrNoOrigin = errors.New("no API origin configured: set --api-base or --site-url")

	// ErrInvalidTimeout is returned when the per-attempt timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxInFlight is returned when the fan-out limit is not positive.
	// A limit of zero would never start a chunk fetch.
	ErrInvalidMaxInFlight = errors.New("invalid max in-flight: must be positive")

	// ErrInvalidFanoutTimeout is returned when the chunk join deadline is not positive.
	ErrInvalidFanoutTimeout = errors.New("invalid fan-out timeout: must be positive")

	// ErrInvalidRate is returned when the request rate is negative.
	// Use 0 for no rate limit.
	ErrInvalidRate = errors.New("invalid requests per second: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidCacheBackend is returned for an unknown cache backend name.
	ErrInvalidCacheBackend = errors.New("invalid cache backend: must be sqlite, memory or none")

	// ErrInvalidPollInterval is returned when the version poll interval is not positive.
	ErrInvalidPollInterval = errors.New("invalid poll interval: must be positive")

	// ErrInvalidProxyAddress is returned when the SOCKS5 proxy address is
	// not in "host:port" form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)

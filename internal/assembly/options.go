package assembly

import (
	"log/slog"
	"time"

	"github.com/nao1215/postfetch/internal/model"
)

// Default fan-out bounds. They match config.DefaultMaxInFlight and
// config.DefaultFanoutTimeout.
const (
	DefaultMaxInFlight   = 8
	DefaultFanoutTimeout = 20 * time.Second
)

type settings struct {
	prefix        string
	maxInFlight   int
	fanoutTimeout time.Duration
	logger        *slog.Logger
	buildTOC      func(body string) string
}

// Option configures the components of this package.
type Option func(*settings)

// WithAPIPrefix sets the API path prefix. Default is "/api".
func WithAPIPrefix(prefix string) Option {
	return func(s *settings) {
		s.prefix = prefix
	}
}

// WithMaxInFlight bounds concurrent chunk fetches per document.
// Non-positive values are ignored.
func WithMaxInFlight(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxInFlight = n
		}
	}
}

// WithFanoutTimeout sets the join deadline for the text chunks of one
// document. Zero disables the deadline.
func WithFanoutTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.fanoutTimeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithTOCBuilder sets the function deriving a table of contents from a
// body when the server supplied none.
func WithTOCBuilder(build func(body string) string) Option {
	return func(s *settings) {
		s.buildTOC = build
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		prefix:        model.DefaultAPIPrefix,
		maxInFlight:   DefaultMaxInFlight,
		fanoutTimeout: DefaultFanoutTimeout,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

package assembly

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/postfetch/internal/model"
)

// Loaded is the result of Loader.Load: exactly one of Manifest and
// Document is set.
type Loaded struct {
	Manifest *model.DocumentManifest
	Document *model.MonolithicDocument
}

// Loader requests a document as a chunk manifest, or as a monolithic
// document when the server offers no chunked form.
type Loader struct {
	fetcher Fetcher
	prefix  string
	logger  *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(f Fetcher, opts ...Option) *Loader {
	s := newSettings(opts)
	return &Loader{fetcher: f, prefix: s.prefix, logger: s.logger}
}

// Load returns the manifest when the chunked form carries a numeric
// totalChunks, else the monolithic document. It returns ErrLoadFailed when
// both are absent.
func (l *Loader) Load(ctx context.Context, documentID string) (*Loaded, error) {
	raw := l.fetcher.Fetch(ctx, model.ManifestRequest(l.prefix, documentID))
	if m, ok := model.ParseManifest(raw); ok {
		return &Loaded{Manifest: m}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.logger.Debug("no chunked form, requesting monolithic document", "document", documentID)

	raw = l.fetcher.Fetch(ctx, model.DocumentRequest(l.prefix, documentID))
	if doc, ok := model.ParseMonolithic(raw); ok {
		return &Loaded{Document: doc}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrLoadFailed, documentID)
}

// LoadSiteConfig fetches the site configuration, falling back to
// model.DefaultSiteConfig when it is unavailable. It never fails.
func LoadSiteConfig(ctx context.Context, f Fetcher, prefix string) *model.SiteConfig {
	if sc, ok := model.ParseSiteConfig(f.Fetch(ctx, model.SiteConfigRequest(prefix))); ok {
		return sc
	}
	return model.DefaultSiteConfig()
}

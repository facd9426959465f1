package assembly

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/postfetch/internal/model"
)

// FallbackController replaces a chunked document that failed verification
// with the monolithic form.
type FallbackController struct {
	fetcher Fetcher
	prefix  string
	logger  *slog.Logger
}

// NewFallbackController creates a FallbackController.
func NewFallbackController(f Fetcher, opts ...Option) *FallbackController {
	s := newSettings(opts)
	return &FallbackController{fetcher: f, prefix: s.prefix, logger: s.logger}
}

// Resolve fetches the monolithic document and converts it into an
// AssembledDocument with nothing left to hydrate. Manifest and chunk cache
// entries are never consulted. It returns ErrLoadFailed when the document
// is absent.
func (c *FallbackController) Resolve(ctx context.Context, documentID string) (*model.AssembledDocument, error) {
	raw := c.fetcher.Fetch(ctx, model.DocumentRequest(c.prefix, documentID))
	if doc, ok := model.ParseMonolithic(raw); ok {
		return model.FromMonolithic(documentID, doc, model.SourceFallback), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.logger.Debug("fallback document unavailable", "document", documentID)
	return nil, fmt.Errorf("%w: %s", ErrLoadFailed, documentID)
}

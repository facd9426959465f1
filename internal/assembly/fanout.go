package assembly

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/postfetch/internal/model"
)

// Fetcher performs one logical fetch. Implementations never return network
// errors; an absent payload is nil. *fetch.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, req model.ResourceRequest) json.RawMessage
}

// fetchAll fetches every request with at most limit in flight and joins on
// the whole set. results[i] belongs to reqs[i] regardless of arrival order;
// nil means absent.
//
// When deadline is positive the join gives up after it: requests still in
// flight are cancelled and their results stay nil.
func fetchAll(ctx context.Context, f Fetcher, reqs []model.ResourceRequest, limit int, deadline time.Duration) []json.RawMessage {
	results := make([]json.RawMessage, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, req := range reqs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			// Each goroutine owns results[i]; Wait orders the writes before
			// the caller reads them.
			results[i] = f.Fetch(ctx, req)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	return results
}

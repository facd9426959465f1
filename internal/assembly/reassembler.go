package assembly

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/postfetch/internal/model"
)

// Reassembler fetches the text chunks of a manifest and verifies the
// assembled body.
type Reassembler struct {
	fetcher       Fetcher
	prefix        string
	maxInFlight   int
	fanoutTimeout time.Duration
	logger        *slog.Logger
}

// NewReassembler creates a Reassembler.
func NewReassembler(f Fetcher, opts ...Option) *Reassembler {
	s := newSettings(opts)
	return &Reassembler{
		fetcher:       f,
		prefix:        s.prefix,
		maxInFlight:   s.maxInFlight,
		fanoutTimeout: s.fanoutTimeout,
		logger:        s.logger,
	}
}

// Assemble returns the document with its text chunks concatenated in
// manifest order and its image placeholders still unresolved.
//
// It returns an *IntegrityError when any text chunk is missing (nothing
// partial is ever returned) or when an expected placeholder does not occur
// exactly once in the assembled text. When ctx is cancelled it returns
// ctx.Err() instead.
func (r *Reassembler) Assemble(ctx context.Context, documentID string, m *model.DocumentManifest) (*model.AssembledDocument, error) {
	textIndices := m.TextIndices()
	reqs := make([]model.ResourceRequest, len(textIndices))
	for i, idx := range textIndices {
		reqs[i] = model.ChunkRequest(r.prefix, documentID, idx)
	}

	payloads := fetchAll(ctx, r.fetcher, reqs, r.maxInFlight, r.fanoutTimeout)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// payloads follow textIndices, which are ascending, so concatenating in
	// slice order is manifest order whatever the arrival order was.
	var body strings.Builder
	var missing []int
	for i, raw := range payloads {
		chunk, ok := model.ParseChunk(textIndices[i], raw)
		if !ok {
			missing = append(missing, textIndices[i])
			continue
		}
		body.WriteString(chunk.HTML)
	}
	if len(missing) > 0 {
		return nil, &IntegrityError{Reason: ErrIncompleteText, Indices: missing}
	}

	assembled := body.String()
	expected := m.ExpectedPlaceholders()
	if len(expected) > 0 {
		counts, err := ScanPlaceholders(assembled)
		if err != nil {
			return nil, &IntegrityError{Reason: ErrMissingPlaceholder, PlaceholderIDs: placeholderIDs(expected)}
		}
		if err := verifyPlaceholders(expected, counts); err != nil {
			return nil, err
		}
	}

	r.logger.Debug("text assembled",
		"document", documentID,
		"text_chunks", len(textIndices),
		"placeholders", len(expected),
	)
	return model.FromManifest(documentID, m, assembled), nil
}

func placeholderIDs(ps []model.Placeholder) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}

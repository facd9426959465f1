package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// ChunkType distinguishes renderable text chunks from image chunks.
type ChunkType string

const (
	// ChunkText is a chunk of HTML that becomes part of the document body.
	ChunkText ChunkType = "text"

	// ChunkImage is a single image reference resolved into a placeholder.
	ChunkImage ChunkType = "image"
)

// MaxChunks bounds totalChunks. A manifest declaring more chunks is not
// accepted and the document is loaded in its monolithic form instead.
const MaxChunks = 10000

// DocumentManifest describes a document delivered as ordered chunks.
//
// ChunkTypes and PlaceholderIDs are aligned by index and always have
// exactly TotalChunks elements after ParseManifest normalizes them.
// PlaceholderIDs[i] is empty for text chunks and for image chunks whose
// placeholder the server did not declare.
type DocumentManifest struct {
	Slug           string      `json:"slug,omitempty"`
	Title          string      `json:"title"`
	Date           string      `json:"date,omitempty"`
	Tags           []string    `json:"tags,omitempty"`
	Summary        string      `json:"summary,omitempty"`
	TotalChunks    int         `json:"totalChunks"`
	ChunkTypes     []ChunkType `json:"chunk_types"`
	PlaceholderIDs []string    `json:"ph_ids"`
	TOCHTML        string      `json:"toc_html,omitempty"`
	WordCount      int         `json:"word_count,omitempty"`
	ReadingTime    string      `json:"reading_time,omitempty"`
}

// manifestWire is the manifest as served. Fields whose shape decides the
// delivery path are kept raw so that a malformed value degrades instead of
// failing the whole decode.
type manifestWire struct {
	Slug        string            `json:"slug"`
	Title       string            `json:"title"`
	Date        string            `json:"date"`
	Tags        []string          `json:"tags"`
	Summary     string            `json:"summary"`
	TotalChunks json.RawMessage   `json:"totalChunks"`
	ChunkTypes  []json.RawMessage `json:"chunk_types"`
	PHIDs       []json.RawMessage `json:"ph_ids"`
	TOCHTML     string            `json:"toc_html"`
	WordCount   int               `json:"word_count"`
	ReadingTime string            `json:"reading_time"`
}

// ParseManifest decodes a chunk manifest.
// It returns false when the payload is absent or does not carry a numeric
// totalChunks, which is the signal that the chunked form is unsupported.
func ParseManifest(raw json.RawMessage) (*DocumentManifest, bool) {
	if isNullJSON(raw) {
		return nil, false
	}

	var w manifestWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, false
	}

	total, ok := parseCount(w.TotalChunks)
	if !ok {
		return nil, false
	}

	m := &DocumentManifest{
		Slug:           w.Slug,
		Title:          w.Title,
		Date:           w.Date,
		Tags:           w.Tags,
		Summary:        w.Summary,
		TotalChunks:    total,
		ChunkTypes:     make([]ChunkType, total),
		PlaceholderIDs: make([]string, total),
		TOCHTML:        w.TOCHTML,
		WordCount:      w.WordCount,
		ReadingTime:    w.ReadingTime,
	}

	// Missing or unknown types fall back to text; only an explicit "image"
	// takes a chunk out of the text path.
	for i := 0; i < total; i++ {
		m.ChunkTypes[i] = ChunkText
		if i < len(w.ChunkTypes) && jsonString(w.ChunkTypes[i]) == string(ChunkImage) {
			m.ChunkTypes[i] = ChunkImage
		}
		if i < len(w.PHIDs) && m.ChunkTypes[i] == ChunkImage {
			m.PlaceholderIDs[i] = jsonString(w.PHIDs[i])
		}
	}

	return m, true
}

// TextIndices returns the indices of text chunks in ascending order.
func (m *DocumentManifest) TextIndices() []int {
	return m.indicesOf(ChunkText)
}

// ImageIndices returns the indices of image chunks in ascending order.
func (m *DocumentManifest) ImageIndices() []int {
	return m.indicesOf(ChunkImage)
}

// ExpectedPlaceholders returns the placeholder id of every image chunk that
// declares one, keyed by chunk index.
func (m *DocumentManifest) ExpectedPlaceholders() []Placeholder {
	var out []Placeholder
	for _, i := range m.ImageIndices() {
		if m.PlaceholderIDs[i] != "" {
			out = append(out, Placeholder{Index: i, ID: m.PlaceholderIDs[i]})
		}
	}
	return out
}

func (m *DocumentManifest) indicesOf(t ChunkType) []int {
	out := make([]int, 0, m.TotalChunks)
	for i := 0; i < m.TotalChunks && i < len(m.ChunkTypes); i++ {
		if m.ChunkTypes[i] == t {
			out = append(out, i)
		}
	}
	return out
}

// Chunk is one fetched unit of a split document.
type Chunk struct {
	Index int    `json:"index"`
	HTML  string `json:"html"`
}

type chunkWire struct {
	HTML *string `json:"html"`
}

// ParseChunk decodes a chunk payload. A chunk without a string html field
// counts as not fetched.
func ParseChunk(index int, raw json.RawMessage) (Chunk, bool) {
	if isNullJSON(raw) {
		return Chunk{}, false
	}
	var w chunkWire
	if err := json.Unmarshal(raw, &w); err != nil || w.HTML == nil {
		return Chunk{}, false
	}
	return Chunk{Index: index, HTML: *w.HTML}, true
}

// parseCount accepts any JSON number up to MaxChunks. Negative counts mean
// an empty document; fractional counts round up, so 2.5 covers indices 0..2.
func parseCount(raw json.RawMessage) (int, bool) {
	if isNullJSON(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f > MaxChunks {
		return 0, false
	}
	if f < 0 {
		return 0, true
	}
	return int(math.Ceil(f)), true
}

// jsonString returns the string form of a scalar JSON value, or "" for null,
// objects and arrays. Numeric placeholder ids are accepted verbatim.
func jsonString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case 'n', '{', '[':
		return ""
	default:
		return strings.TrimSpace(string(raw))
	}
}

func isNullJSON(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

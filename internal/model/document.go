package model

import "encoding/json"

// MonolithicDocument is the single-payload form of a document.
// It is always internally consistent because it arrives atomically.
type MonolithicDocument struct {
	Slug        string   `json:"slug,omitempty"`
	Title       string   `json:"title"`
	Date        string   `json:"date,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	ContentHTML string   `json:"content_html"`
	ContentText string   `json:"content_text,omitempty"`
	WordCount   int      `json:"word_count,omitempty"`
	ReadingTime string   `json:"reading_time,omitempty"`
}

// ParseMonolithic decodes a monolithic document.
// Any JSON object is accepted; absent fields stay empty.
func ParseMonolithic(raw json.RawMessage) (*MonolithicDocument, bool) {
	if isNullJSON(raw) {
		return nil, false
	}
	var doc MonolithicDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false
	}
	return &doc, true
}

// Source records which delivery path produced an AssembledDocument.
type Source string

const (
	// SourceChunked means the body was reassembled from text chunks.
	SourceChunked Source = "chunked"

	// SourceMonolithic means the server did not offer a chunked form.
	SourceMonolithic Source = "monolithic"

	// SourceFallback means chunked assembly failed verification and the
	// monolithic form replaced it.
	SourceFallback Source = "fallback"
)

// Placeholder marker contract shared with the server-side chunker. An image
// slot in text HTML looks like
//
//	<div class="img-ph" data-ph="ph1" data-lqip="data:..."><div class="lazy-spinner"></div></div>
//
// where data-lqip is an optional low-quality preview.
const (
	PlaceholderClass = "img-ph"
	PlaceholderAttr  = "data-ph"
	PreviewAttr      = "data-lqip"
)

// Placeholder is an image slot embedded in assembled text awaiting hydration.
type Placeholder struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
}

// AssembledDocument is the output handed to the rendering layer.
type AssembledDocument struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Date        string   `json:"date,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	WordCount   int      `json:"word_count,omitempty"`
	ReadingTime string   `json:"reading_time,omitempty"`

	// BodyHTML is either the text chunks concatenated in manifest order with
	// image placeholders embedded, or the monolithic content_html.
	BodyHTML string `json:"body_html"`

	TOCHTML string `json:"toc_html,omitempty"`

	// ContentText is only known for monolithic documents.
	ContentText string `json:"content_text,omitempty"`

	Source Source `json:"source"`

	// Pending lists the placeholders still waiting for hydration.
	// It is empty for monolithic and fallback documents.
	Pending []Placeholder `json:"pending,omitempty"`
}

// FromManifest creates the chunked form of a document around an already
// verified body.
func FromManifest(id string, m *DocumentManifest, body string) *AssembledDocument {
	return &AssembledDocument{
		ID:          id,
		Title:       m.Title,
		Date:        m.Date,
		Tags:        m.Tags,
		Summary:     m.Summary,
		WordCount:   m.WordCount,
		ReadingTime: m.ReadingTime,
		BodyHTML:    body,
		TOCHTML:     m.TOCHTML,
		Source:      SourceChunked,
		Pending:     m.ExpectedPlaceholders(),
	}
}

// FromMonolithic converts a monolithic document. The result has nothing
// left to hydrate.
func FromMonolithic(id string, doc *MonolithicDocument, source Source) *AssembledDocument {
	return &AssembledDocument{
		ID:          id,
		Title:       doc.Title,
		Date:        doc.Date,
		Tags:        doc.Tags,
		Summary:     doc.Summary,
		WordCount:   doc.WordCount,
		ReadingTime: doc.ReadingTime,
		BodyHTML:    doc.ContentHTML,
		ContentText: doc.ContentText,
		Source:      source,
	}
}

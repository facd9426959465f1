package report

import (
	"time"

	"github.com/nao1215/postfetch/internal/assembly"
	"github.com/nao1215/postfetch/internal/fetch"
	"github.com/nao1215/postfetch/internal/model"
)

// Report is the outcome of one postfetch run over one or more documents.
type Report struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Views       []*ViewReport `json:"views"`

	// Fetch is the fetcher activity for the whole run.
	Fetch fetch.Stats `json:"fetch"`
}

// NewReport creates an empty report stamped with the current time.
func NewReport() *Report {
	return &Report{
		GeneratedAt: time.Now(),
		Views:       make([]*ViewReport, 0),
	}
}

// Add appends a view report.
func (r *Report) Add(v *ViewReport) {
	r.Views = append(r.Views, v)
}

// Counts tallies views by how their document was obtained.
func (r *Report) Counts() Counts {
	var c Counts
	for _, v := range r.Views {
		switch {
		case v.Failed():
			c.Failed++
		case v.Source == model.SourceChunked:
			c.Chunked++
		case v.Source == model.SourceMonolithic:
			c.Monolithic++
		case v.Source == model.SourceFallback:
			c.Fallback++
		}
	}
	return c
}

// HasFailures reports whether any view ended in StateLoadFailed.
func (r *Report) HasFailures() bool {
	return r.Counts().Failed > 0
}

// Counts is the per-source tally of a report.
type Counts struct {
	Chunked    int `json:"chunked"`
	Monolithic int `json:"monolithic"`
	Fallback   int `json:"fallback"`
	Failed     int `json:"failed"`
}

// Total returns the number of views counted.
func (c Counts) Total() int {
	return c.Chunked + c.Monolithic + c.Fallback + c.Failed
}

// ViewReport is the flattened, serialisable form of one assembly view.
type ViewReport struct {
	ViewID     string `json:"view_id"`
	DocumentID string `json:"document_id"`

	Title     string       `json:"title,omitempty"`
	PageTitle string       `json:"page_title,omitempty"`
	MetaLine  string       `json:"meta_line,omitempty"`
	Source    model.Source `json:"source,omitempty"`

	State string   `json:"state"`
	Trace []string `json:"trace"`

	// Integrity is the verification failure that triggered a fallback.
	Integrity           string   `json:"integrity,omitempty"`
	MissingChunks       []int    `json:"missing_chunks,omitempty"`
	MissingPlaceholders []string `json:"missing_placeholders,omitempty"`

	Images ImageSummary `json:"images"`

	BodyBytes int  `json:"body_bytes"`
	HasTOC    bool `json:"has_toc"`

	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	ElapsedMS int64     `json:"elapsed_ms"`
}

// ImageSummary describes image hydration for a view.
type ImageSummary struct {
	Resolved  []model.Placeholder `json:"resolved,omitempty"`
	Failed    []model.Placeholder `json:"failed,omitempty"`
	Pending   []model.Placeholder `json:"pending,omitempty"`
	Abandoned bool                `json:"abandoned,omitempty"`
}

// Total returns the number of image chunks accounted for.
func (s ImageSummary) Total() int {
	return len(s.Resolved) + len(s.Failed) + len(s.Pending)
}

// NewViewReport flattens a view. It waits for the view's hydration, so
// call it once the caller is done with the document. err is the error
// Assemble returned alongside the view, if any.
func NewViewReport(v *assembly.View, site *model.SiteConfig, err error) *ViewReport {
	if site == nil {
		site = model.DefaultSiteConfig()
	}
	r := &ViewReport{
		ViewID:     v.ID,
		DocumentID: v.DocumentID,
		State:      string(v.State),
		Trace:      make([]string, len(v.Trace)),
		StartedAt:  v.StartedAt,
		ElapsedMS:  v.Elapsed.Milliseconds(),
	}
	for i, s := range v.Trace {
		r.Trace[i] = string(s)
	}
	if err != nil {
		r.Error = err.Error()
	}
	if v.Integrity != nil {
		r.Integrity = v.Integrity.Error()
		r.MissingChunks = v.Integrity.Indices
		r.MissingPlaceholders = v.Integrity.PlaceholderIDs
	}

	doc := v.Document
	if doc == nil {
		return r
	}
	r.Title = doc.Title
	r.PageTitle = model.PageTitle(doc.Title, site.SiteName)
	r.MetaLine = doc.MetaLine()
	r.Source = doc.Source
	r.BodyBytes = len(doc.BodyHTML)
	r.HasTOC = doc.TOCHTML != ""

	result := v.Hydration.Wait()
	r.Images = ImageSummary{
		Resolved:  result.Resolved,
		Failed:    result.Failed,
		Abandoned: result.Abandoned,
	}
	settled := make(map[model.Placeholder]bool, len(result.Resolved)+len(result.Failed))
	for _, p := range result.Resolved {
		settled[p] = true
	}
	for _, p := range result.Failed {
		settled[p] = true
	}
	for _, p := range doc.Pending {
		if !settled[p] {
			r.Images.Pending = append(r.Images.Pending, p)
		}
	}
	return r
}

// Failed reports whether the view ended without a document.
func (v *ViewReport) Failed() bool {
	return v.State == string(assembly.StateLoadFailed) || v.Source == ""
}

// Status returns a one-word status for tables and banners.
func (v *ViewReport) Status() string {
	switch {
	case v.Failed():
		return "FAILED"
	case v.Source == model.SourceFallback:
		return "FALLBACK"
	case len(v.Images.Failed) > 0:
		return "DEGRADED"
	default:
		return "OK"
	}
}

package report

import (
	"fmt"
	"io"
	"strings"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so the output pipes cleanly to files and other tools.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to say are shown.
	showEmpty bool

	// verbose adds the state trace and per-image lines.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeFetchStats(&sb, report)

	if len(report.Views) > 0 || w.showEmpty {
		writeSection(&sb, "DOCUMENTS")
		if len(report.Views) == 0 {
			sb.WriteString("  No documents\n\n")
		}
		for _, v := range report.Views {
			w.writeView(&sb, v)
		}
	}

	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteView outputs a single view in human-readable format.
func (w *SimpleWriter) WriteView(view *ViewReport) (int, error) {
	var sb strings.Builder
	w.writeView(&sb, view)
	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report banner.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *Report) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         POSTFETCH REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Generated:      %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Documents:      %d\n", len(report.Views))
	sb.WriteString("\n")
}

// writeSummary writes the per-source tally.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *Report) {
	counts := report.Counts()

	writeSection(sb, "SUMMARY")
	fmt.Fprintf(sb, "  CHUNKED:    %d\n", counts.Chunked)
	fmt.Fprintf(sb, "  MONOLITHIC: %d\n", counts.Monolithic)
	fmt.Fprintf(sb, "  FALLBACK:   %d\n", counts.Fallback)
	fmt.Fprintf(sb, "  FAILED:     %d\n", counts.Failed)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:      %d documents\n", counts.Total())
	sb.WriteString("\n")
}

// writeFetchStats writes the fetcher counters. Quiet runs with no fetches
// skip the section.
func (w *SimpleWriter) writeFetchStats(sb *strings.Builder, report *Report) {
	s := report.Fetch
	if s.Fetches == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "FETCH ACTIVITY")
	fmt.Fprintf(sb, "  Logical fetches:  %d\n", s.Fetches)
	fmt.Fprintf(sb, "  HTTP requests:    %d\n", s.Requests)
	fmt.Fprintf(sb, "  Origin failures:  %d\n", s.OriginFailures)
	fmt.Fprintf(sb, "  Not modified:     %d\n", s.NotModified)
	fmt.Fprintf(sb, "  Cache busts:      %d\n", s.CacheBusts)
	fmt.Fprintf(sb, "  Cache fallbacks:  %d\n", s.CacheFallbacks)
	fmt.Fprintf(sb, "  Misses:           %d\n", s.Misses)
	sb.WriteString("\n")
}

// writeView writes one document block.
func (w *SimpleWriter) writeView(sb *strings.Builder, v *ViewReport) {
	fmt.Fprintf(sb, "[%s] %s\n", statusIndicator(v), v.DocumentID)
	if v.Title != "" {
		fmt.Fprintf(sb, "  Title:   %s\n", v.Title)
	}
	if v.MetaLine != "" {
		fmt.Fprintf(sb, "  Meta:    %s\n", v.MetaLine)
	}
	if v.Source != "" {
		fmt.Fprintf(sb, "  Source:  %s\n", v.Source)
	}
	fmt.Fprintf(sb, "  Status:  %s (%d ms)\n", v.Status(), v.ElapsedMS)
	if v.Integrity != "" {
		fmt.Fprintf(sb, "  Reason:  %s\n", v.Integrity)
	}
	if v.Error != "" {
		fmt.Fprintf(sb, "  Error:   %s\n", v.Error)
	}

	if n := v.Images.Total(); n > 0 {
		fmt.Fprintf(sb, "  Images:  %d resolved, %d failed, %d pending\n",
			len(v.Images.Resolved), len(v.Images.Failed), len(v.Images.Pending))
		if w.verbose {
			for _, p := range v.Images.Failed {
				fmt.Fprintf(sb, "    - failed %s (chunk %d)\n", placeholderLabel(p.ID), p.Index)
			}
			for _, p := range v.Images.Pending {
				fmt.Fprintf(sb, "    - pending %s (chunk %d)\n", placeholderLabel(p.ID), p.Index)
			}
		}
	}

	if w.verbose {
		fmt.Fprintf(sb, "  View:    %s\n", v.ViewID)
		fmt.Fprintf(sb, "  Trace:   %s\n", strings.Join(v.Trace, " -> "))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by postfetch\n")
	sb.WriteString("https://github.com/nao1215/postfetch\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// statusIndicator returns a visual indicator for the view status.
func statusIndicator(v *ViewReport) string {
	switch v.Status() {
	case "FAILED":
		return "!!"
	case "FALLBACK":
		return "!"
	case "DEGRADED":
		return "-"
	default:
		return "+"
	}
}

func placeholderLabel(id string) string {
	if id == "" {
		return "(appended)"
	}
	return id
}

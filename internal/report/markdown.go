package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/postfetch/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which gives us tables, alerts and mermaid charts without
// hand-escaping.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeFetchStats(md, report)

	for _, v := range report.Views {
		w.writeView(md, v)
	}

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteView outputs a single view in Markdown format.
func (w *MarkdownWriter) WriteView(view *ViewReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	w.writeView(md, view)
	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *Report) {
	md.H1("postfetch Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Documents", strconv.Itoa(len(report.Views))},
		},
	})
	md.PlainText("")
}

// writeSummary writes the per-source table, chart and overall alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *Report) {
	counts := report.Counts()

	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Source", "Count"},
		Rows: [][]string{
			{"Chunked", strconv.Itoa(counts.Chunked)},
			{"Monolithic", strconv.Itoa(counts.Monolithic)},
			{"Fallback", strconv.Itoa(counts.Fallback)},
			{"Failed", strconv.Itoa(counts.Failed)},
			{"**Total**", "**" + strconv.Itoa(counts.Total()) + "**"},
		},
	})
	md.PlainText("")

	if counts.Total() > 0 {
		w.writePieChart(md, counts)
	}

	w.writeAlert(md, counts)
}

// writePieChart writes a mermaid pie chart of delivery paths.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts Counts) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Delivery Path"),
		piechart.WithShowData(true),
	)

	if counts.Chunked > 0 {
		chart.LabelAndIntValue("Chunked", uint64(counts.Chunked))
	}
	if counts.Monolithic > 0 {
		chart.LabelAndIntValue("Monolithic", uint64(counts.Monolithic))
	}
	if counts.Fallback > 0 {
		chart.LabelAndIntValue("Fallback", uint64(counts.Fallback))
	}
	if counts.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(counts.Failed))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert for the worst outcome in the run.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, counts Counts) {
	switch {
	case counts.Failed > 0:
		md.Cautionf("%d document(s) could not be loaded from any origin or cache.", counts.Failed)
	case counts.Fallback > 0:
		md.Warningf("%d chunked document(s) failed verification and were replaced by the monolithic form.", counts.Fallback)
	case counts.Total() == 0:
		md.Note("No documents were requested.")
	default:
		md.Tip("Every document was assembled without falling back.")
	}
	md.PlainText("")
}

// writeFetchStats writes the fetcher counters.
func (w *MarkdownWriter) writeFetchStats(md *markdown.Markdown, report *Report) {
	s := report.Fetch

	md.H2("Fetch Activity")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Logical fetches", strconv.FormatInt(s.Fetches, 10)},
			{"HTTP requests", strconv.FormatInt(s.Requests, 10)},
			{"Origin failures", strconv.FormatInt(s.OriginFailures, 10)},
			{"Not modified", strconv.FormatInt(s.NotModified, 10)},
			{"Cache busts", strconv.FormatInt(s.CacheBusts, 10)},
			{"Cache fallbacks", strconv.FormatInt(s.CacheFallbacks, 10)},
			{"Misses", strconv.FormatInt(s.Misses, 10)},
		},
	})
	md.PlainText("")
}

// writeView writes one document section.
func (w *MarkdownWriter) writeView(md *markdown.Markdown, v *ViewReport) {
	heading := v.Title
	if heading == "" {
		heading = v.DocumentID
	}
	md.H2(heading)
	md.PlainText("")

	source := string(v.Source)
	if source == "" {
		source = "-"
	}
	rows := [][]string{
		{"Document", "`" + v.DocumentID + "`"},
		{"View", "`" + v.ViewID + "`"},
		{"Status", statusText(v)},
		{"Source", source},
		{"State", v.State},
		{"Elapsed", strconv.FormatInt(v.ElapsedMS, 10) + " ms"},
	}
	if v.MetaLine != "" {
		rows = append(rows, []string{"Meta", v.MetaLine})
	}
	if v.Source != "" {
		rows = append(rows, []string{"Body", strconv.Itoa(v.BodyBytes) + " bytes"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case v.Error != "":
		md.Cautionf("%s", v.Error)
		md.PlainText("")
	case v.Integrity != "":
		md.Warningf("%s", v.Integrity)
		md.PlainText("")
	}

	if v.Images.Total() > 0 {
		w.writeImages(md, v.Images)
	}

	md.Details("State trace", strings.Join(v.Trace, " → "))
	md.PlainText("")
}

// writeImages writes the hydration table for a view.
func (w *MarkdownWriter) writeImages(md *markdown.Markdown, s ImageSummary) {
	rows := make([][]string, 0, s.Total())
	add := func(ps []model.Placeholder, outcome string) {
		for _, p := range ps {
			id := p.ID
			if id == "" {
				id = "(appended)"
			}
			rows = append(rows, []string{strconv.Itoa(p.Index), truncateString(id, 40), outcome})
		}
	}
	add(s.Resolved, "resolved")
	add(s.Failed, "failed")
	add(s.Pending, "pending")

	md.PlainText("### Images")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Chunk", "Placeholder", "Outcome"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.Abandoned {
		md.Note("Hydration was abandoned when the view was closed.")
		md.PlainText("")
	}
}

// statusText returns the status cell for a view.
func statusText(v *ViewReport) string {
	switch v.Status() {
	case "FAILED":
		return "❌ Load failed"
	case "FALLBACK":
		return "⚠️ Fallback"
	case "DEGRADED":
		return "⚠️ Images missing"
	default:
		return "✅ Complete"
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [postfetch](https://github.com/nao1215/postfetch)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - FullJSONWriter: JSON output wrapped with version and counts
//   - MarkdownWriter: Markdown output with tables and a mermaid chart
//
// Design decision: Report and ViewReport flatten assembly views into
// plain, serialisable values so that writers never touch live views or
// their background hydration.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report

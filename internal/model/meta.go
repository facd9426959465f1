package model

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

const (
	// descriptionMinRunes is the length under which the summary is padded
	// with body text.
	descriptionMinRunes = 80

	// descriptionMaxRunes caps the description meta value.
	descriptionMaxRunes = 160

	// maxKeywords caps the keywords meta value.
	maxKeywords = 12

	metaSeparator = " · "
)

// MetaLine renders the byline shown under the title: date, tags, word
// count and reading time, skipping whatever is unknown.
func (d *AssembledDocument) MetaLine() string {
	parts := make([]string, 0, 4)
	if d.Date != "" {
		parts = append(parts, truncateRunes(d.Date, 10))
	}
	if len(d.Tags) > 0 {
		parts = append(parts, strings.Join(d.Tags, ", "))
	}
	if d.WordCount > 0 {
		parts = append(parts, strconv.Itoa(d.WordCount)+" words")
	}
	if d.ReadingTime != "" {
		parts = append(parts, d.ReadingTime)
	}
	return strings.Join(parts, metaSeparator)
}

// Description returns the description meta value for the document.
func (d *AssembledDocument) Description() string {
	return Description(d.Summary, d.ContentText)
}

// Description builds a description from a summary, padding short summaries
// with extra text and capping the result.
func Description(summary, extra string) string {
	s := strings.TrimSpace(summary)
	if utf8.RuneCountInString(s) < descriptionMinRunes {
		if more := strings.TrimSpace(extra); more != "" {
			if s != "" {
				s += " "
			}
			s += more
		}
	}
	return truncateRunes(s, descriptionMaxRunes)
}

// Keywords returns up to twelve distinct non-blank tags, compared without
// regard to case. When the document has no usable tags the site keywords
// are used instead.
func Keywords(tags, siteKeywords []string) []string {
	if kw := distinctFolded(tags); len(kw) > 0 {
		return kw
	}
	return distinctFolded(siteKeywords)
}

// PageTitle is the document title suffixed with the site name.
func PageTitle(title, siteName string) string {
	if siteName == "" {
		siteName = DefaultSiteName
	}
	if strings.TrimSpace(title) == "" {
		return siteName
	}
	return title + " - " + siteName
}

func distinctFolded(in []string) []string {
	fold := cases.Fold()
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, maxKeywords)
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := fold.String(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

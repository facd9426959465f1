package model

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

// TestMetaLine tests byline rendering.
func TestMetaLine(t *testing.T) {
	t.Parallel()

	doc := &AssembledDocument{
		Date:        "2024-05-01T10:00:00",
		Tags:        []string{"go", "http"},
		WordCount:   1200,
		ReadingTime: "6 min",
	}
	want := "2024-05-01 · go, http · 1200 words · 6 min"
	if got := doc.MetaLine(); got != want {
		t.Errorf("MetaLine() = %q, want %q", got, want)
	}

	if got := (&AssembledDocument{}).MetaLine(); got != "" {
		t.Errorf("empty document MetaLine() = %q, want empty", got)
	}
}

// TestDescription tests description derivation.
func TestDescription(t *testing.T) {
	t.Parallel()

	t.Run("long summary is kept", func(t *testing.T) {
		t.Parallel()

		summary := strings.Repeat("a", 100)
		if got := Description(summary, "extra"); got != summary {
			t.Errorf("Description() = %q, want summary unchanged", got)
		}
	})

	t.Run("short summary is padded", func(t *testing.T) {
		t.Parallel()

		if got := Description(" short ", " body text "); got != "short body text" {
			t.Errorf("Description() = %q", got)
		}
	})

	t.Run("result is capped in runes", func(t *testing.T) {
		t.Parallel()

		got := Description("", strings.Repeat("字", 300))
		if n := utf8.RuneCountInString(got); n != 160 {
			t.Errorf("rune count = %d, want 160", n)
		}
	})
}

// TestKeywords tests keyword selection.
func TestKeywords(t *testing.T) {
	t.Parallel()

	t.Run("tags are deduplicated without regard to case", func(t *testing.T) {
		t.Parallel()

		got := Keywords([]string{"Go", " ", "go", "HTTP", "Straße", "STRASSE"}, []string{"site"})
		want := []string{"Go", "HTTP", "Straße"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Keywords() = %v, want %v", got, want)
		}
	})

	t.Run("site keywords used when no tags", func(t *testing.T) {
		t.Parallel()

		got := Keywords(nil, []string{"blog", "notes"})
		if !reflect.DeepEqual(got, []string{"blog", "notes"}) {
			t.Errorf("Keywords() = %v", got)
		}
	})

	t.Run("capped at twelve", func(t *testing.T) {
		t.Parallel()

		tags := make([]string, 20)
		for i := range tags {
			tags[i] = strings.Repeat("t", i+1)
		}
		if got := Keywords(tags, nil); len(got) != 12 {
			t.Errorf("len(Keywords()) = %d, want 12", len(got))
		}
	})
}

// TestPageTitle tests page title composition.
func TestPageTitle(t *testing.T) {
	t.Parallel()

	if got := PageTitle("Post", "Site"); got != "Post - Site" {
		t.Errorf("PageTitle() = %q", got)
	}
	if got := PageTitle("  ", "Site"); got != "Site" {
		t.Errorf("PageTitle() with blank title = %q", got)
	}
	if got := PageTitle("Post", ""); got != "Post - "+DefaultSiteName {
		t.Errorf("PageTitle() with no site = %q", got)
	}
}

// TestParseVersion tests heartbeat decoding.
func TestParseVersion(t *testing.T) {
	t.Parallel()

	v, ok := ParseVersion([]byte(`{"docsVersion": 4, "configVersion": 2}`))
	if !ok || v.DocsVersion != 4 || v.ConfigVersion != 2 {
		t.Errorf("ParseVersion() = %+v, %v", v, ok)
	}
	if _, ok := ParseVersion([]byte(`{"configVersion": 2}`)); ok {
		t.Error("expected payload without docsVersion to be rejected")
	}
}

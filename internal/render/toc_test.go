package render

import "testing"

// TestBuildTOC tests table of contents derivation.
func TestBuildTOC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no headings",
			body: "<p>text</p>",
			want: "",
		},
		{
			name: "headings without id are skipped",
			body: `<h2>Intro</h2><h2 id="use">Use</h2>`,
			want: `<ul class="toc"><li><a href="#use">Use</a></li></ul>`,
		},
		{
			name: "h3 nests under preceding h2",
			body: `<h2 id="a">A</h2><h3 id="a1">A <em>one</em></h3><h3 id="a2">A2</h3><h2 id="b">B &amp; C</h2>`,
			want: `<ul class="toc"><li><a href="#a">A</a><ul><li><a href="#a1">A one</a></li><li><a href="#a2">A2</a></li></ul></li><li><a href="#b">B &amp; C</a></li></ul>`,
		},
		{
			name: "leading h3 is top level",
			body: `<h3 id="x">X</h3><h2 id="y">Y</h2>`,
			want: `<ul class="toc"><li><a href="#x">X</a></li><li><a href="#y">Y</a></li></ul>`,
		},
		{
			name: "h1 and h4 are ignored",
			body: `<h1 id="t">T</h1><h4 id="d">D</h4>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := BuildTOC(tt.body); got != tt.want {
				t.Errorf("BuildTOC() = %q, want %q", got, tt.want)
			}
		})
	}
}

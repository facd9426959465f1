package render

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type heading struct {
	level int
	id    string
	text  string
}

// BuildTOC derives a nested table of contents from the h2 and h3 elements
// of body that carry an id. It returns "" when there are none. An h3 that
// precedes every h2 is listed at the top level.
func BuildTOC(body string) string {
	nodes, err := parseFragment(body)
	if err != nil {
		return ""
	}

	var headings []heading
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.H2 || n.DataAtom == atom.H3) {
			id := attr(n, "id")
			text := strings.Join(strings.Fields(textContent(n)), " ")
			if id != "" && text != "" {
				level := 2
				if n.DataAtom == atom.H3 {
					level = 3
				}
				headings = append(headings, heading{level: level, id: id, text: text})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	for _, n := range nodes {
		collect(n)
	}
	if len(headings) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<ul class="toc">`)
	open := false // an h2 <li> is open
	sub := false  // a nested <ul> is open inside it
	for _, h := range headings {
		if h.level == 3 && open {
			if !sub {
				b.WriteString("<ul>")
				sub = true
			}
			writeItem(&b, h)
			b.WriteString("</li>")
			continue
		}
		if sub {
			b.WriteString("</ul>")
			sub = false
		}
		if open {
			b.WriteString("</li>")
		}
		writeItem(&b, h)
		open = h.level == 2
		if !open {
			b.WriteString("</li>")
		}
	}
	if sub {
		b.WriteString("</ul>")
	}
	if open {
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

func writeItem(b *strings.Builder, h heading) {
	b.WriteString(`<li><a href="#`)
	b.WriteString(html.EscapeString(h.id))
	b.WriteString(`">`)
	b.WriteString(html.EscapeString(h.text))
	b.WriteString("</a>")
}

func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

package assembly

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nao1215/postfetch/internal/model"
)

// ScanPlaceholders counts the image placeholder markers in an HTML
// fragment, keyed by placeholder id. A marker is an element carrying the
// img-ph class and a non-empty data-ph attribute.
//
// Design decision: We parse with golang.org/x/net/html rather than search
// for `data-ph="..."` substrings, so that a placeholder id quoted inside
// text, a comment or another attribute never counts as a marker.
func ScanPlaceholders(fragment string) (map[string]int, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if id, ok := PlaceholderID(n); ok {
			counts[id]++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return counts, nil
}

// PlaceholderID returns the placeholder id of n if n is a placeholder marker.
func PlaceholderID(n *html.Node) (string, bool) {
	if n.Type != html.ElementNode {
		return "", false
	}
	var id string
	hasClass := false
	for _, a := range n.Attr {
		switch a.Key {
		case model.PlaceholderAttr:
			id = a.Val
		case "class":
			hasClass = hasToken(a.Val, model.PlaceholderClass)
		}
	}
	if !hasClass || id == "" {
		return "", false
	}
	return id, true
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if f == token {
			return true
		}
	}
	return false
}

// verifyPlaceholders checks that every expected placeholder occurs exactly
// once in counts. Two image chunks sharing an id count as a duplicate since
// their markers could not be told apart.
func verifyPlaceholders(expected []model.Placeholder, counts map[string]int) error {
	want := make(map[string]int, len(expected))
	for _, p := range expected {
		want[p.ID]++
	}

	var missing, duplicated []string
	for _, p := range expected {
		n, ok := want[p.ID]
		if !ok {
			continue
		}
		delete(want, p.ID)
		switch {
		case counts[p.ID] == 0:
			missing = append(missing, p.ID)
		case counts[p.ID] > 1 || n > 1:
			duplicated = append(duplicated, p.ID)
		}
	}
	if len(missing) > 0 {
		return &IntegrityError{Reason: ErrMissingPlaceholder, PlaceholderIDs: missing}
	}
	if len(duplicated) > 0 {
		return &IntegrityError{Reason: ErrDuplicatePlaceholder, PlaceholderIDs: duplicated}
	}
	return nil
}

package render

import (
	"errors"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nao1215/postfetch/internal/assembly"
	"github.com/nao1215/postfetch/internal/model"
)

// ErrPlaceholderNotFound is returned by Resolve when the surface has no
// marker for a non-empty placeholder id.
var ErrPlaceholderNotFound = errors.New("placeholder not found")

// Class names applied by the surface.
const (
	// PreviewHolderClass marks a placeholder that is showing its low-quality
	// preview while the final image loads.
	PreviewHolderClass = "lqip-holder"

	// EmptyClass marks a placeholder whose image could not be fetched.
	EmptyClass = "img-ph-empty"
)

var (
	_ assembly.Sink    = (*Surface)(nil)
	_ assembly.Mounter = (*Surface)(nil)
)

// Surface is a mutable, parsed document body. It is safe for concurrent
// use; hydration goroutines call Resolve and Fail in any order.
type Surface struct {
	mu       sync.Mutex
	root     *html.Node
	resolved map[string]bool
	appended map[int]bool
	failed   map[string]bool
}

// NewSurface parses body into a surface.
func NewSurface(body string) (*Surface, error) {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := parseFragment(body)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return &Surface{
		root:     root,
		resolved: make(map[string]bool),
		appended: make(map[int]bool),
		failed:   make(map[string]bool),
	}, nil
}

// Mount replaces the body with doc.BodyHTML and forgets every earlier
// resolution. An empty surface passed to Assembler.Assemble is mounted
// before any image arrives.
func (s *Surface) Mount(doc *model.AssembledDocument) error {
	nodes, err := parseFragment(doc.BodyHTML)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removeChildren(s.root)
	for _, n := range nodes {
		s.root.AppendChild(n)
	}
	clear(s.resolved)
	clear(s.appended)
	clear(s.failed)
	return nil
}

// Resolve replaces the placeholder marker with the image chunk HTML.
//
// When the marker carries a low-quality preview the surface goes through
// the crossfade: the marker becomes a preview holder wrapping the image,
// and once the image settles the holder is discarded, leaving the image
// with the preview in its data-lqip attribute. Without a layout engine an
// image settles as soon as it is inserted, so only the final state is
// observable.
//
// A placeholder with an empty id has no marker; its HTML is appended to
// the end of the body, once per chunk index. Resolving the same
// placeholder again is a no-op.
func (s *Surface) Resolve(p model.Placeholder, chunkHTML string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		if s.appended[p.Index] {
			return nil
		}
		nodes, err := parseFragment(chunkHTML)
		if err != nil {
			return err
		}
		wrap := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
		for _, n := range nodes {
			wrap.AppendChild(n)
		}
		s.root.AppendChild(wrap)
		s.appended[p.Index] = true
		return nil
	}

	if s.resolved[p.ID] {
		return nil
	}
	marker := s.findMarker(p.ID)
	if marker == nil {
		return ErrPlaceholderNotFound
	}
	nodes, err := parseFragment(chunkHTML)
	if err != nil {
		return err
	}

	preview := attr(marker, model.PreviewAttr)
	image := firstElement(nodes)
	switch {
	case image != nil && preview != "":
		crossfade(marker, image, preview)
	default:
		for _, n := range nodes {
			marker.Parent.InsertBefore(n, marker)
		}
		marker.Parent.RemoveChild(marker)
	}

	s.resolved[p.ID] = true
	delete(s.failed, p.ID)
	return nil
}

// crossfade shows the preview behind the image and then unwraps the image.
func crossfade(marker, image *html.Node, preview string) {
	removeChildren(marker)
	addClass(marker, PreviewHolderClass)
	setAttr(image, model.PreviewAttr, preview)
	if image.Parent != nil {
		image.Parent.RemoveChild(image)
	}
	marker.AppendChild(image)

	// The image has settled: discard the holder.
	marker.RemoveChild(image)
	marker.Parent.InsertBefore(image, marker)
	marker.Parent.RemoveChild(marker)
}

// Fail leaves the placeholder empty: the spinner is removed and the marker
// is flagged so that it renders as nothing. Failing a resolved placeholder
// is a no-op.
func (s *Surface) Fail(p model.Placeholder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" || s.resolved[p.ID] || s.failed[p.ID] {
		return
	}
	marker := s.findMarker(p.ID)
	if marker == nil {
		return
	}
	removeChildren(marker)
	addClass(marker, EmptyClass)
	s.failed[p.ID] = true
}

// HTML renders the current body.
func (s *Surface) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	for c := s.root.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c) //nolint:errcheck // strings.Builder never fails
	}
	return b.String()
}

// Pending returns the ids of markers that are neither resolved nor failed,
// in document order.
func (s *Surface) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	walk(s.root, func(n *html.Node) bool {
		if id, ok := assembly.PlaceholderID(n); ok && !s.failed[id] {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

func (s *Surface) findMarker(id string) *html.Node {
	var found *html.Node
	walk(s.root, func(n *html.Node) bool {
		if got, ok := assembly.PlaceholderID(n); ok && got == id {
			found = n
			return false
		}
		return true
	})
	return found
}

func parseFragment(s string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	return html.ParseFragment(strings.NewReader(s), ctx)
}

// walk visits n and its descendants depth-first until visit returns false.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

func firstElement(nodes []*html.Node) *html.Node {
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func addClass(n *html.Node, class string) {
	current := attr(n, "class")
	for _, f := range strings.Fields(current) {
		if f == class {
			return
		}
	}
	setAttr(n, "class", strings.TrimSpace(current+" "+class))
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
}

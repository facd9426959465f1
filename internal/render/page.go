package render

import (
	"html/template"
	"io"
	"strings"

	"github.com/nao1215/postfetch/internal/model"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.PageTitle}}</title>
{{- if .Description}}
<meta name="description" content="{{.Description}}">
{{- end}}
{{- if .Keywords}}
<meta name="keywords" content="{{.Keywords}}">
{{- end}}
<meta property="og:type" content="article">
<meta property="og:title" content="{{.OGTitle}}">
<meta property="og:site_name" content="{{.SiteName}}">
</head>
<body>
<article class="post">
<h1 class="title">{{.Title}}</h1>
<div class="meta">{{.Meta}}</div>
<div class="post-layout">
<div class="content markdown-body" id="article-content">{{.Body}}</div>
<aside class="toc-side">{{.TOC}}</aside>
</div>
</article>
</body>
</html>
`))

type pageData struct {
	PageTitle   string
	Description string
	Keywords    string
	OGTitle     string
	SiteName    string
	Title       string
	Meta        string
	Body        template.HTML
	TOC         template.HTML
}

// Page writes a standalone HTML page for doc. body is the (possibly
// hydrated) body HTML to mount; doc.BodyHTML is used when it is empty.
// Body and TOC are trusted server HTML and are not escaped.
func Page(w io.Writer, doc *model.AssembledDocument, site *model.SiteConfig, body string) error {
	if site == nil {
		site = model.DefaultSiteConfig()
	}
	if body == "" {
		body = doc.BodyHTML
	}

	description := doc.Description()
	if description == "" {
		description = site.SiteName
	}
	ogTitle := doc.Title
	if ogTitle == "" {
		ogTitle = site.SiteName
	}

	return pageTemplate.Execute(w, pageData{
		PageTitle:   model.PageTitle(doc.Title, site.SiteName),
		Description: description,
		Keywords:    strings.Join(model.Keywords(doc.Tags, site.Keywords), ", "),
		OGTitle:     ogTitle,
		SiteName:    site.SiteName,
		Title:       doc.Title,
		Meta:        doc.MetaLine(),
		Body:        template.HTML(body),        //nolint:gosec // server-rendered document HTML
		TOC:         template.HTML(doc.TOCHTML), //nolint:gosec // server-rendered TOC HTML
	})
}

package server

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.UGCPolicy()

// renderMarkdown converts the model-produced result to sanitized HTML so
// clients can display it directly.
func renderMarkdown(md string) string {
	if md == "" {
		return ""
	}
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(md))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	unsafe := markdown.Render(doc, renderer)
	return string(sanitizer.SanitizeBytes(unsafe))
}

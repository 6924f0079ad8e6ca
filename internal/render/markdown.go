// Package render converts extracted markdown into HTML for display.
package render

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts markdown to HTML. Raw HTML in the input is escaped.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer enables GitHub-flavoured tables, strikethrough and task lists,
// which vision models commonly emit when preserving layout.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// ToHTML renders source as an HTML fragment.
func (r *Renderer) ToHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

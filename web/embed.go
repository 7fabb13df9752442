package web

import (
	"embed"
	"html/template"
)

// TemplatesFS embeds HTML templates for server-side rendering.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// Templates parses the embedded templates; panics at startup on a bad tree.
func Templates() *template.Template {
	return template.Must(template.ParseFS(TemplatesFS, "templates/*.html"))
}

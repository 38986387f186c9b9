package web

import (
	"embed"
	"html/template"
)

//go:embed templates/index.html
var templateFS embed.FS

// pageTemplate renders the single form page.
var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

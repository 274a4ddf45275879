// Package web renders the chat page.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"io"

	"pinky-backend/internal/models"
)

//go:embed templates/index.html
var templateFiles embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFiles, "templates/index.html"))

// RenderPage writes the chat page for state to w. The page is rendered to a
// buffer first so a template error never leaves a half-written response.
func RenderPage(w io.Writer, state models.ChatStateResponse) error {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, state); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

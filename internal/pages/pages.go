// ABOUTME: Embedded HTML templates and static assets for token-bound pages
// ABOUTME: Serves the consent/capture page and the wrapper page variant

package pages

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
)

//go:embed templates static
var content embed.FS

var templates = template.Must(template.ParseFS(content, "templates/*.html"))

// SessionData is the template payload for the consent/capture page.
type SessionData struct {
	Token string
}

// WrapperData is the template payload for the wrapper page, which embeds a
// third-party target URL alongside the capture controls.
type WrapperData struct {
	Token     string
	TargetURL string
}

// RenderSession writes the consent/capture page for the given token.
func RenderSession(w io.Writer, data SessionData) error {
	if err := templates.ExecuteTemplate(w, "session.html", data); err != nil {
		return fmt.Errorf("rendering session page: %w", err)
	}
	return nil
}

// RenderWrapper writes the wrapper page embedding the session's target URL.
func RenderWrapper(w io.Writer, data WrapperData) error {
	if err := templates.ExecuteTemplate(w, "wrapper.html", data); err != nil {
		return fmt.Errorf("rendering wrapper page: %w", err)
	}
	return nil
}

// StaticHandler serves the embedded static assets. Mount under /static/.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(content, "static")
	if err != nil {
		panic("pages: failed to create static sub filesystem: " + err.Error())
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

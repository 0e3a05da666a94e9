package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"capsule-go/internal/capsule"
	"capsule-go/internal/wallet"
)

//go:embed templates/*.gohtml
var tplFS embed.FS

var pages = []string{"home.gohtml", "create.gohtml", "gallery.gohtml"}

var funcs = template.FuncMap{
	"short": wallet.Short,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(capsule.DateLayout)
	},
	"longDate": func(t time.Time) string {
		return t.Format("January 2, 2006")
	},
}

// parseTemplates parses each page together with the shared base layout.
func parseTemplates() (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		tpl, err := template.New(name).Funcs(funcs).ParseFS(tplFS, "templates/base.gohtml", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		out[name] = tpl
	}
	return out, nil
}

// pageData is what every page template receives.
type pageData struct {
	Title   string
	Path    string
	Account string // checksummed address, empty when not connected
	Flashes []string
	Page    any
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name, title string, page any) {
	tpl, ok := s.templates[name]
	if !ok {
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Title: title,
		Path:  r.URL.Path,
		Page:  page,
	}
	if addr, ok := s.sessions.Account(r); ok {
		data.Account = addr.String()
	}
	// flashes live in the session cookie, so read them before any body is written
	data.Flashes = s.sessions.Flashes(w, r)

	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "base", data); err != nil {
		s.logger.Error("rendering page", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

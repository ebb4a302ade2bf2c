package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dtroode/flavourmarket/internal/logger"
	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/dtroode/flavourmarket/internal/service"
)

//go:embed templates/*.html templates/pages/*.html
var templatesFS embed.FS

var funcs = template.FuncMap{
	"money":      model.FormatMoney,
	"date":       func(t time.Time) string { return t.Format("Jan 2, 2006") },
	"categories": func() []model.Category { return model.Categories },
	"sorts":      func() []service.Sort { return service.Sorts },
	"label":      label,
}

// Renderer executes the page templates inside the shared layout.
type Renderer struct {
	pages  map[string]*template.Template
	logger *logger.Logger
}

// NewRenderer parses every page together with the layout and partials.
func NewRenderer(logger *logger.Logger) (*Renderer, error) {
	names, err := fs.Glob(templatesFS, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		t, err := template.New(path.Base(name)).Funcs(funcs).ParseFS(templatesFS, "templates/*.html", name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[strings.TrimSuffix(path.Base(name), ".html")] = t
	}

	return &Renderer{pages: pages, logger: logger}, nil
}

// Render writes page name with status. The page is rendered to a buffer first so a template
// failure still produces a clean 500.
func (rd *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) {
	t, ok := rd.pages[name]
	if !ok {
		rd.logger.Error("Renderer: unknown page", "page", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", page); err != nil {
		rd.logger.Error("Renderer: failed to render page", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// label turns a category or sort value into a display label.
func label(v any) string {
	s := strings.ReplaceAll(fmt.Sprint(v), "-", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

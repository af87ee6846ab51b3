package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"

	"github.com/doc-clustering/clusterview/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
)

// Page names accepted by Renderer.Render.
const (
	PageUpload   = "upload"
	PageClusters = "clusters"
	PageText     = "text"
	PageError    = "error"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Flash   string
	Alert   string
}

// UploadPageData is the template data for the upload page.
type UploadPageData struct {
	PageData
	// LastUpload describes the submission that produced Alert, if any.
	LastUpload *UploadSummary
}

// UploadSummary describes a forwarded selection.
type UploadSummary struct {
	FileCount   int
	TotalBytes  int64
	SubmittedAt time.Time
}

// ClustersPageData is the template data for the clusters page.
type ClustersPageData struct {
	PageData
	State models.ScreenState
}

// TextPageData is the template data for the text page.
type TextPageData struct {
	PageData
	Category string
	Filename string
	Content  string
	Error    string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer implements echo.Renderer over the embedded templates. Every page
// is parsed together with the shared layout.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses the page templates found in templateFS.
func NewRenderer(templateFS fs.FS) (*Renderer, error) {
	funcMap := template.FuncMap{
		"bytes": func(n int64) string {
			if n < 0 {
				n = 0
			}
			return humanize.Bytes(uint64(n))
		},
		"ago":    humanize.Time,
		"plural": plural,
		"stamp":  func(t time.Time) string { return t.Format("15:04:05") },
	}

	layout, err := template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := map[string]string{
		PageUpload:   "upload.html",
		PageClusters: "clusters.html",
		PageText:     "text.html",
		PageError:    "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		templates[name] = t
	}

	return &Renderer{templates: templates}, nil
}

// NewEmbeddedRenderer creates a Renderer over the templates built into the binary.
func NewEmbeddedRenderer() (*Renderer, error) {
	templateFS, err := TemplateFS()
	if err != nil {
		return nil, err
	}
	return NewRenderer(templateFS)
}

// Render executes the layout of the named page. Output is buffered so a
// failing template never leaves a half-written response.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	t, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func plural(n int, singular string) string {
	if n == 1 {
		return "1 " + singular
	}
	return humanize.Comma(int64(n)) + " " + singular + "s"
}

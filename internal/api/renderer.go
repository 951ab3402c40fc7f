package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"brandviz.io/studio/internal/domain"
	"brandviz.io/studio/internal/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer parses every page together with the shared layout once at startup.
type Renderer struct {
	pages  map[string]*template.Template
	logger *zap.Logger
}

var funcMap = template.FuncMap{
	"add":           func(a, b int) int { return a + b },
	"tones":         func() []domain.Tone { return domain.Tones },
	"styles":        func() []domain.VisualStyle { return domain.VisualStyles },
	"thresholds":    domain.ThresholdSteps,
	"threshold":     func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"sameThreshold": func(a, b float64) bool { return math.Abs(a-b) < 1e-9 },
	"timestamp": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("2006-01-02 15:04")
	},
	// Inline images are data URIs, which html/template would otherwise rewrite.
	"imgsrc": func(img domain.GeneratedImage) template.URL { return template.URL(img.Source()) },
}

func NewRenderer(logger *zap.Logger) (*Renderer, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template), logger: logging.OrNop(logger).Named("renderer")}
	for _, path := range names {
		name := strings.TrimPrefix(path, "templates/")
		if name == "layout.html" {
			continue
		}
		tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/layout.html", path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	r.logger.Debug("Templates loaded", zap.Int("count", len(r.pages)))
	return r, nil
}

// Render executes the named page into w. Output is buffered so a template
// error never produces a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := r.pages[name]
	if !ok {
		r.logger.Error("Template not found", zap.String("name", name))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("Failed to render template", zap.String("name", name), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

package handler

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/vidrelay/vidrelay/internal/classify"
	"github.com/vidrelay/vidrelay/internal/domain"
)

// PreviewHandler serves the inline playback page linked from text-form
// deliveries. Chat clients can't play a bare media URL; a page with a
// player element gets an inline preview instead.
type PreviewHandler struct {
	tmpl *template.Template
}

// NewPreviewHandler creates a new preview handler.
func NewPreviewHandler() *PreviewHandler {
	return &PreviewHandler{
		tmpl: template.Must(template.New("preview").Parse(previewPage)),
	}
}

type previewData struct {
	URL     string
	IsImage bool
}

// Show handles GET /p?u=<media url>.
func (h *PreviewHandler) Show(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("u")
	if raw == "" {
		http.Error(w, "missing u parameter", http.StatusBadRequest)
		return
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		http.Error(w, "invalid media url", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	h.tmpl.Execute(w, previewData{
		URL:     u.String(),
		IsImage: classify.Kind(raw) == domain.KindImage,
	})
}

const previewPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Preview</title>
<style>
  body { margin: 0; background: #111; display: flex; align-items: center; justify-content: center; min-height: 100vh; }
  video, img { max-width: 100vw; max-height: 100vh; }
</style>
</head>
<body>
{{if .IsImage}}<img src="{{.URL}}" alt="">{{else}}<video src="{{.URL}}" controls autoplay playsinline></video>{{end}}
</body>
</html>
`

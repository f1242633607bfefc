package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// contentTypes covers the assets shipped with the timer UI. Anything else
// is served as HTML.
var contentTypes = map[string]string{
	".html": "text/html",
	".js":   "text/javascript",
	".css":  "text/css",
	".ogg":  "audio/ogg",
	".ico":  "image/x-icon",
	".svg":  "image/svg+xml",
}

// StaticHandler serves the UI from dir; "/" serves index.html.
type StaticHandler struct {
	root string
}

// NewStaticHandler creates a handler for the UI assets in dir.
func NewStaticHandler(dir string) *StaticHandler {
	return &StaticHandler{root: dir}
}

// RegisterRoutes registers the catch-all UI route with mux.
func (h *StaticHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /", h)
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	if name == "/" {
		name = "/index.html"
	}

	file := filepath.Join(h.root, filepath.FromSlash(name))
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	contentType, ok := contentTypes[strings.ToLower(path.Ext(name))]
	if !ok {
		contentType = "text/html"
	}
	w.Header().Set("Content-Type", contentType+"; charset=utf-8")

	log.Debug().Str("file", name).Msg("serving static file")
	http.ServeFile(w, r, file)
}

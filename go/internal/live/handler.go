package live

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler exposes the live feed over HTTP.
type Handler struct {
	broadcaster *Broadcaster
}

// NewHandler creates a live feed handler.
func NewHandler(b *Broadcaster) *Handler {
	return &Handler{broadcaster: b}
}

// HandleViewer upgrades GET /ws/{viewer}. Without a path value the viewer
// query parameter is used, and failing that a fresh id.
func (h *Handler) HandleViewer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("viewer")
	if id == "" {
		id = r.URL.Query().Get("viewer")
	}
	if id == "" {
		id = uuid.NewString()
	}

	if err := h.broadcaster.Serve(w, r, id); err != nil {
		// the upgrader has already written the error response
		log.Error().Err(err).Str("viewer", id).Msg("failed to open live feed")
	}
}

// RegisterRoutes registers the live feed routes with mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/{viewer}", h.HandleViewer)
	mux.HandleFunc("GET /ws", h.HandleViewer)
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gatetimer/go/clients/nodeclient"
	"github.com/mcdev12/gatetimer/go/internal/ctf"
	"github.com/mcdev12/gatetimer/go/internal/game"
	"github.com/mcdev12/gatetimer/go/internal/live"
	"github.com/mcdev12/gatetimer/go/internal/race"
	"github.com/rs/zerolog/log"
)

// DefaultClearLapsOffset is the detection pause used when clear_laps has no offset.
const DefaultClearLapsOffset = 30 * time.Second

// maxBodyBytes bounds request bodies from nodes and the UI.
const maxBodyBytes = 1 << 20

// Controller is the game surface the HTTP API drives.
type Controller interface {
	Config() map[string]any
	ApplyConfigUpdate(ctx context.Context, updates map[string]any) game.Result
	RegisterOrTouchNode(address, name, player string) game.Result
	HandleRaceLap(report race.LapReport) game.Result
	HandleCtfReport(report ctf.Report) game.Result
	StartCtf(duration time.Duration) game.Result
	StopCtf() game.Result
	ClearLaps(delay time.Duration) game.Result
	Nodes() []game.NodeStatus
}

// PushStats reports node push outcomes.
type PushStats interface {
	Snapshot() nodeclient.Stats
}

// ViewerStats reports live feed viewers.
type ViewerStats interface {
	Stats() live.Stats
}

// Handler serves the node and UI REST API.
type Handler struct {
	controller Controller
	clock      clockwork.Clock
	pushes     PushStats
	viewers    ViewerStats
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock replaces the clock used by time-sync.
func WithClock(clock clockwork.Clock) Option {
	return func(h *Handler) { h.clock = clock }
}

// WithStats wires the counters reported by /api/v1/stats.
func WithStats(pushes PushStats, viewers ViewerStats) Option {
	return func(h *Handler) {
		h.pushes = pushes
		h.viewers = viewers
	}
}

// NewHandler creates the API handler.
func NewHandler(controller Controller, opts ...Option) *Handler {
	h := &Handler{
		controller: controller,
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the API routes with mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/settings", h.HandleGetSettings)
	mux.HandleFunc("POST /api/v1/settings", h.HandleUpdateSettings)
	mux.HandleFunc("POST /api/v1/player/lap", h.HandleLap)
	mux.HandleFunc("POST /api/v1/player/connect", h.HandleConnect)
	mux.HandleFunc("GET /api/v1/nodes", h.HandleNodes)
	mux.HandleFunc("POST /api/v1/ctf/update", h.HandleCtfUpdate)
	mux.HandleFunc("POST /api/v1/ctf/start", h.HandleCtfStart)
	mux.HandleFunc("GET /api/v1/ctf/stop", h.HandleCtfStop)
	mux.HandleFunc("POST /api/v1/clear_laps", h.HandleClearLaps)
	mux.HandleFunc("POST /api/v1/time-sync", h.HandleTimeSync)
	mux.HandleFunc("GET /api/v1/rssi/update", h.HandleRssiStatus)
	mux.HandleFunc("POST /api/v1/rssi/update", h.HandleRssiUpdate)
	mux.HandleFunc("GET /api/v1/stats", h.HandleStats)
	mux.HandleFunc("GET /health", h.HandleHealth)
}

// HandleGetSettings handles GET /api/v1/settings
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"config": h.controller.Config()})
}

// HandleUpdateSettings handles POST /api/v1/settings
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if !decode(w, r, &updates) {
		return
	}
	writeResult(w, h.controller.ApplyConfigUpdate(r.Context(), updates))
}

// HandleLap handles POST /api/v1/player/lap
func (h *Handler) HandleLap(w http.ResponseWriter, r *http.Request) {
	var report race.LapReport
	if !decode(w, r, &report) {
		return
	}
	if report.Address == "" {
		writeResult(w, game.Result{Status: game.StatusError, Msg: "ipv4 is required"})
		return
	}
	writeResult(w, h.controller.HandleRaceLap(report))
}

type connectRequest struct {
	Address string `json:"ip4"`
	Name    string `json:"name"`
	Player  string `json:"player"`
}

// HandleConnect handles POST /api/v1/player/connect
func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, h.controller.RegisterOrTouchNode(req.Address, req.Name, req.Player))
}

// HandleNodes handles GET /api/v1/nodes
func (h *Handler) HandleNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"nodes": h.controller.Nodes()})
}

type ctfUpdateRequest struct {
	Ctf ctf.Report `json:"ctf"`
}

// HandleCtfUpdate handles POST /api/v1/ctf/update
func (h *Handler) HandleCtfUpdate(w http.ResponseWriter, r *http.Request) {
	var req ctfUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, h.controller.HandleCtfReport(req.Ctf))
}

type ctfStartRequest struct {
	DurationMs int64 `json:"duration_ms"`
}

// HandleCtfStart handles POST /api/v1/ctf/start
func (h *Handler) HandleCtfStart(w http.ResponseWriter, r *http.Request) {
	var req ctfStartRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, h.controller.StartCtf(time.Duration(req.DurationMs)*time.Millisecond))
}

// HandleCtfStop handles GET /api/v1/ctf/stop
func (h *Handler) HandleCtfStop(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.controller.StopCtf())
}

type clearLapsRequest struct {
	Offset *int64 `json:"offset"`
}

// HandleClearLaps handles POST /api/v1/clear_laps
func (h *Handler) HandleClearLaps(w http.ResponseWriter, r *http.Request) {
	var req clearLapsRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	delay := DefaultClearLapsOffset
	if req.Offset != nil {
		delay = time.Duration(*req.Offset) * time.Millisecond
	}

	res := h.controller.ClearLaps(delay)
	if !res.OK() {
		writeResult(w, res)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTimeSync handles POST /api/v1/time-sync. The server's unix
// milliseconds are appended to the "server" array; every other member is
// echoed in the order it was received.
func (h *Handler) HandleTimeSync(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read body: %v", err))
		return
	}

	body, err := stampTimeSync(data, h.clock.Now().UnixMilli())
	switch {
	case errors.Is(err, errServerNotArray):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, body)
}

var errServerNotArray = errors.New("server must be an array")

// stampTimeSync appends ms to the "server" array of the object in data and
// copies the other members through unchanged. A missing array is created
// at the end of the object.
func stampTimeSync(data []byte, ms int64) (json.RawMessage, error) {
	stamp := json.RawMessage(strconv.FormatInt(ms, 10))
	if strings.TrimSpace(string(data)) == "" {
		data = []byte("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("expected a JSON object")
	}

	var out bytes.Buffer
	out.WriteByte('{')
	member := func(key string, value []byte) {
		if out.Len() > 1 {
			out.WriteByte(',')
		}
		name, _ := json.Marshal(key)
		out.Write(name)
		out.WriteByte(':')
		out.Write(value)
	}

	stamped := false
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if key == "server" {
			var server []json.RawMessage
			if err := json.Unmarshal(value, &server); err != nil {
				return nil, errServerNotArray
			}
			if value, err = json.Marshal(append(server, stamp)); err != nil {
				return nil, err
			}
			stamped = true
		}
		member(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after object")
	}

	if !stamped {
		server, _ := json.Marshal([]json.RawMessage{stamp})
		member("server", server)
	}
	out.WriteByte('}')
	return out.Bytes(), nil
}

// HandleRssiStatus handles GET /api/v1/rssi/update
func (h *Handler) HandleRssiStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"enable": false})
}

// HandleRssiUpdate handles POST /api/v1/rssi/update
func (h *Handler) HandleRssiUpdate(w http.ResponseWriter, r *http.Request) {
	writeResult(w, game.Result{Status: game.StatusError, Msg: "RSSI update not implemented"})
}

type statsResponse struct {
	Pushes  nodeclient.Stats `json:"pushes"`
	Viewers int              `json:"viewers"`
	Nodes   int              `json:"nodes"`
}

// HandleStats handles GET /api/v1/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Nodes: len(h.controller.Nodes())}
	if h.pushes != nil {
		resp.Pushes = h.pushes.Snapshot()
	}
	if h.viewers != nil {
		resp.Viewers = h.viewers.Stats().Viewers
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// decode reads a JSON body into v, keeping numbers as json.Number so
// settings values reach the store unrounded.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("invalid request body")
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// decodeOptional is decode for endpoints where an empty body is valid.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read body: %v", err))
		return false
	}
	if strings.TrimSpace(string(data)) == "" {
		return true
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeResult(w http.ResponseWriter, res game.Result) {
	writeJSON(w, http.StatusOK, res)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, game.Result{Status: game.StatusError, Msg: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"cinestream/internal/engine"
	"cinestream/internal/metrics"
	"cinestream/internal/registry"
	"cinestream/internal/search"
	"cinestream/internal/watch"
)

// Server wires the HTTP surface to the session registry, the discovery
// aggregator and the optional progress store.
type Server struct {
	Registry      *registry.Registry
	Search        *search.Aggregator
	Engine        *engine.Engine
	Progress      *watch.Store // nil when PG_DSN is unset
	PublicBaseURL string

	startAt time.Time
}

func NewServer(reg *registry.Registry, agg *search.Aggregator, eng *engine.Engine, progress *watch.Store, publicBaseURL string) *Server {
	return &Server{
		Registry:      reg,
		Search:        agg,
		Engine:        eng,
		Progress:      progress,
		PublicBaseURL: publicBaseURL,
		startAt:       time.Now(),
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.instrument("/api/health", s.handleHealth))
	mux.HandleFunc("GET /api/search", s.instrument("/api/search", s.handleSearch))
	mux.HandleFunc("POST /api/stream", s.instrument("/api/stream", s.handleCreateStream))
	mux.HandleFunc("GET /api/stream/{infoHash}", s.instrument("/api/stream/{infoHash}", s.handleStream))
	mux.HandleFunc("DELETE /api/stream/{infoHash}", s.instrument("/api/stream/{infoHash}", s.handleDeleteStream))
	mux.HandleFunc("GET /api/stream/{infoHash}/status", s.instrument("/api/stream/{infoHash}/status", s.handleStatus))
	mux.HandleFunc("GET /api/sessions", s.instrument("/api/sessions", s.handleSessions))
	if s.Progress != nil {
		mux.HandleFunc("POST /api/progress", s.instrument("/api/progress", s.handleSaveProgress))
		mux.HandleFunc("GET /api/progress/{infoHash}", s.instrument("/api/progress/{infoHash}", s.handleGetProgress))
		mux.HandleFunc("DELETE /api/progress/{infoHash}", s.instrument("/api/progress/{infoHash}", s.handleDeleteProgress))
		mux.HandleFunc("GET /api/continue", s.instrument("/api/continue", s.handleContinue))
	}
	return mux
}

// statusWriter records the status code for the request metrics. Unwrap
// keeps http.ResponseController flushing working through the wrapper.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }

func (s *Server) instrument(path string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// writeStreamError maps the error taxonomy onto HTTP statuses and stable
// machine-readable codes.
func writeStreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrMetadataTimeout):
		writeError(w, http.StatusGatewayTimeout, "METADATA_TIMEOUT",
			"could not fetch torrent metadata, the torrent may have no seeds")
	case errors.Is(err, engine.ErrNoVideoFile):
		writeError(w, http.StatusNotFound, "NO_VIDEO_FILE",
			"no playable video file found in torrent")
	case errors.Is(err, engine.ErrTorrentProtocol):
		writeError(w, http.StatusBadGateway, "TORRENT_ERROR", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "STREAM_FAILED", err.Error())
	}
}

func (s *Server) streamURL(infoHash string) string {
	return s.PublicBaseURL + "/api/stream/" + infoHash
}

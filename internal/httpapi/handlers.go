package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"cinestream/internal/buffer"
	"cinestream/internal/metrics"
	"cinestream/internal/registry"
	"cinestream/internal/watch"
	"cinestream/pkg/types"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	activeTorrents := 0
	if s.Engine != nil {
		peers, down, up := s.Engine.AggregateStats()
		metrics.PeersConnected.Set(float64(peers))
		metrics.DownloadSpeedBytes.Set(down)
		metrics.UploadSpeedBytes.Set(up)
		activeTorrents = s.Engine.TorrentCount()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"activeTorrents": activeTorrents,
		"activeStreams":  s.Registry.Len(),
		"uptimeSeconds":  time.Since(s.startAt).Seconds(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	if query == "" {
		query = strings.TrimSpace(q.Get("q"))
	}
	if query == "" {
		// An IMDb id works as a plain query term on every source.
		query = strings.TrimSpace(q.Get("imdbId"))
	}
	if query == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "query or imdbId required")
		return
	}

	results, err := s.Search.Search(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusBadGateway, "ALL_SOURCES_FAILED", err.Error())
		return
	}
	if results == nil {
		results = []types.Candidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"count":   len(results),
		"results": results,
	})
}

type createStreamRequest struct {
	Magnet   string `json:"magnet"`
	InfoHash string `json:"infoHash"`
}

func (s *Server) handleCreateStream(w http.ResponseWriter, r *http.Request) {
	var req createStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	src := strings.TrimSpace(req.Magnet)
	if src == "" {
		src = strings.TrimSpace(req.InfoHash)
	}
	if src == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "magnet link or info hash required")
		return
	}

	sess, created, err := s.Registry.GetOrCreate(r.Context(), src)
	if err != nil {
		writeStreamError(w, err)
		return
	}
	if created {
		go s.prewarm(sess)
	}

	st := sess.Handle.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "STREAM_READY",
		"streamUrl": s.streamURL(sess.Handle.InfoHash()),
		"infoHash":  sess.Handle.InfoHash(),
		"name":      sess.Handle.Name(),
		"videoFile": filepath.Base(sess.File.Path),
		"size":      sess.File.Length,
		"peers":     st.Peers,
	})
}

// prewarm pulls the head of the file right after a join so the player's
// first request finds warm pieces. Best effort, bounded by time not size.
func (s *Server) prewarm(sess *registry.Session) {
	rd, err := sess.Handle.NewReader()
	if err != nil {
		return
	}
	defer rd.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	want := sess.Throughput.TargetBytes(6)
	if want > sess.File.Length {
		want = sess.File.Length
	}
	start := time.Now()
	got := buffer.Prewarm(ctx, rd, want)
	sess.Throughput.Update(got, time.Since(start))
	if got > 0 {
		log.Printf("[stream] prewarmed %d bytes ih=%s in %s",
			got, sess.Handle.InfoHash(), time.Since(start).Truncate(time.Millisecond))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ih := strings.ToLower(r.PathValue("infoHash"))
	sess, ok := s.Registry.Get(ih)
	if !ok {
		writeError(w, http.StatusNotFound, "STREAM_NOT_FOUND", "no active session for info hash")
		return
	}
	sess.Touch()

	st := sess.Handle.Status()
	out := types.SessionStatus{
		InfoHash:      st.InfoHash,
		Name:          st.Name,
		FileName:      filepath.Base(st.FileName),
		FileLength:    st.FileLength,
		Progress:      st.Progress,
		Downloaded:    st.Downloaded,
		DownloadSpeed: st.DownloadSpeed,
		UploadSpeed:   st.UploadSpeed,
		Peers:         st.Peers,
		StreamURL:     s.streamURL(st.InfoHash),
		CreatedAt:     sess.CreatedAt.UTC().Format(time.RFC3339),
		LastAccessAt:  sess.LastAccess().UTC().Format(time.RFC3339),
	}
	if st.DownloadSpeed > 0 && st.Downloaded < st.FileLength {
		out.TimeRemaining = float64(st.FileLength-st.Downloaded) / st.DownloadSpeed
	}
	for _, f := range sess.Handle.Files() {
		out.Files = append(out.Files, types.TorrentFile{
			Index:          f.Index,
			Path:           f.Path,
			Length:         f.Length,
			BytesCompleted: f.BytesCompleted,
			Selected:       f.Index == st.FileIndex,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDeleteStream is idempotent: stopping an already-stopped stream is
// still a success, so clients can fire it without checking state first.
func (s *Server) handleDeleteStream(w http.ResponseWriter, r *http.Request) {
	ih := strings.ToLower(r.PathValue("infoHash"))
	s.Registry.Destroy(ih)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "message": "stream stopped"})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.Registry.List()
	out := make([]map[string]any, 0, len(sessions))
	for _, sess := range sessions {
		st := sess.Handle.Status()
		out = append(out, map[string]any{
			"infoHash":     st.InfoHash,
			"name":         st.Name,
			"fileName":     filepath.Base(st.FileName),
			"progress":     st.Progress,
			"peers":        st.Peers,
			"createdAt":    sess.CreatedAt.UTC().Format(time.RFC3339),
			"lastAccessAt": sess.LastAccess().UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "sessions": out})
}

type saveProgressRequest struct {
	InfoHash  string `json:"infoHash"`
	Name      string `json:"name"`
	PositionS int    `json:"position_s"`
	DurationS int    `json:"duration_s"`
}

func (s *Server) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	var req saveProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	ih := strings.ToLower(strings.TrimSpace(req.InfoHash))
	if ih == "" || req.PositionS < 0 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "infoHash and position_s required")
		return
	}
	if err := s.Progress.SaveProgress(r.Context(), ih, req.Name, req.PositionS, req.DurationS); err != nil {
		log.Printf("[progress] save ih=%s: %v", ih, err)
		writeError(w, http.StatusInternalServerError, "PROGRESS_FAILED", "could not save progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	ih := strings.ToLower(r.PathValue("infoHash"))
	resume, ok, err := s.Progress.GetResume(r.Context(), ih)
	if err != nil {
		log.Printf("[progress] get ih=%s: %v", ih, err)
		writeError(w, http.StatusInternalServerError, "PROGRESS_FAILED", "could not load progress")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "PROGRESS_NOT_FOUND", "no saved position")
		return
	}
	writeJSON(w, http.StatusOK, resume)
}

// handleDeleteProgress clears a saved position, e.g. after the viewer
// finished or restarted a title. Idempotent like stream deletion.
func (s *Server) handleDeleteProgress(w http.ResponseWriter, r *http.Request) {
	ih := strings.ToLower(r.PathValue("infoHash"))
	if err := s.Progress.Delete(r.Context(), ih); err != nil {
		log.Printf("[progress] delete ih=%s: %v", ih, err)
		writeError(w, http.StatusInternalServerError, "PROGRESS_FAILED", "could not delete progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	items, err := s.Progress.ListRecent(r.Context(), 30)
	if err != nil {
		log.Printf("[progress] list: %v", err)
		writeError(w, http.StatusInternalServerError, "PROGRESS_FAILED", "could not list progress")
		return
	}
	if items == nil {
		items = []watch.Resume{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

package httpapi

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cinestream/internal/engine"
	"cinestream/internal/metrics"
)

const streamChunk = 256 << 10

// handleStream serves the selected video file with byte-range support.
// A request without Range gets the whole file as 200; a single-range
// request gets 206 with Content-Range. Multi-range requests are rejected.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ih := strings.ToLower(r.PathValue("infoHash"))
	sess, ok := s.Registry.Get(ih)
	if !ok {
		writeError(w, http.StatusNotFound, "STREAM_NOT_FOUND",
			"stream not found or not ready, call POST /api/stream first")
		return
	}
	sess.Touch()

	size := sess.File.Length
	name := filepath.Base(sess.File.Path)

	hadRange := false
	start, end := int64(0), size-1
	if rh := r.Header.Get("Range"); rh != "" {
		rs, re, ok := parseByteRange(rh, size)
		if !ok {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			writeError(w, http.StatusRequestedRangeNotSatisfiable, "BAD_RANGE", "unsatisfiable range")
			return
		}
		start, end, hadRange = rs, re, true
	}
	length := end - start + 1

	w.Header().Set("Content-Type", engine.ContentTypeForName(name))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", engine.SafeDownloadName(name)))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Buffered-Ahead", strconv.FormatInt(sess.Handle.ContiguousAhead(start), 10))

	if hadRange {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}

	if r.Method == http.MethodHead {
		return
	}

	reader, err := sess.Handle.NewReader()
	if err != nil {
		log.Printf("[stream] reader ih=%s: %v", ih, err)
		return
	}
	defer reader.Close()
	if _, err := reader.Seek(start, io.SeekStart); err != nil {
		log.Printf("[stream] seek ih=%s to %d: %v", ih, start, err)
		return
	}

	rc := http.NewResponseController(w)
	buf := make([]byte, streamChunk)
	var written int64

	for written < length {
		select {
		case <-r.Context().Done():
			return
		default:
		}
		toRead := int64(len(buf))
		if rem := length - written; rem < toRead {
			toRead = rem
		}
		readStart := time.Now()
		n, readErr := reader.Read(buf[:toRead])
		if n > 0 {
			sess.Throughput.Update(int64(n), time.Since(readStart))
			sess.Touch()

			if _, err := w.Write(buf[:n]); err != nil {
				if !engine.ClientGone(err) {
					log.Printf("[stream] client write ih=%s: %v", ih, err)
				}
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
			written += int64(n)
			metrics.BytesServedTotal.Add(float64(n))
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
				break
			}
			if engine.ClientGone(readErr) {
				return
			}
			// Swarm stall; back off and let pieces arrive.
			time.Sleep(200 * time.Millisecond)
		}
	}
	log.Printf("[stream] served ih=%s range=%d-%d written=%d", ih, start, end, written)
}

// parseByteRange handles the single-range forms start-end, start-, and the
// suffix form -n. Multi-range specs and non-byte units are rejected.
func parseByteRange(h string, size int64) (start, end int64, ok bool) {
	h = strings.TrimSpace(strings.ToLower(h))
	if !strings.HasPrefix(h, "bytes=") {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(h, "bytes=")
	parts := strings.Split(spec, ",")
	if len(parts) != 1 {
		return 0, 0, false
	}
	se := strings.SplitN(strings.TrimSpace(parts[0]), "-", 2)
	if se[0] == "" {
		if len(se) < 2 {
			return 0, 0, false
		}
		n, err := strconv.ParseInt(se[1], 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	}
	s, err := strconv.ParseInt(se[0], 10, 64)
	if err != nil || s < 0 || s >= size {
		return 0, 0, false
	}
	var e int64
	if len(se) == 1 || se[1] == "" {
		e = size - 1
	} else {
		e, err = strconv.ParseInt(se[1], 10, 64)
		if err != nil || e < s {
			return 0, 0, false
		}
		if e >= size {
			e = size - 1
		}
	}
	return s, e, true
}

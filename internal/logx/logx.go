package logx

import (
	"io"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Options configure a filtering Writer.
type Options struct {
	// AllowRegex, when non-empty, drops every line that does not match it.
	AllowRegex string
	// DenyRegex, when non-empty, drops every line that matches it.
	DenyRegex string
	// DedupWindow drops identical lines repeated within the window.
	DedupWindow time.Duration
}

// Writer filters and de-duplicates log lines before handing them to dst.
// Torrent clients are chatty under churn; this keeps the log readable.
type Writer struct {
	dst         io.Writer
	allow, deny *regexp.Regexp
	window      time.Duration

	mu       sync.Mutex
	lastSeen map[string]time.Time
	pruned   time.Time
}

func NewWriter(dst io.Writer, o Options) *Writer {
	w := &Writer{dst: dst, window: o.DedupWindow, lastSeen: make(map[string]time.Time)}
	if s := strings.TrimSpace(o.AllowRegex); s != "" {
		if re, err := regexp.Compile(s); err == nil {
			w.allow = re
		}
	}
	if s := strings.TrimSpace(o.DenyRegex); s != "" {
		if re, err := regexp.Compile(s); err == nil {
			w.deny = re
		}
	}
	return w
}

func (w *Writer) Write(p []byte) (int, error) {
	line := string(p)

	if w.deny != nil && w.deny.MatchString(line) {
		return len(p), nil
	}
	if w.allow != nil && !w.allow.MatchString(line) {
		return len(p), nil
	}

	if w.window <= 0 {
		return w.dst.Write(p)
	}

	key := strings.TrimRight(line, "\r\n")
	now := time.Now()

	w.mu.Lock()
	if last, ok := w.lastSeen[key]; ok && now.Sub(last) < w.window {
		w.mu.Unlock()
		return len(p), nil
	}
	w.lastSeen[key] = now
	if now.Sub(w.pruned) > 10*w.window {
		for k, t := range w.lastSeen {
			if now.Sub(t) >= w.window {
				delete(w.lastSeen, k)
			}
		}
		w.pruned = now
	}
	w.mu.Unlock()

	return w.dst.Write(p)
}

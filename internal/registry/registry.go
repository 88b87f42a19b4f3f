package registry

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"cinestream/internal/buffer"
	"cinestream/internal/engine"
	"cinestream/internal/metrics"
)

// Joiner turns a magnet link or info hash into a streamable handle.
// Satisfied by *engine.Engine.
type Joiner interface {
	Join(ctx context.Context, src string) (engine.Handle, error)
}

// Session is one live torrent with its bookkeeping. A session exists only
// after metadata arrived and a playable file was selected.
type Session struct {
	Handle     engine.Handle
	File       engine.FileInfo
	Throughput *buffer.Tracker
	CreatedAt  time.Time

	mu         sync.Mutex
	lastAccess time.Time

	destroyOnce sync.Once
}

// Touch marks the session as recently used. Called on every stream read
// and status poll so the reaper sees live viewers.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// Registry owns the info-hash -> session map. Concurrent requests for the
// same hash share one swarm join; the loser of the race gets the winner's
// session.
type Registry struct {
	joiner Joiner

	mu       sync.RWMutex
	sessions map[string]*Session

	joinLocks sync.Map // info hash (or raw source) -> *sync.Mutex
}

func New(j Joiner) *Registry {
	return &Registry{joiner: j, sessions: make(map[string]*Session)}
}

func (r *Registry) lockFor(key string) *sync.Mutex {
	v, _ := r.joinLocks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// GetOrCreate returns the session for src's info hash, joining the swarm
// if needed. The bool reports whether a new session was created. A failed
// join leaves no session behind.
func (r *Registry) GetOrCreate(ctx context.Context, src string) (*Session, bool, error) {
	key, known := engine.InfoHashFromSource(src)
	if !known {
		// No hash without metadata; serialize on the raw source instead.
		key = src
	}

	if known {
		if s, ok := r.Get(key); ok {
			s.Touch()
			return s, false, nil
		}
	}

	lk := r.lockFor(key)
	lk.Lock()
	defer lk.Unlock()

	// Re-check under the join lock: another request may have finished the
	// join while this one queued.
	if known {
		if s, ok := r.Get(key); ok {
			s.Touch()
			return s, false, nil
		}
	}

	h, err := r.joiner.Join(ctx, src)
	if err != nil {
		metrics.SessionJoinsTotal.WithLabelValues(joinOutcome(err)).Inc()
		return nil, false, err
	}

	f, err := h.SelectFile()
	if err != nil {
		ih := h.InfoHash()
		h.Drop()
		log.Printf("[join] no playable file, dropped ih=%s name=%q", ih, h.Name())
		metrics.SessionJoinsTotal.WithLabelValues("no_video_file").Inc()
		return nil, false, err
	}

	ih := h.InfoHash()
	now := time.Now()
	s := &Session{Handle: h, File: f, Throughput: buffer.NewTracker(), CreatedAt: now, lastAccess: now}

	r.mu.Lock()
	if existing, ok := r.sessions[ih]; ok {
		// Source had no extractable hash and another request won. Both
		// handles point at the same torrent, so just discard ours.
		r.mu.Unlock()
		existing.Touch()
		return existing, false, nil
	}
	r.sessions[ih] = s
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.SessionJoinsTotal.WithLabelValues("ok").Inc()
	metrics.ActiveSessions.Set(float64(n))
	log.Printf("[join] session ready ih=%s file=%q length=%d active=%d", ih, f.Path, f.Length, n)
	return s, true, nil
}

func joinOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, engine.ErrMetadataTimeout):
		return "metadata_timeout"
	default:
		return "error"
	}
}

func (r *Registry) Get(infoHash string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[infoHash]
	return s, ok
}

// List returns sessions ordered by creation time, oldest first.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Destroy removes the session and drops its torrent. Safe to call multiple
// times; the torrent is only dropped once. Returns false when no session
// exists for the hash.
func (r *Registry) Destroy(infoHash string) bool {
	r.mu.Lock()
	s, ok := r.sessions[infoHash]
	if ok {
		delete(r.sessions, infoHash)
	}
	n := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return false
	}

	s.destroyOnce.Do(func() {
		s.Handle.Drop()
		log.Printf("[stream] session destroyed ih=%s active=%d", infoHash, n)
	})
	metrics.ActiveSessions.Set(float64(n))
	return true
}

// Close destroys every session. Used on shutdown.
func (r *Registry) Close() {
	for _, s := range r.List() {
		r.Destroy(s.Handle.InfoHash())
	}
}

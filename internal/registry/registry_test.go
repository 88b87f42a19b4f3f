package registry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cinestream/internal/engine"
)

const hashA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
const hashB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

type fakeHandle struct {
	ih      string
	name    string
	dropped atomic.Int32
}

func (h *fakeHandle) InfoHash() string            { return h.ih }
func (h *fakeHandle) Name() string                { return h.name }
func (h *fakeHandle) Files() []engine.FileInfo    { return nil }
func (h *fakeHandle) ContiguousAhead(int64) int64 { return 0 }
func (h *fakeHandle) Status() engine.Status       { return engine.Status{InfoHash: h.ih, Name: h.name} }
func (h *fakeHandle) Drop()                       { h.dropped.Add(1) }

func (h *fakeHandle) SelectFile() (engine.FileInfo, error) {
	return engine.FileInfo{Index: 0, Path: h.name + ".mp4", Length: 1 << 20}, nil
}

type readSeekCloser struct{ *bytes.Reader }

func (readSeekCloser) Close() error { return nil }

func (h *fakeHandle) NewReader() (io.ReadSeekCloser, error) {
	return readSeekCloser{bytes.NewReader(make([]byte, 1<<20))}, nil
}

type fakeJoiner struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	err   error
}

func (j *fakeJoiner) Join(ctx context.Context, src string) (engine.Handle, error) {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	if j.delay > 0 {
		time.Sleep(j.delay)
	}
	if j.err != nil {
		return nil, j.err
	}
	ih, _ := engine.InfoHashFromSource(src)
	return &fakeHandle{ih: ih, name: "t-" + ih[:8]}, nil
}

func (j *fakeJoiner) joinCalls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

func TestGetOrCreateCreatesOnce(t *testing.T) {
	j := &fakeJoiner{}
	reg := New(j)

	s1, created, err := reg.GetOrCreate(context.Background(), hashA)
	if err != nil {
		t.Fatalf("first GetOrCreate: %v", err)
	}
	if !created {
		t.Fatal("first call should create")
	}
	s2, created, err := reg.GetOrCreate(context.Background(), hashA)
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if created {
		t.Fatal("second call should reuse")
	}
	if s1 != s2 {
		t.Fatal("expected the same session")
	}
	if j.joinCalls() != 1 {
		t.Fatalf("joiner called %d times", j.joinCalls())
	}
}

func TestConcurrentJoinsShareOneSwarm(t *testing.T) {
	j := &fakeJoiner{delay: 30 * time.Millisecond}
	reg := New(j)

	const n = 12
	sessions := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, _, err := reg.GetOrCreate(context.Background(), hashA)
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	if j.joinCalls() != 1 {
		t.Fatalf("expected one swarm join, got %d", j.joinCalls())
	}
	for i := 1; i < n; i++ {
		if sessions[i] != sessions[0] {
			t.Fatalf("goroutine %d got a different session", i)
		}
	}
	if reg.Len() != 1 {
		t.Fatalf("registry holds %d sessions", reg.Len())
	}
}

func TestFailedJoinLeavesNoSession(t *testing.T) {
	j := &fakeJoiner{err: engine.ErrMetadataTimeout}
	reg := New(j)

	_, _, err := reg.GetOrCreate(context.Background(), hashA)
	if !errors.Is(err, engine.ErrMetadataTimeout) {
		t.Fatalf("got %v, want ErrMetadataTimeout", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry holds %d sessions after failed join", reg.Len())
	}

	// A later attempt must be able to join again.
	j.err = nil
	if _, created, err := reg.GetOrCreate(context.Background(), hashA); err != nil || !created {
		t.Fatalf("retry after failure: created=%v err=%v", created, err)
	}
}

func TestDestroyDropsOnce(t *testing.T) {
	j := &fakeJoiner{}
	reg := New(j)
	s, _, err := reg.GetOrCreate(context.Background(), hashA)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	h := s.Handle.(*fakeHandle)

	if !reg.Destroy(hashA) {
		t.Fatal("first Destroy returned false")
	}
	if reg.Destroy(hashA) {
		t.Fatal("second Destroy returned true")
	}
	if got := h.dropped.Load(); got != 1 {
		t.Fatalf("handle dropped %d times", got)
	}
	if _, ok := reg.Get(hashA); ok {
		t.Fatal("session still resolvable after Destroy")
	}
}

func TestListOrderedByCreation(t *testing.T) {
	j := &fakeJoiner{}
	reg := New(j)
	if _, _, err := reg.GetOrCreate(context.Background(), hashA); err != nil {
		t.Fatalf("join a: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, _, err := reg.GetOrCreate(context.Background(), hashB); err != nil {
		t.Fatalf("join b: %v", err)
	}

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("List returned %d sessions", len(list))
	}
	if list[0].Handle.InfoHash() != hashA || list[1].Handle.InfoHash() != hashB {
		t.Fatalf("wrong order: %s, %s", list[0].Handle.InfoHash(), list[1].Handle.InfoHash())
	}
}

func TestTouchAdvancesLastAccess(t *testing.T) {
	j := &fakeJoiner{}
	reg := New(j)
	s, _, err := reg.GetOrCreate(context.Background(), hashA)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	before := s.LastAccess()
	time.Sleep(5 * time.Millisecond)
	s.Touch()
	if !s.LastAccess().After(before) {
		t.Fatal("Touch did not advance last access")
	}
}

package reaper

import (
	"context"
	"io"
	"testing"
	"time"

	"cinestream/internal/engine"
	"cinestream/internal/registry"
)

type stubHandle struct{ ih string }

func (h *stubHandle) InfoHash() string            { return h.ih }
func (h *stubHandle) Name() string                { return h.ih }
func (h *stubHandle) Files() []engine.FileInfo    { return nil }
func (h *stubHandle) ContiguousAhead(int64) int64 { return 0 }
func (h *stubHandle) Status() engine.Status       { return engine.Status{InfoHash: h.ih} }
func (h *stubHandle) Drop()                       {}

func (h *stubHandle) SelectFile() (engine.FileInfo, error) {
	return engine.FileInfo{Path: "a.mp4", Length: 1}, nil
}

func (h *stubHandle) NewReader() (io.ReadSeekCloser, error) {
	return nil, engine.ErrNoVideoFile
}

type stubJoiner struct{}

func (stubJoiner) Join(_ context.Context, src string) (engine.Handle, error) {
	ih, _ := engine.InfoHashFromSource(src)
	return &stubHandle{ih: ih}, nil
}

func populate(t *testing.T, reg *registry.Registry, hashes ...string) {
	t.Helper()
	for _, ih := range hashes {
		if _, _, err := reg.GetOrCreate(context.Background(), ih); err != nil {
			t.Fatalf("GetOrCreate(%s): %v", ih, err)
		}
	}
}

func TestSweepReapsIdleSessions(t *testing.T) {
	reg := registry.New(stubJoiner{})
	populate(t, reg,
		"1111111111111111111111111111111111111111",
		"2222222222222222222222222222222222222222",
	)

	rp := &Reaper{Interval: time.Minute, IdleTimeout: 0}
	if got := rp.Sweep(reg); got != 2 {
		t.Fatalf("Sweep reaped %d, want 2", got)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry holds %d sessions after sweep", reg.Len())
	}
}

func TestSweepKeepsActiveSessions(t *testing.T) {
	reg := registry.New(stubJoiner{})
	populate(t, reg, "3333333333333333333333333333333333333333")

	rp := &Reaper{Interval: time.Minute, IdleTimeout: time.Hour}
	if got := rp.Sweep(reg); got != 0 {
		t.Fatalf("Sweep reaped %d, want 0", got)
	}
	if reg.Len() != 1 {
		t.Fatal("active session was reaped")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	reg := registry.New(stubJoiner{})
	rp := &Reaper{Interval: 5 * time.Millisecond, IdleTimeout: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rp.Run(ctx, reg)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

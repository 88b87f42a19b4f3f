package reaper

import (
	"context"
	"log"
	"time"

	"cinestream/internal/metrics"
	"cinestream/internal/registry"
)

// Reaper periodically destroys sessions nobody has touched within the
// idle timeout. An active viewer keeps a session alive because every
// stream read and status poll refreshes its last-access time.
type Reaper struct {
	Interval    time.Duration
	IdleTimeout time.Duration
}

func (rp *Reaper) Run(ctx context.Context, reg *registry.Registry) {
	t := time.NewTicker(rp.Interval)
	defer t.Stop()
	log.Printf("[reaper] started interval=%s idleTimeout=%s", rp.Interval, rp.IdleTimeout)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[reaper] stopped")
			return
		case <-t.C:
			rp.Sweep(reg)
		}
	}
}

// Sweep destroys every session idle past the timeout and returns how many
// were reaped.
func (rp *Reaper) Sweep(reg *registry.Registry) int {
	now := time.Now()
	var reaped int
	for _, s := range reg.List() {
		idle := now.Sub(s.LastAccess())
		if idle < rp.IdleTimeout {
			continue
		}
		ih := s.Handle.InfoHash()
		if reg.Destroy(ih) {
			reaped++
			metrics.SessionsReapedTotal.Inc()
			log.Printf("[reaper] reaped idle session ih=%s idle=%s", ih, idle.Truncate(time.Second))
		}
	}
	return reaped
}

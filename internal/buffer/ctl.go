package buffer

import (
	"context"
	"io"
	"sync"
	"time"
)

// fallbackBps assumes a 3 MB/s swarm until real observations arrive.
const fallbackBps = 24_000_000 / 8

// Tracker keeps a rolling estimate of delivery throughput for one session.
// Observations are blended 70/30 so a single stalled read does not crater
// the estimate.
type Tracker struct {
	mu         sync.Mutex
	rollingBps int64
}

func NewTracker() *Tracker {
	return &Tracker{rollingBps: fallbackBps}
}

func (t *Tracker) Update(bytes int64, elapsed time.Duration) {
	ms := elapsed.Milliseconds()
	if bytes <= 0 || ms <= 0 {
		return
	}
	obs := (bytes * 1000) / ms
	if obs <= 0 {
		return
	}
	t.mu.Lock()
	if t.rollingBps == 0 {
		t.rollingBps = obs
	} else {
		t.rollingBps = (t.rollingBps*7 + obs*3) / 10
	}
	t.mu.Unlock()
}

func (t *Tracker) Bps() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rollingBps
}

// TargetBytes converts a seconds-ahead goal into bytes at the current
// throughput estimate. Slow swarms get a third more headroom.
func (t *Tracker) TargetBytes(aheadSec int64) int64 {
	bps := t.Bps()
	if bps <= 0 {
		bps = fallbackBps
	}
	if bps < fallbackBps {
		aheadSec += aheadSec / 3
	}
	return bps * aheadSec
}

// Prewarm reads sequentially from r until want bytes arrived or ctx is
// done, reporting how much landed. Used right after a session is created
// so the player's first range request hits warm pieces.
func Prewarm(ctx context.Context, r io.Reader, want int64) int64 {
	if want <= 0 {
		return 0
	}
	buf := make([]byte, 256<<10)
	var done int64
	for done < want {
		if ctx.Err() != nil {
			return done
		}
		toRead := int64(len(buf))
		if rem := want - done; rem < toRead {
			toRead = rem
		}
		n, err := r.Read(buf[:toRead])
		if n > 0 {
			done += int64(n)
			continue
		}
		if err != nil {
			return done
		}
	}
	return done
}

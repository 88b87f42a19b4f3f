package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
)

// Options configure a new Engine.
type Options struct {
	DataDir      string
	TrackersMode string        // all|http|udp|none
	WaitMetadata time.Duration // deadline for GotInfo after AddMagnet
	MaxConns     int           // per-torrent connection cap, 0 for library default
}

// Engine owns the single torrent client and turns magnet links into
// ready-to-stream handles.
type Engine struct {
	cl   *torrent.Client
	opts Options

	speedMu sync.Mutex
	speeds  map[string]speedSample
}

func New(opts Options) (*Engine, error) {
	if opts.WaitMetadata <= 0 {
		opts.WaitMetadata = 45 * time.Second
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("data dir %s: %w", opts.DataDir, err)
	}

	cfg := torrent.NewDefaultClientConfig()
	cfg.DataDir = opts.DataDir
	cfg.DisableTCP = false
	cfg.DisableUTP = true
	cfg.Seed = false
	cfg.NoUpload = false
	if opts.MaxConns > 0 {
		cfg.EstablishedConnsPerTorrent = opts.MaxConns
	}

	cl, err := torrent.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("torrent client: %w", err)
	}
	log.Printf("[init] torrent client dataDir=%s trackersMode=%s waitMetadata=%s",
		opts.DataDir, opts.TrackersMode, opts.WaitMetadata)
	return &Engine{cl: cl, opts: opts, speeds: make(map[string]speedSample)}, nil
}

func (e *Engine) Close() {
	e.cl.Close()
}

// Join adds the magnet (or bare info hash) to the client, waits for swarm
// metadata, and returns a handle. On metadata timeout the torrent is
// dropped before ErrMetadataTimeout is returned.
func (e *Engine) Join(ctx context.Context, src string) (Handle, error) {
	src, err := NormalizeSource(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTorrentProtocol, err)
	}
	src = sanitizeMagnet(src, e.opts.TrackersMode)

	t, added, err := e.addOrGet(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTorrentProtocol, err)
	}
	if added {
		if tiers := trackerTiers(e.opts.TrackersMode); len(tiers) != 0 {
			t.AddTrackers(tiers)
		}
	}

	wait, cancel := context.WithTimeout(ctx, e.opts.WaitMetadata)
	defer cancel()
	select {
	case <-t.GotInfo():
	case <-wait.Done():
		ih := t.InfoHash().HexString()
		t.Drop()
		e.forgetSpeed(ih)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[join] metadata timeout after %s ih=%s", e.opts.WaitMetadata, ih)
		return nil, ErrMetadataTimeout
	}

	log.Printf("[join] metadata ready %q ih=%s files=%d",
		t.Name(), t.InfoHash().HexString(), len(t.Files()))
	return &torrentHandle{eng: e, t: t}, nil
}

func (e *Engine) addOrGet(src string) (*torrent.Torrent, bool, error) {
	if ih, ok := InfoHashFromSource(src); ok {
		if t, have := e.cl.Torrent(metainfo.NewHashFromHex(ih)); have {
			return t, false, nil
		}
	}
	t, err := e.cl.AddMagnet(src)
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

// TorrentCount reports how many torrents the client currently holds,
// including ones still waiting for metadata.
func (e *Engine) TorrentCount() int {
	return len(e.cl.Torrents())
}

// AggregateStats sums peer counts and per-second transfer speeds across all
// live torrents, for the metrics gauges.
func (e *Engine) AggregateStats() (peers int, downBps, upBps float64) {
	now := time.Now()
	for _, t := range e.cl.Torrents() {
		st := t.Stats()
		peers += st.ActivePeers
		d, u := e.sampleSpeed(t.InfoHash().HexString(), st, now)
		downBps += d
		upBps += u
	}
	return peers, downBps, upBps
}

type speedSample struct {
	at           time.Time
	bytesRead    int64
	bytesWritten int64
}

// sampleSpeed derives bytes-per-second rates from the delta against the
// previous sample for this torrent. First observation reports zero.
func (e *Engine) sampleSpeed(ih string, stats torrent.TorrentStats, now time.Time) (float64, float64) {
	currentRead := stats.BytesReadUsefulData.Int64()
	currentWritten := stats.BytesWrittenData.Int64()

	e.speedMu.Lock()
	defer e.speedMu.Unlock()

	prev, ok := e.speeds[ih]
	e.speeds[ih] = speedSample{at: now, bytesRead: currentRead, bytesWritten: currentWritten}

	if !ok || prev.at.IsZero() {
		return 0, 0
	}
	dt := now.Sub(prev.at).Seconds()
	if dt <= 0 {
		return 0, 0
	}
	deltaRead := currentRead - prev.bytesRead
	deltaWritten := currentWritten - prev.bytesWritten
	if deltaRead < 0 {
		deltaRead = 0
	}
	if deltaWritten < 0 {
		deltaWritten = 0
	}
	return float64(deltaRead) / dt, float64(deltaWritten) / dt
}

func (e *Engine) forgetSpeed(ih string) {
	e.speedMu.Lock()
	delete(e.speeds, ih)
	e.speedMu.Unlock()
}

package engine

import (
	"io"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
)

// streamReadahead is how far a stream reader pulls pieces ahead of the
// playhead. Large enough to ride out swarm hiccups, small enough that a
// seek does not waste minutes of download.
const streamReadahead = 8 << 20

// FileInfo describes one file inside a torrent.
type FileInfo struct {
	Index          int    `json:"index"`
	Path           string `json:"path"`
	Length         int64  `json:"length"`
	BytesCompleted int64  `json:"bytesCompleted"`
}

// Status is a point-in-time snapshot of a handle's transfer state.
type Status struct {
	InfoHash      string
	Name          string
	FileName      string
	FileIndex     int
	FileLength    int64
	Downloaded    int64
	Progress      float64 // 0..1 of the selected file
	DownloadSpeed float64 // bytes/sec
	UploadSpeed   float64
	Peers         int
}

// Handle is the streamable view of one joined torrent. Implementations
// must be safe for concurrent use.
type Handle interface {
	InfoHash() string
	Name() string
	Files() []FileInfo

	// SelectFile picks the playable file, steers piece priorities toward
	// it, and returns its description. Subsequent calls return the same
	// selection. Returns ErrNoVideoFile when the torrent holds no files.
	SelectFile() (FileInfo, error)

	// NewReader opens a sequential-priority reader over the selected file.
	NewReader() (io.ReadSeekCloser, error)

	// ContiguousAhead reports how many bytes are fully downloaded in an
	// unbroken run starting at the given offset of the selected file.
	ContiguousAhead(from int64) int64

	Status() Status
	Drop()
}

type torrentHandle struct {
	eng *Engine
	t   *torrent.Torrent

	selOnce sync.Once
	selFile *torrent.File
	selIdx  int
	selErr  error
}

func (h *torrentHandle) InfoHash() string { return h.t.InfoHash().HexString() }
func (h *torrentHandle) Name() string     { return h.t.Name() }

func (h *torrentHandle) Files() []FileInfo {
	files := h.t.Files()
	out := make([]FileInfo, 0, len(files))
	for i, f := range files {
		out = append(out, FileInfo{
			Index:          i,
			Path:           f.Path(),
			Length:         f.Length(),
			BytesCompleted: f.BytesCompleted(),
		})
	}
	return out
}

func (h *torrentHandle) SelectFile() (FileInfo, error) {
	h.selOnce.Do(func() {
		idx := bestPlayableIndex(h.Files())
		if idx < 0 {
			h.selErr = ErrNoVideoFile
			return
		}
		f := h.t.Files()[idx]
		// Starve every other file so the swarm budget goes to the video.
		for i, other := range h.t.Files() {
			if i == idx {
				other.SetPriority(torrent.PiecePriorityNormal)
			} else {
				other.SetPriority(torrent.PiecePriorityNone)
			}
		}
		h.selFile, h.selIdx = f, idx
	})
	if h.selErr != nil {
		return FileInfo{}, h.selErr
	}
	return FileInfo{
		Index:          h.selIdx,
		Path:           h.selFile.Path(),
		Length:         h.selFile.Length(),
		BytesCompleted: h.selFile.BytesCompleted(),
	}, nil
}

func (h *torrentHandle) NewReader() (io.ReadSeekCloser, error) {
	if _, err := h.SelectFile(); err != nil {
		return nil, err
	}
	r := h.selFile.NewReader()
	r.SetResponsive()
	r.SetReadahead(streamReadahead)
	return r, nil
}

func (h *torrentHandle) Status() Status {
	st := h.t.Stats()
	down, up := h.eng.sampleSpeed(h.InfoHash(), st, time.Now())

	s := Status{
		InfoHash:      h.InfoHash(),
		Name:          h.t.Name(),
		Peers:         st.ActivePeers,
		DownloadSpeed: down,
		UploadSpeed:   up,
	}
	if f, err := h.SelectFile(); err == nil {
		s.FileName = f.Path
		s.FileIndex = f.Index
		s.FileLength = f.Length
		s.Downloaded = h.selFile.BytesCompleted()
		if f.Length > 0 {
			s.Progress = float64(s.Downloaded) / float64(f.Length)
		}
	}
	return s
}

// ContiguousAhead walks pieces from the offset, piece-exact, and stops at
// the first gap. Partial head and tail pieces count only their in-file
// spans.
func (h *torrentHandle) ContiguousAhead(from int64) int64 {
	if _, err := h.SelectFile(); err != nil {
		return 0
	}
	info := h.t.Info()
	if info == nil {
		return 0
	}
	f := h.selFile
	fileLen := f.Length()
	if from < 0 || from >= fileLen {
		return 0
	}
	pieceLen := info.PieceLength
	if pieceLen <= 0 {
		return 0
	}

	startGlobal := f.Offset() + from
	endGlobal := f.Offset() + fileLen

	startPiece := int(startGlobal / pieceLen)
	if h.t.PieceBytesMissing(startPiece) != 0 {
		return 0
	}

	segEnd := (int64(startPiece) + 1) * pieceLen
	if segEnd > endGlobal {
		segEnd = endGlobal
	}
	ahead := segEnd - startGlobal

	for p := startPiece + 1; int64(p)*pieceLen < endGlobal; p++ {
		if h.t.PieceBytesMissing(p) != 0 {
			break
		}
		ps := int64(p) * pieceLen
		pe := ps + pieceLen
		if pe > endGlobal {
			pe = endGlobal
		}
		ahead += pe - ps
	}
	return ahead
}

func (h *torrentHandle) Drop() {
	ih := h.InfoHash()
	h.t.Drop()
	h.eng.forgetSpeed(ih)
}

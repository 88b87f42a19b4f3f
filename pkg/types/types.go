package types

// Candidate is one discovery result as returned by /api/search.
// Size is a human label ("1.4 GB") because the upstream indexers
// disagree on units; callers wanting bytes should resolve the torrent.
type Candidate struct {
	Name     string `json:"name"`
	InfoHash string `json:"infoHash,omitempty"`
	Magnet   string `json:"magnet"`
	Seeders  int    `json:"seeders"`
	Leechers int    `json:"leechers"`
	Size     string `json:"size,omitempty"`
	Source   string `json:"source"`
}

// TorrentFile is one file of a session's torrent as listed in the
// status payload.
type TorrentFile struct {
	Index          int    `json:"index"`
	Path           string `json:"path"`
	Length         int64  `json:"length"`
	BytesCompleted int64  `json:"bytesCompleted"`
	Selected       bool   `json:"selected"`
}

// SessionStatus is the wire shape of /api/stream/{infoHash}/status.
type SessionStatus struct {
	InfoHash      string  `json:"infoHash"`
	Name          string  `json:"name"`
	FileName      string  `json:"fileName"`
	FileLength    int64   `json:"fileLength"`
	Progress      float64 `json:"progress"`
	Downloaded    int64   `json:"downloaded"`
	DownloadSpeed float64 `json:"downloadSpeed"`
	UploadSpeed   float64 `json:"uploadSpeed"`
	Peers         int     `json:"peers"`
	TimeRemaining float64 `json:"timeRemaining,omitempty"`
	StreamURL     string  `json:"streamUrl"`
	CreatedAt     string  `json:"createdAt"`
	LastAccessAt  string  `json:"lastAccessAt"`

	Files []TorrentFile `json:"files"`
}

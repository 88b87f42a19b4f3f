package engine

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

var (
	// ErrMetadataTimeout means the swarm produced no metadata before the
	// configured deadline. The torrent is dropped before this is returned.
	ErrMetadataTimeout = errors.New("timeout waiting for torrent metadata")

	// ErrNoVideoFile means metadata arrived but no file carries a
	// recognized video extension.
	ErrNoVideoFile = errors.New("no video file found in torrent")

	// ErrTorrentProtocol wraps failures from the underlying torrent client.
	ErrTorrentProtocol = errors.New("torrent protocol error")
)

// ClientGone reports whether err is the ordinary noise of an HTTP client
// disappearing mid-stream (seek, tab close, player teardown).
func ClientGone(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "broken pipe") || strings.Contains(s, "reset by peer")
}

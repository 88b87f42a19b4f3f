package engine

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

var extraHTTPTrackers = []string{
	"http://tracker.opentrackr.org:1337/announce",
	"https://tracker.opentrackr.org:443/announce",
	"https://opentracker.i2p.rocks:443/announce",
}

var extraUDPTrackers = []string{
	"udp://tracker.opentrackr.org:1337/announce",
	"udp://open.stealth.si:80/announce",
	"udp://tracker.torrent.eu.org:451/announce",
	"udp://exodus.desync.com:6969/announce",
	"udp://open.demonii.com:1337/announce",
	"udp://tracker.openbittorrent.com:6969/announce",
	"udp://tracker.coppersurfer.tk:6969/announce",
	"udp://tracker.leechers-paradise.org:6969/announce",
}

// trackerTiers returns the extra announce tiers to attach to every joined
// torrent, filtered by mode (all|http|udp|none).
func trackerTiers(mode string) [][]string {
	var tiers [][]string
	switch strings.ToLower(mode) {
	case "none":
		return tiers
	case "http":
		for _, s := range extraHTTPTrackers {
			tiers = append(tiers, []string{s})
		}
	case "udp":
		for _, s := range extraUDPTrackers {
			tiers = append(tiers, []string{s})
		}
	default:
		for _, s := range extraHTTPTrackers {
			tiers = append(tiers, []string{s})
		}
		for _, s := range extraUDPTrackers {
			tiers = append(tiers, []string{s})
		}
	}
	return tiers
}

// sanitizeMagnet rewrites the tr= params of a magnet URI according to mode.
// Non-magnet input passes through untouched.
func sanitizeMagnet(raw, mode string) string {
	if !strings.HasPrefix(raw, "magnet:") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" || mode == "all" {
		return raw
	}
	q := u.Query()
	orig := q["tr"]
	q.Del("tr")
	for _, tr := range orig {
		trL := strings.ToLower(tr)
		switch mode {
		case "udp":
			if strings.HasPrefix(trL, "udp://") {
				q.Add("tr", tr)
			}
		case "http":
			if strings.HasPrefix(trL, "http://") || strings.HasPrefix(trL, "https://") {
				q.Add("tr", tr)
			}
		case "none":
			// drop all
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NormalizeSource accepts a magnet URI or a bare info hash (40-char hex or
// 32-char base32) and returns a magnet URI.
func NormalizeSource(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("empty magnet or info hash")
	}
	if strings.HasPrefix(id, "magnet:") {
		if _, err := metainfo.ParseMagnetURI(id); err != nil {
			return "", fmt.Errorf("bad magnet uri: %w", err)
		}
		return id, nil
	}
	if isHexHash(id) || len(id) == 32 {
		return "magnet:?xt=urn:btih:" + strings.ToLower(id), nil
	}
	return "", fmt.Errorf("unrecognized torrent id: %q", id)
}

// InfoHashFromSource extracts the canonical lowercase hex info hash from a
// magnet URI or bare hash, when it can be known without metadata.
func InfoHashFromSource(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "magnet:") {
		if m, err := metainfo.ParseMagnetURI(id); err == nil && m.InfoHash != (metainfo.Hash{}) {
			return m.InfoHash.HexString(), true
		}
		return "", false
	}
	if isHexHash(id) {
		return strings.ToLower(id), true
	}
	return "", false
}

func isHexHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, r := range s {
		ok := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
		if !ok {
			return false
		}
	}
	return true
}

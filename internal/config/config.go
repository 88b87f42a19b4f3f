package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	listenAddr    = ":3001"
	publicBaseURL = ""
	dataRoot      = "./stream-cache"

	waitMetadata  = 45 * time.Second
	trackersMode  = "all" // all|http|udp|none
	maxConns      = 100
	reapInterval  = 5 * time.Minute
	idleTimeout   = 15 * time.Minute
	searchTimeout = 12 * time.Second

	indexerURL    = ""
	indexerAPIKey = ""
	ytsMirrors    = []string{
		"https://yts.mx",
		"https://yts.sb",
		"https://yts.torrentbay.net",
	}
	x1337Mirrors = []string{
		"https://1337x.to",
		"https://1337x.tw",
		"https://1337x.st",
		"https://x1337x.cc",
	}

	pgDSN = ""

	// logging
	logFilePath   = ""
	logAllowRegex = `^\[(init|boot|http|join|stream|search|reaper|progress|panic|db)\]`
	logDenyRegex  = `FlushFileBuffers|fsync|The handle is invalid|Access is denied|Permission denied`
	logDedupWin   = 3 * time.Second
)

func Load() {
	listenAddr = getenv("LISTEN", listenAddr)
	publicBaseURL = strings.TrimRight(getenv("PUBLIC_BASE_URL", publicBaseURL), "/")

	if v := getenv("TORRENT_DATA_ROOT", ""); v != "" {
		dataRoot = v
	}
	_ = os.MkdirAll(dataRoot, 0o755)

	waitMetadata = getenvDuration("WAIT_METADATA", waitMetadata)
	trackersMode = strings.ToLower(getenv("TRACKERS_MODE", trackersMode))
	maxConns = int(getenvInt64("MAX_CONNS", int64(maxConns)))

	reapInterval = getenvDuration("REAP_INTERVAL", reapInterval)
	idleTimeout = getenvDuration("IDLE_TIMEOUT", idleTimeout)
	searchTimeout = getenvDuration("SEARCH_TIMEOUT", searchTimeout)

	indexerURL = strings.TrimRight(getenv("INDEXER_URL", ""), "/")
	indexerAPIKey = getenv("INDEXER_API_KEY", "")
	if v := getenv("YTS_MIRRORS", ""); v != "" {
		ytsMirrors = splitList(v)
	}
	if v := getenv("X1337_MIRRORS", ""); v != "" {
		x1337Mirrors = splitList(v)
	}

	pgDSN = getenv("PG_DSN", "")

	logFilePath = getenv("LOG_FILE", logFilePath)
	logAllowRegex = getenv("LOG_ALLOW", logAllowRegex)
	logDenyRegex = getenv("LOG_DENY", logDenyRegex)
	logDedupWin = getenvDuration("LOG_DEDUP_WINDOW", logDedupWin)
}

func ListenAddr() string            { return listenAddr }
func PublicBaseURL() string         { return publicBaseURL }
func DataRoot() string              { return dataRoot }
func WaitMetadata() time.Duration   { return waitMetadata }
func TrackersMode() string          { return trackersMode }
func MaxConns() int                 { return maxConns }
func ReapInterval() time.Duration   { return reapInterval }
func IdleTimeout() time.Duration    { return idleTimeout }
func SearchTimeout() time.Duration  { return searchTimeout }
func IndexerURL() string            { return indexerURL }
func IndexerAPIKey() string         { return indexerAPIKey }
func YTSMirrors() []string          { return ytsMirrors }
func X1337Mirrors() []string        { return x1337Mirrors }
func PostgresDSN() string           { return pgDSN }
func LogFilePath() string           { return logFilePath }
func LogAllowRegex() string         { return logAllowRegex }
func LogDenyRegex() string          { return logDenyRegex }
func LogDedupWindow() time.Duration { return logDedupWin }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.TrimRight(s, "/"))
		}
	}
	return out
}

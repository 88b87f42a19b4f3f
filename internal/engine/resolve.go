package engine

import (
	"mime"
	"path/filepath"
	"strings"
)

// videoExts are the container formats browsers and players can be handed
// directly. Order does not matter; selection is by size.
var videoExts = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".webm": true,
	".mov":  true,
	".m4v":  true,
	".wmv":  true,
}

// bestPlayableIndex picks the largest file with a video extension. When no
// file matches, it falls back to the largest file overall so that oddly
// named rips still play. Returns -1 only for an empty list. Ties keep the
// earliest file, so the pick is stable across calls.
func bestPlayableIndex(files []FileInfo) int {
	largest, largestVideo := -1, -1
	for i, f := range files {
		if largest == -1 || f.Length > files[largest].Length {
			largest = i
		}
		if !IsVideoPath(f.Path) {
			continue
		}
		if largestVideo == -1 || f.Length > files[largestVideo].Length {
			largestVideo = i
		}
	}
	if largestVideo != -1 {
		return largestVideo
	}
	return largest
}

// IsVideoPath reports whether the path carries a recognized video extension.
func IsVideoPath(p string) bool {
	return videoExts[strings.ToLower(filepath.Ext(p))]
}

// ContentTypeForName maps a file name to a MIME type, defaulting to
// octet-stream. mkv has no registered type on most systems.
func ContentTypeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".mkv" {
		return "video/x-matroska"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// SafeDownloadName strips filesystem-hostile characters for use in a
// Content-Disposition header.
func SafeDownloadName(name string) string {
	repl := strings.NewReplacer("<", "", ">", "", ":", "", `"`, "", "/", "", `\`, "", "|", "", "?", "", "*", "")
	n := repl.Replace(name)
	n = strings.Trim(n, " .")
	if n == "" {
		n = "video"
	}
	if len(n) > 120 {
		n = n[:120]
	}
	return n
}

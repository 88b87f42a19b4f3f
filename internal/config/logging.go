package config

import (
	"io"
	"log"
	"os"

	"cinestream/internal/logx"
)

// SetupLogging routes the stdlib logger through the logx filter and,
// when LOG_FILE is set, tees output to that file as well.
func SetupLogging() {
	var sinks []io.Writer
	sinks = append(sinks, os.Stderr)

	if p := LogFilePath(); p != "" {
		f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Printf("[init] log file %s unavailable: %v", p, err)
		} else {
			sinks = append(sinks, f)
		}
	}

	w := logx.NewWriter(io.MultiWriter(sinks...), logx.Options{
		AllowRegex:  LogAllowRegex(),
		DenyRegex:   LogDenyRegex(),
		DedupWindow: LogDedupWindow(),
	})
	log.SetOutput(w)
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
}

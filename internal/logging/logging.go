// ABOUTME: Global zerolog configuration
// ABOUTME: Maps a level name and optional log file onto the package-level logger
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Configure sets the global logger.
//
// Valid levels are "none", "error", "warn", "info" and "debug". With an
// empty file, human-readable output goes to stderr; otherwise JSON lines
// are written to file, truncating it. The returned closer is nil when no
// file was opened.
func Configure(level, file string) (io.Closer, error) {
	var lvl zerolog.Level
	switch level {
	case "none":
		zerolog.SetGlobalLevel(zerolog.Disabled)
		log.Logger = zerolog.New(io.Discard)
		return nil, nil
	case "error":
		lvl = zerolog.ErrorLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "info":
		lvl = zerolog.InfoLevel
	case "debug":
		lvl = zerolog.DebugLevel
	default:
		return nil, fmt.Errorf("unexpected log level %q", level)
	}
	zerolog.SetGlobalLevel(lvl)

	if file == "" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
			With().Timestamp().Logger()
		return nil, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return f, nil
}

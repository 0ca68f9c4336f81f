package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a zerolog logger writing to w. format is "json" or "console";
// unknown levels fall back to info.
func New(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// Package logging builds the charm logger shared by the CLI and the TUI.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New returns a logger at the given level writing to w.
// Unknown levels fall back to info.
func New(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}

	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		Prefix:          "csvpipe",
	})
}

// Open returns a logger for a shell. With a path, entries are appended to
// that file; otherwise they go to fallback. The returned close func is
// always safe to call.
func Open(path, level string, fallback io.Writer) (*log.Logger, func() error, error) {
	if path == "" {
		return New(fallback, level), func() error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}

	logger := New(f, level)
	logger.SetFormatter(log.LogfmtFormatter)
	return logger, f.Close, nil
}

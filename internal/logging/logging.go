package logging

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Setup configures the process-wide default logger. Unknown levels fall back to info.
func Setup(level string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Prefix:          "minddock",
	})
	log.SetDefault(logger)
	return logger
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

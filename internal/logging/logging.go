package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger: console output always, plus an append-only
// log file when a log directory is configured.
func New(logsDir string) (zerolog.Logger, error) {
	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}}

	if logsDir != "" {
		if err := os.MkdirAll(logsDir, 0o755); err != nil {
			return zerolog.Logger{}, err
		}
		file, err := os.OpenFile(filepath.Join(logsDir, "prozorro.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Logger{}, err
		}
		writers = append(writers, file)
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger(), nil
}

// Package logging configures the background debug log. The TUI owns
// stdout and stderr, so the logger writes to a file or nowhere.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Open returns a file-backed logger, or a disabled one when path is
// empty. Close the returned file when the program exits.
func Open(path string) (zerolog.Logger, *os.File, error) {
	if path == "" {
		return zerolog.Nop(), nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("mkdir log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}
	log := zerolog.New(f).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	return log, f, nil
}

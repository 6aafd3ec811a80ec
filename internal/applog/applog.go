// Package applog wires up the root logger every command and pass shares:
// structured, leveled logging via github.com/hashicorp/go-hclog, with a
// per-run correlation ID attached so log lines from one invocation can be
// grouped.
package applog

import (
	"os"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// Logger bundles the root hclog.Logger with the correlation ID minted for
// this process, so callers can log the ID once at startup and otherwise
// use the Logger like a normal hclog.Logger.
type Logger struct {
	hclog.Logger
	RunID string
}

// New builds the root logger at the given level ("trace", "debug", "info",
// "warn", "error"). An invalid or empty level falls back to hclog's
// default, matching hclog.LevelFromString's own documented behavior.
func New(levelName string) *Logger {
	l := hclog.New(&hclog.LoggerOptions{
		Name:            "hornflow",
		Level:           hclog.LevelFromString(levelName),
		Output:          os.Stderr,
		IncludeLocation: false,
	})
	runID := uuid.NewString()
	return &Logger{
		Logger: l.With("run_id", runID),
		RunID:  runID,
	}
}

// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Supported output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config controls logger construction.
type Config struct {
	// Level is a zerolog level name (debug, info, warn, error).
	// Default: info.
	Level string

	// Format is "console" or "json". Empty picks console on a terminal
	// and json otherwise.
	Format string

	// Output is where log lines go. Default: os.Stderr.
	Output io.Writer
}

var (
	mu   sync.RWMutex
	base = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Init replaces the base logger. Safe to call more than once.
func Init(cfg Config) error {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if strings.TrimSpace(cfg.Level) != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
		if err != nil {
			return err
		}
		level = parsed
	}

	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" {
		format = FormatJSON
		if isTerminal(out) {
			format = FormatConsole
		}
	}

	var w io.Writer = out
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()

	mu.Lock()
	base = logger
	mu.Unlock()
	return nil
}

// Logger returns the base logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// Discard silences all logging. Used by tests.
func Discard() {
	mu.Lock()
	base = zerolog.Nop()
	mu.Unlock()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

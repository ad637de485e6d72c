// Package watcher reloads the action registry when its source directory changes.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dbddv01/MicroGptSequence/internal/actions"
	"github.com/dbddv01/MicroGptSequence/internal/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ErrAlreadyRunning is returned by Run when the watcher is already active.
var ErrAlreadyRunning = errors.New("watcher already running")

// RegistryLoader builds a registry from a directory.
type RegistryLoader interface {
	Load(dir string) (*actions.Registry, *actions.LoadReport, error)
}

// Config contains watcher configuration.
type Config struct {
	// Debounce is how long the directory must be quiet before a reload.
	// Default: 200 milliseconds.
	Debounce time.Duration

	// OnReload is called after every reload attempt.
	OnReload func(report *actions.LoadReport, err error)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{Debounce: 200 * time.Millisecond}
}

// Stats counts reload attempts.
type Stats struct {
	Reloads    int64
	Failures   int64
	LastReload *time.Time
}

// Watcher publishes a fresh registry into a Store after each burst of
// changes to the action directory.
type Watcher struct {
	dir    string
	loader RegistryLoader
	store  *actions.Store
	config Config
	logger zerolog.Logger

	mu      sync.Mutex
	running bool
	stats   Stats
}

// New creates a watcher for dir.
func New(dir string, loader RegistryLoader, store *actions.Store, config Config) *Watcher {
	if config.Debounce <= 0 {
		config.Debounce = DefaultConfig().Debounce
	}
	return &Watcher{
		dir:    filepath.Clean(dir),
		loader: loader,
		store:  store,
		config: config,
		logger: logging.Component("watcher"),
	}
}

// Run watches until ctx is cancelled or the directory disappears. Losing the
// directory is logged and returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.logger.Info().
		Str("dir", w.dir).
		Dur("debounce", w.config.Debounce).
		Msg("watching actions")

	timer := time.NewTimer(w.config.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) == w.dir && event.Has(fsnotify.Remove|fsnotify.Rename) {
				if !w.dirExists() {
					w.logger.Warn().Str("dir", w.dir).Msg("actions directory removed, watcher exiting")
					return nil
				}
				continue
			}
			if !actions.IsSourceFile(event.Name) || !event.Has(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) {
				continue
			}
			w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("change detected")
			timer.Reset(w.config.Debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watch error")

		case <-timer.C:
			if !w.dirExists() {
				w.logger.Warn().Str("dir", w.dir).Msg("actions directory removed, watcher exiting")
				return nil
			}
			_, _ = w.Reload()
		}
	}
}

// Reload loads the directory and swaps the result into the store. On failure
// the current registry stays in place.
func (w *Watcher) Reload() (*actions.LoadReport, error) {
	registry, report, err := w.loader.Load(w.dir)

	now := time.Now().UTC()
	w.mu.Lock()
	w.stats.LastReload = &now
	if err != nil {
		w.stats.Failures++
	} else {
		w.stats.Reloads++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error().Err(err).Msg("reload failed, keeping current actions")
	} else {
		w.store.Swap(registry)
		w.logger.Info().
			Int("loaded", len(report.Loaded)).
			Int("omitted", len(report.Omitted)).
			Msg("actions reloaded")
	}

	if w.config.OnReload != nil {
		w.config.OnReload(report, err)
	}
	return report, err
}

// Stats returns a snapshot of reload counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) dirExists() bool {
	info, err := os.Stat(w.dir)
	return err == nil && info.IsDir()
}

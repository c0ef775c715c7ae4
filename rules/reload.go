package rules

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader watches a rule file for changes and triggers hot reload.
type Reloader struct {
	watcher *fsnotify.Watcher
	set     *Set
	log     *slog.Logger
}

// NewReloader creates a file watcher for the set's rule file.
func NewReloader(set *Set, log *slog.Logger) (*Reloader, error) {
	if set.path == "" {
		return nil, fmt.Errorf("rules: no file to watch")
	}
	if _, err := os.Stat(set.path); err != nil {
		return nil, fmt.Errorf("rules: stat %s: %w", set.path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("rules: create watcher: %w", err)
	}
	if err := watcher.Add(set.path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("rules: watch %s: %w", set.path, err)
	}
	return &Reloader{watcher: watcher, set: set, log: log}, nil
}

// Run watches for file changes and reloads. Blocks until ctx is
// cancelled. Writes are debounced so editors that write in several
// steps trigger a single reload.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					if err := r.set.Reload(); err != nil {
						r.log.Error("rules reload failed", "error", err)
					} else {
						r.log.Info("rules reloaded")
					}
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Error("rules watcher error", "error", err)
		}
	}
}

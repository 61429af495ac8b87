// Package watch re-imports export roots when their contents change on
// disk. A re-import is the same source-scoped delete-then-insert the
// CLI add command performs, so a half-written export directory is
// never partially merged: the merge only runs after the debounce timer
// expires.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/mediastash/mediastash/internal/store"
)

// Options configures a watch session.
type Options struct {
	// Debounce is how long a source must stay quiet before it is
	// re-imported.
	Debounce time.Duration
	// Window is the context window passed to the import.
	Window int
}

// Run watches every given export root until ctx is cancelled.
func Run(ctx context.Context, log zerolog.Logger, st *store.Store, roots []string, opts Options) error {
	if opts.Debounce <= 0 {
		opts.Debounce = 5 * time.Second
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	cleaned := make([]string, 0, len(roots))
	for _, root := range roots {
		root = filepath.Clean(root)
		if err := watcher.Add(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
		cleaned = append(cleaned, root)
	}

	log.Info().Strs("roots", cleaned).Dur("debounce", opts.Debounce).Msg("Watching sources")

	var mu sync.Mutex
	timers := make(map[string]*time.Timer)

	reimport := func(root string) {
		stats, err := st.AddSource(ctx, root, opts.Window)
		if err != nil {
			log.Warn().Err(err).Str("source", root).Msg("Re-import failed")
			return
		}
		log.Info().
			Str("source", root).
			Int("conversations", stats.Conversations).
			Int("media", stats.Media).
			Msg("Re-imported source")
	}

	trigger := func(root string) {
		mu.Lock()
		defer mu.Unlock()
		if timer, ok := timers[root]; ok {
			timer.Stop()
		}
		timers[root] = time.AfterFunc(opts.Debounce, func() { reimport(root) })
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, timer := range timers {
				timer.Stop()
			}
			mu.Unlock()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if root, ok := owningRoot(cleaned, event.Name); ok {
				trigger(root)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watch error")
		}
	}
}

// owningRoot maps an event path back to the watched root it belongs to.
func owningRoot(roots []string, name string) (string, bool) {
	name = filepath.Clean(name)
	for _, root := range roots {
		if name == root || strings.HasPrefix(name, root+string(filepath.Separator)) {
			return root, true
		}
	}
	return "", false
}

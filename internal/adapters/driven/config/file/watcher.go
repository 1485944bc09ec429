package file

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// PromptWatcher reloads a PromptStore whenever a template file in the
// prompt directory changes.
type PromptWatcher struct {
	store    driven.PromptStore
	dir      string
	reloaded func(name string)
}

// WatcherOption configures a PromptWatcher.
type WatcherOption func(*PromptWatcher)

// WithReloadHook registers fn to run after each reload with the template name.
func WithReloadHook(fn func(name string)) WatcherOption {
	return func(w *PromptWatcher) {
		w.reloaded = fn
	}
}

// NewPromptWatcher creates a watcher for store's directory.
func NewPromptWatcher(store *PromptStore, opts ...WatcherOption) *PromptWatcher {
	w := &PromptWatcher{store: store, dir: store.Dir()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done. The prompt directory must exist; call
// Load on the store once beforehand to create it.
func (w *PromptWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	logger.Debug("watching prompt templates in %s", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if name, relevant := templateName(event); relevant {
				w.store.Reload()
				logger.Info("prompt template %s changed (%s), cache cleared", name, event.Op)
				if w.reloaded != nil {
					w.reloaded(name)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("prompt watcher error: %v", err)
		}
	}
}

// templateName reports whether the event touches a .txt template.
func templateName(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	base := filepath.Base(event.Name)
	if filepath.Ext(base) != ".txt" {
		return "", false
	}
	return strings.TrimSuffix(base, ".txt"), true
}

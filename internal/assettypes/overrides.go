package assettypes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// LoadOverrides reads a JSON map of code to asset type token.
func LoadOverrides(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	overrides := make(map[string]string)
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}
	return overrides, nil
}

// WatchOverrides applies the overrides file once and re-applies it whenever
// it changes, until the context is cancelled. A missing file at startup is
// not fatal; it may appear later.
func WatchOverrides(ctx context.Context, path string, registry *Registry, logger *slog.Logger) error {
	if overrides, err := LoadOverrides(path); err != nil {
		logger.Warn("overrides load failed", "path", path, "error", err)
	} else {
		registry.ApplyOverrides(overrides)
		logger.Info("overrides applied", "path", path, "count", len(overrides))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files, which drops the watch on
	// the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch overrides dir: %w", err)
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			overrides, err := LoadOverrides(path)
			if err != nil {
				logger.Warn("overrides reload failed", "path", path, "error", err)
				continue
			}
			registry.ApplyOverrides(overrides)
			logger.Info("overrides reloaded", "path", path, "count", len(overrides))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("overrides watcher error", "error", err)
		}
	}
}

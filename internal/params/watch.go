// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package params

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce groups the burst of events one save produces.
const DefaultDebounce = 150 * time.Millisecond

// Watch reports edits made to parameter files by other processes (an editor,
// a second thinkchat). onChange receives the model key of each changed file
// after the writes to it have been quiet for debounce. Watch blocks until ctx
// is done.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onChange func(key string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	pending := make(map[string]time.Time) // key -> last change time

	ticker := time.NewTicker(debounce / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(event.Name)
			// Skip the temp files of atomic writes.
			if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
				continue
			}
			pending[strings.TrimSuffix(name, ".json")] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("params watcher error", "error", err)

		case <-ticker.C:
			now := time.Now()
			var ready []string

			for key, changed := range pending {
				if now.Sub(changed) >= debounce {
					ready = append(ready, key)
					delete(pending, key)
				}
			}
			for _, key := range ready {
				onChange(key)
			}
		}
	}
}

// Package watcher notifies the monitor when the policy list files change
// on disk, so CLI edits take effect without waiting for a restart.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounce absorbs the write bursts editors and atomic-save tools produce
const debounce = 500 * time.Millisecond

// Watch observes the given files and calls onChange with the path of any
// that is written or replaced. It watches the containing directories, not
// the files themselves, so rename-over-replace (the usual atomic-save
// pattern) is seen as a create event. Blocks until the context is
// cancelled.
func Watch(ctx context.Context, paths []string, log zerolog.Logger, onChange func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	log = log.With().Str("component", "watcher").Logger()

	watchedDirs := make(map[string]bool)
	fileSet := make(map[string]bool)

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		dir := filepath.Dir(absPath)
		if !watchedDirs[dir] {
			if err := w.Add(dir); err != nil {
				log.Warn().Err(err).Str("dir", dir).Msg("failed to watch directory")
				continue
			}
			watchedDirs[dir] = true
		}

		fileSet[absPath] = true
		log.Debug().Str("path", absPath).Msg("watching file for changes")
	}

	debounceTimers := make(map[string]*time.Timer)
	defer func() {
		for _, timer := range debounceTimers {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath, err := filepath.Abs(event.Name)
			if err != nil || !fileSet[absPath] {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if timer, exists := debounceTimers[absPath]; exists {
					timer.Stop()
				}
				debounceTimers[absPath] = time.AfterFunc(debounce, func() {
					log.Info().Str("path", absPath).Msg("file changed")
					onChange(absPath)
				})
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

package config

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch watches the config file at path (or ./config.yaml when empty) for
// writes and calls onReload with the freshly reloaded Config after each one.
// A write event fires twice on some editors (truncate + rename), so writes
// within debounce of the last one are coalesced into a single reload.
//
// onReload runs on the watcher's own goroutine; callers that touch shared
// state (the admission controller's default limits, the scanner pipeline)
// must do their own synchronization, as spec.md's live-reconfiguration path
// already does via the controller's internal mutex.
func Watch(path string, logger *zap.Logger, onReload func(*Config)) (func() error, error) {
	watched := path
	if watched == "" {
		watched = "./config.yaml"
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(watched); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		var last time.Time
		const debounce = 300 * time.Millisecond
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if time.Since(last) < debounce {
					continue
				}
				last = time.Now()

				cfg, err := Load(path)
				if err != nil {
					logger.Warn("config reload failed, keeping previous configuration", zap.Error(err))
					continue
				}
				logger.Info("configuration reloaded from disk", zap.String("path", watched))
				onReload(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", zap.Error(err))
			}
		}
	}()

	return watcher.Close, nil
}

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounceDelay = 500 * time.Millisecond

// ReloadFunc receives every configuration that loaded and validated after a
// file change. A broken file never reaches it.
type ReloadFunc func(*Config)

// reloader coalesces bursts of file events into a single Load.
type reloader struct {
	path     string
	delay    time.Duration
	onReload ReloadFunc

	mu    sync.Mutex
	timer *time.Timer
}

func (r *reloader) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.delay, r.reload)
}

func (r *reloader) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
}

func (r *reloader) reload() {
	cfg, _, err := Load(r.path, false)
	if err != nil {
		slog.Error("Config reload rejected, keeping current rules and groups", "path", r.path, "error", err)
		return
	}
	r.onReload(cfg)
	slog.Info("Config reloaded", "path", r.path, "groups", len(cfg.Groups), "rule_categories", len(cfg.Rules))
}

// relevant reports whether an event touches the watched file. Editors that
// save through a rename show up as Create on the target path.
func (r *reloader) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != r.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// StartWatcher blocks until ctx is done, calling onReload with each new
// valid configuration. The parent directory is watched so atomic replaces
// are seen.
func StartWatcher(ctx context.Context, configPath string, onReload ReloadFunc, debounceDelay time.Duration) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("Failed to create config file watcher", "error", err)
		return
	}
	defer watcher.Close()

	r := &reloader{
		path:     filepath.Clean(configPath),
		delay:    debounceDelay,
		onReload: onReload,
	}
	if r.delay <= 0 {
		r.delay = defaultDebounceDelay
	}

	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		slog.Error("Failed to watch config directory", "path", dir, "error", err)
		return
	}
	slog.Info("Watching config file", "path", r.path, "debounce", r.delay)

	for {
		select {
		case <-ctx.Done():
			r.stop()
			slog.Info("Stopping configuration watcher")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				slog.Warn("Watcher events channel closed, stopping watcher")
				return
			}
			if r.relevant(event) {
				r.schedule()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				slog.Warn("Watcher errors channel closed, stopping watcher")
				return
			}
			slog.Error("Error watching config file", "error", err)
		}
	}
}

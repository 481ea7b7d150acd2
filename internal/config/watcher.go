package config

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"

	"auditcore/pkg/errs"
)

// Watcher watches a JSON config file on disk and applies external changes
// to a Core as they land (spec §4.15 "optional hot-reload watcher").
type Watcher struct {
	path string
	core *Core
	log  *slog.Logger
}

// NewWatcher constructs a Watcher for path, backed by core.
func NewWatcher(path string, core *Core, log *slog.Logger) *Watcher {
	return &Watcher{path: path, core: core, log: log}
}

// Run blocks watching for file changes until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(errs.CodeConfig, "create fsnotify watcher failed", err)
	}
	defer fw.Close()

	if err := fw.Add(w.path); err != nil {
		return errs.Wrap(errs.CodeConfig, "watch config file failed", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if w.log != nil {
				w.log.Error("config watcher error", "err", err)
			}
		}
	}
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if w.log != nil {
			w.log.Error("read config file failed", "err", err)
		}
		return
	}
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		if w.log != nil {
			w.log.Error("parse config file failed", "err", err)
		}
		return
	}
	for path, value := range flat {
		_ = w.core.Update(path, value, "hot-reload", "external config file change")
	}
}

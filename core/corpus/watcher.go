package corpus

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/trezcool/insights/core"
)

// Triggerer is notified of every relevant change under the watched root.
type Triggerer interface {
	Trigger()
}

// Watcher triggers rebuilds on file system changes under the ingestion root.
type Watcher struct {
	root    string
	trigger Triggerer
	logger  core.Logger
	fsw     *fsnotify.Watcher
}

// NewWatcher watches root and all its sub directories.
func NewWatcher(root string, trigger Triggerer, logger core.Logger) (*Watcher, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating data root")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fs watcher")
	}
	w := &Watcher{root: root, trigger: trigger, logger: logger, fsw: fsw}
	if err = w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && Skipped(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return errors.Wrapf(err, "watching %s", path)
		}
		return nil
	})
}

// Run forwards change events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if Skipped(filepath.Base(ev.Name)) {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err = w.addTree(ev.Name); err != nil {
				w.logger.Warn("watcher: cannot watch new directory", err)
			}
		}
	}
	w.trigger.Trigger()
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

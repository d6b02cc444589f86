// Package watch re-runs a finite job whenever its input files change.
//
// Changes are debounced: a burst of writes triggers one run once the
// directory has been quiet for Options.Debounce. Each run is independent
// and starts from a clean state.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/bimmerbailey/logsheet/internal/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Path is a directory or a single file.
	Path string

	Debounce time.Duration

	// Ignore reports events that must not trigger a run, such as the
	// workbook being written into the watched directory.
	Ignore func(path string) bool

	// Run performs one job. An error is logged and watching continues.
	Run func(ctx context.Context) error
}

// Watcher drives Options.Run from file system events.
type Watcher struct {
	opts    Options
	dir     string
	file    string // non-empty when a single file is watched
	watcher *fsnotify.Watcher
	runs    int
}

// New creates a Watcher.
func New(opts Options) (*Watcher, error) {
	if opts.Run == nil {
		return nil, errors.New("watch: no run function")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	info, err := os.Stat(opts.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "watch %s", opts.Path)
	}

	w := &Watcher{opts: opts}
	if info.IsDir() {
		w.dir = opts.Path
	} else {
		// The parent directory is watched so rotation (remove and
		// recreate) keeps producing events.
		w.dir = filepath.Dir(opts.Path)
		w.file = filepath.Clean(opts.Path)
	}
	return w, nil
}

// Watch runs the job once, then again after every settled change, until
// ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	w.watcher = watcher
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return errors.Wrapf(err, "watch %s", w.dir)
	}

	w.run(ctx)

	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed unexpectedly")
			}
			if !w.relevant(event) {
				continue
			}
			logging.FromContext(ctx).Debug("change detected", "path", event.Name, "op", event.Op.String())
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.opts.Debounce)
			pending = true

		case <-timer.C:
			pending = false
			w.run(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			return errors.Wrap(err, "watcher error")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(event.Name)
	if w.file != "" && name != w.file {
		return false
	}
	if w.opts.Ignore != nil && w.opts.Ignore(name) {
		return false
	}
	return true
}

func (w *Watcher) run(ctx context.Context) {
	w.runs++
	logger := logging.FromContext(ctx)
	if err := w.opts.Run(ctx); err != nil {
		logger.Error("run failed", "run", w.runs, "error", err)
		return
	}
	logger.Info("run finished", "run", w.runs)
}

// Package watch surfaces filesystem changes to the DOSA config file
// (and optionally the data directory) as debounced events, so the
// grid's main loop can reload configuration without polling the file
// itself.
package watch

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jordonsc/dosa-go/internal/doerr"
)

// debounceWindow coalesces the burst of write+chmod events most editors
// and os.Rename-based atomic writes produce into a single change event.
const debounceWindow = 200 * time.Millisecond

// Logger defines the logging interface used by Watcher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Watcher watches one or more files (typically the config file, and
// optionally the data file for display-only consumers) and emits a
// debounced signal per changed path on Events().
type Watcher struct {
	fsw    *fsnotify.Watcher
	events chan string
	logger Logger
}

// Option configures a Watcher at construction time.
type Option func(*Watcher)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a Watcher covering the directories containing each of
// paths (fsnotify watches directories, not files directly, so renames
// and atomic replace-writes are still observed).
func New(paths []string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, doerr.Wrap(doerr.KindConfigParse, "creating file watcher", err)
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, doerr.Wrap(doerr.KindConfigParse, "watching directory "+dir, err)
		}
	}

	w := &Watcher{
		fsw:    fsw,
		events: make(chan string, 16),
		logger: noopLogger{},
	}
	for _, o := range opts {
		o(w)
	}

	watchSet := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		watchSet[filepath.Clean(p)] = struct{}{}
	}

	go w.run(watchSet)
	return w, nil
}

func (w *Watcher) run(watchSet map[string]struct{}) {
	pending := make(map[string]*time.Timer)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			path := filepath.Clean(ev.Name)
			if _, tracked := watchSet[path]; !tracked {
				continue
			}
			if t, exists := pending[path]; exists {
				t.Stop()
			}
			pending[path] = time.AfterFunc(debounceWindow, func() {
				select {
				case w.events <- path:
				default:
					w.logger.Warn("watch event dropped, channel full", "path", path)
				}
			})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watch error", "error", err)
		}
	}
}

// Events returns the channel of debounced, changed file paths.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

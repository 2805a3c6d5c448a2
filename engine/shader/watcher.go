package shader

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-rtx/common"
	"github.com/fsnotify/fsnotify"
)

// watcher is the implementation of the Watcher interface.
type watcher struct {
	logger  *slog.Logger
	dir     string
	fsw     *fsnotify.Watcher
	pending atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// Watcher watches a shader directory and records that a reload is pending whenever a .wgsl
// file changes. It never reloads by itself: the owner polls TakePending between frames.
type Watcher interface {
	// Dir returns the watched directory.
	Dir() string

	// TakePending reports whether a change was seen since the last call and clears the flag.
	//
	// Returns:
	//   - bool: true if at least one .wgsl file changed
	TakePending() bool

	// Close stops watching. Calling it again is a no-op.
	//
	// Returns:
	//   - error: an error if the underlying watcher failed to close
	Close() error
}

var _ Watcher = &watcher{}

// NewWatcher starts watching dir and its include/ and fallback/ subdirectories when present.
//
// Parameters:
//   - dir: the shader directory
//   - logger: the logger change events and watch errors are reported to, nil for none
//
// Returns:
//   - Watcher: the running watcher
//   - error: an error if the directory cannot be watched
func NewWatcher(dir string, logger *slog.Logger) (Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create shader watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch shader directory %s: %w", dir, err)
	}
	for _, sub := range []string{"include", "fallback"} {
		path := filepath.Join(dir, sub)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := fsw.Add(path); err != nil {
				fsw.Close()
				return nil, fmt.Errorf("failed to watch shader directory %s: %w", path, err)
			}
		}
	}

	w := &watcher{
		logger: common.LoggerOrNop(logger),
		dir:    dir,
		fsw:    fsw,
		done:   make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".wgsl") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.logger.Debug("shader source changed", "path", event.Name, "op", event.Op.String())
				w.pending.Store(true)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("shader watcher error", "err", err)
		}
	}
}

func (w *watcher) Dir() string {
	return w.dir
}

func (w *watcher) TakePending() bool {
	return w.pending.Swap(false)
}

func (w *watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
		if errors.Is(err, fsnotify.ErrClosed) {
			err = nil
		}
	})
	return err
}

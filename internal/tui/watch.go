package tui

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/54b3r/paperqa-go/internal/logging"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 400 * time.Millisecond

// FileWatcher reports changes to a single file. It watches the parent
// directory so editors that save by rename-and-replace are still seen.
type FileWatcher struct {
	// path is the cleaned absolute path of the watched file.
	path string
	// debounce is the quiet period before a change is reported.
	debounce time.Duration
	// watcher is the underlying fsnotify watcher.
	watcher *fsnotify.Watcher
	// changes receives one value per debounced change.
	changes chan struct{}
	// stopOnce guards Close.
	stopOnce sync.Once
	// done is closed by Close.
	done chan struct{}
}

// WatchFile starts watching path until ctx is cancelled or Close is called.
func WatchFile(ctx context.Context, path string, debounce time.Duration) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("tui: watch %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("tui: watch %s: %w", path, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("tui: watch %s: %w", path, err)
	}

	fw := &FileWatcher{
		path:     abs,
		debounce: debounce,
		watcher:  w,
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go fw.run(ctx)
	return fw, nil
}

// Changes returns the channel that receives a value after each debounced
// change. Signals are coalesced while the reader is busy.
func (fw *FileWatcher) Changes() <-chan struct{} { return fw.changes }

// Close stops the watcher. It is safe to call more than once.
func (fw *FileWatcher) Close() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) run(ctx context.Context) {
	log := logging.FromContext(ctx)
	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = fw.Close()
			return
		case <-fw.done:
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != fw.path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug("tui: watched file changed", slog.String("op", ev.Op.String()), slog.String("path", ev.Name))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(fw.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			select {
			case fw.changes <- struct{}{}:
			default:
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("tui: watch error", slog.Any("error", err))
		}
	}
}

// Package watch notifies callers when a manifest file's contents change on
// disk. Saves that leave the contents byte-identical are not reported.
package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zeebo/blake3"

	"github.com/papapumpkin/critpath/internal/logging"
)

// DefaultDebounce is how long a file must be quiet before a change is
// reported.
const DefaultDebounce = 100 * time.Millisecond

// Change is a settled modification of the watched file.
type Change struct {
	Path    string
	Removed bool // file no longer exists
	// Digest is the hex blake3 hash of the new contents; empty when Removed.
	Digest string
}

// Digest returns the hex blake3 hash of data.
func Digest(data []byte) string {
	h := blake3.New()
	_, _ = h.Write(data)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Watcher monitors a single file. It watches the parent directory so that
// editors which save by rename are still observed.
type Watcher struct {
	Path     string
	Changes  <-chan Change // Read-only external channel
	Debounce time.Duration

	changes chan Change
	done    chan struct{}
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	last    string // digest of the last reported contents; owned by loop
}

// New creates a watcher for path. A nil logger discards watch errors.
func New(path string, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	ch := make(chan Change, 16)
	return &Watcher{
		Path:     abs,
		Changes:  ch,
		Debounce: DefaultDebounce,
		changes:  ch,
		done:     make(chan struct{}),
		watcher:  fw,
		logger:   logging.OrDiscard(logger),
	}, nil
}

// Start begins watching. If it fails the watcher is closed and must not be
// stopped.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.Path)); err != nil {
		w.watcher.Close()
		return fmt.Errorf("watch: add %s: %w", filepath.Dir(w.Path), err)
	}
	if data, err := os.ReadFile(w.Path); err == nil {
		w.last = Digest(data)
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	var pending time.Time
	ticker := time.NewTicker(w.Debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				if !pending.IsZero() {
					w.emit()
				}
				return
			}
			if filepath.Clean(event.Name) != w.Path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending = time.Now()
			}

		case <-ticker.C:
			if !pending.IsZero() && time.Since(pending) >= w.Debounce {
				w.emit()
				pending = time.Time{}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "path", w.Path, "error", err)
		}
	}
}

func (w *Watcher) emit() {
	c := Change{Path: w.Path}
	data, err := os.ReadFile(w.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.Removed = true
	case err != nil:
		w.logger.Warn("watch read failed", "path", w.Path, "error", err)
		return
	default:
		c.Digest = Digest(data)
		if c.Digest == w.last {
			w.logger.Debug("watch contents unchanged", "path", w.Path)
			return
		}
	}
	w.last = c.Digest
	select {
	case w.changes <- c:
	default:
		// Consumer is behind; it will re-read the file anyway.
		w.logger.Debug("watch change dropped", "path", w.Path)
	}
}

// Package watcher runs the pipeline automatically on transcripts
// dropped into a directory.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultMaxConcurrent = 2

// settleDelay gives the writer time to finish before we read the file.
const settleDelay = 500 * time.Millisecond

// Handler processes one newly arrived transcript file.
type Handler func(ctx context.Context, path string) error

// Watcher dispatches new transcript files to a handler.
type Watcher struct {
	dir           string
	handler       Handler
	maxConcurrent int
}

// New creates a watcher over dir. maxConcurrent bounds parallel
// handler invocations; non-positive falls back to the default.
func New(dir string, handler Handler, maxConcurrent int) *Watcher {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Watcher{dir: dir, handler: handler, maxConcurrent: maxConcurrent}
}

// Run watches until the context is cancelled. Handler failures are
// logged, not fatal; one bad transcript must not stop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	slog.Info("watching for transcripts", "dir", w.dir)

	sem := make(chan struct{}, w.maxConcurrent)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) || !IsTranscript(event.Name) {
				continue
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case sem <- struct{}{}:
			}

			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				defer func() { <-sem }()

				time.Sleep(settleDelay)
				slog.Info("processing transcript", "path", path)
				if err := w.handler(ctx, path); err != nil {
					slog.Error("transcript processing failed", "path", path, "error", err)
					return
				}
				slog.Info("transcript processed", "path", path)
			}(event.Name)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Error("watch error", "error", err)
		}
	}
}

// IsTranscript reports whether path has a supported transcript
// extension.
func IsTranscript(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vtt", ".json":
		return true
	}
	return false
}

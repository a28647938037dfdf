// Package watch batches file-system changes under a directory and hands
// the changed documents to a handler once writes settle.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dgallion1/regingest/internal/parser"
)

// Handler receives one settled batch of changed paths, sorted.
type Handler func(ctx context.Context, paths []string)

// Watcher watches one directory tree.
type Watcher struct {
	Dir       string
	Recursive bool
	Debounce  time.Duration
	Log       *slog.Logger
}

// Run blocks until ctx is done, calling h each time a batch of supported
// files has been created or written and no further change arrived within
// the debounce interval. Batches are delivered one at a time.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	log := w.Log
	if log == nil {
		log = slog.Default()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.Dir); err != nil {
		return err
	}
	log.Info("watching", "dir", w.Dir, "recursive", w.Recursive, "debounce", debounce)

	pending := map[string]struct{}{}
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if hidden(ev.Name) {
				continue
			}
			info, err := os.Stat(ev.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if w.Recursive && ev.Has(fsnotify.Create) {
					if err := w.addTree(fw, ev.Name); err != nil {
						log.Warn("watch new directory", "dir", ev.Name, "error", err)
					}
				}
				continue
			}
			if !parser.IsSupportedExtension(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			clear(pending)

			log.Info("changes settled", "files", len(paths))
			h(ctx, paths)
		}
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	if !w.Recursive {
		if err := fw.Add(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

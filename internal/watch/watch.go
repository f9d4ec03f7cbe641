// Package watch implements a mod-directory watcher: it discovers
// "<name>.manifest" / "<name>.wasm" file pairs under a directory
// and reports each complete pair, then keeps watching for changes,
// grounded on the original implementation's file_watcher.rs.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const (
	manifestSuffix = ".manifest"
	wasmSuffix     = ".wasm"
)

// LoadFunc is called once per complete, readable mod pair discovered.
// Returning an error only logs; it never stops the watch loop, since one
// bad mod pair on disk shouldn't take down the whole watcher.
type LoadFunc func(manifestBytes, wasmBytes []byte) error

// Watcher discovers mod pairs under a directory and reports new or
// changed pairs to a LoadFunc.
type Watcher struct {
	dir string
	fsw *fsnotify.Watcher
	log logrus.FieldLogger
}

// New starts watching dir for mod file changes. Callers must call Close
// when done.
func New(dir string, log logrus.FieldLogger) (*Watcher, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("watch: preparing %s: %w", dir, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch: adding %s: %w", dir, err)
	}
	return &Watcher{dir: dir, fsw: fsw, log: log}, nil
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run loads every mod pair already present in the directory, then blocks
// processing fsnotify events until ctx is canceled, calling load whenever
// a manifest or wasm file is created or written. It coalesces
// file-by-file events onto the pair they belong to, loading only once
// both halves are present and readable.
func (w *Watcher) Run(ctx context.Context, load LoadFunc) error {
	if err := w.loadExisting(load); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, load)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("mod watcher error")
		}
	}
}

func (w *Watcher) loadExisting(load LoadFunc) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("watch: listing %s: %w", w.dir, err)
	}
	seen := make(map[string]bool)
	for _, e := range entries {
		name := stemOf(e.Name())
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		w.tryLoad(name, load)
	}
	return nil
}

func (w *Watcher) handleEvent(event fsnotify.Event, load LoadFunc) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	name := stemOf(filepath.Base(event.Name))
	if name == "" {
		return
	}
	w.tryLoad(name, load)
}

func (w *Watcher) tryLoad(stem string, load LoadFunc) {
	manifestPath := filepath.Join(w.dir, stem+manifestSuffix)
	wasmPath := filepath.Join(w.dir, stem+wasmSuffix)

	manifestBytes, err := os.ReadFile(manifestPath)
	if err != nil {
		return // other half not written yet
	}
	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return
	}

	if err := load(manifestBytes, wasmBytes); err != nil {
		w.log.WithError(err).WithField("mod", stem).Warn("mod load failed")
	}
}

// stemOf returns name with a recognized mod-file suffix stripped, or ""
// if name doesn't end in one of them.
func stemOf(name string) string {
	switch {
	case strings.HasSuffix(name, manifestSuffix):
		return strings.TrimSuffix(name, manifestSuffix)
	case strings.HasSuffix(name, wasmSuffix):
		return strings.TrimSuffix(name, wasmSuffix)
	default:
		return ""
	}
}

// Package spool feeds event files dropped into a spool directory through
// the ingestion pipeline. Sensors that cannot write to the collector's
// stdin can instead drop newline-delimited JSON files (*.json, *.jsonl)
// into the directory; each file is read line by line and removed once
// consumed.
//
// Drop protocol: producers must write the file somewhere else (a temp
// name or sibling directory on the same filesystem) and rename(2) it into
// the spool directory once complete. The rename surfaces as a single
// create notification and the file is consumed whole. Files written in
// place, byte by byte inside the directory, are not supported: the
// watcher would observe them before the producer finishes and consume a
// truncated prefix.
package spool

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher watches a spool directory and emits raw event lines.
type Watcher struct {
	dir     string
	log     *logrus.Logger
	watcher *fsnotify.Watcher
	lines   chan string
}

// New creates a Watcher for dir. The directory is created if missing.
func New(dir string, log *logrus.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool dir %s: %w", dir, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:     dir,
		log:     log,
		watcher: watcher,
		lines:   make(chan string, 256),
	}, nil
}

// Lines returns the feed of raw event lines. It is closed when Start
// returns.
func (w *Watcher) Lines() <-chan string {
	return w.lines
}

// Start sweeps files already present, then consumes files as they appear,
// until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	w.log.WithField("dir", w.dir).Info("Starting spool watcher")
	defer close(w.lines)
	defer w.watcher.Close()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Spool watcher stopping")
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Only create fires for a rename into the directory, which
			// is the supported drop protocol; reacting to write events
			// would read files that are still growing.
			if ev.Op&fsnotify.Create != 0 && isSpoolFile(ev.Name) {
				w.consume(ctx, ev.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Error("Spool watcher error")
		}
	}
}

// sweep consumes files that were already in the directory at startup.
func (w *Watcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.WithError(err).Error("Failed to read spool dir")
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isSpoolFile(entry.Name()) {
			continue
		}
		w.consume(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

// consume emits every line of path and removes the file. A file that
// vanished between the notification and the read is skipped silently.
func (w *Watcher) consume(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.log.WithError(err).WithField("file", path).Warn("Failed to open spool file")
		}
		return
	}

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case w.lines <- scanner.Text():
			n++
		case <-ctx.Done():
			f.Close()
			return
		}
	}
	f.Close()

	if err := os.Remove(path); err != nil {
		w.log.WithError(err).WithField("file", path).Warn("Failed to remove consumed spool file")
	}
	w.log.WithFields(logrus.Fields{"file": path, "lines": n}).Debug("Consumed spool file")
}

func isSpoolFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".jsonl":
		return true
	}
	return false
}

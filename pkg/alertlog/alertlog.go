// Package alertlog persists accepted events to an append-only JSONL file.
//
// The file is opened once at startup and owned by a single writer for the
// life of the process. Each accepted event becomes one compact JSON line,
// synced to disk immediately: durability is preferred over batching
// throughput.
package alertlog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ghosttrail/ghosttrail/pkg/event"
)

// Writer appends events to a JSONL file.
type Writer struct {
	path string
	f    *os.File
}

// Open opens (creating if needed) the log at path in append mode.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open alert log %s: %w", path, err)
	}
	return &Writer{path: path, f: f}, nil
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Append writes evt as one compact JSON line and syncs it to disk.
func (w *Writer) Append(evt event.Event) error {
	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	line = append(line, '\n')
	if _, err := w.f.Write(line); err != nil {
		return fmt.Errorf("failed to append to %s: %w", w.path, err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", w.path, err)
	}
	return nil
}

// Close releases the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}

// Package incident turns a triggering event into a durable forensic
// artifact: a timestamped directory holding the event itself and the
// process lineage captured at observation time.
package incident

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ghosttrail/ghosttrail/pkg/event"
	"github.com/ghosttrail/ghosttrail/pkg/lineage"
)

// Writer creates incident directories under BaseDir.
type Writer struct {
	BaseDir  string
	Source   lineage.Source
	MaxDepth int

	log *logrus.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a Writer rooted at baseDir that resolves lineage via src.
func New(baseDir string, src lineage.Source, maxDepth int, log *logrus.Logger) *Writer {
	if maxDepth <= 0 {
		maxDepth = lineage.DefaultMaxDepth
	}
	return &Writer{
		BaseDir:  baseDir,
		Source:   src,
		MaxDepth: maxDepth,
		log:      log,
		now:      time.Now,
	}
}

// Create writes one incident for evt and returns the directory path.
//
// The directory is named from local time at second resolution; two
// incidents in the same second share a directory and the later one wins.
// There is no rollback: a failure partway leaves a partial directory
// behind, which is acceptable for a forensic artifact.
func (w *Writer) Create(evt event.Event) (string, error) {
	dir := filepath.Join(w.BaseDir, w.now().Format("20060102-150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create incident dir: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, "incident.json"), evt); err != nil {
		return dir, err
	}

	chain := lineage.Build(w.Source, evt.PID(), w.MaxDepth)

	if err := os.WriteFile(filepath.Join(dir, "lineage.txt"), []byte(lineage.ToText(chain)), 0o644); err != nil {
		return dir, fmt.Errorf("failed to write lineage.txt: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "lineage.dot"), []byte(lineage.ToDOT(chain)), 0o644); err != nil {
		return dir, fmt.Errorf("failed to write lineage.dot: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"dir":   dir,
		"pid":   evt.PID(),
		"chain": len(chain),
	}).Info("Incident created")

	return dir, nil
}

// writeJSON writes v pretty-printed with two-space indent and without
// HTML escaping, so the artifact stays readable by humans and tools.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal incident: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

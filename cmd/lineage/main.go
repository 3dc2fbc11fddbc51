// Command lineage writes the ancestry chain of its own process as an
// incident-style artifact pair, useful for demos and for eyeballing what
// the collector will record.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ghosttrail/ghosttrail/internal/config"
	"github.com/ghosttrail/ghosttrail/pkg/lineage"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logrus.New()
	cfg := config.DefaultCollectorConfig()

	chain := lineage.Build(lineage.NewProcFS(), os.Getpid(), cfg.MaxDepth)

	outdir := filepath.Join(cfg.IncidentsDir, time.Now().Format("20060102-150405"))
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		log.WithError(err).Error("Failed to create output directory")
		return 1
	}

	text := lineage.ToText(chain)
	if err := os.WriteFile(filepath.Join(outdir, "lineage.txt"), []byte(text), 0o644); err != nil {
		log.WithError(err).Error("Failed to write lineage.txt")
		return 1
	}
	if err := os.WriteFile(filepath.Join(outdir, "lineage.dot"), []byte(lineage.ToDOT(chain)), 0o644); err != nil {
		log.WithError(err).Error("Failed to write lineage.dot")
		return 1
	}

	fmt.Printf("Wrote: %s\n", filepath.Join(outdir, "lineage.txt"))
	fmt.Printf("Wrote: %s\n", filepath.Join(outdir, "lineage.dot"))
	fmt.Printf("\nPreview:\n%s", text)
	return 0
}

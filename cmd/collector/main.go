package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ghosttrail/ghosttrail/internal/config"
	"github.com/ghosttrail/ghosttrail/internal/version"
	"github.com/ghosttrail/ghosttrail/pkg/lineage"
	"github.com/ghosttrail/ghosttrail/pkg/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)

	cfg := config.DefaultCollectorConfig()

	log.WithFields(logrus.Fields{
		"version":   version.Version,
		"outfile":   cfg.OutFile,
		"incidents": cfg.IncidentsDir,
	}).Info("GhostTrail collector starting; send newline-delimited JSON events to stdin")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
		cancel()
	}()

	p, err := pipeline.New(pipeline.Config{
		OutFile:         cfg.OutFile,
		IncidentsDir:    cfg.IncidentsDir,
		MaxDepth:        cfg.MaxDepth,
		SpoolDir:        cfg.SpoolDir,
		HTTPAddr:        cfg.HTTPAddr,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, lineage.NewProcFS(), log)
	if err != nil {
		log.WithError(err).WithField("outfile", cfg.OutFile).Error("Could not open output file")
		return 2
	}

	stats := p.Run(ctx, os.Stdin)

	log.WithFields(logrus.Fields{
		"accepted": stats.Accepted,
		"dropped":  stats.Dropped,
	}).Info("Collector shutdown complete")
	return 0
}

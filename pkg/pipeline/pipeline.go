// Package pipeline wires the collector components together: the durable
// alert log, the ingestion loop, and the optional spool feed and HTTP
// server, all under one context.
package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ghosttrail/ghosttrail/internal/server"
	"github.com/ghosttrail/ghosttrail/pkg/alertlog"
	"github.com/ghosttrail/ghosttrail/pkg/incident"
	"github.com/ghosttrail/ghosttrail/pkg/ingest"
	"github.com/ghosttrail/ghosttrail/pkg/lineage"
	"github.com/ghosttrail/ghosttrail/pkg/spool"
)

// Config holds pipeline wiring options.
type Config struct {
	OutFile      string
	IncidentsDir string
	MaxDepth     int

	// SpoolDir enables the spool-directory feed when non-empty.
	SpoolDir string
	// HTTPAddr enables the health/stats/metrics server when non-empty.
	HTTPAddr string

	ShutdownTimeout time.Duration
}

// Pipeline owns the collector's long-lived resources. The alert log is
// acquired once in New and released on every Run exit path.
type Pipeline struct {
	cfg Config
	log *logrus.Logger

	out     *alertlog.Writer
	loop    *ingest.Loop
	spooler *spool.Watcher
	httpSrv *server.Server

	wg sync.WaitGroup
}

// New builds a pipeline. An error here is fatal to the caller: without
// the alert log there is nowhere to persist accepted events.
func New(cfg Config, src lineage.Source, log *logrus.Logger) (*Pipeline, error) {
	out, err := alertlog.Open(cfg.OutFile)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, log: log, out: out}
	p.loop = ingest.New(out, incident.New(cfg.IncidentsDir, src, cfg.MaxDepth, log), log)

	if cfg.SpoolDir != "" {
		p.spooler, err = spool.New(cfg.SpoolDir, log)
		if err != nil {
			out.Close()
			return nil, err
		}
	}

	if cfg.HTTPAddr != "" {
		p.httpSrv = server.New(cfg.HTTPAddr, p.loop, log)
	}

	return p, nil
}

// Stats returns the current ingestion counters.
func (p *Pipeline) Stats() ingest.Stats {
	return p.loop.Stats()
}

// Run processes input until end of stream or context cancellation, then
// shuts everything down and returns the final counters. The alert log is
// flushed per event and closed here on every exit path.
func (p *Pipeline) Run(ctx context.Context, input io.Reader) ingest.Stats {
	defer p.out.Close()

	// End-of-input must also stop the spool watcher, so the feeds share a
	// derived context cancelled when the loop returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var extra <-chan string
	if p.spooler != nil {
		extra = p.spooler.Lines()
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.spooler.Start(ctx)
		}()
	}

	if p.httpSrv != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := p.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				p.log.WithError(err).Error("HTTP server error")
			}
		}()
	}

	stats := p.loop.Run(ctx, input, extra)
	cancel()

	if p.httpSrv != nil {
		timeout := p.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := p.httpSrv.Shutdown(shutdownCtx); err != nil {
			p.log.WithError(err).Error("Error during HTTP shutdown")
		}
		cancel()
	}
	p.wg.Wait()

	p.log.WithFields(logrus.Fields{
		"accepted": stats.Accepted,
		"dropped":  stats.Dropped,
	}).Info("Collector stopped")

	return stats
}

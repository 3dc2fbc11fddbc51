// Package server provides the optional HTTP endpoint of the collector:
// health, ingestion counters, and Prometheus metrics. It never serves
// event content.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ghosttrail/ghosttrail/internal/version"
	"github.com/ghosttrail/ghosttrail/pkg/ingest"
)

// StatsProvider reports ingestion counters.
type StatsProvider interface {
	Stats() ingest.Stats
}

// Server is the collector's HTTP server.
type Server struct {
	stats      StatsProvider
	log        *logrus.Logger
	httpServer *http.Server
}

// New creates a server listening on addr.
func New(addr string, stats StatsProvider, log *logrus.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{stats: stats, log: log}
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// ListenAndServe starts the HTTP server. It blocks until the server is closed.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version.Version,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.stats.Stats())
}

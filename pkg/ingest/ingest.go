// Package ingest implements the line-oriented event ingestion loop:
// decode, normalize, validate, persist, and dispatch incidents.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ghosttrail/ghosttrail/pkg/alertlog"
	"github.com/ghosttrail/ghosttrail/pkg/event"
)

// Prometheus metrics (registered once).
var (
	eventsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ghosttrail_events_accepted_total",
			Help: "Total events accepted and appended to the alert log",
		},
	)
	eventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghosttrail_events_dropped_total",
			Help: "Total events dropped at the ingestion boundary",
		},
		[]string{"reason"},
	)
	incidentsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ghosttrail_incidents_created_total",
			Help: "Total incident directories created",
		},
	)
	incidentFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ghosttrail_incident_failures_total",
			Help: "Total incident creation failures",
		},
	)
)

func init() {
	prometheus.MustRegister(eventsAccepted)
	prometheus.MustRegister(eventsDropped)
	prometheus.MustRegister(incidentsCreated)
	prometheus.MustRegister(incidentFailures)
}

// linePreviewLimit caps how much of a rejected line is logged.
const linePreviewLimit = 200

// IncidentCreator turns an accepted event into an incident directory.
type IncidentCreator interface {
	Create(evt event.Event) (string, error)
}

// Stats reports accepted/dropped totals for one loop.
type Stats struct {
	Accepted int64 `json:"accepted"`
	Dropped  int64 `json:"dropped"`
}

// Loop processes newline-delimited JSON events. Lines are handled one at
// a time, fully, before the next is read; the alert log is only ever
// touched from here.
type Loop struct {
	out       *alertlog.Writer
	incidents IncidentCreator
	log       *logrus.Logger

	accepted atomic.Int64
	dropped  atomic.Int64
}

// New creates a Loop appending to out. incidents may be nil to disable
// incident creation.
func New(out *alertlog.Writer, incidents IncidentCreator, log *logrus.Logger) *Loop {
	return &Loop{out: out, incidents: incidents, log: log}
}

// Run reads r line by line until end of stream or context cancellation
// and returns the final counters. extra, which may be nil, is a second
// feed of raw lines (the spool watcher); both feeds are drained by this
// single goroutine so the alert log keeps exactly one writer. The alert
// log handle is owned by the caller and stays open across Run.
func (l *Loop) Run(ctx context.Context, r io.Reader, extra <-chan string) Stats {
	lines := make(chan string)
	go func() {
		defer close(lines)
		// ReadString has no line-length cap: an arbitrarily long line is
		// consumed whole and judged by Process like any other, instead of
		// killing the stream the way a capped scanner would.
		reader := bufio.NewReaderSize(r, 64*1024)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					l.log.WithError(err).Error("Input read error, ending ingestion")
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return l.Stats()
		case line, ok := <-lines:
			if !ok {
				return l.Stats()
			}
			l.Process(line)
		case line, ok := <-extra:
			if !ok {
				extra = nil
				continue
			}
			l.Process(line)
		}
	}
}

// Process handles one raw input line end to end.
func (l *Loop) Process(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil || raw == nil {
		l.drop("json", preview(line), "bad json")
		return
	}

	evt := event.Normalize(raw)
	if err := event.Validate(evt); err != nil {
		l.drop("schema", preview(line), err.Error())
		return
	}

	if err := l.out.Append(evt); err != nil {
		l.log.WithError(err).Error("Failed to append event to alert log")
		l.dropped.Add(1)
		eventsDropped.WithLabelValues("io").Inc()
		return
	}

	l.accepted.Add(1)
	eventsAccepted.Inc()
	l.log.WithFields(logrus.Fields{
		"event_type": evt.Type(),
		"pid":        evt.PID(),
		"source":     evt["source"],
	}).Info(event.Summarize(evt))

	if evt.Type() == event.TypeFileOpen && l.incidents != nil {
		dir, err := l.incidents.Create(evt)
		if err != nil {
			incidentFailures.Inc()
			l.log.WithError(err).WithField("pid", evt.PID()).Error("Failed to create incident")
			return
		}
		incidentsCreated.Inc()
		l.log.WithField("dir", dir).Info("Incident recorded")
	}
}

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Stats {
	return Stats{Accepted: l.accepted.Load(), Dropped: l.dropped.Load()}
}

func (l *Loop) drop(reason, line, detail string) {
	l.dropped.Add(1)
	eventsDropped.WithLabelValues(reason).Inc()
	l.log.WithFields(logrus.Fields{
		"reason": detail,
		"line":   line,
	}).Warn("Dropping event: " + reason)
}

// preview truncates line for logging, backing up to a rune boundary so
// the cut never leaves a partial UTF-8 sequence in the log record.
func preview(line string) string {
	if len(line) <= linePreviewLimit {
		return line
	}
	cut := linePreviewLimit
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut]
}

// Package event defines the activity event schema and its
// normalization and validation rules.
//
// Events arrive as untrusted JSON objects. The schema is additive-open:
// the fields below are enforced, unknown extra fields are tolerated and
// preserved through to persistence. That is why Event is a map rather
// than a struct — a closed struct would drop fields it does not know.
package event

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Event is one decoded activity event. Keys follow the wire schema:
// ts, event_type, pid, ppid, uid, comm, exe, target, source, plus
// optional tags (array) and meta (object).
type Event map[string]any

// Event type enumeration.
const (
	TypeFileOpen = "file_open"
	TypeExec     = "exec"
)

// Source enumeration.
const (
	SourceStdin = "stdin"
	SourceEBPF  = "ebpf"
)

// requiredFields in validation order; the first missing field names the
// rejection reason.
var requiredFields = []string{"ts", "event_type", "pid", "ppid", "uid", "comm", "exe", "target", "source"}

// Normalize returns a copy of raw with defaults filled in: a current UTC
// timestamp when ts is absent or blank, and source "stdin" when source is
// absent or blank. Everything else passes through untouched. The result
// is not yet validated.
func Normalize(raw map[string]any) Event {
	evt := make(Event, len(raw)+2)
	for k, v := range raw {
		evt[k] = v
	}
	if !isNonEmptyString(evt["ts"]) {
		evt["ts"] = utcNowISO()
	}
	if !isNonEmptyString(evt["source"]) {
		evt["source"] = SourceStdin
	}
	return evt
}

// Validate checks evt against the schema and returns nil if it is
// acceptable, or an error naming the first failing field. Checks run in
// a fixed order and stop at the first failure.
func Validate(evt Event) error {
	for _, k := range requiredFields {
		if _, ok := evt[k]; !ok {
			return fmt.Errorf("missing required field: %s", k)
		}
	}

	ts, ok := evt["ts"].(string)
	if !ok || !validTimestamp(ts) {
		return fmt.Errorf("invalid ts: must be an ISO 8601 string")
	}

	if et, ok := evt["event_type"].(string); !ok || (et != TypeFileOpen && et != TypeExec) {
		return fmt.Errorf("invalid event_type: must be one of [exec file_open]")
	}

	for _, k := range []string{"pid", "ppid", "uid"} {
		if !isNonNegativeInt(evt[k]) {
			return fmt.Errorf("invalid %s: must be a non-negative integer", k)
		}
	}

	for _, k := range []string{"comm", "exe", "target"} {
		if !isNonEmptyString(evt[k]) {
			return fmt.Errorf("invalid %s: must be a non-empty string", k)
		}
	}

	if src, ok := evt["source"].(string); !ok || (src != SourceStdin && src != SourceEBPF) {
		return fmt.Errorf("invalid source: must be one of [ebpf stdin]")
	}

	if tags, ok := evt["tags"]; ok {
		if _, isList := tags.([]any); !isList {
			return fmt.Errorf("invalid tags: must be an array if present")
		}
	}
	if meta, ok := evt["meta"]; ok {
		if _, isMap := meta.(map[string]any); !isMap {
			return fmt.Errorf("invalid meta: must be an object if present")
		}
	}

	return nil
}

// Type returns event_type, or "" if unset or not a string.
func (e Event) Type() string {
	s, _ := e["event_type"].(string)
	return s
}

// PID returns the pid field as an int, or 0 if absent or malformed.
func (e Event) PID() int {
	return intField(e["pid"])
}

// Summarize renders a one-line human summary of an accepted event.
func Summarize(e Event) string {
	ts, _ := e["ts"].(string)
	comm, _ := e["comm"].(string)
	target, _ := e["target"].(string)
	pid := intField(e["pid"])
	ppid := intField(e["ppid"])
	uid := intField(e["uid"])

	switch e.Type() {
	case TypeFileOpen:
		return fmt.Sprintf("[%s] FILE pid=%d ppid=%d uid=%d comm=%s -> %s", ts, pid, ppid, uid, comm, target)
	case TypeExec:
		return fmt.Sprintf("[%s] EXEC pid=%d ppid=%d uid=%d comm=%s -> %s", ts, pid, ppid, uid, comm, target)
	}
	return fmt.Sprintf("[%s] %s pid=%d comm=%s -> %s", ts, e.Type(), pid, comm, target)
}

func utcNowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000Z07:00")
}

// tsLayouts accepted for the ts field: RFC 3339 with zone, or a naive
// timestamp without one, T- or space-separated, optional fraction.
var tsLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func validTimestamp(s string) bool {
	for _, layout := range tsLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func isNonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

// isNonNegativeInt reports whether v is a whole, non-negative JSON
// number. encoding/json decodes numbers as float64; JSON itself cannot
// distinguish 5 from 5.0, so a fractionless float counts as an integer.
func isNonNegativeInt(v any) bool {
	switch n := v.(type) {
	case float64:
		return n >= 0 && n == math.Trunc(n)
	case int:
		return n >= 0
	}
	return false
}

func intField(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

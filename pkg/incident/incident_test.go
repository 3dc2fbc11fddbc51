package incident

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ghosttrail/ghosttrail/pkg/event"
	"github.com/ghosttrail/ghosttrail/pkg/lineage"
)

type fakeSource map[int]lineage.Node

func (f fakeSource) Lookup(pid int) (lineage.Node, bool) {
	n, ok := f[pid]
	return n, ok
}

func testEvent() event.Event {
	return event.Event{
		"ts":         "2026-08-24T10:00:00Z",
		"event_type": "file_open",
		"pid":        float64(200),
		"ppid":       float64(100),
		"uid":        float64(1000),
		"comm":       "vim",
		"exe":        "/usr/bin/vim",
		"target":     "/etc/shadow",
		"source":     "stdin",
	}
}

func testSource() fakeSource {
	return fakeSource{
		1:   {PID: 1, PPID: 0, UID: 0, Comm: "init", Exe: "/sbin/init", Cmdline: "/sbin/init"},
		100: {PID: 100, PPID: 1, UID: 1000, Comm: "bash", Exe: "/bin/bash", Cmdline: "/bin/bash"},
		200: {PID: 200, PPID: 100, UID: 1000, Comm: "vim", Exe: "/usr/bin/vim", Cmdline: "vim /etc/shadow"},
	}
}

func TestCreate_WritesAllArtifacts(t *testing.T) {
	base := t.TempDir()
	w := New(base, testSource(), lineage.DefaultMaxDepth, logrus.New())
	w.now = func() time.Time { return time.Date(2026, 8, 24, 10, 30, 15, 0, time.Local) }

	dir, err := w.Create(testEvent())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if filepath.Base(dir) != "20260824-103015" {
		t.Errorf("dir name = %q, want 20260824-103015", filepath.Base(dir))
	}

	for _, name := range []string{"incident.json", "lineage.txt", "lineage.dot"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}
}

func TestCreate_IncidentJSON(t *testing.T) {
	w := New(t.TempDir(), testSource(), 0, logrus.New())
	dir, err := w.Create(testEvent())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "incident.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "\n  ") {
		t.Error("incident.json should be pretty-printed with 2-space indent")
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("incident.json is not valid JSON: %v", err)
	}
	if decoded["target"] != "/etc/shadow" {
		t.Errorf("target = %v, want /etc/shadow", decoded["target"])
	}
	if decoded["event_type"] != "file_open" {
		t.Errorf("event_type = %v, want file_open", decoded["event_type"])
	}
}

func TestCreate_LineageArtifacts(t *testing.T) {
	w := New(t.TempDir(), testSource(), 0, logrus.New())
	dir, err := w.Create(testEvent())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	text, err := os.ReadFile(filepath.Join(dir, "lineage.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(text), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lineage.txt has %d lines, want 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "pid=1 ") {
		t.Errorf("first line = %q, want root ancestor first", lines[0])
	}
	if !strings.HasPrefix(lines[2], "pid=200 ") {
		t.Errorf("last line = %q, want triggering pid last", lines[2])
	}

	dot, err := os.ReadFile(filepath.Join(dir, "lineage.dot"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{"digraph lineage {", "\"200\" [label=", "\"100\" -> \"200\";"} {
		if !strings.Contains(string(dot), want) {
			t.Errorf("lineage.dot missing %q", want)
		}
	}
}

func TestCreate_VanishedProcess(t *testing.T) {
	// Triggering pid no longer exists: artifacts are still written, the
	// chain is just empty.
	w := New(t.TempDir(), fakeSource{}, 0, logrus.New())
	dir, err := w.Create(testEvent())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	text, err := os.ReadFile(filepath.Join(dir, "lineage.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(text) != 0 {
		t.Errorf("lineage.txt = %q, want empty for vanished process", text)
	}
}

func TestCreate_SameSecondLastWriterWins(t *testing.T) {
	base := t.TempDir()
	w := New(base, testSource(), 0, logrus.New())
	fixed := time.Date(2026, 8, 24, 11, 0, 0, 0, time.Local)
	w.now = func() time.Time { return fixed }

	if _, err := w.Create(testEvent()); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	second := testEvent()
	second["target"] = "/etc/passwd"
	dir, err := w.Create(second)
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "incident.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "/etc/passwd") {
		t.Error("same-second collision should be last-writer-wins")
	}
}

package lineage

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Byte budgets for proc file reads. Everything under /proc/<pid> that we
// care about fits well inside these; capping protects against a hostile
// or corrupted entry.
const (
	maxStatBytes = 4096
	maxCommBytes = 1024
	maxReadBytes = 16384
)

// ProcFS reads process snapshots from a proc filesystem rooted at Root.
// Root defaults to /proc; tests point it at a fake tree.
type ProcFS struct {
	Root string
}

// NewProcFS returns a ProcFS reading the real /proc.
func NewProcFS() *ProcFS {
	return &ProcFS{Root: "/proc"}
}

// Lookup reads a snapshot of pid. It returns false only when pid is
// invalid or the process no longer exists; individual facts that cannot
// be read come back as empty strings or zero values.
func (p *ProcFS) Lookup(pid int) (Node, bool) {
	if pid <= 0 {
		return Node{}, false
	}

	dir := p.pidDir(pid)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Node{}, false
	}

	ppid := parseStatPPID(readText(filepath.Join(dir, "stat"), maxStatBytes))
	uid := parseStatusUID(readText(filepath.Join(dir, "status"), maxReadBytes))
	comm := strings.TrimSpace(readText(filepath.Join(dir, "comm"), maxCommBytes))

	// exe is a symlink to the running binary; it disappears as soon as the
	// process exits, which is expected rather than an error.
	exe, err := os.Readlink(filepath.Join(dir, "exe"))
	if err != nil {
		exe = ""
	}

	cmdline := joinCmdline(readText(filepath.Join(dir, "cmdline"), maxReadBytes))

	if ppid < 0 {
		ppid = 0
	}
	if uid < 0 {
		uid = 0
	}

	return Node{
		PID:     pid,
		PPID:    ppid,
		UID:     uid,
		Comm:    comm,
		Exe:     exe,
		Cmdline: cmdline,
	}, true
}

func (p *ProcFS) pidDir(pid int) string {
	root := p.Root
	if root == "" {
		root = "/proc"
	}
	return filepath.Join(root, strconv.Itoa(pid))
}

// readText reads at most max bytes from path, substituting the Unicode
// replacement character for invalid byte sequences. Any error yields "".
func readText(path string, max int) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, int64(max)))
	if err != nil {
		return ""
	}
	return strings.ToValidUTF8(string(data), "�")
}

// parseStatPPID extracts the ppid from a /proc/<pid>/stat line.
// Format: "pid (comm) state ppid ...". comm may contain spaces and even
// parentheses, so the fields after it are located from the last ')' in
// the line. Returns -1 if the line does not parse.
func parseStatPPID(stat string) int {
	rparen := strings.LastIndex(stat, ")")
	if rparen < 0 {
		return -1
	}
	fields := strings.Fields(stat[rparen+1:])
	// fields[0] = state, fields[1] = ppid
	if len(fields) < 2 {
		return -1
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil || ppid < 0 {
		return -1
	}
	return ppid
}

// parseStatusUID extracts the real uid from a /proc/<pid>/status block,
// the first numeric field of the "Uid:" line. Returns -1 if absent or
// malformed.
func parseStatusUID(status string) int {
	for _, line := range strings.Split(status, "\n") {
		if !strings.HasPrefix(line, "Uid:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			uid, err := strconv.Atoi(fields[1])
			if err == nil && uid >= 0 {
				return uid
			}
		}
	}
	return -1
}

// joinCmdline converts the NUL-separated /proc/<pid>/cmdline content into
// a single space-joined string, dropping empty segments.
func joinCmdline(raw string) string {
	if raw == "" {
		return ""
	}
	var parts []string
	for _, p := range strings.Split(raw, "\x00") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

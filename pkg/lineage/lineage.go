// Package lineage reconstructs process ancestry chains from the proc
// filesystem and renders them as text and DOT reports.
//
// Reads against /proc are inherently racy with process lifecycle on the
// host: any process in a chain may exit between lookups. Every read here
// fails soft — missing or unreadable facts become empty strings or zero
// values, and a vanished process truncates the chain instead of failing it.
package lineage

// Node is a point-in-time snapshot of one process. It is never mutated
// after construction.
type Node struct {
	PID     int    `json:"pid"`
	PPID    int    `json:"ppid"`
	UID     int    `json:"uid"`
	Comm    string `json:"comm"`
	Exe     string `json:"exe"`
	Cmdline string `json:"cmdline"`
}

// Source looks up a single process snapshot by pid. The second return is
// false when the process does not exist (or pid is invalid); partial data
// for a live process is returned as a Node with zero/empty fields, not as
// a failed lookup.
type Source interface {
	Lookup(pid int) (Node, bool)
}

// Chain is an ancestor chain ordered root-most ancestor first, target
// process last.
type Chain []Node

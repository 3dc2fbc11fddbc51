package lineage

import (
	"fmt"
	"strings"
)

// labelCmdLimit caps the command text embedded in a DOT node label.
const labelCmdLimit = 120

// ToText renders one key=value line per process, oldest ancestor first.
// The cmdline field falls back to comm when the command line is empty.
// An empty chain renders as the empty string.
func ToText(chain Chain) string {
	if len(chain) == 0 {
		return ""
	}
	var b strings.Builder
	for _, n := range chain {
		cmd := n.Cmdline
		if cmd == "" {
			cmd = n.Comm
		}
		fmt.Fprintf(&b, "pid=%d ppid=%d uid=%d comm=%s exe=%s cmdline=%s\n",
			n.PID, n.PPID, n.UID, n.Comm, n.Exe, cmd)
	}
	return b.String()
}

// ToDOT renders the chain as a directed graph, one node per process and
// one parent -> child edge per adjacent pair. The output is well-formed
// for chains of any length, including empty.
func ToDOT(chain Chain) string {
	var b strings.Builder
	b.WriteString("digraph lineage {\n")
	b.WriteString("  rankdir=\"LR\";\n")
	b.WriteString("  node [shape=\"box\"];\n")

	for _, n := range chain {
		fmt.Fprintf(&b, "  \"%d\" [label=\"%s\"];\n", n.PID, nodeLabel(n))
	}

	for i := 1; i < len(chain); i++ {
		fmt.Fprintf(&b, "  \"%d\" -> \"%d\";\n", chain[i-1].PID, chain[i].PID)
	}

	b.WriteString("}\n")
	return b.String()
}

// nodeLabel builds the multi-line DOT label for one process. Double
// quotes in the command text are replaced with single quotes so the
// label stays well-formed, and the text is truncated to labelCmdLimit
// characters.
func nodeLabel(n Node) string {
	cmd := n.Cmdline
	if cmd == "" {
		cmd = n.Comm
	}
	cmd = strings.ReplaceAll(cmd, `"`, "'")
	if r := []rune(cmd); len(r) > labelCmdLimit {
		cmd = string(r[:labelCmdLimit])
	}
	return fmt.Sprintf("%d\\n%s\\nuid=%d\\n%s", n.PID, n.Comm, n.UID, cmd)
}

package lineage

// DefaultMaxDepth bounds how many processes a single chain may contain.
const DefaultMaxDepth = 25

// Build walks parent links starting at pid and returns the resulting
// chain ordered root-most ancestor first.
//
// The walk is a single best-effort pass: it stops when the current process
// cannot be looked up (vanished mid-walk), when it reaches a root or a
// self-referential parent, when a pid repeats (cycle guard against
// corrupted data), or when maxDepth entries have been collected. A pid
// of zero or less yields an empty chain. None of these conditions is an
// error; the caller always gets whatever could be gathered.
func Build(src Source, pid, maxDepth int) Chain {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var chain Chain
	seen := make(map[int]bool)

	cur := pid
	depth := 0
	for cur > 0 && depth < maxDepth && !seen[cur] {
		seen[cur] = true

		node, ok := src.Lookup(cur)
		if !ok {
			break
		}

		chain = append(chain, node)
		if node.PPID <= 0 || node.PPID == node.PID {
			break
		}

		cur = node.PPID
		depth++
	}

	// Collected target-first; report oldest ancestor first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

package links

// Edge is one cascading relationship: the owning field's candidate values
// are filtered by the current value of DependsOn. Exported so the bulk-save
// coordinator can check a candidate link set before writing anything.
type Edge struct {
	Field     string
	DependsOn string
}

// FindCycle runs a depth-first visit with recursion-stack tracking over
// the dependsOnField edges and returns the field names forming a cycle,
// or nil when the graph is acyclic. Self-edges count as cycles.
func FindCycle(edges []Edge) []string {
	adj := map[string][]string{}
	for _, e := range edges {
		adj[e.Field] = append(adj[e.Field], e.DependsOn)
	}

	const (
		unvisited = iota
		inStack
		done
	)
	state := map[string]int{}
	var stack []string
	var cycle []string

	var visit func(node string) bool
	visit = func(node string) bool {
		state[node] = inStack
		stack = append(stack, node)
		for _, next := range adj[node] {
			switch state[next] {
			case inStack:
				// Slice the current stack from the first occurrence of
				// next to the top: that's the cycle, closed back on next.
				for i, n := range stack {
					if n == next {
						cycle = append(append([]string{}, stack[i:]...), next)
						return true
					}
				}
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[node] = done
		return false
	}

	for _, e := range edges {
		if state[e.Field] == unvisited && visit(e.Field) {
			return cycle
		}
	}
	return nil
}

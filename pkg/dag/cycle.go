package dag

// DetectCycle uses DFS with three-color marking to detect cycles.
// Returns (nil, false) if no cycle exists.
// Returns (CyclicDependencyError, true) if a cycle is found.
// Time complexity: O(V+E)
func (g *Graph) DetectCycle() (*CyclicDependencyError, bool) {
	if len(g.tasks) == 0 {
		return nil, false
	}

	g.rebuildEdges()

	// white (0): not visited
	// gray (1): in the current DFS path
	// black (2): finished
	color := make(map[string]int, len(g.tasks))

	for _, id := range g.order {
		if color[id] == 0 {
			if cycle := g.dfsCycle(id, color, nil); cycle != nil {
				return &CyclicDependencyError{Path: cycle}, true
			}
		}
	}
	return nil, false
}

// dfsCycle performs DFS and returns the cycle path if found.
func (g *Graph) dfsCycle(node string, color map[string]int, path []string) []string {
	color[node] = 1
	path = append(path, node)

	for _, neighbor := range g.edges[node] {
		switch color[neighbor] {
		case 0:
			if cycle := g.dfsCycle(neighbor, color, path); cycle != nil {
				return cycle
			}
		case 1:
			// Back edge closes a cycle.
			return closeCyclePath(path, neighbor)
		}
	}

	color[node] = 2
	return nil
}

// closeCyclePath extracts the cycle from the DFS path and appends the
// start node to close the loop.
func closeCyclePath(path []string, cycleStart string) []string {
	startIdx := -1
	for i, node := range path {
		if node == cycleStart {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		return []string{cycleStart, cycleStart}
	}

	cycle := make([]string, len(path)-startIdx+1)
	copy(cycle, path[startIdx:])
	cycle[len(cycle)-1] = cycleStart
	return cycle
}

// HasCycle is a convenience method that returns true if the graph has a cycle.
func (g *Graph) HasCycle() bool {
	_, hasCycle := g.DetectCycle()
	return hasCycle
}

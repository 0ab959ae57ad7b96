package dag

// TopologicalSort returns a topological ordering of task IDs using Kahn's
// algorithm. When several tasks are ready at once, declaration order breaks
// the tie, so the result is stable across runs of the same graph.
// Returns CyclicDependencyError if the graph contains a cycle.
// Time complexity: O(V+E) for the graph shapes workflows produce.
func (g *Graph) TopologicalSort() ([]string, error) {
	g.rebuildEdges()

	if len(g.tasks) == 0 {
		return []string{}, nil
	}

	inDegree := make(map[string]int, len(g.inDegree))
	for id, degree := range g.inDegree {
		inDegree[id] = degree
	}

	pos := make(map[string]int, len(g.order))
	for i, id := range g.order {
		pos[id] = i
	}

	// Ready set ordered by declaration position.
	var ready []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	result := make([]string, 0, len(g.tasks))
	for len(ready) > 0 {
		// Pop the earliest-declared ready task.
		minIdx := 0
		for i := 1; i < len(ready); i++ {
			if pos[ready[i]] < pos[ready[minIdx]] {
				minIdx = i
			}
		}
		node := ready[minIdx]
		ready = append(ready[:minIdx], ready[minIdx+1:]...)

		result = append(result, node)
		for _, neighbor := range g.edges[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				ready = append(ready, neighbor)
			}
		}
	}

	if len(result) != len(g.tasks) {
		if cycle, hasCycle := g.DetectCycle(); hasCycle {
			return nil, cycle
		}
		return nil, &CyclicDependencyError{}
	}

	return result, nil
}

// IsTopologicalOrder checks if the given order is a valid topological
// ordering of the graph.
func (g *Graph) IsTopologicalOrder(order []string) bool {
	if len(order) != len(g.tasks) {
		return false
	}
	position := make(map[string]int, len(order))
	for i, id := range order {
		if _, exists := g.tasks[id]; !exists {
			return false
		}
		position[id] = i
	}
	for id, task := range g.tasks {
		for _, depID := range task.Deps {
			if position[depID] >= position[id] {
				return false
			}
		}
	}
	return true
}

// Levels returns task IDs grouped by their depth in the graph. Tasks in
// the same level have no dependencies on each other and can run in
// parallel. Level 0 contains root tasks.
func (g *Graph) Levels() ([][]string, error) {
	if len(g.tasks) == 0 {
		return [][]string{}, nil
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	depth := make(map[string]int, len(g.tasks))
	maxDepth := 0
	for _, id := range order {
		for _, depID := range g.tasks[id].Deps {
			if depth[depID]+1 > depth[id] {
				depth[id] = depth[depID] + 1
			}
		}
		if depth[id] > maxDepth {
			maxDepth = depth[id]
		}
	}

	levels := make([][]string, maxDepth+1)
	for _, id := range order {
		levels[depth[id]] = append(levels[depth[id]], id)
	}
	return levels, nil
}

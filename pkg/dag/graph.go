package dag

import (
	"fmt"
)

// Graph is a directed acyclic graph of tasks. Declaration order is
// preserved so repeated scheduling of the same graph is deterministic.
// Graph is not safe for concurrent mutation; build it fully, validate,
// then share read-only.
type Graph struct {
	tasks map[string]*Task
	order []string // task IDs in declaration order

	edges    map[string][]string // task -> tasks that depend on it
	inDegree map[string]int
	dirty    bool
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		tasks:    make(map[string]*Task),
		edges:    make(map[string][]string),
		inDegree: make(map[string]int),
		dirty:    true,
	}
}

// AddTask adds a task to the graph. Returns DuplicateTaskError if a task
// with the same ID already exists. Dependencies may reference tasks added
// later; they are checked by Validate.
func (g *Graph) AddTask(task *Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return err
	}
	if _, exists := g.tasks[task.ID]; exists {
		return &DuplicateTaskError{ID: task.ID}
	}

	// Clone task to avoid external modifications
	cloned := task.Clone()
	for _, depID := range cloned.Deps {
		if depID == cloned.ID {
			return &SelfDependencyError{ID: cloned.ID}
		}
	}

	g.tasks[cloned.ID] = cloned
	g.order = append(g.order, cloned.ID)
	g.dirty = true
	return nil
}

// GetTask retrieves a task by ID.
func (g *Graph) GetTask(id string) (*Task, bool) {
	task, ok := g.tasks[id]
	if !ok {
		return nil, false
	}
	return task.Clone(), true
}

// HasTask checks if a task exists in the graph.
func (g *Graph) HasTask(id string) bool {
	_, ok := g.tasks[id]
	return ok
}

// Tasks returns all tasks in declaration order.
func (g *Graph) Tasks() []*Task {
	tasks := make([]*Task, 0, len(g.tasks))
	for _, id := range g.order {
		tasks = append(tasks, g.tasks[id].Clone())
	}
	return tasks
}

// TaskCount returns the number of tasks in the graph.
func (g *Graph) TaskCount() int {
	return len(g.tasks)
}

// IsEmpty returns true if the graph has no tasks.
func (g *Graph) IsEmpty() bool {
	return len(g.tasks) == 0
}

// Dependencies returns the tasks the given task depends on, in dependency
// declaration order.
func (g *Graph) Dependencies(id string) ([]*Task, error) {
	task, exists := g.tasks[id]
	if !exists {
		return nil, &TaskNotFoundError{ID: id}
	}
	deps := make([]*Task, 0, len(task.Deps))
	for _, depID := range task.Deps {
		dep, ok := g.tasks[depID]
		if !ok {
			return nil, &DependencyNotFoundError{SrcTask: id, DepID: depID}
		}
		deps = append(deps, dep.Clone())
	}
	return deps, nil
}

// Dependents returns the tasks that depend on the given task, in
// declaration order.
func (g *Graph) Dependents(id string) ([]*Task, error) {
	if _, exists := g.tasks[id]; !exists {
		return nil, &TaskNotFoundError{ID: id}
	}
	g.rebuildEdges()

	dependents := make([]*Task, 0, len(g.edges[id]))
	for _, depID := range g.edges[id] {
		dependents = append(dependents, g.tasks[depID].Clone())
	}
	return dependents, nil
}

// InDegree returns the number of dependencies for a task.
func (g *Graph) InDegree(id string) (int, error) {
	if _, exists := g.tasks[id]; !exists {
		return 0, &TaskNotFoundError{ID: id}
	}
	g.rebuildEdges()
	return g.inDegree[id], nil
}

// Roots returns tasks with no dependencies, in declaration order.
func (g *Graph) Roots() []*Task {
	g.rebuildEdges()

	roots := make([]*Task, 0)
	for _, id := range g.order {
		if g.inDegree[id] == 0 {
			roots = append(roots, g.tasks[id].Clone())
		}
	}
	return roots
}

// rebuildEdges rebuilds the adjacency structures from task dependencies.
func (g *Graph) rebuildEdges() {
	if !g.dirty {
		return
	}

	g.edges = make(map[string][]string, len(g.tasks))
	g.inDegree = make(map[string]int, len(g.tasks))
	for _, id := range g.order {
		g.edges[id] = []string{}
		g.inDegree[id] = 0
	}

	// Iterate in declaration order so dependent lists are deterministic.
	for _, id := range g.order {
		for _, depID := range g.tasks[id].Deps {
			if _, ok := g.tasks[depID]; !ok {
				continue // reported by Validate
			}
			g.edges[depID] = append(g.edges[depID], id)
			g.inDegree[id]++
		}
	}
	g.dirty = false
}

// Validate checks the graph for errors: all dependencies must exist and
// the graph must be acyclic.
func (g *Graph) Validate() error {
	g.rebuildEdges()

	for _, id := range g.order {
		for _, depID := range g.tasks[id].Deps {
			if _, exists := g.tasks[depID]; !exists {
				return &DependencyNotFoundError{SrcTask: id, DepID: depID}
			}
		}
	}

	if cycle, hasCycle := g.DetectCycle(); hasCycle {
		return cycle
	}
	return nil
}

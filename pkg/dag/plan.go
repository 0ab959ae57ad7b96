package dag

import (
	"fmt"
	"strings"
)

// ExecutionPlan is a compiled graph ready for scheduling.
type ExecutionPlan struct {
	// Layers contains task IDs grouped by execution layer. Tasks in the
	// same layer can run in parallel.
	Layers [][]string `json:"layers"`

	// CriticalPath is the longest dependency chain from any root to any
	// leaf. It bounds the minimum number of sequential steps.
	CriticalPath []string `json:"critical_path"`

	// TotalTasks is the total number of tasks in the plan.
	TotalTasks int `json:"total_tasks"`

	// MaxParallel is the widest layer.
	MaxParallel int `json:"max_parallel"`

	// TotalLayers is the number of execution layers.
	TotalLayers int `json:"total_layers"`

	taskMap map[string]*Task
}

// Compile validates the graph and compiles it into an ExecutionPlan.
func (g *Graph) Compile() (*ExecutionPlan, error) {
	if len(g.tasks) == 0 {
		return &ExecutionPlan{
			Layers:       [][]string{},
			CriticalPath: []string{},
			taskMap:      make(map[string]*Task),
		}, nil
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	layers, err := g.Levels()
	if err != nil {
		return nil, err
	}

	maxParallel := 0
	for _, layer := range layers {
		if len(layer) > maxParallel {
			maxParallel = len(layer)
		}
	}

	taskMap := make(map[string]*Task, len(g.tasks))
	for id, task := range g.tasks {
		taskMap[id] = task.Clone()
	}

	return &ExecutionPlan{
		Layers:       layers,
		CriticalPath: g.criticalPath(),
		TotalTasks:   len(g.tasks),
		MaxParallel:  maxParallel,
		TotalLayers:  len(layers),
		taskMap:      taskMap,
	}, nil
}

// criticalPath finds the longest dependency chain by dynamic programming
// over the topological order.
func (g *Graph) criticalPath() []string {
	order, err := g.TopologicalSort()
	if err != nil {
		return []string{}
	}

	dist := make(map[string]int, len(g.tasks))
	prev := make(map[string]string, len(g.tasks))
	for _, id := range order {
		dist[id] = 1
	}

	maxDist := 0
	maxNode := ""
	for _, id := range order {
		for _, depID := range g.tasks[id].Deps {
			if dist[depID]+1 > dist[id] {
				dist[id] = dist[depID] + 1
				prev[id] = depID
			}
		}
		if dist[id] > maxDist {
			maxDist = dist[id]
			maxNode = id
		}
	}

	if maxNode == "" {
		return []string{}
	}
	var path []string
	for node := maxNode; node != ""; node = prev[node] {
		path = append([]string{node}, path...)
	}
	return path
}

// GetTask retrieves a task from the plan by ID.
func (p *ExecutionPlan) GetTask(id string) (*Task, bool) {
	task, ok := p.taskMap[id]
	if !ok {
		return nil, false
	}
	return task.Clone(), true
}

// GetLayer returns the layer index for a given task ID, or -1 if the task
// is not in the plan.
func (p *ExecutionPlan) GetLayer(taskID string) int {
	if p == nil {
		return -1
	}
	for i, layer := range p.Layers {
		for _, id := range layer {
			if id == taskID {
				return i
			}
		}
	}
	return -1
}

// DependentsOf returns the IDs of tasks that depend on the given task,
// directly, in no particular order.
func (p *ExecutionPlan) DependentsOf(taskID string) []string {
	var dependents []string
	for id, task := range p.taskMap {
		if task.HasDependency(taskID) {
			dependents = append(dependents, id)
		}
	}
	return dependents
}

// IsReady checks if every dependency of a task is completed.
func (p *ExecutionPlan) IsReady(taskID string, completed map[string]bool) bool {
	task, ok := p.taskMap[taskID]
	if !ok {
		return false
	}
	for _, dep := range task.Deps {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// String returns a string representation of the execution plan.
func (p *ExecutionPlan) String() string {
	var sb strings.Builder
	sb.WriteString("ExecutionPlan{\n")
	sb.WriteString(fmt.Sprintf("  Total Tasks: %d\n", p.TotalTasks))
	sb.WriteString(fmt.Sprintf("  Total Layers: %d\n", p.TotalLayers))
	sb.WriteString(fmt.Sprintf("  Max Parallel: %d\n", p.MaxParallel))
	sb.WriteString(fmt.Sprintf("  Critical Path: %v\n", p.CriticalPath))
	for i, layer := range p.Layers {
		sb.WriteString(fmt.Sprintf("    Layer %d: %v\n", i, layer))
	}
	sb.WriteString("}")
	return sb.String()
}

package dag

import (
	"errors"
	"testing"
)

func TestNewGraph(t *testing.T) {
	g := NewGraph()
	if g == nil {
		t.Fatal("expected non-nil graph")
	}
	if !g.IsEmpty() {
		t.Error("expected empty graph")
	}
}

func TestGraph_AddTask(t *testing.T) {
	g := NewGraph()

	if err := g.AddTask(&Task{ID: "a", Stage: "extract"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.TaskCount() != 1 {
		t.Errorf("expected 1 task, got %d", g.TaskCount())
	}
	if !g.HasTask("a") {
		t.Error("expected task a to exist")
	}
}

func TestGraph_AddTask_Duplicate(t *testing.T) {
	g := NewGraph()

	g.AddTask(&Task{ID: "a", Stage: "extract"})
	err := g.AddTask(&Task{ID: "a", Stage: "classify"})
	var dup *DuplicateTaskError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateTaskError, got %v", err)
	}
	if dup.TaskID() != "a" {
		t.Errorf("expected task a, got %s", dup.TaskID())
	}
}

func TestGraph_AddTask_SelfDependency(t *testing.T) {
	g := NewGraph()

	err := g.AddTask(&Task{ID: "a", Stage: "extract", Deps: []string{"a"}})
	var self *SelfDependencyError
	if !errors.As(err, &self) {
		t.Fatalf("expected SelfDependencyError, got %v", err)
	}
}

func TestGraph_AddTask_Invalid(t *testing.T) {
	g := NewGraph()

	if err := g.AddTask(&Task{ID: "", Stage: "extract"}); err == nil {
		t.Error("expected error for empty ID")
	}
	if err := g.AddTask(&Task{ID: "a", Stage: ""}); err == nil {
		t.Error("expected error for empty stage")
	}
	if err := g.AddTask(&Task{ID: "a", Stage: "extract", Retries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}
}

func TestGraph_Validate_MissingDependency(t *testing.T) {
	g := NewGraph()

	g.AddTask(&Task{ID: "a", Stage: "extract", Deps: []string{"ghost"}})
	err := g.Validate()
	var missing *DependencyNotFoundError
	if !errors.As(err, &missing) {
		t.Fatalf("expected DependencyNotFoundError, got %v", err)
	}
	if missing.DepID != "ghost" {
		t.Errorf("expected missing dep ghost, got %s", missing.DepID)
	}
}

func TestGraph_CloneIsolation(t *testing.T) {
	g := NewGraph()

	task := &Task{ID: "a", Stage: "extract", Metadata: map[string]string{"k": "v"}}
	g.AddTask(task)

	// Mutating the original must not affect the graph's copy.
	task.Metadata["k"] = "changed"
	got, _ := g.GetTask("a")
	if got.Metadata["k"] != "v" {
		t.Error("expected graph to hold an isolated clone")
	}
}

func TestGraph_DependenciesAndDependents(t *testing.T) {
	g := NewGraph()

	g.AddTask(&Task{ID: "a", Stage: "extract"})
	g.AddTask(&Task{ID: "b", Stage: "classify", Deps: []string{"a"}})
	g.AddTask(&Task{ID: "c", Stage: "archive", Deps: []string{"a", "b"}})

	deps, err := g.Dependencies("c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deps) != 2 || deps[0].ID != "a" || deps[1].ID != "b" {
		t.Errorf("unexpected dependencies: %v", deps)
	}

	dependents, err := g.Dependents("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dependents) != 2 || dependents[0].ID != "b" || dependents[1].ID != "c" {
		t.Errorf("unexpected dependents: %v", dependents)
	}

	if _, err := g.Dependents("ghost"); err == nil {
		t.Error("expected error for unknown task")
	}
}

func TestGraph_Roots(t *testing.T) {
	g := NewGraph()

	g.AddTask(&Task{ID: "b", Stage: "extract"})
	g.AddTask(&Task{ID: "a", Stage: "extract"})
	g.AddTask(&Task{ID: "c", Stage: "classify", Deps: []string{"a"}})

	roots := g.Roots()
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	// Declaration order, not lexical order.
	if roots[0].ID != "b" || roots[1].ID != "a" {
		t.Errorf("expected declaration order [b a], got [%s %s]", roots[0].ID, roots[1].ID)
	}
}

package dag

import (
	"errors"
	"reflect"
	"testing"
)

func diamondGraph() *Graph {
	g := NewGraph()
	g.AddTask(&Task{ID: "a", Stage: "extract"})
	g.AddTask(&Task{ID: "b", Stage: "classify", Deps: []string{"a"}})
	g.AddTask(&Task{ID: "c", Stage: "classify", Deps: []string{"a"}})
	g.AddTask(&Task{ID: "d", Stage: "archive", Deps: []string{"b", "c"}})
	return g
}

func TestTopologicalSort_Diamond(t *testing.T) {
	g := diamondGraph()

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !g.IsTopologicalOrder(order) {
		t.Errorf("invalid topological order: %v", order)
	}
	if order[0] != "a" || order[3] != "d" {
		t.Errorf("expected a first and d last, got %v", order)
	}
}

func TestTopologicalSort_StableTieBreak(t *testing.T) {
	// Three independent tasks: declaration order must be preserved.
	g := NewGraph()
	g.AddTask(&Task{ID: "z", Stage: "extract"})
	g.AddTask(&Task{ID: "m", Stage: "extract"})
	g.AddTask(&Task{ID: "a", Stage: "extract"})

	first, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, []string{"z", "m", "a"}) {
		t.Errorf("expected declaration order [z m a], got %v", first)
	}

	// Repeated sorts of the same graph return the same order.
	for i := 0; i < 10; i++ {
		again, err := g.TopologicalSort()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("order not stable: %v vs %v", first, again)
		}
	}
}

func TestTopologicalSort_Empty(t *testing.T) {
	order, err := NewGraph().TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("expected empty order, got %v", order)
	}
}

func TestTopologicalSort_Cycle(t *testing.T) {
	g := NewGraph()
	g.AddTask(&Task{ID: "a", Stage: "extract", Deps: []string{"c"}})
	g.AddTask(&Task{ID: "b", Stage: "extract", Deps: []string{"a"}})
	g.AddTask(&Task{ID: "c", Stage: "extract", Deps: []string{"b"}})

	_, err := g.TopologicalSort()
	var cyc *CyclicDependencyError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CyclicDependencyError, got %v", err)
	}
	if len(cyc.Path) < 3 {
		t.Errorf("expected cycle path, got %v", cyc.Path)
	}
}

func TestLevels(t *testing.T) {
	g := diamondGraph()

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][]string{{"a"}, {"b", "c"}, {"d"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("expected %v, got %v", want, levels)
	}
}

package engine

import (
	"context"
	"fmt"

	"github.com/mailsift/mailsift/pkg/batch"
	"github.com/mailsift/mailsift/pkg/dag"
	"github.com/mailsift/mailsift/pkg/item"
)

// TaskInput is the execution context handed to an executor.
type TaskInput struct {
	// RunID identifies the workflow run.
	RunID string

	// WorkflowID identifies the workflow definition.
	WorkflowID string

	// Task is the declared task, including its metadata.
	Task *dag.Task
}

// Executor runs one stage of a workflow. Implementations must honor
// context cancellation at their next checkpoint; the engine never kills a
// task forcibly.
type Executor interface {
	Execute(ctx context.Context, in TaskInput) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, in TaskInput) error

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, in TaskInput) error {
	return f(ctx, in)
}

// ItemSource supplies the items a batch stage processes for a given task.
type ItemSource func(ctx context.Context, in TaskInput) ([]item.Item, error)

// BatchExecutor adapts the batch processor to the Executor interface, so a
// workflow task can run a full batch pass as one stage.
type BatchExecutor struct {
	Processor *batch.Processor
	Options   batch.Options
	Handler   batch.Handler
	Source    ItemSource

	// OnProgress is optional; forwarded to the batch run.
	OnProgress batch.ProgressFunc
}

// Execute implements Executor. The task fails only when the batch call
// itself is unusable or when items failed; partial failure detail stays in
// the batch result.
func (e *BatchExecutor) Execute(ctx context.Context, in TaskInput) error {
	if e.Processor == nil || e.Handler == nil || e.Source == nil {
		return fmt.Errorf("batch executor for task %s is not fully configured", in.Task.ID)
	}

	items, err := e.Source(ctx, in)
	if err != nil {
		return fmt.Errorf("loading items for task %s: %w", in.Task.ID, err)
	}

	res, err := e.Processor.Process(ctx, items, e.Handler, e.Options, e.OnProgress)
	if err != nil {
		return err
	}
	if res.Failed > 0 || res.Skipped > 0 {
		return fmt.Errorf("batch stage %s: %d of %d items did not succeed",
			in.Task.ID, res.Failed+res.Skipped, res.TotalItems)
	}
	return nil
}

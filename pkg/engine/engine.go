// Package engine provides the workflow orchestration engine: workflow
// registration, DAG scheduling, failure strategies, timeouts and run
// archival.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mailsift/mailsift/config"
	"github.com/mailsift/mailsift/pkg/archive"
	archivebadger "github.com/mailsift/mailsift/pkg/archive/badger"
	archivememory "github.com/mailsift/mailsift/pkg/archive/memory"
	"github.com/mailsift/mailsift/pkg/dag"
	"github.com/mailsift/mailsift/pkg/logger"
)

// MetricsRecorder receives engine measurements. Implementations must be
// safe for concurrent use.
type MetricsRecorder interface {
	RecordRunFinished(status string, duration time.Duration)
	RecordTaskExecution(status string, duration time.Duration)
	RecordTaskRetry()
	IncActiveRuns()
	DecActiveRuns()
}

// nopMetrics is the default recorder.
type nopMetrics struct{}

func (nopMetrics) RecordRunFinished(string, time.Duration)   {}
func (nopMetrics) RecordTaskExecution(string, time.Duration) {}
func (nopMetrics) RecordTaskRetry()                          {}
func (nopMetrics) IncActiveRuns()                            {}
func (nopMetrics) DecActiveRuns()                            {}

// Engine orchestrates workflow runs. Create with New, register executors
// and workflows, then Start before submitting runs.
type Engine struct {
	cfg config.EngineConfig
	log logger.Logger

	metrics     MetricsRecorder
	store       archive.Store
	ownsStore   bool
	archiveRuns bool

	mu        sync.RWMutex
	running   bool
	executors map[string]Executor
	workflows map[string]*Workflow
	plans     map[string]*dag.ExecutionPlan
	orders    map[string][]string // stable topological order per workflow

	// sem bounds tasks running at once across all runs.
	sem chan struct{}

	runMu   sync.Mutex
	runs    map[string]*RunHandle
	runWG   sync.WaitGroup

	statsMu         sync.Mutex
	runsFinished    int64
	tasksFinished   int64
	totalRunSeconds float64
}

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger overrides the global logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics sets the metrics recorder for the engine.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithArchive sets the run archive store. The caller keeps ownership and
// must close it; without this option the engine opens the store configured
// in the archive section and closes it on Stop.
func WithArchive(s archive.Store) Option {
	return func(e *Engine) {
		if s != nil {
			e.store = s
			e.ownsStore = false
		}
	}
}

// New creates a workflow engine from configuration.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	e := &Engine{
		cfg:         cfg.Engine,
		log:         logger.Global(),
		metrics:     nopMetrics{},
		archiveRuns: cfg.Engine.ArchiveRuns,
		executors:   make(map[string]Executor),
		workflows:   make(map[string]*Workflow),
		plans:       make(map[string]*dag.ExecutionPlan),
		orders:      make(map[string][]string),
		runs:        make(map[string]*RunHandle),
	}

	maxTasks := cfg.Engine.MaxConcurrentTasks
	if maxTasks <= 0 {
		maxTasks = 1
	}
	e.sem = make(chan struct{}, maxTasks)

	for _, opt := range opts {
		opt(e)
	}

	if e.archiveRuns && e.store == nil {
		store, err := openArchive(cfg.Archive)
		if err != nil {
			return nil, err
		}
		e.store = store
		e.ownsStore = true
	}

	return e, nil
}

// openArchive builds the configured archive backend.
func openArchive(cfg config.ArchiveConfig) (archive.Store, error) {
	switch cfg.Backend {
	case "badger":
		return archivebadger.NewBadgerStore(&archivebadger.Config{
			Path:       cfg.Path,
			SyncWrites: cfg.SyncWrites,
		})
	case "", "memory":
		return archivememory.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

// RegisterExecutor binds an executor to a stage name. Tasks reference
// executors by stage. Re-registering a stage replaces the executor.
func (e *Engine) RegisterExecutor(stage string, ex Executor) error {
	if stage == "" {
		return fmt.Errorf("stage cannot be empty")
	}
	if ex == nil {
		return fmt.Errorf("executor for stage %q cannot be nil", stage)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executors[stage] = ex
	return nil
}

// RegisterWorkflow validates and compiles a workflow definition. Cyclic
// dependencies, missing dependencies and unknown stages are rejected here,
// before any run starts.
func (e *Engine) RegisterWorkflow(wf *Workflow) error {
	if wf == nil {
		return fmt.Errorf("workflow cannot be nil")
	}
	if err := wf.Validate(); err != nil {
		return &WorkflowCompileError{WorkflowID: wf.ID, Cause: err}
	}

	g := dag.NewGraph()
	for _, task := range wf.Tasks {
		if err := g.AddTask(task); err != nil {
			return &WorkflowCompileError{WorkflowID: wf.ID, Cause: err}
		}
	}
	plan, err := g.Compile()
	if err != nil {
		return &WorkflowCompileError{WorkflowID: wf.ID, Cause: err}
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return &WorkflowCompileError{WorkflowID: wf.ID, Cause: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, task := range wf.Tasks {
		if _, ok := e.executors[task.Stage]; !ok {
			return &WorkflowCompileError{
				WorkflowID: wf.ID,
				Cause:      &ExecutorNotFoundError{TaskID: task.ID, Stage: task.Stage},
			}
		}
	}
	e.workflows[wf.ID] = wf
	e.plans[wf.ID] = plan
	e.orders[wf.ID] = order

	e.log.Info("workflow registered",
		"workflow_id", wf.ID,
		"tasks", len(wf.Tasks),
		"layers", plan.TotalLayers,
		"max_parallel", plan.MaxParallel,
	)
	return nil
}

// Workflow returns a registered workflow definition.
func (e *Engine) Workflow(id string) (*Workflow, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	wf, ok := e.workflows[id]
	return wf, ok
}

// Start makes the engine accept run submissions.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("engine is already running")
	}
	e.running = true
	e.log.Info("engine started", "max_concurrent_tasks", cap(e.sem))
	return nil
}

// Stop drains active runs and shuts the engine down. New submissions are
// rejected immediately; active runs get DrainTimeout to finish before they
// are cancelled.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		e.runWG.Wait()
		close(drained)
	}()

	drain := e.cfg.DrainTimeout
	if drain <= 0 {
		drain = 30 * time.Second
	}

	select {
	case <-drained:
	case <-time.After(drain):
		e.log.Warn("drain timeout elapsed, cancelling active runs")
		e.cancelActiveRuns()
		<-drained
	case <-ctx.Done():
		e.cancelActiveRuns()
		<-drained
	}

	if e.ownsStore && e.store != nil {
		if err := e.store.Close(); err != nil {
			e.log.Error("closing run archive", "error", err)
		}
	}
	e.log.Info("engine stopped")
	return nil
}

func (e *Engine) cancelActiveRuns() {
	e.runMu.Lock()
	handles := make([]*RunHandle, 0, len(e.runs))
	for _, h := range e.runs {
		handles = append(handles, h)
	}
	e.runMu.Unlock()
	for _, h := range handles {
		h.Cancel()
	}
}

// isRunning reports whether the engine accepts submissions.
func (e *Engine) isRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Stats is a snapshot of engine-wide aggregate metrics.
type Stats struct {
	// RunsFinished is the number of runs that reached a terminal status.
	RunsFinished int64

	// TasksFinished is the number of tasks that reached a terminal
	// status across all runs.
	TasksFinished int64

	// AvgRunDuration is the mean duration of finished runs.
	AvgRunDuration time.Duration

	// AvgTasksPerRun is the mean task count of finished runs.
	AvgTasksPerRun float64

	// ActiveRuns is the number of runs currently executing.
	ActiveRuns int

	// RegisteredWorkflows is the number of registered definitions.
	RegisteredWorkflows int
}

// Stats returns a consistent snapshot of the engine's aggregate counters.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	runs := e.runsFinished
	tasks := e.tasksFinished
	seconds := e.totalRunSeconds
	e.statsMu.Unlock()

	s := Stats{
		RunsFinished:  runs,
		TasksFinished: tasks,
	}
	if runs > 0 {
		s.AvgRunDuration = time.Duration(seconds / float64(runs) * float64(time.Second))
		s.AvgTasksPerRun = float64(tasks) / float64(runs)
	}

	e.runMu.Lock()
	s.ActiveRuns = len(e.runs)
	e.runMu.Unlock()

	e.mu.RLock()
	s.RegisteredWorkflows = len(e.workflows)
	e.mu.RUnlock()

	return s
}

// recordRunFinished folds one finished run into the aggregate counters.
func (e *Engine) recordRunFinished(res *RunResult) {
	e.statsMu.Lock()
	e.runsFinished++
	e.tasksFinished += int64(len(res.Tasks))
	e.totalRunSeconds += res.Duration.Seconds()
	e.statsMu.Unlock()

	e.metrics.RecordRunFinished(string(res.Status), res.Duration)
}

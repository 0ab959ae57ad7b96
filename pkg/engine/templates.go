package engine

import (
	"time"

	"github.com/mailsift/mailsift/pkg/dag"
)

// Stage tags shared by the built-in workflow templates. Register an
// executor for each stage a template references before registering the
// template's workflow.
const (
	StageExtract     = "extract"
	StageClassify    = "classify"
	StagePatternScan = "patterns"
	StagePrivacyScan = "privacy"
	StageIndex       = "index"
	StageSummarize   = "summary"
)

// ComprehensiveWorkflow wires every analysis stage as dependent tasks:
// extraction feeds the three analysis passes, which feed indexing and the
// final summary. Parallel execution with the continue strategy, so one
// failing analysis pass does not stop its siblings.
func ComprehensiveWorkflow() *Workflow {
	return &Workflow{
		ID:            "comprehensive",
		Name:          "Comprehensive Analysis",
		Description:   "Full analysis pipeline over the mailbox",
		AllowParallel: true,
		OnFailure:     FailureContinue,
		Tasks: []*dag.Task{
			{ID: "extract", Name: "Extract messages", Stage: StageExtract},
			{ID: "classify", Name: "Classify messages", Stage: StageClassify, Deps: []string{"extract"}},
			{ID: "patterns", Name: "Detect patterns", Stage: StagePatternScan, Deps: []string{"extract"}},
			{ID: "privacy", Name: "Scan for sensitive data", Stage: StagePrivacyScan, Deps: []string{"extract"}},
			{ID: "index", Name: "Build retrieval index", Stage: StageIndex, Deps: []string{"classify", "patterns"}},
			{ID: "summary", Name: "Summarize findings", Stage: StageSummarize, Deps: []string{"index", "privacy"}},
		},
	}
}

// PrivacyFocusedWorkflow runs the privacy pass strictly sequentially with
// the stop strategy: a privacy failure must halt the pipeline rather than
// be masked by continued processing.
func PrivacyFocusedWorkflow() *Workflow {
	return &Workflow{
		ID:            "privacy-focused",
		Name:          "Privacy Scan",
		Description:   "Sequential privacy-first pass",
		AllowParallel: false,
		OnFailure:     FailureStop,
		Tasks: []*dag.Task{
			{ID: "extract", Name: "Extract messages", Stage: StageExtract},
			{ID: "privacy", Name: "Scan for sensitive data", Stage: StagePrivacyScan, Deps: []string{"extract"}},
			{ID: "summary", Name: "Summarize findings", Stage: StageSummarize, Deps: []string{"privacy"}},
		},
	}
}

// performanceOptimizedTimeout bounds the fast pipeline when the caller
// does not supply a timeout.
const performanceOptimizedTimeout = 5 * time.Minute

// PerformanceOptimizedWorkflow is the fast pipeline: only extraction,
// classification and indexing, parallel, with a bounded global timeout.
// Pass zero to use the default timeout.
func PerformanceOptimizedWorkflow(timeout time.Duration) *Workflow {
	if timeout <= 0 {
		timeout = performanceOptimizedTimeout
	}
	return &Workflow{
		ID:            "performance-optimized",
		Name:          "Fast Analysis",
		Description:   "Latency-bounded pipeline without deep analysis",
		AllowParallel: true,
		OnFailure:     FailureContinue,
		GlobalTimeout: timeout,
		Tasks: []*dag.Task{
			{ID: "extract", Name: "Extract messages", Stage: StageExtract},
			{ID: "classify", Name: "Classify messages", Stage: StageClassify, Deps: []string{"extract"}},
			{ID: "index", Name: "Build retrieval index", Stage: StageIndex, Deps: []string{"classify"}},
		},
	}
}

package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const runTracerName = "mailsift.engine"

const (
	spanRunExecute = "workflow.run"
	spanTaskRun    = "workflow.task.run"
)

func runTracer() trace.Tracer {
	return otel.Tracer(runTracerName)
}

package orchestrator

import (
	"context"
	"time"
)

// SingleRunWorkflow runs every selected partition once
type SingleRunWorkflow struct {
	orchestrator Orchestrator
}

// NewSingleRunWorkflow creates a new single run workflow
func NewSingleRunWorkflow(orchestrator Orchestrator) Workflow {
	return &SingleRunWorkflow{orchestrator: orchestrator}
}

// Execute runs the single run workflow
func (w *SingleRunWorkflow) Execute(ctx context.Context) (*RunReport, error) {
	return w.orchestrator.RunAll(ctx)
}

// GetWorkflowType returns the workflow type
func (w *SingleRunWorkflow) GetWorkflowType() WorkflowType {
	return WorkflowTypeSingle
}

// WatchWorkflow re-runs all partitions on a fixed interval until cancelled
type WatchWorkflow struct {
	orchestrator Orchestrator
	interval     time.Duration
}

// NewWatchWorkflow creates a new watch workflow
func NewWatchWorkflow(orchestrator Orchestrator, interval time.Duration) Workflow {
	return &WatchWorkflow{orchestrator: orchestrator, interval: interval}
}

// Execute blocks until ctx is cancelled. Watch mode has no final report.
func (w *WatchWorkflow) Execute(ctx context.Context) (*RunReport, error) {
	return nil, w.orchestrator.Watch(ctx, w.interval)
}

// GetWorkflowType returns the workflow type
func (w *WatchWorkflow) GetWorkflowType() WorkflowType {
	return WorkflowTypeWatch
}

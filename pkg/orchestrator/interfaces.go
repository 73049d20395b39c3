package orchestrator

import (
	"context"
	"time"

	"github.com/ducminhle1904/dna-evolution/internal/monitoring"
	"github.com/ducminhle1904/dna-evolution/pkg/reporting"
	"github.com/ducminhle1904/dna-evolution/pkg/strategy"
)

// Orchestrator coordinates discovery, per-partition evolution runs and watch cycles
type Orchestrator interface {
	// Discover lists partitions with enough admissible events and those skipped
	Discover(ctx context.Context) (*Discovery, error)

	// RunAll runs every selected partition plus the global fallback once
	RunAll(ctx context.Context) (*RunReport, error)

	// Watch repeats RunAll every interval until ctx is cancelled
	Watch(ctx context.Context, interval time.Duration) error
}

// PartitionRunner executes the full pipeline for one partition
type PartitionRunner interface {
	Run(ctx context.Context, job PartitionJob) *PartitionResult
}

// Workflow represents different execution workflows
type Workflow interface {
	// Execute runs the workflow and returns the last run report
	Execute(ctx context.Context) (*RunReport, error)

	// GetWorkflowType returns the type of workflow
	GetWorkflowType() WorkflowType
}

// WorkflowType represents different types of workflows
type WorkflowType string

const (
	WorkflowTypeSingle WorkflowType = "single"
	WorkflowTypeWatch  WorkflowType = "watch"
)

// SkippedPartition is a partition below the admissible event threshold
type SkippedPartition struct {
	Partition  string `json:"partition"`
	Admissible int    `json:"admissible"`
	Need       int    `json:"need"`
}

// Discovery is the outcome of partition discovery. Eligible is sorted by key.
type Discovery struct {
	Eligible []string
	Skipped  []SkippedPartition
}

// PartitionJob is one scheduled partition run
type PartitionJob struct {
	Partition string
	Index     int
	Seed      uint64
	Resume    bool
}

// PartitionResult represents the outcome of one partition run
type PartitionResult struct {
	Partition   string
	Status      string
	Document    *strategy.Document
	Generations int
	Resumed     bool
	Elapsed     time.Duration
	Error       error
}

// RunReport represents the results of one run over all selected partitions
type RunReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []PartitionResult
	Skipped    []SkippedPartition
	Comparison []reporting.ComparisonRow
}

// Documents returns every document produced by the run, in job order
func (r *RunReport) Documents() []*strategy.Document {
	var docs []*strategy.Document
	for _, res := range r.Results {
		if res.Document != nil {
			docs = append(docs, res.Document)
		}
	}
	return docs
}

// Failed returns the partitions whose run ended in a fault. Skips and interruptions
// are expected outcomes and not listed.
func (r *RunReport) Failed() []string {
	var failed []string
	for _, res := range r.Results {
		if res.Status == monitoring.StatusFailed {
			failed = append(failed, res.Partition)
		}
	}
	return failed
}

// Result returns the result for a partition
func (r *RunReport) Result(partition string) (PartitionResult, bool) {
	for _, res := range r.Results {
		if res.Partition == partition {
			return res, true
		}
	}
	return PartitionResult{}, false
}

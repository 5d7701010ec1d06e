package run

import (
	"context"
	"time"
)

// Package run tracks pipeline runs through their state machine.
//
// State Machine:
//
//   Gathering → ContextBuilt → Invoked → Extracted → Validated → Persisted
//       │            │            │          │            │
//       └────────────┴────────────┴──────────┴────────────┴──→ Failed(stage, reason)
//
//   Gathering → Persisted is allowed for runs that need no reasoning call
//   (a parts run whose parts are all in stock).
//
// Persisted and Failed are terminal. There are no automatic retries: a
// failed run stays failed and a new run must be started.
//
// Every transition is written to the audit log under the run id, which is
// also the correlation id of the run's context.

// Stage is a state of a run.
type Stage string

const (
	StageGathering    Stage = "Gathering"
	StageContextBuilt Stage = "ContextBuilt"
	StageInvoked      Stage = "Invoked"
	StageExtracted    Stage = "Extracted"
	StageValidated    Stage = "Validated"
	StagePersisted    Stage = "Persisted"
	StageFailed       Stage = "Failed"
)

// Workflow names the pipeline a run executes.
type Workflow string

const (
	WorkflowSchedule   Workflow = "schedule"
	WorkflowPartsOrder Workflow = "parts_order"
)

// Run is the tracked state of one pipeline execution.
type Run struct {
	// ID is the unique identifier (and audit correlation id) of the run
	ID string `json:"id"`

	Workflow    Workflow `json:"workflow"`
	WorkOrderID string   `json:"work_order_id"`

	// Stage is the current state
	Stage Stage `json:"stage"`

	// FailedStage and Reason are set when Stage is Failed
	FailedStage Stage  `json:"failed_stage,omitempty"`
	Reason      string `json:"reason,omitempty"`

	// ArtifactID is the id of the persisted schedule or order
	ArtifactID string `json:"artifact_id,omitempty"`

	// Warnings collects recovered problems (fallbacks, transcripts)
	Warnings []string `json:"warnings,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the run has finished.
func (r *Run) Terminal() bool {
	return r.Stage == StagePersisted || r.Stage == StageFailed
}

// Tracker records run state.
type Tracker interface {
	// Start registers a new run in Gathering and returns a copy of it.
	Start(ctx context.Context, workflow Workflow, workOrderID string) (*Run, error)

	// Advance moves a run to the next stage.
	Advance(ctx context.Context, id string, stage Stage) error

	// Warn appends a warning to a run.
	Warn(ctx context.Context, id, warning string) error

	// Complete moves a run to Persisted and records the artifact.
	Complete(ctx context.Context, id, artifactID string) error

	// Fail moves a run to Failed, remembering the stage that failed.
	Fail(ctx context.Context, id string, stage Stage, cause error) error

	// Get returns a copy of a run.
	Get(ctx context.Context, id string) (*Run, error)

	// List returns copies of the most recent runs, newest first.
	List(ctx context.Context, limit int) []Run
}

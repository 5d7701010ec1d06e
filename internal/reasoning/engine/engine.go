package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/kubilitics/maintenance-agent/internal/analytics/reliability"
	"github.com/kubilitics/maintenance-agent/internal/models"
	"github.com/kubilitics/maintenance-agent/internal/reasoning/run"
)

// Package engine provides the maintenance reasoning pipeline.
//
// The engine runs two workflows over the same state machine:
//
//   ScheduleMaintenance:
//     Gathering     work order, then history and windows concurrently
//     ContextBuilt  reliability statistics and the scheduling briefing
//     Invoked       reasoning call with the machine's transcript restored
//     Extracted     JSON object pulled out of the reply
//     Validated     decision checked against the schedule schema
//     Persisted     schedule saved, work order moved to Scheduled
//
//   OrderParts:
//     Gathering     work order; if every part is in stock the work order
//                   moves straight to Ready and the run ends Persisted
//     ...           otherwise inventory and suppliers are read
//                   concurrently and the same stages follow, ending with a
//                   Pending order and the work order in PartsOrdered
//
// Failure at any stage ends the run in Failed and returns *RunError. Only a
// missing work order, an unusable reply, a failed reasoning call and a
// failed save are fatal. Store read failures, transcript problems and a
// status update failing after the artifact was saved are warnings.
//
// Runs are independent: the engine holds no per-entity state and never
// retries. Callers put deadlines on ctx.

// Engine runs maintenance pipelines.
type Engine interface {
	// ScheduleMaintenance produces and persists a maintenance schedule for
	// the work order.
	ScheduleMaintenance(ctx context.Context, workOrderID string) (*ScheduleResult, error)

	// OrderParts produces and persists a parts order for the work order's
	// missing parts, or marks it Ready when nothing is missing.
	OrderParts(ctx context.Context, workOrderID string) (*PartsOrderResult, error)
}

// Options tunes the pipeline.
type Options struct {
	// WindowDaysAhead is how far ahead maintenance windows are read (default 14).
	WindowDaysAhead int

	// HistoryLimit and WindowLimit bound the briefing when the engine builds
	// its own context builder.
	HistoryLimit int
	WindowLimit  int

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// DefaultWindowDaysAhead is the default window look-ahead.
const DefaultWindowDaysAhead = 14

// RunError reports a run that ended in Failed.
type RunError struct {
	RunID    string
	Workflow run.Workflow
	Stage    run.Stage // stage that failed
	Err      error

	// Response is the raw reasoning reply, when one was received.
	Response string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s run %s failed at %s: %v", e.Workflow, e.RunID, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// ScheduleResult is the outcome of a successful scheduling run.
type ScheduleResult struct {
	RunID     string                      `json:"runId"`
	Schedule  *models.MaintenanceSchedule `json:"schedule"`
	WorkOrder *models.WorkOrder           `json:"workOrder"`
	Stats     reliability.FaultStats      `json:"stats"`

	// Warnings lists problems the run recovered from.
	Warnings []string `json:"warnings,omitempty"`

	// Fallbacks names the record sources that served fallback data.
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// PartsOrderResult is the outcome of a successful parts run. Order is nil
// when every required part was already available.
type PartsOrderResult struct {
	RunID     string             `json:"runId"`
	Order     *models.PartsOrder `json:"order,omitempty"`
	WorkOrder *models.WorkOrder  `json:"workOrder"`

	Warnings  []string `json:"warnings,omitempty"`
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// PartsReady reports whether the run skipped ordering.
func (r *PartsOrderResult) PartsReady() bool {
	return r.Order == nil
}

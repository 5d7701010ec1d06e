package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kubilitics/maintenance-agent/internal/audit"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// DefaultCapacity is how many runs the tracker remembers.
const DefaultCapacity = 256

// trackerImpl implements Tracker in memory
type trackerImpl struct {
	auditLog audit.Logger
	now      func() time.Time
	capacity int

	mu    sync.RWMutex
	runs  map[string]*Run
	order []string // run ids, oldest first
}

// NewTracker creates a new in-memory run tracker. Once capacity runs are
// held, the oldest terminal run is forgotten for each new one.
func NewTracker(auditLog audit.Logger, capacity int) Tracker {
	if auditLog == nil {
		auditLog = audit.NewNopLogger()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &trackerImpl{
		auditLog: auditLog,
		now:      time.Now,
		capacity: capacity,
		runs:     make(map[string]*Run),
	}
}

// Start registers a new run in Gathering
func (t *trackerImpl) Start(ctx context.Context, workflow Workflow, workOrderID string) (*Run, error) {
	if workOrderID == "" {
		return nil, fmt.Errorf("work order id is required")
	}

	r := &Run{
		ID:          uuid.New().String(),
		Workflow:    workflow,
		WorkOrderID: workOrderID,
		Stage:       StageGathering,
		StartedAt:   t.now().UTC(),
	}

	t.mu.Lock()
	t.evictLocked()
	t.runs[r.ID] = r
	t.order = append(t.order, r.ID)
	cp := r.copy()
	t.mu.Unlock()

	_ = t.auditLog.LogRunStarted(ctx, r.ID, string(workflow), workOrderID)
	return cp, nil
}

// Advance moves a run to the next stage
func (t *trackerImpl) Advance(ctx context.Context, id string, stage Stage) error {
	t.mu.Lock()
	r, ok := t.runs[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err := validateStageTransition(r.Workflow, r.Stage, stage); err != nil {
		t.mu.Unlock()
		return err
	}
	r.Stage = stage
	workflow := r.Workflow
	t.mu.Unlock()

	_ = t.auditLog.LogStageReached(ctx, id, string(workflow), string(stage))
	return nil
}

// Warn appends a warning to a run
func (t *trackerImpl) Warn(_ context.Context, id, warning string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	r.Warnings = append(r.Warnings, warning)
	return nil
}

// Complete moves a run to Persisted
func (t *trackerImpl) Complete(ctx context.Context, id, artifactID string) error {
	t.mu.Lock()
	r, ok := t.runs[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err := validateStageTransition(r.Workflow, r.Stage, StagePersisted); err != nil {
		t.mu.Unlock()
		return err
	}
	finished := t.now().UTC()
	r.Stage = StagePersisted
	r.ArtifactID = artifactID
	r.FinishedAt = &finished
	workflow, started := r.Workflow, r.StartedAt
	t.mu.Unlock()

	_ = t.auditLog.LogRunCompleted(ctx, id, string(workflow), artifactID, finished.Sub(started))
	return nil
}

// Fail moves a run to Failed
func (t *trackerImpl) Fail(ctx context.Context, id string, stage Stage, cause error) error {
	t.mu.Lock()
	r, ok := t.runs[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if r.Terminal() {
		t.mu.Unlock()
		return fmt.Errorf("invalid state transition: %s → %s", r.Stage, StageFailed)
	}
	finished := t.now().UTC()
	r.Stage = StageFailed
	r.FailedStage = stage
	if cause != nil {
		r.Reason = cause.Error()
	}
	r.FinishedAt = &finished
	workflow := r.Workflow
	t.mu.Unlock()

	_ = t.auditLog.LogRunFailed(ctx, id, string(workflow), string(stage), cause)
	return nil
}

// Get returns a copy of a run
func (t *trackerImpl) Get(_ context.Context, id string) (*Run, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r.copy(), nil
}

// List returns the most recent runs, newest first
func (t *trackerImpl) List(_ context.Context, limit int) []Run {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit <= 0 || limit > len(t.order) {
		limit = len(t.order)
	}
	out := make([]Run, 0, limit)
	for i := len(t.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *t.runs[t.order[i]].copy())
	}
	return out
}

// evictLocked drops the oldest terminal run when at capacity (caller must
// hold lock). Runs still in flight are never dropped.
func (t *trackerImpl) evictLocked() {
	if len(t.order) < t.capacity {
		return
	}
	for i, id := range t.order {
		if t.runs[id].Terminal() {
			delete(t.runs, id)
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

func (r *Run) copy() *Run {
	cp := *r
	if r.Warnings != nil {
		cp.Warnings = append([]string(nil), r.Warnings...)
	}
	if r.FinishedAt != nil {
		f := *r.FinishedAt
		cp.FinishedAt = &f
	}
	return &cp
}

// validateStageTransition checks if a stage transition is valid.
// Only a parts-order run may go straight from Gathering to Persisted, when
// every required part is already available.
func validateStageTransition(workflow Workflow, from, to Stage) error {
	if workflow == WorkflowPartsOrder && from == StageGathering && to == StagePersisted {
		return nil
	}

	validTransitions := map[Stage][]Stage{
		StageGathering:    {StageContextBuilt},
		StageContextBuilt: {StageInvoked},
		StageInvoked:      {StageExtracted},
		StageExtracted:    {StageValidated},
		StageValidated:    {StagePersisted},
		StagePersisted:    {}, // Terminal
		StageFailed:       {}, // Terminal
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("invalid current stage: %s", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid state transition: %s → %s", from, to)
}

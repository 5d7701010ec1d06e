package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kubilitics/maintenance-agent/internal/analytics/reliability"
	"github.com/kubilitics/maintenance-agent/internal/audit"
	"github.com/kubilitics/maintenance-agent/internal/llm/adapter"
	"github.com/kubilitics/maintenance-agent/internal/llm/types"
	"github.com/kubilitics/maintenance-agent/internal/memory/conversation"
	"github.com/kubilitics/maintenance-agent/internal/metrics"
	"github.com/kubilitics/maintenance-agent/internal/models"
	"github.com/kubilitics/maintenance-agent/internal/observability"
	reasoningContext "github.com/kubilitics/maintenance-agent/internal/reasoning/context"
	"github.com/kubilitics/maintenance-agent/internal/reasoning/extract"
	"github.com/kubilitics/maintenance-agent/internal/reasoning/prompt"
	"github.com/kubilitics/maintenance-agent/internal/reasoning/run"
	"github.com/kubilitics/maintenance-agent/internal/records"
)

// Deps are the collaborators of the engine. Records and Invoker are
// required; the rest default to in-process implementations.
type Deps struct {
	Records     *records.Store
	Invoker     adapter.Invoker
	Transcripts *conversation.Manager
	Builder     reasoningContext.Builder
	Prompts     prompt.Manager
	Tracker     run.Tracker
	AuditLog    audit.Logger
	Logger      *zap.Logger
}

// engineImpl is the concrete Engine.
type engineImpl struct {
	records     *records.Store
	invoker     adapter.Invoker
	transcripts *conversation.Manager
	builder     reasoningContext.Builder
	prompts     prompt.Manager
	tracker     run.Tracker
	auditLog    audit.Logger
	logger      *zap.Logger

	windowDaysAhead int
	now             func() time.Time
}

// NewEngine creates a pipeline engine.
func NewEngine(deps Deps, opts Options) (Engine, error) {
	if deps.Records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if deps.Invoker == nil {
		return nil, fmt.Errorf("reasoning invoker is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	auditLog := deps.AuditLog
	if auditLog == nil {
		auditLog = audit.NewNopLogger()
	}
	prompts := deps.Prompts
	if prompts == nil {
		prompts = prompt.NewManager()
	}
	builder := deps.Builder
	if builder == nil {
		builder = reasoningContext.NewBuilder(prompts, reasoningContext.Options{
			HistoryLimit: opts.HistoryLimit,
			WindowLimit:  opts.WindowLimit,
		})
	}
	transcripts := deps.Transcripts
	if transcripts == nil {
		transcripts = conversation.NewManager(deps.Records, logger, 0)
	}
	tracker := deps.Tracker
	if tracker == nil {
		tracker = run.NewTracker(auditLog, 0)
	}

	daysAhead := opts.WindowDaysAhead
	if daysAhead <= 0 {
		daysAhead = DefaultWindowDaysAhead
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &engineImpl{
		records:         deps.Records,
		invoker:         deps.Invoker,
		transcripts:     transcripts,
		builder:         builder,
		prompts:         prompts,
		tracker:         tracker,
		auditLog:        auditLog,
		logger:          logger.Named("engine"),
		windowDaysAhead: daysAhead,
		now:             now,
	}, nil
}

// ScheduleMaintenance runs the scheduling workflow.
func (e *engineImpl) ScheduleMaintenance(ctx context.Context, workOrderID string) (*ScheduleResult, error) {
	ctx, rs, err := e.begin(ctx, run.WorkflowSchedule, workOrderID)
	if err != nil {
		return nil, err
	}
	defer rs.end()

	now := e.now().UTC()

	// ── Gathering ───────────────────────────────────────────────────────────
	wo, err := e.records.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, rs.fail(ctx, run.StageGathering, fmt.Errorf("failed to load work order: %w", err), "")
	}
	rs.span.SetAttributes(attribute.String("machine.id", wo.MachineID))

	var (
		history records.Result[models.MaintenanceHistory]
		windows records.Result[models.MaintenanceWindow]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		history = e.records.GetHistory(gctx, wo.MachineID)
		return nil
	})
	g.Go(func() error {
		windows = e.records.GetWindows(gctx, e.windowDaysAhead)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, rs.fail(ctx, run.StageGathering, err, "")
	}
	noteFallback(ctx, rs, records.SourceHistory, history)
	noteFallback(ctx, rs, records.SourceWindows, windows)

	// ── ContextBuilt ────────────────────────────────────────────────────────
	stats := reliability.Compute(wo, history.Items, now)
	briefing, err := e.builder.BuildScheduleContext(reasoningContext.ScheduleInput{
		WorkOrder: wo,
		History:   history.Items,
		Windows:   windows.Items,
		Stats:     stats,
		Now:       now,
	})
	if err != nil {
		return nil, rs.fail(ctx, run.StageContextBuilt, err, "")
	}
	rs.advance(ctx, run.StageContextBuilt)

	// ── Invoked ─────────────────────────────────────────────────────────────
	reply, err := e.reason(ctx, rs, prompt.PurposePredictiveMaintenance, wo.MachineID, briefing)
	if err != nil {
		return nil, err
	}

	// ── Extracted / Validated ───────────────────────────────────────────────
	decision, err := extract.ParseSchedule(reply)
	if err != nil {
		return nil, rs.fail(ctx, parseStage(err), err, reply)
	}
	rs.advance(ctx, run.StageExtracted)
	rs.advance(ctx, run.StageValidated)

	// ── Persisted ───────────────────────────────────────────────────────────
	schedule := &models.MaintenanceSchedule{
		ID:                          "sched-" + shortID(),
		WorkOrderID:                 wo.ID,
		MachineID:                   wo.MachineID,
		ScheduledDate:               decision.ScheduledDate,
		MaintenanceWindow:           decision.MaintenanceWindow,
		RiskScore:                   decision.RiskScore,
		PredictedFailureProbability: decision.PredictedFailureProbability,
		RecommendedAction:           decision.RecommendedAction,
		Reasoning:                   decision.Reasoning,
		CreatedAt:                   now,
	}
	if err := e.records.SaveSchedule(ctx, schedule); err != nil {
		return nil, rs.fail(ctx, run.StagePersisted, fmt.Errorf("failed to save schedule: %w", err), reply)
	}
	updated := e.transition(ctx, rs, wo, models.StatusScheduled)
	rs.complete(ctx, schedule.ID, "persisted")

	e.logger.Info("maintenance scheduled",
		zap.String("run_id", rs.id),
		zap.String("work_order_id", wo.ID),
		zap.String("schedule_id", schedule.ID),
		zap.Float64("risk_score", schedule.RiskScore),
		zap.String("action", string(schedule.RecommendedAction)),
	)

	return &ScheduleResult{
		RunID:     rs.id,
		Schedule:  schedule,
		WorkOrder: updated,
		Stats:     stats,
		Warnings:  rs.warnings,
		Fallbacks: rs.fallbacks,
	}, nil
}

// OrderParts runs the parts-ordering workflow.
func (e *engineImpl) OrderParts(ctx context.Context, workOrderID string) (*PartsOrderResult, error) {
	ctx, rs, err := e.begin(ctx, run.WorkflowPartsOrder, workOrderID)
	if err != nil {
		return nil, err
	}
	defer rs.end()

	now := e.now().UTC()

	// ── Gathering ───────────────────────────────────────────────────────────
	wo, err := e.records.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, rs.fail(ctx, run.StageGathering, fmt.Errorf("failed to load work order: %w", err), "")
	}

	missing := wo.MissingPartNumbers()
	if len(missing) == 0 {
		// Nothing to order: the status change is the whole outcome.
		updated, err := e.records.UpdateWorkOrderStatus(ctx, wo.ID, models.StatusReady)
		if err != nil {
			return nil, rs.fail(ctx, run.StagePersisted, fmt.Errorf("failed to mark work order ready: %w", err), "")
		}
		_ = e.auditLog.LogStatusChanged(ctx, rs.id, wo.ID, string(wo.Status), string(updated.Status))
		rs.complete(ctx, "", "skipped")
		e.logger.Info("all parts available, work order ready",
			zap.String("run_id", rs.id),
			zap.String("work_order_id", wo.ID),
		)
		return &PartsOrderResult{RunID: rs.id, WorkOrder: updated}, nil
	}

	var (
		inventory records.Result[models.InventoryItem]
		suppliers records.Result[models.Supplier]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		inventory = e.records.GetInventory(gctx, wo.PartNumbers())
		return nil
	})
	g.Go(func() error {
		suppliers = e.records.GetSuppliers(gctx, missing)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, rs.fail(ctx, run.StageGathering, err, "")
	}
	noteFallback(ctx, rs, records.SourceInventory, inventory)
	noteFallback(ctx, rs, records.SourceSuppliers, suppliers)

	// ── ContextBuilt ────────────────────────────────────────────────────────
	briefing, err := e.builder.BuildPartsContext(reasoningContext.PartsInput{
		WorkOrder: wo,
		Inventory: inventory.Items,
		Suppliers: suppliers.Items,
	})
	if err != nil {
		return nil, rs.fail(ctx, run.StageContextBuilt, err, "")
	}
	rs.advance(ctx, run.StageContextBuilt)

	// ── Invoked ─────────────────────────────────────────────────────────────
	reply, err := e.reason(ctx, rs, prompt.PurposePartsOrdering, wo.ID, briefing)
	if err != nil {
		return nil, err
	}

	// ── Extracted / Validated ───────────────────────────────────────────────
	decision, err := extract.ParsePartsOrder(reply)
	if err != nil {
		return nil, rs.fail(ctx, parseStage(err), err, reply)
	}
	rs.advance(ctx, run.StageExtracted)
	rs.advance(ctx, run.StageValidated)

	// ── Persisted ───────────────────────────────────────────────────────────
	order := &models.PartsOrder{
		ID:                   "PO-" + shortID(),
		WorkOrderID:          wo.ID,
		OrderItems:           decision.OrderItems,
		SupplierID:           decision.SupplierID,
		SupplierName:         decision.SupplierName,
		TotalCost:            decision.TotalCost,
		ExpectedDeliveryDate: decision.ExpectedDeliveryDate,
		OrderStatus:          models.OrderStatusPending,
		CreatedAt:            now,
	}
	if err := e.records.SavePartsOrder(ctx, order); err != nil {
		return nil, rs.fail(ctx, run.StagePersisted, fmt.Errorf("failed to save parts order: %w", err), reply)
	}
	updated := e.transition(ctx, rs, wo, models.StatusPartsOrdered)
	rs.complete(ctx, order.ID, "persisted")

	e.logger.Info("parts ordered",
		zap.String("run_id", rs.id),
		zap.String("work_order_id", wo.ID),
		zap.String("order_id", order.ID),
		zap.String("supplier_id", order.SupplierID),
		zap.Float64("total_cost", order.TotalCost),
	)

	return &PartsOrderResult{
		RunID:     rs.id,
		Order:     order,
		WorkOrder: updated,
		Warnings:  rs.warnings,
		Fallbacks: rs.fallbacks,
	}, nil
}

// reason restores the entity's transcript, invokes the agent and saves the
// extended transcript. Transcript problems only produce warnings.
func (e *engineImpl) reason(ctx context.Context, rs *runState, purpose prompt.Purpose, entityID, briefing string) (string, error) {
	instructions, err := e.prompts.Instructions(purpose)
	if err != nil {
		return "", rs.fail(ctx, run.StageInvoked, err, "")
	}

	history, err := e.transcripts.Load(ctx, entityID)
	if err != nil {
		rs.transcriptDegraded(ctx, entityID, err)
		history = nil
	}

	ictx, span := observability.StartSpan(ctx, "pipeline.invoke",
		attribute.String("llm.provider", e.invoker.Provider()),
		attribute.String("llm.model", e.invoker.Model()),
		attribute.Int("transcript.turns", len(history)),
	)
	resp, err := e.invoker.Invoke(ictx, types.Request{
		Instructions: instructions,
		Briefing:     briefing,
		History:      history,
		Purpose:      string(purpose),
		EntityID:     entityID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return "", rs.fail(ctx, run.StageInvoked, fmt.Errorf("reasoning call failed: %w", err), "")
	}
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("llm.completion_tokens", resp.Usage.CompletionTokens),
	)
	span.End()
	rs.advance(ctx, run.StageInvoked)

	turns := make([]types.Message, 0, len(history)+2)
	turns = append(turns, history...)
	turns = append(turns,
		types.Message{Role: types.RoleUser, Content: briefing},
		types.Message{Role: types.RoleAssistant, Content: resp.Text},
	)
	if err := e.transcripts.Save(ctx, entityID, string(purpose), turns); err != nil {
		rs.transcriptDegraded(ctx, entityID, err)
	}

	return resp.Text, nil
}

// transition moves the work order to status after its artifact was saved.
// Failure is a warning: the artifact is already durable.
func (e *engineImpl) transition(ctx context.Context, rs *runState, wo *models.WorkOrder, status models.WorkOrderStatus) *models.WorkOrder {
	updated, err := e.records.UpdateWorkOrderStatus(ctx, wo.ID, status)
	if err != nil {
		rs.warn(ctx, fmt.Sprintf("work order %s not moved to %s: %v", wo.ID, status, err))
		return wo
	}
	_ = e.auditLog.LogStatusChanged(ctx, rs.id, wo.ID, string(wo.Status), string(updated.Status))
	return updated
}

// parseStage maps an extractor error to the stage that failed.
func parseStage(err error) run.Stage {
	var schemaErr *extract.SchemaValidationError
	if errors.As(err, &schemaErr) {
		return run.StageValidated
	}
	return run.StageExtracted
}

func shortID() string {
	return uuid.NewString()[:8]
}

// ─────────────────────────────────────────────────────────────────────────────
// Run bookkeeping
// ─────────────────────────────────────────────────────────────────────────────

// runState carries one run's tracking handles and collected warnings.
type runState struct {
	e        *engineImpl
	id       string
	workflow run.Workflow
	started  time.Time
	span     trace.Span
	logger   *zap.Logger

	warnings  []string
	fallbacks []string
}

func (e *engineImpl) begin(ctx context.Context, workflow run.Workflow, workOrderID string) (context.Context, *runState, error) {
	r, err := e.tracker.Start(ctx, workflow, workOrderID)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues(string(workflow), "failed").Inc()
		metrics.PipelineStageFailures.WithLabelValues(string(workflow), string(run.StageGathering)).Inc()
		return ctx, nil, &RunError{Workflow: workflow, Stage: run.StageGathering, Err: err}
	}

	ctx = audit.WithCorrelationID(ctx, r.ID)
	ctx, span := observability.StartSpan(ctx, "pipeline."+string(workflow),
		attribute.String("run.id", r.ID),
		attribute.String("work_order.id", workOrderID),
	)

	rs := &runState{
		e:        e,
		id:       r.ID,
		workflow: workflow,
		started:  time.Now(),
		span:     span,
		logger: e.logger.With(
			zap.String("run_id", r.ID),
			zap.String("workflow", string(workflow)),
			zap.String("work_order_id", workOrderID),
		),
	}
	rs.logger.Debug("run started")
	return ctx, rs, nil
}

func (rs *runState) advance(ctx context.Context, stage run.Stage) {
	if err := rs.e.tracker.Advance(ctx, rs.id, stage); err != nil {
		rs.logger.Error("run tracker rejected stage", zap.String("stage", string(stage)), zap.Error(err))
	}
	rs.span.AddEvent(string(stage))
	rs.logger.Debug("stage reached", zap.String("stage", string(stage)))
}

func (rs *runState) warn(ctx context.Context, warning string) {
	rs.warnings = append(rs.warnings, warning)
	_ = rs.e.tracker.Warn(ctx, rs.id, warning)
	rs.logger.Warn("run degraded", zap.String("warning", warning))
}

func (rs *runState) transcriptDegraded(ctx context.Context, entityID string, err error) {
	rs.warn(ctx, err.Error())
	_ = rs.e.auditLog.LogTranscriptDegraded(ctx, rs.id, entityID, err)
}

func noteFallback[T any](ctx context.Context, rs *runState, source string, res records.Result[T]) {
	if !res.Fallback() {
		return
	}
	rs.fallbacks = append(rs.fallbacks, source)
	rs.warn(ctx, fmt.Sprintf("%s: %s", source, res.Reason))
	_ = rs.e.auditLog.LogFallbackUsed(ctx, rs.id, source, res.Reason)
}

func (rs *runState) fail(ctx context.Context, stage run.Stage, err error, response string) error {
	_ = rs.e.tracker.Fail(ctx, rs.id, stage, err)

	metrics.PipelineRunsTotal.WithLabelValues(string(rs.workflow), "failed").Inc()
	metrics.PipelineStageFailures.WithLabelValues(string(rs.workflow), string(stage)).Inc()
	if kind := extract.Kind(err); kind != "" {
		metrics.ExtractionFailures.WithLabelValues(kind).Inc()
	}

	rs.span.RecordError(err)
	rs.span.SetStatus(codes.Error, err.Error())
	rs.logger.Error("run failed", zap.String("stage", string(stage)), zap.Error(err))

	return &RunError{
		RunID:    rs.id,
		Workflow: rs.workflow,
		Stage:    stage,
		Err:      err,
		Response: response,
	}
}

func (rs *runState) complete(ctx context.Context, artifactID, outcome string) {
	if err := rs.e.tracker.Complete(ctx, rs.id, artifactID); err != nil {
		rs.logger.Error("run tracker rejected completion", zap.Error(err))
	}
	metrics.PipelineRunsTotal.WithLabelValues(string(rs.workflow), outcome).Inc()
	rs.span.SetAttributes(attribute.String("artifact.id", artifactID))
	rs.span.SetStatus(codes.Ok, "")
}

func (rs *runState) end() {
	metrics.PipelineRunDuration.WithLabelValues(string(rs.workflow)).Observe(time.Since(rs.started).Seconds())
	rs.span.End()
}

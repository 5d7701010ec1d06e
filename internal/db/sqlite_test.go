package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kubilitics/maintenance-agent/internal/models"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ts(s string) time.Time {
	t, err := models.ParseTimestamp(s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsPtr(s string) *time.Time {
	t := ts(s)
	return &t
}

func sampleWorkOrder() *models.WorkOrder {
	return &models.WorkOrder{
		ID:                 "wo-test-001",
		MachineID:          "MACHINE-001",
		FaultType:          "Hydraulic Pressure Drop",
		Priority:           models.PriorityHigh,
		AssignedTechnician: "tech-042",
		RequiredParts: []models.RequiredPart{
			{PartNumber: "HYD-SEAL-100", PartName: "Hydraulic Seal Kit", Quantity: 2, IsAvailable: false},
		},
		EstimatedDuration: 240,
		CreatedAt:         ts("2026-01-02T09:30:00Z"),
		Status:            models.StatusCreated,
	}
}

// ─── Work orders ──────────────────────────────────────────────────────────────

func TestWorkOrderRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	wo := sampleWorkOrder()
	if err := s.UpsertWorkOrder(ctx, wo); err != nil {
		t.Fatalf("UpsertWorkOrder: %v", err)
	}

	got, err := s.GetWorkOrder(ctx, "wo-test-001")
	if err != nil {
		t.Fatalf("GetWorkOrder: %v", err)
	}
	if got.MachineID != "MACHINE-001" || got.FaultType != wo.FaultType {
		t.Errorf("unexpected work order: %+v", got)
	}
	if len(got.RequiredParts) != 1 || got.RequiredParts[0].Quantity != 2 {
		t.Errorf("required parts not preserved: %+v", got.RequiredParts)
	}
	if !got.CreatedAt.Equal(wo.CreatedAt) {
		t.Errorf("created_at: want %s, got %s", wo.CreatedAt, got.CreatedAt)
	}
}

func TestGetWorkOrder_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetWorkOrder(context.Background(), "wo-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReplaceWorkOrderStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertWorkOrder(ctx, sampleWorkOrder()); err != nil {
		t.Fatalf("UpsertWorkOrder: %v", err)
	}

	updated, err := s.ReplaceWorkOrderStatus(ctx, "wo-test-001", models.StatusScheduled)
	if err != nil {
		t.Fatalf("ReplaceWorkOrderStatus: %v", err)
	}
	if updated.Status != models.StatusScheduled {
		t.Errorf("returned status: want Scheduled, got %s", updated.Status)
	}

	got, err := s.GetWorkOrder(ctx, "wo-test-001")
	if err != nil {
		t.Fatalf("GetWorkOrder: %v", err)
	}
	if got.Status != models.StatusScheduled {
		t.Errorf("stored status: want Scheduled, got %s", got.Status)
	}
	if got.AssignedTechnician != "tech-042" || len(got.RequiredParts) != 1 {
		t.Errorf("other fields must survive the recreate: %+v", got)
	}
}

func TestReplaceWorkOrderStatus_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ReplaceWorkOrderStatus(context.Background(), "wo-missing", models.StatusReady)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReplaceWorkOrderStatus_CancelledKeepsRow(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertWorkOrder(context.Background(), sampleWorkOrder()); err != nil {
		t.Fatalf("UpsertWorkOrder: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ReplaceWorkOrderStatus(ctx, "wo-test-001", models.StatusReady); err == nil {
		t.Fatal("expected error with cancelled context")
	}

	got, err := s.GetWorkOrder(context.Background(), "wo-test-001")
	if err != nil {
		t.Fatalf("work order lost after failed status change: %v", err)
	}
	if got.Status != models.StatusCreated {
		t.Errorf("status changed despite failure: %s", got.Status)
	}
}

// ─── History ─────────────────────────────────────────────────────────────────

func TestListHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	recs := []models.MaintenanceHistory{
		{ID: "hist-002", MachineID: "MACHINE-001", FaultType: "Hydraulic Pressure Drop", OccurrenceDate: tsPtr("2025-11-20T14:00:00Z"), Downtime: 180, Cost: 1200},
		{ID: "hist-001", MachineID: "MACHINE-001", FaultType: "Hydraulic Pressure Drop", OccurrenceDate: tsPtr("2025-12-15T08:00:00Z"), ResolutionDate: tsPtr("2025-12-15T11:30:00Z"), Downtime: 210, Cost: 1500},
		{ID: "hist-003", MachineID: "MACHINE-001", FaultType: "Spindle Vibration"},
		{ID: "hist-900", MachineID: "MACHINE-002", FaultType: "Hydraulic Pressure Drop", OccurrenceDate: tsPtr("2025-10-01T00:00:00Z")},
	}
	for i := range recs {
		if err := s.AppendHistory(ctx, &recs[i]); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	got, err := s.ListHistory(ctx, "MACHINE-001")
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].ID != "hist-001" || got[1].ID != "hist-002" {
		t.Errorf("expected newest first, got %s, %s", got[0].ID, got[1].ID)
	}
	if got[2].OccurrenceDate != nil {
		t.Errorf("undated record should keep nil occurrence date")
	}
	if got[0].ResolutionDate == nil || !got[0].ResolutionDate.Equal(ts("2025-12-15T11:30:00Z")) {
		t.Errorf("resolution date not preserved: %v", got[0].ResolutionDate)
	}
}

// ─── Windows ─────────────────────────────────────────────────────────────────

func TestListAvailableWindows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	windows := []models.MaintenanceWindow{
		{ID: "mw-b", StartTime: ts("2026-01-05T22:00:00Z"), EndTime: ts("2026-01-06T06:00:00Z"), ProductionImpact: models.ImpactLow, IsAvailable: true},
		{ID: "mw-a", StartTime: ts("2026-01-03T22:00:00Z"), EndTime: ts("2026-01-04T06:00:00Z"), ProductionImpact: models.ImpactMedium, IsAvailable: true},
		{ID: "mw-taken", StartTime: ts("2026-01-04T22:00:00Z"), EndTime: ts("2026-01-05T06:00:00Z"), ProductionImpact: models.ImpactLow, IsAvailable: false},
		{ID: "mw-late", StartTime: ts("2026-02-01T22:00:00Z"), EndTime: ts("2026-02-02T06:00:00Z"), ProductionImpact: models.ImpactLow, IsAvailable: true},
	}
	for i := range windows {
		if err := s.UpsertWindow(ctx, &windows[i]); err != nil {
			t.Fatalf("UpsertWindow: %v", err)
		}
	}

	got, err := s.ListAvailableWindows(ctx, ts("2026-01-02T00:00:00Z"), ts("2026-01-16T00:00:00Z"))
	if err != nil {
		t.Fatalf("ListAvailableWindows: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 windows, got %d: %+v", len(got), got)
	}
	if got[0].ID != "mw-a" || got[1].ID != "mw-b" {
		t.Errorf("expected start order mw-a, mw-b; got %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].ProductionImpact != models.ImpactMedium || !got[0].IsAvailable {
		t.Errorf("window fields not preserved: %+v", got[0])
	}
}

// ─── Inventory & suppliers ───────────────────────────────────────────────────

func TestListInventory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	items := []models.InventoryItem{
		{ID: "inv-2", PartNumber: "HYD-PUMP-200", PartName: "Pump", CurrentStock: 0, ReorderPoint: 1, Location: "B-1"},
		{ID: "inv-1", PartNumber: "HYD-SEAL-100", PartName: "Seal Kit", CurrentStock: 10, MinStock: 2, ReorderPoint: 3, Location: "A-12"},
		{ID: "inv-3", PartNumber: "SPN-BRG-7", PartName: "Bearing", CurrentStock: 4},
	}
	for i := range items {
		if err := s.UpsertInventoryItem(ctx, &items[i]); err != nil {
			t.Fatalf("UpsertInventoryItem: %v", err)
		}
	}

	got, err := s.ListInventory(ctx, []string{"HYD-SEAL-100", "HYD-PUMP-200", "UNKNOWN"})
	if err != nil {
		t.Fatalf("ListInventory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].PartNumber != "HYD-PUMP-200" || got[1].PartNumber != "HYD-SEAL-100" {
		t.Errorf("expected part-number order, got %s, %s", got[0].PartNumber, got[1].PartNumber)
	}
	if got[1].ReorderPoint != 3 || got[1].Location != "A-12" {
		t.Errorf("fields not preserved: %+v", got[1])
	}

	empty, err := s.ListInventory(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("empty part list: got %v, %v", empty, err)
	}
}

func TestListSuppliersForParts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sups := []models.Supplier{
		{ID: "sup-b", Name: "Bearings Inc", Parts: []string{"SPN-BRG-7"}, LeadTimeDays: 2, Reliability: "Medium"},
		{ID: "sup-a", Name: "Hydro GmbH", Parts: []string{"HYD-SEAL-100", "HYD-PUMP-200"}, LeadTimeDays: 4, Reliability: "High", ContactEmail: "orders@hydro.example"},
		{ID: "sup-c", Name: "All Parts", Parts: []string{"HYD-PUMP-200", "SPN-BRG-7"}, LeadTimeDays: 7, Reliability: "Low"},
	}
	for i := range sups {
		if err := s.UpsertSupplier(ctx, &sups[i]); err != nil {
			t.Fatalf("UpsertSupplier: %v", err)
		}
	}

	got, err := s.ListSuppliersForParts(ctx, []string{"HYD-PUMP-200", "HYD-SEAL-100"})
	if err != nil {
		t.Fatalf("ListSuppliersForParts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 suppliers, got %d", len(got))
	}
	if got[0].ID != "sup-a" || got[1].ID != "sup-c" {
		t.Errorf("expected sup-a, sup-c; got %s, %s", got[0].ID, got[1].ID)
	}
	if len(got[0].Parts) != 2 || got[0].Parts[0] != "HYD-SEAL-100" {
		t.Errorf("parts list not preserved in order: %v", got[0].Parts)
	}

	// Re-upserting replaces the part list.
	sups[1].Parts = []string{"HYD-SEAL-100"}
	if err := s.UpsertSupplier(ctx, &sups[1]); err != nil {
		t.Fatalf("UpsertSupplier update: %v", err)
	}
	got, err = s.ListSuppliersForParts(ctx, []string{"HYD-SEAL-100"})
	if err != nil {
		t.Fatalf("ListSuppliersForParts: %v", err)
	}
	if len(got) != 1 || len(got[0].Parts) != 1 {
		t.Errorf("expected updated part list, got %+v", got)
	}
}

// ─── Artifacts ───────────────────────────────────────────────────────────────

func TestScheduleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sc := &models.MaintenanceSchedule{
		ID:            "sched-1",
		WorkOrderID:   "wo-test-001",
		MachineID:     "MACHINE-001",
		ScheduledDate: ts("2026-01-03T22:00:00Z"),
		MaintenanceWindow: models.MaintenanceWindow{
			ID: "mw-2026-01-03-night", StartTime: ts("2026-01-03T22:00:00Z"), EndTime: ts("2026-01-04T06:00:00Z"),
			ProductionImpact: models.ImpactLow, IsAvailable: true,
		},
		RiskScore:                   72.5,
		PredictedFailureProbability: 0.41,
		RecommendedAction:           models.ActionUrgent,
		Reasoning:                   "Cycle nearly complete.",
		CreatedAt:                   ts("2026-01-02T10:00:00Z"),
	}
	if err := s.SaveSchedule(ctx, sc); err != nil {
		t.Fatalf("SaveSchedule: %v", err)
	}
	if err := s.SaveSchedule(ctx, sc); err == nil {
		t.Errorf("schedules are immutable: duplicate insert should fail")
	}

	got, err := s.GetSchedule(ctx, "sched-1")
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if got.RiskScore != 72.5 || got.RecommendedAction != models.ActionUrgent {
		t.Errorf("unexpected schedule: %+v", got)
	}
	if got.MaintenanceWindow.ID != "mw-2026-01-03-night" || !got.MaintenanceWindow.EndTime.Equal(sc.MaintenanceWindow.EndTime) {
		t.Errorf("window not preserved: %+v", got.MaintenanceWindow)
	}

	if _, err := s.GetSchedule(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPartsOrderRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := &models.PartsOrder{
		ID:          "PO-1a2b3c4d",
		WorkOrderID: "wo-test-001",
		OrderItems: []models.OrderItem{
			{PartNumber: "HYD-SEAL-100", PartName: "Seal Kit", Quantity: 2, UnitCost: 45.5, TotalCost: 91},
			{PartNumber: "HYD-PUMP-200", PartName: "Pump", Quantity: 1, UnitCost: 800, TotalCost: 800},
		},
		SupplierID:           "sup-a",
		SupplierName:         "Hydro GmbH",
		TotalCost:            891,
		ExpectedDeliveryDate: ts("2026-01-06T00:00:00Z"),
		OrderStatus:          models.OrderStatusPending,
		CreatedAt:            ts("2026-01-02T10:00:00Z"),
	}
	if err := s.SavePartsOrder(ctx, o); err != nil {
		t.Fatalf("SavePartsOrder: %v", err)
	}

	got, err := s.GetPartsOrder(ctx, "PO-1a2b3c4d")
	if err != nil {
		t.Fatalf("GetPartsOrder: %v", err)
	}
	if len(got.OrderItems) != 2 || got.OrderItems[1].PartNumber != "HYD-PUMP-200" {
		t.Errorf("order items not preserved: %+v", got.OrderItems)
	}
	if got.OrderStatus != "Pending" || got.TotalCost != 891 {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestSavePartsOrder_InvalidItemRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := &models.PartsOrder{
		ID:          "PO-bad",
		WorkOrderID: "wo-test-001",
		OrderItems: []models.OrderItem{
			{PartNumber: "HYD-SEAL-100", Quantity: 1},
			{PartNumber: "HYD-PUMP-200", Quantity: 0},
		},
		SupplierID:   "sup-a",
		SupplierName: "Hydro GmbH",
		OrderStatus:  models.OrderStatusPending,
	}
	if err := s.SavePartsOrder(ctx, o); err == nil {
		t.Fatal("expected check constraint failure")
	}
	if _, err := s.GetPartsOrder(ctx, "PO-bad"); !errors.Is(err, ErrNotFound) {
		t.Errorf("partial order persisted: %v", err)
	}
}

// ─── Transcripts ─────────────────────────────────────────────────────────────

func TestTranscriptSaveLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.LoadTranscript(ctx, "MACHINE-001")
	if err != nil || got != nil {
		t.Fatalf("absent transcript: want nil, nil; got %v, %v", got, err)
	}

	rec := &TranscriptRecord{
		EntityID:  "MACHINE-001",
		Purpose:   "predictive_maintenance",
		Turns:     []TurnRecord{{Role: "user", Content: "brief"}, {Role: "assistant", Content: "{}"}},
		UpdatedAt: ts("2026-01-02T10:00:00Z"),
	}
	if err := s.SaveTranscript(ctx, rec); err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}

	rec.Turns = []TurnRecord{{Role: "user", Content: "second"}}
	if err := s.SaveTranscript(ctx, rec); err != nil {
		t.Fatalf("SaveTranscript overwrite: %v", err)
	}

	got, err = s.LoadTranscript(ctx, "MACHINE-001")
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}
	if len(got.Turns) != 1 || got.Turns[0].Content != "second" {
		t.Errorf("expected overwritten transcript, got %+v", got.Turns)
	}
	if got.Purpose != "predictive_maintenance" {
		t.Errorf("purpose: %s", got.Purpose)
	}
}

// ─── Usage ───────────────────────────────────────────────────────────────────

func TestUsageSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, at := range []string{"2026-01-01T10:00:00Z", "2026-01-02T10:00:00Z", "2026-02-01T10:00:00Z"} {
		rec := &UsageRecord{
			RunID: "run", Workflow: "schedule", Provider: "openai", Model: "gpt-4o",
			PromptTokens: 100 * (i + 1), CompletionTokens: 10, RecordedAt: ts(at),
		}
		if err := s.AppendUsageRecord(ctx, rec); err != nil {
			t.Fatalf("AppendUsageRecord: %v", err)
		}
		if rec.ID == 0 {
			t.Errorf("expected generated id")
		}
	}

	sum, err := s.SummarizeUsage(ctx, ts("2026-01-01T00:00:00Z"), ts("2026-01-31T23:59:59Z"))
	if err != nil {
		t.Fatalf("SummarizeUsage: %v", err)
	}
	if sum.Calls != 2 || sum.PromptTokens != 300 || sum.CompletionTokens != 20 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

// ─── Seed ────────────────────────────────────────────────────────────────────

func TestSeedFromFixtures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f, err := LoadFixtures("testdata/fixtures.yaml")
	if err != nil {
		t.Fatalf("LoadFixtures: %v", err)
	}
	counts, err := Seed(ctx, s, f)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	want := SeedCounts{WorkOrders: 1, History: 2, Windows: 1, Inventory: 1, Suppliers: 1}
	if counts != want {
		t.Errorf("counts: want %+v, got %+v", want, counts)
	}

	wo, err := s.GetWorkOrder(ctx, "wo-test-001")
	if err != nil {
		t.Fatalf("GetWorkOrder: %v", err)
	}
	if wo.Status != models.StatusCreated {
		t.Errorf("default status: %s", wo.Status)
	}
	if len(wo.MissingPartNumbers()) != 1 {
		t.Errorf("expected one missing part, got %v", wo.MissingPartNumbers())
	}

	sups, err := s.ListSuppliersForParts(ctx, wo.MissingPartNumbers())
	if err != nil || len(sups) != 1 || sups[0].ID != "sup-hydro" {
		t.Errorf("seeded supplier lookup: %+v, %v", sups, err)
	}
}

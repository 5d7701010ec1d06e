package context

import (
	"time"

	"github.com/kubilitics/maintenance-agent/internal/analytics/reliability"
	"github.com/kubilitics/maintenance-agent/internal/models"
)

// Package context provides briefing assembly for the reasoning call.
//
// Responsibilities:
//   - Render entities and derived statistics as a markdown briefing
//   - Bound the briefing (recent history and window counts are capped)
//   - Mark missing data explicitly so the agent does not invent it
//   - Close every briefing with the output schema block
//
// Determinism:
//   Identical inputs give byte-identical output. The only time value in a
//   briefing is the Now field of the input; nothing reads the wall clock.
//   Lists are either sorted with a total order (history, windows) or
//   rendered in input order (parts, inventory, suppliers).
//
// Briefing Sections (scheduling):
//   1. Work order summary
//   2. Historical data summary, or a NO HISTORICAL DATA marker
//   3. Most recent history records, newest first
//   4. Available maintenance windows, earliest first
//   5. Output schema and JSON skeleton
//
// Briefing Sections (parts ordering):
//   1. Work order summary
//   2. Required parts with availability
//   3. Inventory with NEEDS ORDERING flags
//   4. Suppliers with a parts preview
//   5. Output schema and JSON skeleton

// ScheduleInput is everything a scheduling briefing is built from.
type ScheduleInput struct {
	WorkOrder *models.WorkOrder
	History   []models.MaintenanceHistory
	Windows   []models.MaintenanceWindow
	Stats     reliability.FaultStats
	Now       time.Time
}

// PartsInput is everything a parts-ordering briefing is built from.
type PartsInput struct {
	WorkOrder *models.WorkOrder
	Inventory []models.InventoryItem
	Suppliers []models.Supplier
}

// Options bounds the rendered lists.
type Options struct {
	HistoryLimit int // most recent history records shown (default 5)
	WindowLimit  int // earliest windows shown (default 10)
}

// Builder defines the interface for briefing assembly.
type Builder interface {
	// BuildScheduleContext renders the predictive-maintenance briefing.
	BuildScheduleContext(in ScheduleInput) (string, error)

	// BuildPartsContext renders the parts-ordering briefing.
	BuildPartsContext(in PartsInput) (string, error)

	// GetTokenCount estimates token usage of a briefing.
	GetTokenCount(briefing string) int
}

package db

import (
	"context"
	"errors"
	"time"

	"github.com/kubilitics/maintenance-agent/internal/models"
)

// ErrNotFound is returned (wrapped) when a keyed lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface for the maintenance agent.
type Store interface {
	WorkOrderStore
	HistoryStore
	WindowStore
	InventoryStore
	SupplierStore
	ScheduleStore
	PartsOrderStore
	TranscriptStore
	UsageStore

	// Close releases database resources.
	Close() error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
}

// ─── Work orders ──────────────────────────────────────────────────────────────

// WorkOrderStore reads and writes work orders.
type WorkOrderStore interface {
	// GetWorkOrder returns ErrNotFound when id is unknown.
	GetWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error)

	// UpsertWorkOrder inserts or fully replaces a work order.
	UpsertWorkOrder(ctx context.Context, wo *models.WorkOrder) error

	// ReplaceWorkOrderStatus changes the status of a work order by deleting
	// the row and inserting it again with the new status. Both steps run in
	// one transaction, so a failure leaves the original row in place.
	ReplaceWorkOrderStatus(ctx context.Context, id string, status models.WorkOrderStatus) (*models.WorkOrder, error)
}

// ─── Maintenance history ─────────────────────────────────────────────────────

// HistoryStore reads historical fault records.
type HistoryStore interface {
	// ListHistory returns all records for a machine, newest occurrence first.
	ListHistory(ctx context.Context, machineID string) ([]models.MaintenanceHistory, error)

	// AppendHistory adds a historical record (seeding only).
	AppendHistory(ctx context.Context, rec *models.MaintenanceHistory) error
}

// ─── Maintenance windows ─────────────────────────────────────────────────────

// WindowStore reads production windows.
type WindowStore interface {
	// ListAvailableWindows returns available windows whose start lies in
	// [from, to], ordered by start time.
	ListAvailableWindows(ctx context.Context, from, to time.Time) ([]models.MaintenanceWindow, error)

	// UpsertWindow inserts or replaces a window (seeding only).
	UpsertWindow(ctx context.Context, w *models.MaintenanceWindow) error
}

// ─── Inventory & suppliers ───────────────────────────────────────────────────

// InventoryStore reads stock levels.
type InventoryStore interface {
	// ListInventory returns the stock rows for the given part numbers,
	// ordered by part number. Unknown part numbers are skipped.
	ListInventory(ctx context.Context, partNumbers []string) ([]models.InventoryItem, error)

	// UpsertInventoryItem inserts or replaces a stock row.
	UpsertInventoryItem(ctx context.Context, item *models.InventoryItem) error
}

// SupplierStore reads suppliers.
type SupplierStore interface {
	// ListSuppliersForParts returns suppliers that carry at least one of the
	// given part numbers, ordered by id.
	ListSuppliersForParts(ctx context.Context, partNumbers []string) ([]models.Supplier, error)

	// UpsertSupplier inserts or replaces a supplier and its part list.
	UpsertSupplier(ctx context.Context, sup *models.Supplier) error
}

// ─── Produced artifacts ──────────────────────────────────────────────────────

// ScheduleStore persists maintenance schedules. Schedules are immutable.
type ScheduleStore interface {
	SaveSchedule(ctx context.Context, s *models.MaintenanceSchedule) error
	GetSchedule(ctx context.Context, id string) (*models.MaintenanceSchedule, error)
}

// PartsOrderStore persists parts orders.
type PartsOrderStore interface {
	SavePartsOrder(ctx context.Context, o *models.PartsOrder) error
	GetPartsOrder(ctx context.Context, id string) (*models.PartsOrder, error)
}

// ─── Transcripts ─────────────────────────────────────────────────────────────

// TurnRecord is one stored conversation turn.
type TurnRecord struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TranscriptRecord is the stored conversation for one entity.
type TranscriptRecord struct {
	EntityID  string       `json:"entity_id"`
	Purpose   string       `json:"purpose"`
	Turns     []TurnRecord `json:"turns"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TranscriptStore persists bounded conversation transcripts.
type TranscriptStore interface {
	// SaveTranscript writes (or overwrites) the transcript for rec.EntityID.
	SaveTranscript(ctx context.Context, rec *TranscriptRecord) error

	// LoadTranscript returns nil, nil when no transcript has been saved yet.
	LoadTranscript(ctx context.Context, entityID string) (*TranscriptRecord, error)
}

// ─── LLM usage ───────────────────────────────────────────────────────────────

// UsageRecord is the token usage of one reasoning call.
type UsageRecord struct {
	ID               int64     `json:"id" db:"id"`
	RunID            string    `json:"run_id" db:"run_id"`
	Workflow         string    `json:"workflow" db:"workflow"`
	EntityID         string    `json:"entity_id" db:"entity_id"`
	Provider         string    `json:"provider" db:"provider"`
	Model            string    `json:"model" db:"model"`
	PromptTokens     int       `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens" db:"completion_tokens"`
	RecordedAt       time.Time `json:"recorded_at" db:"-"`
}

// UsageSummary aggregates usage over a time range.
type UsageSummary struct {
	Calls            int `json:"calls" db:"calls"`
	PromptTokens     int `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens" db:"completion_tokens"`
}

// UsageStore records LLM token usage per run.
type UsageStore interface {
	AppendUsageRecord(ctx context.Context, rec *UsageRecord) error
	SummarizeUsage(ctx context.Context, from, to time.Time) (*UsageSummary, error)
}

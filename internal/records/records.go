package records

// Package records is the record store the pipeline reads from and writes to.
//
// It wraps a db.Store and makes the degradation rules explicit:
//
//   - work order reads are strict: an unknown id is db.ErrNotFound
//   - history and inventory reads degrade to an empty list on failure
//   - window and supplier reads degrade to synthetic data when the backend
//     fails or has nothing to offer
//
// Every read result carries its Origin so callers can tell live data from
// fallback data. Fallbacks are logged at warn level and counted in
// maintenance_agent_fallbacks_total.

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kubilitics/maintenance-agent/internal/db"
	"github.com/kubilitics/maintenance-agent/internal/metrics"
	"github.com/kubilitics/maintenance-agent/internal/models"
)

// Origin tells where the items of a read came from.
type Origin string

const (
	OriginLive     Origin = "live"
	OriginFallback Origin = "fallback"
)

// Record sources, used as fallback labels.
const (
	SourceHistory   = "maintenance_history"
	SourceWindows   = "maintenance_windows"
	SourceInventory = "inventory"
	SourceSuppliers = "suppliers"
)

// Result is a degradable read.
type Result[T any] struct {
	Items  []T
	Origin Origin

	// Reason explains a fallback; empty for live reads.
	Reason string
}

// Fallback reports whether the items were not read from the backend.
func (r Result[T]) Fallback() bool {
	return r.Origin == OriginFallback
}

// Store is the fallback-aware record store.
type Store struct {
	backend db.Store
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for window ranges and synthetic data.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a record store over backend. The caller owns backend and
// closes it.
func New(backend db.Store, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		backend: backend,
		logger:  logger.Named("records"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetWorkOrder returns the work order or an error wrapping db.ErrNotFound.
func (s *Store) GetWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error) {
	return s.backend.GetWorkOrder(ctx, id)
}

// GetHistory returns the machine's history, newest first. A backend failure
// yields an empty fallback result.
func (s *Store) GetHistory(ctx context.Context, machineID string) Result[models.MaintenanceHistory] {
	items, err := s.backend.ListHistory(ctx, machineID)
	if err != nil {
		return fallback(s, SourceHistory, []models.MaintenanceHistory{}, "history read failed", err)
	}
	return Result[models.MaintenanceHistory]{Items: items, Origin: OriginLive}
}

// GetWindows returns available windows starting within the next daysAhead
// days. When the backend fails or has no such window, one synthetic night
// window per day is returned instead.
func (s *Store) GetWindows(ctx context.Context, daysAhead int) Result[models.MaintenanceWindow] {
	now := s.now().UTC()
	items, err := s.backend.ListAvailableWindows(ctx, now, now.AddDate(0, 0, daysAhead))
	if err != nil {
		return fallback(s, SourceWindows, FallbackWindows(now, daysAhead), "window read failed", err)
	}
	if len(items) == 0 {
		return fallback(s, SourceWindows, FallbackWindows(now, daysAhead), "no available windows", nil)
	}
	return Result[models.MaintenanceWindow]{Items: items, Origin: OriginLive}
}

// GetInventory returns stock levels for the given parts. A backend failure
// yields an empty fallback result.
func (s *Store) GetInventory(ctx context.Context, partNumbers []string) Result[models.InventoryItem] {
	items, err := s.backend.ListInventory(ctx, partNumbers)
	if err != nil {
		return fallback(s, SourceInventory, []models.InventoryItem{}, "inventory read failed", err)
	}
	return Result[models.InventoryItem]{Items: items, Origin: OriginLive}
}

// GetSuppliers returns suppliers covering at least one of the parts, or the
// fixed synthetic suppliers when there are none or the read fails.
func (s *Store) GetSuppliers(ctx context.Context, partNumbers []string) Result[models.Supplier] {
	items, err := s.backend.ListSuppliersForParts(ctx, partNumbers)
	if err != nil {
		return fallback(s, SourceSuppliers, FallbackSuppliers(), "supplier read failed", err)
	}
	if len(items) == 0 {
		return fallback(s, SourceSuppliers, FallbackSuppliers(), "no supplier covers the parts", nil)
	}
	return Result[models.Supplier]{Items: items, Origin: OriginLive}
}

// SaveSchedule persists a schedule.
func (s *Store) SaveSchedule(ctx context.Context, sched *models.MaintenanceSchedule) error {
	return s.backend.SaveSchedule(ctx, sched)
}

// SavePartsOrder persists a parts order and its items.
func (s *Store) SavePartsOrder(ctx context.Context, order *models.PartsOrder) error {
	return s.backend.SavePartsOrder(ctx, order)
}

// UpdateWorkOrderStatus replaces the work order's record with one carrying
// the new status and returns the updated work order.
func (s *Store) UpdateWorkOrderStatus(ctx context.Context, id string, status models.WorkOrderStatus) (*models.WorkOrder, error) {
	return s.backend.ReplaceWorkOrderStatus(ctx, id, status)
}

// LoadTranscript returns the stored transcript, or nil when there is none.
func (s *Store) LoadTranscript(ctx context.Context, entityID string) (*db.TranscriptRecord, error) {
	return s.backend.LoadTranscript(ctx, entityID)
}

// SaveTranscript overwrites the transcript for rec.EntityID.
func (s *Store) SaveTranscript(ctx context.Context, rec *db.TranscriptRecord) error {
	return s.backend.SaveTranscript(ctx, rec)
}

func fallback[T any](s *Store, source string, items []T, reason string, err error) Result[T] {
	fields := []zap.Field{zap.String("source", source), zap.String("reason", reason), zap.Int("items", len(items))}
	if err != nil {
		fields = append(fields, zap.Error(err))
		reason = reason + ": " + err.Error()
	}
	s.logger.Warn("using fallback records", fields...)
	metrics.FallbacksTotal.WithLabelValues(source).Inc()
	return Result[T]{Items: items, Origin: OriginFallback, Reason: reason}
}

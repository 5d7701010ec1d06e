package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"github.com/kubilitics/maintenance-agent/internal/models"
)

// migrations define the maintenance schema.
// Version is tracked in the schema_versions table.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS work_orders (
    id                  TEXT PRIMARY KEY,
    machine_id          TEXT NOT NULL,
    fault_type          TEXT NOT NULL DEFAULT '',
    priority            TEXT NOT NULL DEFAULT 'Medium',
    assigned_technician TEXT NOT NULL DEFAULT '',
    required_parts      TEXT NOT NULL DEFAULT '[]',
    estimated_duration  INTEGER NOT NULL DEFAULT 0,
    created_at          TEXT NOT NULL,
    status              TEXT NOT NULL DEFAULT 'Created'
);
CREATE INDEX IF NOT EXISTS idx_work_orders_machine ON work_orders(machine_id);

CREATE TABLE IF NOT EXISTS maintenance_history (
    id              TEXT PRIMARY KEY,
    machine_id      TEXT NOT NULL,
    fault_type      TEXT NOT NULL DEFAULT '',
    occurrence_date TEXT,
    resolution_date TEXT,
    downtime        INTEGER NOT NULL DEFAULT 0 CHECK(downtime >= 0),
    cost            REAL NOT NULL DEFAULT 0.0 CHECK(cost >= 0)
);
CREATE INDEX IF NOT EXISTS idx_history_machine ON maintenance_history(machine_id, occurrence_date DESC);

CREATE TABLE IF NOT EXISTS maintenance_windows (
    id                TEXT PRIMARY KEY,
    start_time        TEXT NOT NULL,
    end_time          TEXT NOT NULL,
    production_impact TEXT NOT NULL CHECK(production_impact IN ('Low', 'Medium', 'High')),
    is_available      BOOLEAN NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_windows_start ON maintenance_windows(is_available, start_time);

CREATE TABLE IF NOT EXISTS inventory (
    id            TEXT PRIMARY KEY,
    part_number   TEXT NOT NULL UNIQUE,
    part_name     TEXT NOT NULL DEFAULT '',
    current_stock INTEGER NOT NULL DEFAULT 0,
    min_stock     INTEGER NOT NULL DEFAULT 0,
    reorder_point INTEGER NOT NULL DEFAULT 0,
    location      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS suppliers (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    lead_time_days INTEGER NOT NULL DEFAULT 0,
    reliability    TEXT NOT NULL DEFAULT '',
    contact_email  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS supplier_parts (
    supplier_id TEXT NOT NULL REFERENCES suppliers(id) ON DELETE CASCADE,
    part_number TEXT NOT NULL,
    position    INTEGER NOT NULL,
    PRIMARY KEY (supplier_id, part_number)
);
CREATE INDEX IF NOT EXISTS idx_supplier_parts_part ON supplier_parts(part_number);
`,
	},
	// Migration 2: produced artifacts + transcripts
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS maintenance_schedules (
    id                            TEXT PRIMARY KEY,
    work_order_id                 TEXT NOT NULL,
    machine_id                    TEXT NOT NULL,
    scheduled_date                TEXT NOT NULL,
    window_id                     TEXT NOT NULL DEFAULT '',
    window_start                  TEXT NOT NULL,
    window_end                    TEXT NOT NULL,
    window_impact                 TEXT NOT NULL,
    window_available              BOOLEAN NOT NULL DEFAULT 1,
    risk_score                    REAL NOT NULL,
    predicted_failure_probability REAL NOT NULL,
    recommended_action            TEXT NOT NULL,
    reasoning                     TEXT NOT NULL DEFAULT '',
    created_at                    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_schedules_work_order ON maintenance_schedules(work_order_id);

CREATE TABLE IF NOT EXISTS parts_orders (
    id                     TEXT PRIMARY KEY,
    work_order_id          TEXT NOT NULL,
    supplier_id            TEXT NOT NULL,
    supplier_name          TEXT NOT NULL,
    total_cost             REAL NOT NULL,
    expected_delivery_date TEXT NOT NULL,
    order_status           TEXT NOT NULL DEFAULT 'Pending',
    created_at             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_parts_orders_work_order ON parts_orders(work_order_id);

CREATE TABLE IF NOT EXISTS parts_order_items (
    order_id    TEXT NOT NULL REFERENCES parts_orders(id) ON DELETE CASCADE,
    line        INTEGER NOT NULL,
    part_number TEXT NOT NULL,
    part_name   TEXT NOT NULL DEFAULT '',
    quantity    INTEGER NOT NULL CHECK(quantity > 0),
    unit_cost   REAL NOT NULL,
    total_cost  REAL NOT NULL,
    PRIMARY KEY (order_id, line)
);

CREATE TABLE IF NOT EXISTS transcripts (
    entity_id  TEXT PRIMARY KEY,
    purpose    TEXT NOT NULL,
    turns      TEXT NOT NULL DEFAULT '[]',
    updated_at TEXT NOT NULL
);
`,
	},
	// Migration 3: token usage per reasoning call
	{
		version: 3,
		sql: `
CREATE TABLE IF NOT EXISTS token_usage (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id            TEXT NOT NULL,
    workflow          TEXT NOT NULL,
    entity_id         TEXT NOT NULL DEFAULT '',
    provider          TEXT NOT NULL DEFAULT '',
    model             TEXT NOT NULL DEFAULT '',
    prompt_tokens     INTEGER NOT NULL DEFAULT 0,
    completion_tokens INTEGER NOT NULL DEFAULT 0,
    recorded_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_token_usage_recorded_at ON token_usage(recorded_at);
`,
	},
}

// timeLayout is fixed-width so that TEXT comparison in SQL matches
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// sqliteStore is the SQLite-backed implementation of Store.
type sqliteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path and
// runs all pending schema migrations. Pass ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &sqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate applies any unapplied migrations in order.
func (s *sqliteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.db.Get(&count, `SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue // already applied
		}

		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}

		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ─── Work orders ──────────────────────────────────────────────────────────────

type workOrderRow struct {
	ID                 string `db:"id"`
	MachineID          string `db:"machine_id"`
	FaultType          string `db:"fault_type"`
	Priority           string `db:"priority"`
	AssignedTechnician string `db:"assigned_technician"`
	RequiredParts      string `db:"required_parts"`
	EstimatedDuration  int    `db:"estimated_duration"`
	CreatedAt          string `db:"created_at"`
	Status             string `db:"status"`
}

func (r workOrderRow) toModel() (*models.WorkOrder, error) {
	wo := &models.WorkOrder{
		ID:                 r.ID,
		MachineID:          r.MachineID,
		FaultType:          r.FaultType,
		Priority:           models.Priority(r.Priority),
		AssignedTechnician: r.AssignedTechnician,
		EstimatedDuration:  r.EstimatedDuration,
		Status:             models.WorkOrderStatus(r.Status),
	}
	if err := json.Unmarshal([]byte(r.RequiredParts), &wo.RequiredParts); err != nil {
		return nil, fmt.Errorf("decode required parts of %s: %w", r.ID, err)
	}
	wo.CreatedAt, _ = parseTime(r.CreatedAt)
	return wo, nil
}

const workOrderColumns = `id, machine_id, fault_type, priority, assigned_technician, required_parts, estimated_duration, created_at, status`

func (s *sqliteStore) GetWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error) {
	var row workOrderRow
	err := s.db.GetContext(ctx, &row, `SELECT `+workOrderColumns+` FROM work_orders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("work order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get work order %s: %w", id, err)
	}
	return row.toModel()
}

func (s *sqliteStore) UpsertWorkOrder(ctx context.Context, wo *models.WorkOrder) error {
	parts, err := json.Marshal(nonNilParts(wo.RequiredParts))
	if err != nil {
		return fmt.Errorf("encode required parts: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO work_orders(`+workOrderColumns+`)
        VALUES(?,?,?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            machine_id          = excluded.machine_id,
            fault_type          = excluded.fault_type,
            priority            = excluded.priority,
            assigned_technician = excluded.assigned_technician,
            required_parts      = excluded.required_parts,
            estimated_duration  = excluded.estimated_duration,
            created_at          = excluded.created_at,
            status              = excluded.status
    `,
		wo.ID, wo.MachineID, wo.FaultType, string(wo.Priority), wo.AssignedTechnician,
		string(parts), wo.EstimatedDuration, formatTime(wo.CreatedAt), string(wo.Status),
	)
	if err != nil {
		return fmt.Errorf("upsert work order %s: %w", wo.ID, err)
	}
	return nil
}

func (s *sqliteStore) ReplaceWorkOrderStatus(ctx context.Context, id string, status models.WorkOrderStatus) (*models.WorkOrder, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var row workOrderRow
	err = tx.GetContext(ctx, &row, `SELECT `+workOrderColumns+` FROM work_orders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("work order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read work order %s: %w", id, err)
	}

	// Step 1: delete the current row.
	if _, err := tx.ExecContext(ctx, `DELETE FROM work_orders WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete work order %s: %w", id, err)
	}

	// Step 2: recreate it with the new status.
	row.Status = string(status)
	_, err = tx.NamedExecContext(ctx, `
        INSERT INTO work_orders(`+workOrderColumns+`)
        VALUES(:id, :machine_id, :fault_type, :priority, :assigned_technician, :required_parts, :estimated_duration, :created_at, :status)
    `, row)
	if err != nil {
		return nil, fmt.Errorf("recreate work order %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status change of %s: %w", id, err)
	}
	return row.toModel()
}

func nonNilParts(p []models.RequiredPart) []models.RequiredPart {
	if p == nil {
		return []models.RequiredPart{}
	}
	return p
}

// ─── Maintenance history ─────────────────────────────────────────────────────

type historyRow struct {
	ID             string         `db:"id"`
	MachineID      string         `db:"machine_id"`
	FaultType      string         `db:"fault_type"`
	OccurrenceDate sql.NullString `db:"occurrence_date"`
	ResolutionDate sql.NullString `db:"resolution_date"`
	Downtime       int            `db:"downtime"`
	Cost           float64        `db:"cost"`
}

func (s *sqliteStore) ListHistory(ctx context.Context, machineID string) ([]models.MaintenanceHistory, error) {
	var rows []historyRow
	err := s.db.SelectContext(ctx, &rows, `
        SELECT id, machine_id, fault_type, occurrence_date, resolution_date, downtime, cost
        FROM maintenance_history
        WHERE machine_id = ?
        ORDER BY occurrence_date DESC, id ASC
    `, machineID)
	if err != nil {
		return nil, fmt.Errorf("list history for %s: %w", machineID, err)
	}

	result := make([]models.MaintenanceHistory, 0, len(rows))
	for _, r := range rows {
		result = append(result, models.MaintenanceHistory{
			ID:             r.ID,
			MachineID:      r.MachineID,
			FaultType:      r.FaultType,
			OccurrenceDate: parseNullTime(r.OccurrenceDate),
			ResolutionDate: parseNullTime(r.ResolutionDate),
			Downtime:       r.Downtime,
			Cost:           r.Cost,
		})
	}
	return result, nil
}

func (s *sqliteStore) AppendHistory(ctx context.Context, rec *models.MaintenanceHistory) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO maintenance_history(id, machine_id, fault_type, occurrence_date, resolution_date, downtime, cost)
        VALUES(?,?,?,?,?,?,?)
    `, rec.ID, rec.MachineID, rec.FaultType, nullTime(rec.OccurrenceDate), nullTime(rec.ResolutionDate), rec.Downtime, rec.Cost)
	if err != nil {
		return fmt.Errorf("append history %s: %w", rec.ID, err)
	}
	return nil
}

// ─── Maintenance windows ─────────────────────────────────────────────────────

type windowRow struct {
	ID               string `db:"id"`
	StartTime        string `db:"start_time"`
	EndTime          string `db:"end_time"`
	ProductionImpact string `db:"production_impact"`
	IsAvailable      bool   `db:"is_available"`
}

func (s *sqliteStore) ListAvailableWindows(ctx context.Context, from, to time.Time) ([]models.MaintenanceWindow, error) {
	var rows []windowRow
	err := s.db.SelectContext(ctx, &rows, `
        SELECT id, start_time, end_time, production_impact, is_available
        FROM maintenance_windows
        WHERE is_available = 1 AND start_time >= ? AND start_time <= ?
        ORDER BY start_time ASC, id ASC
    `, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}

	result := make([]models.MaintenanceWindow, 0, len(rows))
	for _, r := range rows {
		w := models.MaintenanceWindow{
			ID:               r.ID,
			ProductionImpact: models.ProductionImpact(r.ProductionImpact),
			IsAvailable:      r.IsAvailable,
		}
		w.StartTime, _ = parseTime(r.StartTime)
		w.EndTime, _ = parseTime(r.EndTime)
		result = append(result, w)
	}
	return result, nil
}

func (s *sqliteStore) UpsertWindow(ctx context.Context, w *models.MaintenanceWindow) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO maintenance_windows(id, start_time, end_time, production_impact, is_available)
        VALUES(?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            start_time        = excluded.start_time,
            end_time          = excluded.end_time,
            production_impact = excluded.production_impact,
            is_available      = excluded.is_available
    `, w.ID, formatTime(w.StartTime), formatTime(w.EndTime), string(w.ProductionImpact), w.IsAvailable)
	if err != nil {
		return fmt.Errorf("upsert window %s: %w", w.ID, err)
	}
	return nil
}

// ─── Inventory ───────────────────────────────────────────────────────────────

func (s *sqliteStore) ListInventory(ctx context.Context, partNumbers []string) ([]models.InventoryItem, error) {
	if len(partNumbers) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
        SELECT id, part_number, part_name, current_stock, min_stock, reorder_point, location
        FROM inventory
        WHERE part_number IN (?)
        ORDER BY part_number ASC
    `, partNumbers)
	if err != nil {
		return nil, fmt.Errorf("build inventory query: %w", err)
	}

	var items []models.InventoryItem
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

func (s *sqliteStore) UpsertInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO inventory(id, part_number, part_name, current_stock, min_stock, reorder_point, location)
        VALUES(?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            part_number   = excluded.part_number,
            part_name     = excluded.part_name,
            current_stock = excluded.current_stock,
            min_stock     = excluded.min_stock,
            reorder_point = excluded.reorder_point,
            location      = excluded.location
    `, item.ID, item.PartNumber, item.PartName, item.CurrentStock, item.MinStock, item.ReorderPoint, item.Location)
	if err != nil {
		return fmt.Errorf("upsert inventory %s: %w", item.PartNumber, err)
	}
	return nil
}

// ─── Suppliers ───────────────────────────────────────────────────────────────

type supplierRow struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	LeadTimeDays int    `db:"lead_time_days"`
	Reliability  string `db:"reliability"`
	ContactEmail string `db:"contact_email"`
}

type supplierPartRow struct {
	SupplierID string `db:"supplier_id"`
	PartNumber string `db:"part_number"`
}

func (s *sqliteStore) ListSuppliersForParts(ctx context.Context, partNumbers []string) ([]models.Supplier, error) {
	if len(partNumbers) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
        SELECT DISTINCT s.id, s.name, s.lead_time_days, s.reliability, s.contact_email
        FROM suppliers s
        JOIN supplier_parts sp ON sp.supplier_id = s.id
        WHERE sp.part_number IN (?)
        ORDER BY s.id ASC
    `, partNumbers)
	if err != nil {
		return nil, fmt.Errorf("build supplier query: %w", err)
	}
	var rows []supplierRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	query, args, err = sqlx.In(`
        SELECT supplier_id, part_number
        FROM supplier_parts
        WHERE supplier_id IN (?)
        ORDER BY supplier_id ASC, position ASC
    `, ids)
	if err != nil {
		return nil, fmt.Errorf("build supplier parts query: %w", err)
	}
	var partRows []supplierPartRow
	if err := s.db.SelectContext(ctx, &partRows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list supplier parts: %w", err)
	}
	parts := make(map[string][]string, len(rows))
	for _, p := range partRows {
		parts[p.SupplierID] = append(parts[p.SupplierID], p.PartNumber)
	}

	result := make([]models.Supplier, 0, len(rows))
	for _, r := range rows {
		result = append(result, models.Supplier{
			ID:           r.ID,
			Name:         r.Name,
			Parts:        parts[r.ID],
			LeadTimeDays: r.LeadTimeDays,
			Reliability:  r.Reliability,
			ContactEmail: r.ContactEmail,
		})
	}
	return result, nil
}

func (s *sqliteStore) UpsertSupplier(ctx context.Context, sup *models.Supplier) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO suppliers(id, name, lead_time_days, reliability, contact_email)
        VALUES(?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            name           = excluded.name,
            lead_time_days = excluded.lead_time_days,
            reliability    = excluded.reliability,
            contact_email  = excluded.contact_email
    `, sup.ID, sup.Name, sup.LeadTimeDays, sup.Reliability, sup.ContactEmail)
	if err != nil {
		return fmt.Errorf("upsert supplier %s: %w", sup.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM supplier_parts WHERE supplier_id = ?`, sup.ID); err != nil {
		return fmt.Errorf("delete supplier parts: %w", err)
	}
	for i, pn := range sup.Parts {
		_, err := tx.ExecContext(ctx, `
            INSERT OR IGNORE INTO supplier_parts(supplier_id, part_number, position) VALUES(?,?,?)
        `, sup.ID, pn, i)
		if err != nil {
			return fmt.Errorf("insert supplier part: %w", err)
		}
	}

	return tx.Commit()
}

// ─── Maintenance schedules ───────────────────────────────────────────────────

type scheduleRow struct {
	ID                          string  `db:"id"`
	WorkOrderID                 string  `db:"work_order_id"`
	MachineID                   string  `db:"machine_id"`
	ScheduledDate               string  `db:"scheduled_date"`
	WindowID                    string  `db:"window_id"`
	WindowStart                 string  `db:"window_start"`
	WindowEnd                   string  `db:"window_end"`
	WindowImpact                string  `db:"window_impact"`
	WindowAvailable             bool    `db:"window_available"`
	RiskScore                   float64 `db:"risk_score"`
	PredictedFailureProbability float64 `db:"predicted_failure_probability"`
	RecommendedAction           string  `db:"recommended_action"`
	Reasoning                   string  `db:"reasoning"`
	CreatedAt                   string  `db:"created_at"`
}

func (s *sqliteStore) SaveSchedule(ctx context.Context, sc *models.MaintenanceSchedule) error {
	row := scheduleRow{
		ID:                          sc.ID,
		WorkOrderID:                 sc.WorkOrderID,
		MachineID:                   sc.MachineID,
		ScheduledDate:               formatTime(sc.ScheduledDate),
		WindowID:                    sc.MaintenanceWindow.ID,
		WindowStart:                 formatTime(sc.MaintenanceWindow.StartTime),
		WindowEnd:                   formatTime(sc.MaintenanceWindow.EndTime),
		WindowImpact:                string(sc.MaintenanceWindow.ProductionImpact),
		WindowAvailable:             sc.MaintenanceWindow.IsAvailable,
		RiskScore:                   sc.RiskScore,
		PredictedFailureProbability: sc.PredictedFailureProbability,
		RecommendedAction:           string(sc.RecommendedAction),
		Reasoning:                   sc.Reasoning,
		CreatedAt:                   formatTime(sc.CreatedAt),
	}
	_, err := s.db.NamedExecContext(ctx, `
        INSERT INTO maintenance_schedules(
            id, work_order_id, machine_id, scheduled_date,
            window_id, window_start, window_end, window_impact, window_available,
            risk_score, predicted_failure_probability, recommended_action, reasoning, created_at)
        VALUES(
            :id, :work_order_id, :machine_id, :scheduled_date,
            :window_id, :window_start, :window_end, :window_impact, :window_available,
            :risk_score, :predicted_failure_probability, :recommended_action, :reasoning, :created_at)
    `, row)
	if err != nil {
		return fmt.Errorf("insert schedule %s: %w", sc.ID, err)
	}
	return nil
}

func (s *sqliteStore) GetSchedule(ctx context.Context, id string) (*models.MaintenanceSchedule, error) {
	var r scheduleRow
	err := s.db.GetContext(ctx, &r, `SELECT * FROM maintenance_schedules WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule %s: %w", id, err)
	}

	sc := &models.MaintenanceSchedule{
		ID:          r.ID,
		WorkOrderID: r.WorkOrderID,
		MachineID:   r.MachineID,
		MaintenanceWindow: models.MaintenanceWindow{
			ID:               r.WindowID,
			ProductionImpact: models.ProductionImpact(r.WindowImpact),
			IsAvailable:      r.WindowAvailable,
		},
		RiskScore:                   r.RiskScore,
		PredictedFailureProbability: r.PredictedFailureProbability,
		RecommendedAction:           models.RecommendedAction(r.RecommendedAction),
		Reasoning:                   r.Reasoning,
	}
	sc.ScheduledDate, _ = parseTime(r.ScheduledDate)
	sc.MaintenanceWindow.StartTime, _ = parseTime(r.WindowStart)
	sc.MaintenanceWindow.EndTime, _ = parseTime(r.WindowEnd)
	sc.CreatedAt, _ = parseTime(r.CreatedAt)
	return sc, nil
}

// ─── Parts orders ────────────────────────────────────────────────────────────

type partsOrderRow struct {
	ID                   string  `db:"id"`
	WorkOrderID          string  `db:"work_order_id"`
	SupplierID           string  `db:"supplier_id"`
	SupplierName         string  `db:"supplier_name"`
	TotalCost            float64 `db:"total_cost"`
	ExpectedDeliveryDate string  `db:"expected_delivery_date"`
	OrderStatus          string  `db:"order_status"`
	CreatedAt            string  `db:"created_at"`
}

func (s *sqliteStore) SavePartsOrder(ctx context.Context, o *models.PartsOrder) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO parts_orders(id, work_order_id, supplier_id, supplier_name, total_cost, expected_delivery_date, order_status, created_at)
        VALUES(?,?,?,?,?,?,?,?)
    `, o.ID, o.WorkOrderID, o.SupplierID, o.SupplierName, o.TotalCost,
		formatTime(o.ExpectedDeliveryDate), o.OrderStatus, formatTime(o.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert parts order %s: %w", o.ID, err)
	}

	for i, item := range o.OrderItems {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO parts_order_items(order_id, line, part_number, part_name, quantity, unit_cost, total_cost)
            VALUES(?,?,?,?,?,?,?)
        `, o.ID, i, item.PartNumber, item.PartName, item.Quantity, item.UnitCost, item.TotalCost)
		if err != nil {
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (s *sqliteStore) GetPartsOrder(ctx context.Context, id string) (*models.PartsOrder, error) {
	var r partsOrderRow
	err := s.db.GetContext(ctx, &r, `
        SELECT id, work_order_id, supplier_id, supplier_name, total_cost, expected_delivery_date, order_status, created_at
        FROM parts_orders WHERE id = ?
    `, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("parts order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get parts order %s: %w", id, err)
	}

	var items []models.OrderItem
	err = s.db.SelectContext(ctx, &items, `
        SELECT part_number, part_name, quantity, unit_cost, total_cost
        FROM parts_order_items WHERE order_id = ? ORDER BY line ASC
    `, id)
	if err != nil {
		return nil, fmt.Errorf("list order items of %s: %w", id, err)
	}

	o := &models.PartsOrder{
		ID:           r.ID,
		WorkOrderID:  r.WorkOrderID,
		OrderItems:   items,
		SupplierID:   r.SupplierID,
		SupplierName: r.SupplierName,
		TotalCost:    r.TotalCost,
		OrderStatus:  r.OrderStatus,
	}
	o.ExpectedDeliveryDate, _ = parseTime(r.ExpectedDeliveryDate)
	o.CreatedAt, _ = parseTime(r.CreatedAt)
	return o, nil
}

// ─── Transcripts ─────────────────────────────────────────────────────────────

func (s *sqliteStore) SaveTranscript(ctx context.Context, rec *TranscriptRecord) error {
	turns := rec.Turns
	if turns == nil {
		turns = []TurnRecord{}
	}
	raw, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO transcripts(entity_id, purpose, turns, updated_at)
        VALUES(?,?,?,?)
        ON CONFLICT(entity_id) DO UPDATE SET
            purpose    = excluded.purpose,
            turns      = excluded.turns,
            updated_at = excluded.updated_at
    `, rec.EntityID, rec.Purpose, string(raw), formatTime(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save transcript %s: %w", rec.EntityID, err)
	}
	return nil
}

func (s *sqliteStore) LoadTranscript(ctx context.Context, entityID string) (*TranscriptRecord, error) {
	var row struct {
		EntityID  string `db:"entity_id"`
		Purpose   string `db:"purpose"`
		Turns     string `db:"turns"`
		UpdatedAt string `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT entity_id, purpose, turns, updated_at FROM transcripts WHERE entity_id = ?`, entityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load transcript %s: %w", entityID, err)
	}

	rec := &TranscriptRecord{EntityID: row.EntityID, Purpose: row.Purpose}
	if err := json.Unmarshal([]byte(row.Turns), &rec.Turns); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", entityID, err)
	}
	rec.UpdatedAt, _ = parseTime(row.UpdatedAt)
	return rec, nil
}

// ─── Token usage ─────────────────────────────────────────────────────────────

func (s *sqliteStore) AppendUsageRecord(ctx context.Context, rec *UsageRecord) error {
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO token_usage(run_id, workflow, entity_id, provider, model, prompt_tokens, completion_tokens, recorded_at)
        VALUES(?,?,?,?,?,?,?,?)
    `, rec.RunID, rec.Workflow, rec.EntityID, rec.Provider, rec.Model,
		rec.PromptTokens, rec.CompletionTokens, formatTime(rec.RecordedAt))
	if err != nil {
		return fmt.Errorf("append usage record: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

func (s *sqliteStore) SummarizeUsage(ctx context.Context, from, to time.Time) (*UsageSummary, error) {
	var sum UsageSummary
	err := s.db.GetContext(ctx, &sum, `
        SELECT COUNT(*) AS calls,
               COALESCE(SUM(prompt_tokens), 0) AS prompt_tokens,
               COALESCE(SUM(completion_tokens), 0) AS completion_tokens
        FROM token_usage
        WHERE recorded_at >= ? AND recorded_at <= ?
    `, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("summarize usage: %w", err)
	}
	return &sum, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return models.ParseTimestamp(s)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil
	}
	return &t
}

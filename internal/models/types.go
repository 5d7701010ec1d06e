package models

// Package models defines the maintenance domain types shared by the store,
// the reasoning pipeline and the outer surfaces.
//
// JSON names follow the camelCase document layout used by the plant
// systems (work orders from the ERP, windows from the MES). The same names
// are used for YAML seed fixtures.

import "time"

// Priority of a work order.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// WorkOrderStatus is the lifecycle status of a work order.
type WorkOrderStatus string

const (
	StatusCreated      WorkOrderStatus = "Created"
	StatusScheduled    WorkOrderStatus = "Scheduled"
	StatusReady        WorkOrderStatus = "Ready"
	StatusPartsOrdered WorkOrderStatus = "PartsOrdered"
)

// Valid reports whether s is a known status.
func (s WorkOrderStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusScheduled, StatusReady, StatusPartsOrdered:
		return true
	}
	return false
}

// ProductionImpact of taking a machine down during a window.
type ProductionImpact string

const (
	ImpactLow    ProductionImpact = "Low"
	ImpactMedium ProductionImpact = "Medium"
	ImpactHigh   ProductionImpact = "High"
)

// RecommendedAction is the urgency class of a maintenance decision.
type RecommendedAction string

const (
	ActionImmediate RecommendedAction = "IMMEDIATE"
	ActionUrgent    RecommendedAction = "URGENT"
	ActionScheduled RecommendedAction = "SCHEDULED"
	ActionMonitor   RecommendedAction = "MONITOR"
)

// OrderStatusPending is the status of a freshly created parts order.
const OrderStatusPending = "Pending"

// RequiredPart is a part a work order needs.
type RequiredPart struct {
	PartNumber  string `json:"partNumber" yaml:"partNumber"`
	PartName    string `json:"partName" yaml:"partName"`
	Quantity    int    `json:"quantity" yaml:"quantity"`
	IsAvailable bool   `json:"isAvailable" yaml:"isAvailable"`
}

// WorkOrder is a repair task for one machine.
type WorkOrder struct {
	ID                 string          `json:"id" yaml:"id"`
	MachineID          string          `json:"machineId" yaml:"machineId"`
	FaultType          string          `json:"faultType" yaml:"faultType"`
	Priority           Priority        `json:"priority" yaml:"priority"`
	AssignedTechnician string          `json:"assignedTechnician" yaml:"assignedTechnician"`
	RequiredParts      []RequiredPart  `json:"requiredParts" yaml:"requiredParts"`
	EstimatedDuration  int             `json:"estimatedDuration" yaml:"estimatedDuration"` // minutes
	CreatedAt          time.Time       `json:"createdAt" yaml:"createdAt"`
	Status             WorkOrderStatus `json:"status" yaml:"status"`
}

// PartNumbers returns the part numbers of all required parts, in order.
func (w *WorkOrder) PartNumbers() []string {
	out := make([]string, 0, len(w.RequiredParts))
	for _, p := range w.RequiredParts {
		out = append(out, p.PartNumber)
	}
	return out
}

// MissingPartNumbers returns the part numbers not currently available.
func (w *WorkOrder) MissingPartNumbers() []string {
	var out []string
	for _, p := range w.RequiredParts {
		if !p.IsAvailable {
			out = append(out, p.PartNumber)
		}
	}
	return out
}

// MaintenanceHistory is a past fault occurrence on a machine. Read-only.
type MaintenanceHistory struct {
	ID             string     `json:"id" yaml:"id"`
	MachineID      string     `json:"machineId" yaml:"machineId"`
	FaultType      string     `json:"faultType" yaml:"faultType"`
	OccurrenceDate *time.Time `json:"occurrenceDate,omitempty" yaml:"occurrenceDate,omitempty"`
	ResolutionDate *time.Time `json:"resolutionDate,omitempty" yaml:"resolutionDate,omitempty"`
	Downtime       int        `json:"downtime" yaml:"downtime"` // minutes
	Cost           float64    `json:"cost" yaml:"cost"`
}

// MaintenanceWindow is a production slot in which maintenance can be done.
type MaintenanceWindow struct {
	ID               string           `json:"id" yaml:"id"`
	StartTime        time.Time        `json:"startTime" yaml:"startTime"`
	EndTime          time.Time        `json:"endTime" yaml:"endTime"`
	ProductionImpact ProductionImpact `json:"productionImpact" yaml:"productionImpact"`
	IsAvailable      bool             `json:"isAvailable" yaml:"isAvailable"`
}

// MaintenanceSchedule is the persisted outcome of a scheduling run.
type MaintenanceSchedule struct {
	ID                          string            `json:"id"`
	WorkOrderID                 string            `json:"workOrderId"`
	MachineID                   string            `json:"machineId"`
	ScheduledDate               time.Time         `json:"scheduledDate"`
	MaintenanceWindow           MaintenanceWindow `json:"maintenanceWindow"`
	RiskScore                   float64           `json:"riskScore"`
	PredictedFailureProbability float64           `json:"predictedFailureProbability"`
	RecommendedAction           RecommendedAction `json:"recommendedAction"`
	Reasoning                   string            `json:"reasoning"`
	CreatedAt                   time.Time         `json:"createdAt"`
}

// OrderItem is one line of a parts order.
type OrderItem struct {
	PartNumber string  `json:"partNumber" db:"part_number"`
	PartName   string  `json:"partName" db:"part_name"`
	Quantity   int     `json:"quantity" db:"quantity"`
	UnitCost   float64 `json:"unitCost" db:"unit_cost"`
	TotalCost  float64 `json:"totalCost" db:"total_cost"`
}

// PartsOrder is the persisted outcome of a parts-ordering run.
type PartsOrder struct {
	ID                   string      `json:"id"`
	WorkOrderID          string      `json:"workOrderId"`
	OrderItems           []OrderItem `json:"orderItems"`
	SupplierID           string      `json:"supplierId"`
	SupplierName         string      `json:"supplierName"`
	TotalCost            float64     `json:"totalCost"`
	ExpectedDeliveryDate time.Time   `json:"expectedDeliveryDate"`
	OrderStatus          string      `json:"orderStatus"`
	CreatedAt            time.Time   `json:"createdAt"`
}

// InventoryItem is the stock level of one part.
type InventoryItem struct {
	ID           string `json:"id" yaml:"id" db:"id"`
	PartNumber   string `json:"partNumber" yaml:"partNumber" db:"part_number"`
	PartName     string `json:"partName" yaml:"partName" db:"part_name"`
	CurrentStock int    `json:"currentStock" yaml:"currentStock" db:"current_stock"`
	MinStock     int    `json:"minStock" yaml:"minStock" db:"min_stock"`
	ReorderPoint int    `json:"reorderPoint" yaml:"reorderPoint" db:"reorder_point"`
	Location     string `json:"location" yaml:"location" db:"location"`
}

// NeedsOrdering reports whether stock is at or below the reorder point.
func (i InventoryItem) NeedsOrdering() bool {
	return i.CurrentStock <= i.ReorderPoint
}

// Supplier can deliver a set of parts.
type Supplier struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Parts        []string `json:"parts" yaml:"parts"`
	LeadTimeDays int      `json:"leadTimeDays" yaml:"leadTimeDays"`
	Reliability  string   `json:"reliability" yaml:"reliability"`
	ContactEmail string   `json:"contactEmail" yaml:"contactEmail"`
}

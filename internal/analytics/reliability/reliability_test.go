package reliability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/maintenance-agent/internal/models"
)

func at(s string) *time.Time {
	t, err := models.ParseTimestamp(s)
	if err != nil {
		panic(err)
	}
	return &t
}

func workOrder() *models.WorkOrder {
	return &models.WorkOrder{ID: "wo-test-001", MachineID: "MACHINE-001", FaultType: "Hydraulic Pressure Drop"}
}

func hydraulicHistory() []models.MaintenanceHistory {
	return []models.MaintenanceHistory{
		{ID: "hist-001", FaultType: "Hydraulic Pressure Drop", OccurrenceDate: at("2025-12-15T08:00:00Z"), Downtime: 180, Cost: 1200},
		{ID: "hist-002", FaultType: "Hydraulic Pressure Drop", OccurrenceDate: at("2025-11-20T08:00:00Z"), Downtime: 210, Cost: 1500},
		{ID: "hist-003", FaultType: "Bearing Wear", OccurrenceDate: at("2025-10-01T08:00:00Z"), Downtime: 60, Cost: 300},
	}
}

func TestCompute_TwoDatedRecords(t *testing.T) {
	now := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
	stats := Compute(workOrder(), hydraulicHistory(), now)

	assert.Equal(t, "Hydraulic Pressure Drop", stats.FaultType)
	assert.Equal(t, 3, stats.TotalRecords)
	assert.Equal(t, 2, stats.Occurrences)
	assert.True(t, stats.HasAverages)
	assert.Equal(t, 195.0, stats.AvgDowntimeMinutes)
	assert.Equal(t, 1350.0, stats.AvgCost)

	require.True(t, stats.HasCycle())
	assert.Equal(t, 25.0, *stats.MTBFDays)
	require.NotNil(t, stats.DaysSinceLast)
	assert.Equal(t, 18, *stats.DaysSinceLast)
	require.NotNil(t, stats.CycleProgressPct)
	assert.InDelta(t, 72.0, *stats.CycleProgressPct, 1e-9)
}

func TestCompute_Overdue(t *testing.T) {
	now := time.Date(2026, 2, 8, 8, 0, 0, 0, time.UTC) // 55 days after the last occurrence
	stats := Compute(workOrder(), hydraulicHistory(), now)

	require.True(t, stats.HasCycle())
	assert.Equal(t, 55, *stats.DaysSinceLast)
	assert.InDelta(t, 220.0, *stats.CycleProgressPct, 1e-9)
}

func TestCompute_FloorsPartialDays(t *testing.T) {
	history := []models.MaintenanceHistory{
		{FaultType: "Hydraulic Pressure Drop", OccurrenceDate: at("2025-12-01T00:00:00Z")},
		{FaultType: "Hydraulic Pressure Drop", OccurrenceDate: at("2025-12-11T23:00:00Z")}, // 10d23h
		{FaultType: "Hydraulic Pressure Drop", OccurrenceDate: at("2025-12-21T22:00:00Z")}, // 9d23h
	}
	now := time.Date(2025, 12, 24, 21, 0, 0, 0, time.UTC) // 2d23h

	stats := Compute(workOrder(), history, now)
	require.True(t, stats.HasCycle())
	assert.Equal(t, 9.5, *stats.MTBFDays)
	assert.Equal(t, 2, *stats.DaysSinceLast)
}

func TestCompute_OneDatedRecord(t *testing.T) {
	history := []models.MaintenanceHistory{
		{FaultType: "Hydraulic Pressure Drop", OccurrenceDate: at("2025-12-15T08:00:00Z"), Downtime: 100, Cost: 500},
		{FaultType: "Hydraulic Pressure Drop", Downtime: 200, Cost: 700}, // undated
	}
	stats := Compute(workOrder(), history, time.Now())

	assert.Equal(t, 2, stats.Occurrences)
	assert.True(t, stats.HasAverages)
	assert.Equal(t, 150.0, stats.AvgDowntimeMinutes)
	assert.Equal(t, 600.0, stats.AvgCost)
	assert.False(t, stats.HasCycle())
	assert.Nil(t, stats.DaysSinceLast)
	assert.Nil(t, stats.CycleProgressPct)
}

func TestCompute_NoRelevantHistory(t *testing.T) {
	history := []models.MaintenanceHistory{
		{FaultType: "Bearing Wear", OccurrenceDate: at("2025-10-01T08:00:00Z"), Downtime: 60, Cost: 300},
	}
	stats := Compute(workOrder(), history, time.Now())

	assert.Equal(t, 1, stats.TotalRecords)
	assert.Zero(t, stats.Occurrences)
	assert.False(t, stats.HasAverages)
	assert.Zero(t, stats.AvgDowntimeMinutes)
	assert.False(t, stats.HasCycle())
}

func TestCompute_EmptyHistory(t *testing.T) {
	stats := Compute(workOrder(), nil, time.Now())

	assert.Zero(t, stats.TotalRecords)
	assert.False(t, stats.HasAverages)
	assert.False(t, stats.HasCycle())
}

func TestCompute_SameDayOccurrences(t *testing.T) {
	history := []models.MaintenanceHistory{
		{FaultType: "Hydraulic Pressure Drop", OccurrenceDate: at("2025-12-15T08:00:00Z")},
		{FaultType: "Hydraulic Pressure Drop", OccurrenceDate: at("2025-12-15T12:00:00Z")},
	}
	stats := Compute(workOrder(), history, time.Date(2025, 12, 20, 12, 0, 0, 0, time.UTC))

	require.True(t, stats.HasCycle())
	assert.Equal(t, 0.0, *stats.MTBFDays)
	assert.Equal(t, 5, *stats.DaysSinceLast)
	assert.Nil(t, stats.CycleProgressPct)
}

func TestWholeDays(t *testing.T) {
	assert.Equal(t, 0, wholeDays(23*time.Hour))
	assert.Equal(t, 1, wholeDays(25*time.Hour))
	assert.Equal(t, -1, wholeDays(-1*time.Hour))
	assert.Equal(t, -1, wholeDays(-24*time.Hour))
}

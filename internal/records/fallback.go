package records

import (
	"fmt"
	"time"

	"github.com/kubilitics/maintenance-agent/internal/models"
)

// Synthetic windows run from 22:00 to 06:00 the following day.
const (
	nightStartHour = 22
	nightLength    = 8 * time.Hour
)

// FallbackWindows returns one low-impact night window per day for
// daysAhead days, starting with the day after now (UTC).
func FallbackWindows(now time.Time, daysAhead int) []models.MaintenanceWindow {
	if daysAhead < 0 {
		daysAhead = 0
	}
	now = now.UTC()
	tomorrow := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	windows := make([]models.MaintenanceWindow, 0, daysAhead)
	for i := 0; i < daysAhead; i++ {
		day := tomorrow.AddDate(0, 0, i)
		start := day.Add(nightStartHour * time.Hour)
		windows = append(windows, models.MaintenanceWindow{
			ID:               fmt.Sprintf("mw-%s-night", day.Format("2006-01-02")),
			StartTime:        start,
			EndTime:          start.Add(nightLength),
			ProductionImpact: models.ImpactLow,
			IsAvailable:      true,
		})
	}
	return windows
}

// FallbackSuppliers returns the two generic suppliers offered when no
// supplier record covers the needed parts.
func FallbackSuppliers() []models.Supplier {
	return []models.Supplier{
		{
			ID:           "supplier-001",
			Name:         "Industrial Parts Supply Co.",
			Parts:        []string{},
			LeadTimeDays: 3,
			Reliability:  "High",
			ContactEmail: "orders@industrialparts.com",
		},
		{
			ID:           "supplier-002",
			Name:         "Quick Parts Ltd.",
			Parts:        []string{},
			LeadTimeDays: 1,
			Reliability:  "Medium",
			ContactEmail: "sales@quickparts.com",
		},
	}
}

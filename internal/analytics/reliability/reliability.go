package reliability

// Package reliability derives failure statistics for a work order's fault
// type from the machine's maintenance history.
//
// The statistics feed the scheduling briefing only. No risk score is
// computed here; scoring is left to the reasoning call.

import (
	"sort"
	"time"

	"github.com/kubilitics/maintenance-agent/internal/models"
)

const day = 24 * time.Hour

// FaultStats summarises the relevant history of one fault type.
type FaultStats struct {
	FaultType string `json:"faultType"`

	// TotalRecords counts all history records of the machine (any fault).
	TotalRecords int `json:"totalRecords"`

	// Occurrences counts records whose fault type matches.
	Occurrences int `json:"occurrences"`

	// Averages are set when Occurrences > 0.
	HasAverages        bool    `json:"hasAverages"`
	AvgDowntimeMinutes float64 `json:"avgDowntimeMinutes"`
	AvgCost            float64 `json:"avgCost"`

	// Interval statistics need at least two dated occurrences; nil otherwise.
	MTBFDays         *float64 `json:"mtbfDays,omitempty"`
	DaysSinceLast    *int     `json:"daysSinceLast,omitempty"`
	CycleProgressPct *float64 `json:"cycleProgressPct,omitempty"`
}

// HasCycle reports whether interval statistics are available.
func (s FaultStats) HasCycle() bool {
	return s.MTBFDays != nil
}

// Compute derives the statistics for wo's fault type at time now.
//
// Gaps between consecutive occurrences and the time since the last one are
// counted in whole days (elapsed 24h periods, rounded down). Cycle progress
// is not capped: values above 100 mean the fault is overdue. When all dated
// occurrences fall on the same day the MTBF is zero and cycle progress is
// left unset.
func Compute(wo *models.WorkOrder, history []models.MaintenanceHistory, now time.Time) FaultStats {
	stats := FaultStats{
		FaultType:    wo.FaultType,
		TotalRecords: len(history),
	}

	var (
		downtime float64
		cost     float64
		dates    []time.Time
	)
	for _, h := range history {
		if h.FaultType != wo.FaultType {
			continue
		}
		stats.Occurrences++
		downtime += float64(h.Downtime)
		cost += h.Cost
		if h.OccurrenceDate != nil {
			dates = append(dates, h.OccurrenceDate.UTC())
		}
	}

	if stats.Occurrences > 0 {
		stats.HasAverages = true
		stats.AvgDowntimeMinutes = downtime / float64(stats.Occurrences)
		stats.AvgCost = cost / float64(stats.Occurrences)
	}

	if len(dates) < 2 {
		return stats
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	total := 0
	for i := 1; i < len(dates); i++ {
		total += wholeDays(dates[i].Sub(dates[i-1]))
	}
	mtbf := float64(total) / float64(len(dates)-1)
	since := wholeDays(now.UTC().Sub(dates[len(dates)-1]))

	stats.MTBFDays = &mtbf
	stats.DaysSinceLast = &since
	if mtbf > 0 {
		progress := float64(since) / mtbf * 100
		stats.CycleProgressPct = &progress
	}
	return stats
}

// wholeDays floors d to whole days, also for negative durations.
func wholeDays(d time.Duration) int {
	n := int(d / day)
	if d < 0 && d%day != 0 {
		n--
	}
	return n
}

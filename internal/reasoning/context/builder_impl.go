package context

// Builder implementation.

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kubilitics/maintenance-agent/internal/models"
	"github.com/kubilitics/maintenance-agent/internal/reasoning/prompt"
)

const (
	defaultHistoryLimit = 5
	defaultWindowLimit  = 10
	supplierPartsShown  = 5

	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// builderImpl is the concrete implementation of Builder.
type builderImpl struct {
	prompts prompt.Manager
	opts    Options
}

// NewBuilder creates a briefing builder. Zero options take the defaults.
func NewBuilder(prompts prompt.Manager, opts Options) Builder {
	if prompts == nil {
		prompts = prompt.NewManager()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.WindowLimit <= 0 {
		opts.WindowLimit = defaultWindowLimit
	}
	return &builderImpl{prompts: prompts, opts: opts}
}

// BuildScheduleContext renders the predictive-maintenance briefing.
func (b *builderImpl) BuildScheduleContext(in ScheduleInput) (string, error) {
	if in.WorkOrder == nil {
		return "", fmt.Errorf("work order is required")
	}
	schema, err := b.prompts.OutputSchema(prompt.PurposePredictiveMaintenance)
	if err != nil {
		return "", err
	}
	wo := in.WorkOrder

	var sb strings.Builder
	sb.WriteString("# Predictive Maintenance Analysis Request\n")
	sb.WriteString(fmt.Sprintf("Analysis Date: %s\n\n", in.Now.UTC().Format(dateLayout)))

	writeWorkOrder(&sb, wo)
	sb.WriteString(fmt.Sprintf("- Assigned Technician: %s\n", wo.AssignedTechnician))
	sb.WriteString(fmt.Sprintf("- Estimated Duration: %d minutes\n\n", wo.EstimatedDuration))

	// Historical summary
	sb.WriteString("## Historical Maintenance Data\n")
	if len(in.History) == 0 {
		sb.WriteString("NO HISTORICAL DATA AVAILABLE.\n")
		sb.WriteString("Do not fabricate failure statistics. Base the risk assessment on fault type and priority only.\n\n")
	} else {
		st := in.Stats
		sb.WriteString(fmt.Sprintf("Total maintenance events: %d\n\n", st.TotalRecords))
		if st.Occurrences == 0 {
			sb.WriteString(fmt.Sprintf("No previous occurrences of %s fault type.\n\n", wo.FaultType))
		} else {
			sb.WriteString(fmt.Sprintf("Similar fault type (%s):\n", wo.FaultType))
			sb.WriteString(fmt.Sprintf("- Occurrences: %d\n", st.Occurrences))
			sb.WriteString(fmt.Sprintf("- Average downtime: %.0f minutes\n", st.AvgDowntimeMinutes))
			sb.WriteString(fmt.Sprintf("- Average cost: $%.2f\n", st.AvgCost))
			if st.HasCycle() {
				sb.WriteString(fmt.Sprintf("- Mean Time Between Failures (MTBF): %.1f days\n", *st.MTBFDays))
				sb.WriteString(fmt.Sprintf("- Days since last occurrence: %d\n", *st.DaysSinceLast))
				if st.CycleProgressPct != nil {
					sb.WriteString(fmt.Sprintf("- Failure cycle progress: %.1f%%\n", *st.CycleProgressPct))
				} else {
					sb.WriteString("- Failure cycle progress: not available (zero MTBF)\n")
				}
			} else {
				sb.WriteString("- MTBF: not available (fewer than 2 dated occurrences)\n")
			}
			sb.WriteString("\n")
		}
	}

	// Recent events
	sb.WriteString("## Recent Maintenance Events (all fault types)\n")
	recent := recentHistory(in.History, b.opts.HistoryLimit)
	if len(recent) == 0 {
		sb.WriteString("- none recorded\n")
	}
	for _, h := range recent {
		sb.WriteString(fmt.Sprintf("- %s: %s (%d min, $%.2f)\n",
			h.OccurrenceDate.UTC().Format(dateLayout), h.FaultType, h.Downtime, h.Cost))
	}
	sb.WriteString("\n")

	// Windows
	sb.WriteString("## Available Maintenance Windows\n")
	windows := earliestWindows(in.Windows, b.opts.WindowLimit)
	if len(windows) == 0 {
		sb.WriteString("NO MAINTENANCE WINDOWS AVAILABLE.\n")
	}
	for _, w := range windows {
		hours := w.EndTime.Sub(w.StartTime).Hours()
		sb.WriteString(fmt.Sprintf("- %s to %s (%.1fh)\n",
			w.StartTime.UTC().Format(dateTimeLayout), w.EndTime.UTC().Format(dateTimeLayout), hours))
		sb.WriteString(fmt.Sprintf("  * Production Impact: %s\n", w.ProductionImpact))
		sb.WriteString(fmt.Sprintf("  * Window ID: %s\n", w.ID))
	}
	sb.WriteString("\n")

	sb.WriteString(schema)
	sb.WriteString("\n")
	return sb.String(), nil
}

// BuildPartsContext renders the parts-ordering briefing.
func (b *builderImpl) BuildPartsContext(in PartsInput) (string, error) {
	if in.WorkOrder == nil {
		return "", fmt.Errorf("work order is required")
	}
	schema, err := b.prompts.OutputSchema(prompt.PurposePartsOrdering)
	if err != nil {
		return "", err
	}
	wo := in.WorkOrder

	var sb strings.Builder
	sb.WriteString("# Parts Ordering Analysis Request\n\n")
	writeWorkOrder(&sb, wo)
	sb.WriteString("\n")

	sb.WriteString("## Required Parts\n")
	if len(wo.RequiredParts) == 0 {
		sb.WriteString("- none listed\n")
	}
	for _, p := range wo.RequiredParts {
		sb.WriteString(fmt.Sprintf("- %s (Part#: %s)\n", p.PartName, p.PartNumber))
		sb.WriteString(fmt.Sprintf("  * Quantity needed: %d\n", p.Quantity))
		sb.WriteString(fmt.Sprintf("  * Available in stock: %s\n", yesNo(p.IsAvailable)))
	}
	sb.WriteString("\n")

	sb.WriteString("## Current Inventory Status\n")
	if len(in.Inventory) == 0 {
		sb.WriteString("NO INVENTORY RECORDS FOUND FOR REQUIRED PARTS.\n")
	}
	for _, item := range in.Inventory {
		status := "Adequate"
		if item.NeedsOrdering() {
			status = "NEEDS ORDERING"
		}
		sb.WriteString(fmt.Sprintf("- %s (Part#: %s)\n", item.PartName, item.PartNumber))
		sb.WriteString(fmt.Sprintf("  * Current Stock: %d\n", item.CurrentStock))
		sb.WriteString(fmt.Sprintf("  * Minimum Stock: %d\n", item.MinStock))
		sb.WriteString(fmt.Sprintf("  * Reorder Point: %d\n", item.ReorderPoint))
		sb.WriteString(fmt.Sprintf("  * Status: %s\n", status))
		sb.WriteString(fmt.Sprintf("  * Location: %s\n", item.Location))
	}
	sb.WriteString("\n")

	sb.WriteString("## Available Suppliers\n")
	if len(in.Suppliers) == 0 {
		sb.WriteString("NO SUPPLIERS FOUND FOR REQUIRED PARTS.\n")
	}
	for _, s := range in.Suppliers {
		sb.WriteString(fmt.Sprintf("- %s (ID: %s)\n", s.Name, s.ID))
		sb.WriteString(fmt.Sprintf("  * Lead Time: %d days\n", s.LeadTimeDays))
		sb.WriteString(fmt.Sprintf("  * Reliability: %s\n", s.Reliability))
		sb.WriteString(fmt.Sprintf("  * Contact: %s\n", s.ContactEmail))
		sb.WriteString(fmt.Sprintf("  * Parts Available: %s\n", partsPreview(s.Parts)))
	}
	sb.WriteString("\n")

	sb.WriteString(schema)
	sb.WriteString("\n")
	return sb.String(), nil
}

// GetTokenCount estimates tokens using a simple characters/4 heuristic.
func (b *builderImpl) GetTokenCount(briefing string) int {
	return utf8.RuneCountInString(briefing) / 4
}

func writeWorkOrder(sb *strings.Builder, wo *models.WorkOrder) {
	sb.WriteString("## Work Order Information\n")
	sb.WriteString(fmt.Sprintf("- Work Order ID: %s\n", wo.ID))
	sb.WriteString(fmt.Sprintf("- Machine ID: %s\n", wo.MachineID))
	sb.WriteString(fmt.Sprintf("- Fault Type: %s\n", wo.FaultType))
	sb.WriteString(fmt.Sprintf("- Priority: %s\n", wo.Priority))
}

// recentHistory returns up to limit dated records, newest first. Ties are
// broken by id so the order is total.
func recentHistory(history []models.MaintenanceHistory, limit int) []models.MaintenanceHistory {
	dated := make([]models.MaintenanceHistory, 0, len(history))
	for _, h := range history {
		if h.OccurrenceDate != nil {
			dated = append(dated, h)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool {
		ti, tj := *dated[i].OccurrenceDate, *dated[j].OccurrenceDate
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return dated[i].ID < dated[j].ID
	})
	if len(dated) > limit {
		dated = dated[:limit]
	}
	return dated
}

// earliestWindows returns up to limit windows, earliest start first.
func earliestWindows(windows []models.MaintenanceWindow, limit int) []models.MaintenanceWindow {
	sorted := make([]models.MaintenanceWindow, len(windows))
	copy(sorted, windows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].StartTime.Equal(sorted[j].StartTime) {
			return sorted[i].StartTime.Before(sorted[j].StartTime)
		}
		return sorted[i].ID < sorted[j].ID
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func partsPreview(parts []string) string {
	if len(parts) == 0 {
		return "not listed"
	}
	if len(parts) <= supplierPartsShown {
		return strings.Join(parts, ", ")
	}
	return strings.Join(parts[:supplierPartsShown], ", ") + "..."
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

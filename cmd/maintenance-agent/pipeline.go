package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kubilitics/maintenance-agent/internal/reasoning/engine"
)

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <work-order-id>",
		Short: "Create a predictive maintenance schedule for a work order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				res, err := a.engine.ScheduleMaintenance(ctx, args[0])
				if err != nil {
					return explain(err)
				}
				if opts.jsonOutput {
					return printJSON(res)
				}
				printSchedule(res)
				return nil
			})
		},
	}
}

func orderPartsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order-parts <work-order-id>",
		Short: "Order the missing parts of a work order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				res, err := a.engine.OrderParts(ctx, args[0])
				if err != nil {
					return explain(err)
				}
				if opts.jsonOutput {
					return printJSON(res)
				}
				printPartsOrder(res)
				return nil
			})
		},
	}
}

func printSchedule(res *engine.ScheduleResult) {
	s := res.Schedule
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle("Schedule " + s.ID)
	tw.AppendRows([]table.Row{
		{"Work order", s.WorkOrderID},
		{"Machine", s.MachineID},
		{"Scheduled", s.ScheduledDate.Format("2006-01-02 15:04 MST")},
		{"Window", fmt.Sprintf("%s → %s (%s impact)",
			s.MaintenanceWindow.StartTime.Format("2006-01-02 15:04"),
			s.MaintenanceWindow.EndTime.Format("2006-01-02 15:04"),
			s.MaintenanceWindow.ProductionImpact)},
		{"Risk score", fmt.Sprintf("%.0f", s.RiskScore)},
		{"Failure probability", fmt.Sprintf("%.2f", s.PredictedFailureProbability)},
		{"Action", s.RecommendedAction},
		{"Run", res.RunID},
	})
	tw.Render()

	st := res.Stats
	if st.HasCycle() {
		fmt.Printf("MTBF %.1f days, %d days since last %s", *st.MTBFDays, *st.DaysSinceLast, st.FaultType)
		if st.CycleProgressPct != nil {
			fmt.Printf(" (%.0f%% of cycle)", *st.CycleProgressPct)
		}
		fmt.Println()
	}
	if s.Reasoning != "" {
		fmt.Printf("\n%s\n", s.Reasoning)
	}
	printNotes(res.Warnings, res.Fallbacks)
}

func printPartsOrder(res *engine.PartsOrderResult) {
	if res.PartsReady() {
		fmt.Printf("All parts for %s are available; work order marked %s (run %s)\n",
			res.WorkOrder.ID, res.WorkOrder.Status, res.RunID)
		printNotes(res.Warnings, res.Fallbacks)
		return
	}

	o := res.Order
	fmt.Printf("Order %s from %s (%s), delivery %s, status %s\n",
		o.ID, o.SupplierName, o.SupplierID, o.ExpectedDeliveryDate.Format("2006-01-02"), o.OrderStatus)

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Part", "Name", "Qty", "Unit", "Total"})
	for _, it := range o.OrderItems {
		tw.AppendRow(table.Row{it.PartNumber, it.PartName, it.Quantity,
			fmt.Sprintf("%.2f", it.UnitCost), fmt.Sprintf("%.2f", it.TotalCost)})
	}
	tw.AppendFooter(table.Row{"", "", "", "Total", fmt.Sprintf("%.2f", o.TotalCost)})
	tw.Render()
	printNotes(res.Warnings, res.Fallbacks)
}

func printNotes(warnings, fallbacks []string) {
	if len(fallbacks) > 0 {
		fmt.Printf("fallback data used for: %s\n", strings.Join(fallbacks, ", "))
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}

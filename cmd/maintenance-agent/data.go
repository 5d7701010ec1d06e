package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kubilitics/maintenance-agent/internal/db"
)

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load work orders, history, windows, inventory and suppliers from YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			fixtures, err := db.LoadFixtures(file)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s db.Store) error {
				counts, err := db.Seed(ctx, s, fixtures)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(counts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Records", "Written"})
				tw.AppendRows([]table.Row{
					{"work orders", counts.WorkOrders},
					{"maintenance history", counts.History},
					{"maintenance windows", counts.Windows},
					{"inventory", counts.Inventory},
					{"suppliers", counts.Suppliers},
				})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixtures YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func usageCmd() *cobra.Command {
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Summarize token usage of reasoning calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s db.Store) error {
				to := time.Now().UTC()
				sum, err := s.SummarizeUsage(ctx, to.Add(-since), to)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(sum)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Calls", "Prompt tokens", "Completion tokens"})
				tw.AppendRow(table.Row{sum.Calls, sum.PromptTokens, sum.CompletionTokens})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "look-back period")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

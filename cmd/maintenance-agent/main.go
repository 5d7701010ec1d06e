package main

// Package main is the entry point for the maintenance agent CLI.
//
// Commands:
//   - schedule <work-order-id>     predictive maintenance schedule for a work order
//   - order-parts <work-order-id>  parts order for a work order's missing parts
//   - seed --file fixtures.yaml    load reference data into the SQLite store
//   - usage                        token usage recorded for reasoning calls
//   - serve                        HTTP API, /healthz and /metrics
//
// Configuration comes from the YAML file given by --config, MAINTENANCE_*
// environment variables and defaults, in that order of precedence (env
// first). --db overrides database.sqlite_path.

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	dbPath     string
	jsonOutput bool
}

var opts rootOptions

var rootCmd = &cobra.Command{
	Use:   "maintenance-agent",
	Short: "Predictive maintenance and parts ordering agent",
	Long: `maintenance-agent turns work orders, maintenance history, production windows,
inventory and supplier records into a briefing for a reasoning model, and
persists the schedule or parts order it decides on.`,
	SilenceUsage: true,
}

func main() {
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "maintenance-agent.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output JSON")
}

func registerCommands() {
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(orderPartsCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(usageCmd())
	rootCmd.AddCommand(serveCmd())
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kubilitics/maintenance-agent/internal/server"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Address
				}
				return serve(ctx, a, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	return cmd
}

func serve(ctx context.Context, a *app, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(server.Config{Address: addr}, a.engine, a.tracker, a.store, a.logger)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	updates := a.cfgMgr.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		case cfg := <-updates:
			applyLogLevel(a, cfg.Logging.Level)
		}
	}
}

// applyLogLevel is the only setting that takes effect without a restart.
func applyLogLevel(a *app, level string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		a.logger.Warn("Ignoring invalid log level from config", zap.String("level", level))
		return
	}
	if l != a.level.Level() {
		a.level.SetLevel(l)
		a.logger.Info("Log level changed", zap.String("level", l.String()))
	}
}

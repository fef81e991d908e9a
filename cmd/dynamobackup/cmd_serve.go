package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coffersTech/dynamobackup/internal/dispatch"
	"github.com/coffersTech/dynamobackup/internal/engine"
	"github.com/coffersTech/dynamobackup/internal/model"
	"github.com/coffersTech/dynamobackup/internal/registry"
	"github.com/coffersTech/dynamobackup/internal/server"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control API",
	Long: `Serves the control API:

  POST /api/invoke     submit a control message, answers 202 {"run_id": ...}
  GET  /api/runs       list runs
  GET  /api/runs/{id}  show one run
  GET  /metrics        Prometheus metrics
  GET  /healthz        liveness probe

When ControlTokenHash holds a bcrypt hash, /api routes require
"Authorization: Bearer <token>".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return err
		}
		store, err := newStore(awsCfg)
		if err != nil {
			return err
		}

		reg := newMetricsRegistry()
		runs := registry.NewStore(clockwork.NewRealClock())
		runs.StartCleanupLoop(ctx, time.Minute, cfg.RunTTL)

		// Runs outlive the request that submitted them and are canceled
		// only once the server has stopped accepting new ones.
		runCtx, cancelRuns := context.WithCancel(context.Background())
		defer cancelRuns()

		var eng *engine.Engine
		queue := dispatch.NewLocalDispatcher(runCtx, cfg.Workers, runs, func(ctx context.Context, msg model.Message) (engine.Result, error) {
			return eng.Handle(ctx, msg)
		}, logger.Named("dispatch"))
		if eng, err = newEngine(newTables(awsCfg), store, queue, reg); err != nil {
			return err
		}

		srv := server.NewControlServer(queue, runs, reg, cfg.ControlTokenHash, logger.Named("server"))
		errc := make(chan error, 1)
		go func() {
			errc <- srv.Start(cfg.ListenAddr)
		}()

		select {
		case err := <-errc:
			cancelRuns()
			queue.Close()
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}

		cancelRuns()
		queue.Close()
		logger.Info("exited gracefully")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "control API address (env ListenAddr)")
}

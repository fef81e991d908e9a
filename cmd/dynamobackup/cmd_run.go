package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coffersTech/dynamobackup/internal/dispatch"
	"github.com/coffersTech/dynamobackup/internal/engine"
	"github.com/coffersTech/dynamobackup/internal/model"
	"github.com/coffersTech/dynamobackup/internal/registry"
)

var runFlags struct {
	action    string
	table     string
	frequency string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one control message in this process",
	Long: `Runs create-backups or backup-table locally. Tables found by
create-backups are backed up by in-process workers instead of new Lambda
invocations. Prints every run as JSON and fails if any run failed.

Example:
  dynamobackup run --action create-backups --frequency daily --local-dir ./backups`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		msg := model.Message{
			Action:    model.Action(runFlags.action),
			TableName: runFlags.table,
			Frequency: runFlags.frequency,
		}
		if err := msg.Validate(); err != nil {
			return err
		}

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

		runs := registry.NewStore(clockwork.NewRealClock())
		var eng *engine.Engine
		queue := dispatch.NewLocalDispatcher(ctx, cfg.Workers, runs, func(ctx context.Context, msg model.Message) (engine.Result, error) {
			return eng.Handle(ctx, msg)
		}, logger.Named("dispatch"))
		if eng, err = newEngine(newTables(awsCfg), store, queue, nil); err != nil {
			return err
		}

		if _, err := queue.Submit(ctx, msg); err != nil {
			return err
		}
		queue.Wait()

		failed := 0
		out := jsoniter.NewEncoder(os.Stdout)
		for _, run := range runs.List() {
			if run.Status == registry.StatusFailed {
				failed++
			}
			if err := out.Encode(run); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d runs failed", failed, len(runs.List()))
		}
		logger.Info("all runs succeeded", zap.Int("runs", len(runs.List())))
		return nil
	},
}

func init() {
	flags := runCmd.Flags()
	flags.StringVar(&runFlags.action, "action", string(model.ActionCreateBackups), "create-backups or backup-table")
	flags.StringVar(&runFlags.table, "table", "", "table to back up (backup-table)")
	flags.StringVar(&runFlags.frequency, "frequency", "", "frequency label added to keys and tags")
}

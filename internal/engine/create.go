package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"

	"github.com/coffersTech/dynamobackup/internal/model"
)

// ErrNoDispatcher is returned by CreateBackups on an engine built without
// a Dispatcher.
var ErrNoDispatcher = errors.New("no dispatcher configured")

// CreateBackups lists every table, keeps those whose BackupEnabledTag is
// TRUE (any case) and dispatches one backup-table message per kept table.
// It returns the number of messages dispatched, which is also meaningful
// alongside an error.
func (e *Engine) CreateBackups(ctx context.Context, frequency string) (int, error) {
	if e.queue == nil {
		return 0, ErrNoDispatcher
	}

	names, err := e.tables.ListTables(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tables: %w", err)
	}
	e.logger.Info("listed tables", zap.Int("tables", len(names)))

	dispatched := 0
	for _, name := range names {
		enabled, err := e.backupEnabled(ctx, name)
		if err != nil {
			return dispatched, err
		}
		if !enabled {
			e.logger.Debug("skipping table", zap.String("table", name))
			continue
		}

		msg := model.Message{
			Action:    model.ActionBackupTable,
			TableName: name,
			Frequency: frequency,
		}
		if err := e.queue.Enqueue(ctx, msg); err != nil {
			return dispatched, fmt.Errorf("dispatch backup of %s: %w", name, err)
		}
		dispatched++
		e.metrics.dispatched.Inc()
		e.logger.Info("dispatched backup",
			zap.String("table", name),
			zap.String("frequency", frequency),
		)
	}

	return dispatched, nil
}

func (e *Engine) backupEnabled(ctx context.Context, table string) (bool, error) {
	desc, err := e.tables.DescribeTable(ctx, table)
	if err != nil {
		return false, fmt.Errorf("describe %s: %w", table, err)
	}

	tags, err := e.tables.TagsOf(ctx, aws.ToString(desc.TableArn))
	if err != nil {
		return false, fmt.Errorf("tags of %s: %w", table, err)
	}

	value, ok := tags[e.cfg.BackupEnabledTag]
	return ok && strings.EqualFold(value, "TRUE"), nil
}

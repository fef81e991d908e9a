package engine

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/coffersTech/dynamobackup/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	TagTableName = "TableName"
	TagFrequency = "Frequency"
)

// BackupTable scans table into one JSON-lines object, one transcoded
// record per line, and tags the object with the table name and frequency.
// If anything fails the object is aborted and nothing is published.
func (e *Engine) BackupTable(ctx context.Context, table, frequency string) (*BackupStats, error) {
	start := e.clock.Now()
	stats := &BackupStats{
		Table:     table,
		Frequency: frequency,
		StartedAt: start.UTC(),
	}
	logger := e.logger.With(zap.String("table", table), zap.String("frequency", frequency))
	logger.Info("backing up table")

	if err := e.backupTable(ctx, stats, frequency, logger); err != nil {
		e.metrics.backups.WithLabelValues(resultFailure).Inc()
		logger.Error("backup failed", zap.Error(err))
		return nil, fmt.Errorf("backup %s: %w", table, err)
	}

	stats.Duration = e.clock.Since(start)
	e.metrics.observe(stats)
	logger.Info("backup complete",
		zap.String("key", stats.Key),
		zap.Int64("records", stats.Records),
		zap.Int("pages", stats.Pages),
		zap.Int64("bytes", stats.Bytes),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func (e *Engine) backupTable(ctx context.Context, stats *BackupStats, frequency string, logger *zap.Logger) (err error) {
	dir := e.keyDir(stats.StartedAt)

	// Writers still open are aborted on any failure. Closing publishes, so
	// nothing is closed until the scan has finished cleanly.
	var open []ObjectWriter
	defer func() {
		if err != nil {
			for _, w := range open {
				w.Abort(err)
			}
		}
	}()

	desc, err := e.tables.DescribeTable(ctx, stats.Table)
	if err != nil {
		return fmt.Errorf("describe: %w", err)
	}
	logger.Debug("table configuration", zap.Any("description", desc))

	var cw ObjectWriter
	if e.cfg.BackupTableConfig {
		if cw, err = e.openConfiguration(ctx, dir, stats.Table, desc); err != nil {
			return err
		}
		open = append(open, cw)
	}

	w, err := e.store.Create(ctx, dataKey(dir, stats.Table, frequency))
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	open = append(open, w)

	err = e.tables.Scan(ctx, stats.Table, func(page []model.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Pages++
		for _, record := range page {
			line, err := e.encode(record)
			if err != nil {
				return fmt.Errorf("record %d: %w", stats.Records, err)
			}
			if err := w.WriteLine(line); err != nil {
				return fmt.Errorf("write record %d: %w", stats.Records, err)
			}
			stats.Records++
			stats.Bytes += int64(len(line)) + 1
		}
		logger.Debug("page written", zap.Int("page", stats.Pages), zap.Int64("records", stats.Records))
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	// Data object first, then its configuration.
	for len(open) > 0 {
		next := open[len(open)-1]
		open = open[:len(open)-1]
		if err := next.Close(); err != nil {
			return fmt.Errorf("close %s: %w", next.Key(), err)
		}
	}
	stats.Key = w.Key()
	if cw != nil {
		stats.ConfigurationKey = cw.Key()
	}

	tags := map[string]string{TagTableName: stats.Table}
	if frequency != "" {
		tags[TagFrequency] = frequency
	}
	if err := e.store.SetTags(ctx, stats.Key, tags); err != nil {
		return fmt.Errorf("tag %s: %w", stats.Key, err)
	}
	return nil
}

func (e *Engine) encode(record model.Record) ([]byte, error) {
	doc, err := e.transcoder.Transcode(record)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// openConfiguration writes desc into a new configuration object and leaves
// it open for the caller to publish or abort.
func (e *Engine) openConfiguration(ctx context.Context, dir, table string, desc *types.TableDescription) (ObjectWriter, error) {
	data, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("encode table configuration: %w", err)
	}

	w, err := e.store.Create(ctx, configurationKey(dir, table))
	if err != nil {
		return nil, fmt.Errorf("create configuration object: %w", err)
	}
	if err := w.WriteLine(data); err != nil {
		w.Abort(err)
		return nil, fmt.Errorf("write configuration: %w", err)
	}
	return w, nil
}

package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/coffersTech/dynamobackup/internal/config"
	"github.com/coffersTech/dynamobackup/internal/engine"
	"github.com/coffersTech/dynamobackup/internal/model"
	"github.com/coffersTech/dynamobackup/internal/storage"
)

type taggedTables map[string]map[string]string

func (t taggedTables) ListTables(context.Context) ([]string, error) {
	return []string{"orders", "users"}, nil
}

func (t taggedTables) DescribeTable(_ context.Context, name string) (*types.TableDescription, error) {
	return &types.TableDescription{TableName: aws.String(name), TableArn: aws.String(name)}, nil
}

func (t taggedTables) TagsOf(_ context.Context, arn string) (map[string]string, error) {
	return t[arn], nil
}

func (t taggedTables) Scan(context.Context, string, func([]model.Record) error) error {
	return nil
}

type recordingQueue struct {
	messages []model.Message
}

func (q *recordingQueue) Enqueue(_ context.Context, msg model.Message) error {
	q.messages = append(q.messages, msg)
	return nil
}

func newLambdaHandler(t *testing.T) (func(context.Context, json.RawMessage) (engine.Result, error), *recordingQueue) {
	t.Helper()
	logger = zaptest.NewLogger(t)
	t.Cleanup(func() { logger = nil })

	store, err := storage.NewFileStore(t.TempDir(), config.CompressionNone, logger)
	require.NoError(t, err)
	queue := &recordingQueue{}
	tables := taggedTables{"orders": {"BackupEnabled": "true"}}
	eng, err := engine.New(&config.Config{
		BackupEnabledTag: "BackupEnabled",
		PathLayout:       "%Y/%m/%d/%H/%M",
		Compression:      config.CompressionNone,
	}, tables, store, queue, logger)
	require.NoError(t, err)
	return lambdaHandler(eng), queue
}

func TestLambdaHandlerMissingAction(t *testing.T) {
	handler, queue := newLambdaHandler(t)

	_, err := handler(context.Background(), json.RawMessage(`{"frequency":"daily"}`))
	assert.ErrorIs(t, err, model.ErrMissingAction)
	assert.Empty(t, queue.messages)
}

func TestLambdaHandlerCreateBackups(t *testing.T) {
	handler, queue := newLambdaHandler(t)

	result, err := handler(context.Background(), json.RawMessage(`{"action":"create-backups","frequency":"daily"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Dispatched)
	assert.Equal(t, []model.Message{
		{Action: model.ActionBackupTable, TableName: "orders", Frequency: "daily"},
	}, queue.messages)
}

func TestLambdaHandlerBackupTable(t *testing.T) {
	handler, _ := newLambdaHandler(t)

	result, err := handler(context.Background(), json.RawMessage(`{"action":"backup-table","table_name":"orders"}`))
	require.NoError(t, err)
	require.NotNil(t, result.Backup)
	assert.Equal(t, "orders", result.Backup.Table)
	assert.Zero(t, result.Backup.Records)
}

// Package engine runs the two backup operations: create-backups discovers
// the tables tagged for backup and dispatches one backup-table task per
// table, and backup-table scans one table into one JSON-lines object.
package engine

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jonboulle/clockwork"
	"github.com/lestrrat-go/strftime"
	"go.uber.org/zap"

	"github.com/coffersTech/dynamobackup/internal/config"
	"github.com/coffersTech/dynamobackup/internal/model"
	"github.com/coffersTech/dynamobackup/internal/pkg/transcode"
)

// TableLister lists every table in the region.
type TableLister interface {
	ListTables(ctx context.Context) ([]string, error)
}

// TableDescriber returns the description of one table.
type TableDescriber interface {
	DescribeTable(ctx context.Context, name string) (*types.TableDescription, error)
}

// TagReader returns the tags of a resource.
type TagReader interface {
	TagsOf(ctx context.Context, arn string) (map[string]string, error)
}

// TableScanner reads a whole table page by page. Scan stops at the first
// error returned by fn.
type TableScanner interface {
	Scan(ctx context.Context, name string, fn func(page []model.Record) error) error
}

// Tables is the DynamoDB surface used by the engine.
type Tables interface {
	TableLister
	TableDescriber
	TagReader
	TableScanner
}

// ObjectWriter is one object being written. Exactly one of Close or Abort
// must be called; after Abort nothing is published.
type ObjectWriter interface {
	// Key is the final key of the object, including any compression suffix.
	Key() string
	WriteLine(line []byte) error
	Close() error
	Abort(err error)
}

// ObjectStore creates and tags backup objects.
type ObjectStore interface {
	Create(ctx context.Context, key string) (ObjectWriter, error)
	SetTags(ctx context.Context, key string, tags map[string]string) error
}

// Dispatcher schedules a control message for independent execution.
type Dispatcher interface {
	Enqueue(ctx context.Context, msg model.Message) error
}

// Engine executes control messages.
type Engine struct {
	cfg        *config.Config
	tables     Tables
	store      ObjectStore
	queue      Dispatcher
	transcoder *transcode.Transcoder
	layout     *strftime.Strftime
	clock      clockwork.Clock
	metrics    *Metrics
	logger     *zap.Logger
}

// Option customizes an Engine.
type Option func(e *Engine)

// WithClock replaces the wall clock used for object keys and durations.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithMetrics records backup metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine. queue may be nil for a process that only runs
// backup-table.
func New(cfg *config.Config, tables Tables, store ObjectStore, queue Dispatcher, logger *zap.Logger, opts ...Option) (*Engine, error) {
	layout, err := strftime.New(cfg.PathLayout)
	if err != nil {
		return nil, fmt.Errorf("invalid path layout %q: %w", cfg.PathLayout, err)
	}

	e := &Engine{
		cfg:        cfg,
		tables:     tables,
		store:      store,
		queue:      queue,
		transcoder: transcode.New(cfg.Mode()),
		layout:     layout,
		clock:      clockwork.NewRealClock(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	return e, nil
}

// Result is the outcome of one control message.
type Result struct {
	Dispatched int          `json:"dispatched,omitempty"`
	Backup     *BackupStats `json:"backup,omitempty"`
}

// Handle validates msg and runs its action.
func (e *Engine) Handle(ctx context.Context, msg model.Message) (Result, error) {
	if err := msg.Validate(); err != nil {
		return Result{}, err
	}

	switch msg.Action {
	case model.ActionCreateBackups:
		n, err := e.CreateBackups(ctx, msg.Frequency)
		return Result{Dispatched: n}, err
	case model.ActionBackupTable:
		stats, err := e.BackupTable(ctx, msg.TableName, msg.Frequency)
		return Result{Backup: stats}, err
	default:
		return Result{}, &model.UnknownActionError{Action: msg.Action}
	}
}

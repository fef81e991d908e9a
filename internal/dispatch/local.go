package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/coffersTech/dynamobackup/internal/engine"
	"github.com/coffersTech/dynamobackup/internal/model"
	"github.com/coffersTech/dynamobackup/internal/registry"
)

// ErrClosed is returned by Submit once Close has been called.
var ErrClosed = errors.New("dispatcher closed")

// HandlerFunc executes one control message.
type HandlerFunc func(ctx context.Context, msg model.Message) (engine.Result, error)

// LocalDispatcher runs messages in this process, at most workers at a time.
// Runs are not tied to the context of the caller that submitted them; they
// stop when the dispatcher context is canceled.
type LocalDispatcher struct {
	ctx     context.Context
	sem     *semaphore.Weighted
	runs    *registry.Store
	handler HandlerFunc
	logger  *zap.Logger

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup
}

func NewLocalDispatcher(ctx context.Context, workers int, runs *registry.Store, handler HandlerFunc, logger *zap.Logger) *LocalDispatcher {
	if workers < 1 {
		workers = 1
	}
	return &LocalDispatcher{
		ctx:     ctx,
		sem:     semaphore.NewWeighted(int64(workers)),
		runs:    runs,
		handler: handler,
		logger:  logger,
	}
}

// Enqueue implements engine.Dispatcher.
func (d *LocalDispatcher) Enqueue(ctx context.Context, msg model.Message) error {
	_, err := d.Submit(ctx, msg)
	return err
}

// Submit validates msg, records it as a queued run and schedules it.
func (d *LocalDispatcher) Submit(_ context.Context, msg model.Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	if err := d.ctx.Err(); err != nil {
		return "", fmt.Errorf("dispatcher stopped: %w", err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return "", ErrClosed
	}
	run := d.runs.Queue(msg)
	d.wg.Add(1)
	d.mu.Unlock()
	go d.execute(run.RunID, msg)

	d.logger.Debug("run queued",
		zap.String("run_id", run.RunID),
		zap.String("action", string(msg.Action)),
		zap.String("table", msg.TableName),
	)
	return run.RunID, nil
}

// Wait blocks until every submitted run, including runs submitted by
// other runs, has finished.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}

// Close rejects further submissions, then waits like Wait. Runs still in
// flight that try to fan out get ErrClosed.
func (d *LocalDispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *LocalDispatcher) execute(runID string, msg model.Message) {
	defer d.wg.Done()
	logger := d.logger.With(zap.String("run_id", runID), zap.String("action", string(msg.Action)))

	if err := d.sem.Acquire(d.ctx, 1); err != nil {
		d.finish(runID, engine.Result{}, err, logger)
		return
	}
	defer d.sem.Release(1)

	if err := d.runs.Start(runID); err != nil {
		logger.Error("run vanished", zap.Error(err))
		return
	}
	result, err := d.handler(d.ctx, msg)
	d.finish(runID, result, err, logger)
}

func (d *LocalDispatcher) finish(runID string, result engine.Result, err error, logger *zap.Logger) {
	if ferr := d.runs.Finish(runID, result, err); ferr != nil {
		logger.Error("run vanished", zap.Error(ferr))
		return
	}
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		return
	}
	logger.Info("run succeeded")
}

// Package registry tracks the control messages executed in this process.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/coffersTech/dynamobackup/internal/engine"
	"github.com/coffersTech/dynamobackup/internal/model"
)

// Status is the lifecycle state of a Run.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Finished reports whether s is a terminal state.
func (s Status) Finished() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one dispatched control message.
type Run struct {
	RunID      string         `json:"run_id"`
	Action     model.Action   `json:"action"`
	TableName  string         `json:"table_name,omitempty"`
	Frequency  string         `json:"frequency,omitempty"`
	Status     Status         `json:"status"`
	Error      string         `json:"error,omitempty"`
	QueuedAt   time.Time      `json:"queued_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Result     *engine.Result `json:"result,omitempty"`
}

// Store keeps runs in memory.
type Store struct {
	mu    sync.RWMutex
	runs  map[string]*Run
	clock clockwork.Clock
}

// NewStore creates a new run store.
func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		runs:  make(map[string]*Run),
		clock: clock,
	}
}

// Queue records msg as a new queued run and returns a copy of it.
func (s *Store) Queue(msg model.Message) Run {
	run := &Run{
		RunID:     uuid.NewString(),
		Action:    msg.Action,
		TableName: msg.TableName,
		Frequency: msg.Frequency,
		Status:    StatusQueued,
		QueuedAt:  s.clock.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.RunID] = run
	return *run
}

// Start marks a run as running.
func (s *Store) Start(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	now := s.clock.Now().UTC()
	run.Status = StatusRunning
	run.StartedAt = &now
	return nil
}

// Finish records the outcome of a run.
func (s *Store) Finish(runID string, result engine.Result, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	now := s.clock.Now().UTC()
	run.FinishedAt = &now
	run.Result = &result
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
	} else {
		run.Status = StatusSucceeded
	}
	return nil
}

// Get retrieves a run by ID.
func (s *Store) Get(runID string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// List returns all runs, most recently queued first.
func (s *Store) List() []Run {
	s.mu.RLock()
	list := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		list = append(list, *run)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].QueuedAt.Equal(list[j].QueuedAt) {
			return list[i].QueuedAt.After(list[j].QueuedAt)
		}
		return list[i].RunID < list[j].RunID
	})
	return list
}

// PruneFinished removes runs that finished more than ttl ago.
func (s *Store) PruneFinished(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.clock.Now().Add(-ttl)
	count := 0

	for id, run := range s.runs {
		if run.Status.Finished() && run.FinishedAt.Before(cutoff) {
			delete(s.runs, id)
			count++
		}
	}
	return count
}

// StartCleanupLoop starts a background goroutine to prune finished runs.
func (s *Store) StartCleanupLoop(ctx context.Context, interval, ttl time.Duration) {
	ticker := s.clock.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				s.PruneFinished(ttl)
			case <-ctx.Done():
				return
			}
		}
	}()
}

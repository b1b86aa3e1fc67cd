package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/andresuchdata/autodrp/backend-go/internal/repository"
)

// MemoryRepository keeps runs in process, for the CLI and tests
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	runs   map[int64]*Run
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{runs: make(map[int64]*Run)}
}

var _ RunRepository = (*MemoryRepository)(nil)

func (r *MemoryRepository) CreateRun(ctx context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	run.ID = r.nextID
	stored := *run
	r.runs[run.ID] = &stored
	return nil
}

func (r *MemoryRepository) UpdateRun(ctx context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.runs[run.ID]
	if !ok {
		return fmt.Errorf("run %d: %w", run.ID, repository.ErrNotFound)
	}
	// counters and failures are owned by IncrementProgress and RecordFailure
	stored.Status = run.Status
	stored.Total = run.Total
	stored.ReportPath = run.ReportPath
	stored.ReportURL = run.ReportURL
	stored.CompletedAt = run.CompletedAt
	stored.ErrorMessage = run.ErrorMessage
	return nil
}

func (r *MemoryRepository) GetRun(ctx context.Context, id int64) (*Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %d: %w", id, repository.ErrNotFound)
	}
	out := *stored
	out.Failures = append([]ItemFailure(nil), stored.Failures...)
	return &out, nil
}

func (r *MemoryRepository) IncrementProgress(ctx context.Context, id int64, succeeded bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.runs[id]
	if !ok {
		return fmt.Errorf("run %d: %w", id, repository.ErrNotFound)
	}
	stored.Processed++
	if succeeded {
		stored.Succeeded++
	} else {
		stored.Failed++
	}
	return nil
}

func (r *MemoryRepository) RecordFailure(ctx context.Context, id int64, failure ItemFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.runs[id]
	if !ok {
		return fmt.Errorf("run %d: %w", id, repository.ErrNotFound)
	}
	stored.Failures = append(stored.Failures, failure)
	return nil
}

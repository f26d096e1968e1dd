package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LatVAlY/specWise/internal/classify"
)

// MemoryRepo is a Repository kept in process memory. The CLI uses it to run
// the pipeline without a database.
type MemoryRepo struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	results     map[string][]classify.Item
	checkpoints map[string]Checkpoint
	now         func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		jobs:        make(map[string]*Job),
		results:     make(map[string][]classify.Item),
		checkpoints: make(map[string]Checkpoint),
		now:         time.Now,
	}
}

func (r *MemoryRepo) Create(_ context.Context, j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = StatusPending
	}
	now := r.now()
	j.CreatedAt, j.UpdatedAt = now, now
	cp := *j
	r.jobs[j.ID] = &cp
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *MemoryRepo) List(_ context.Context, f ListFilter) ([]Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Job
	for _, j := range r.jobs {
		if f.CollectionID != "" && j.CollectionID != f.CollectionID {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		out = append(out, *j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(r.jobs, id)
	delete(r.results, id)
	delete(r.checkpoints, id)
	return nil
}

// mutate applies fn to the job if it may move to `to`. Callers hold the lock.
func (r *MemoryRepo) mutate(id string, to Status, fn func(j *Job)) error {
	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	if fn != nil {
		fn(j)
	}
	j.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepo) Transition(_ context.Context, id string, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutate(id, to, nil)
}

func (r *MemoryRepo) UpdateProgress(_ context.Context, id, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != StatusInProgress {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusInProgress)
	}
	j.Description = description
	j.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepo) Fail(_ context.Context, id string, kind ErrorKind, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutate(id, StatusFailed, func(j *Job) {
		j.ErrorKind = kind
		j.ErrorMessage = message
	})
}

func (r *MemoryRepo) Cancel(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutate(id, StatusCanceled, func(j *Job) { j.Description = "Canceled" })
}

func (r *MemoryRepo) CompleteWithResult(_ context.Context, id string, items []classify.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != StatusUpdating {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, StatusCompleted)
	}
	r.results[id] = append([]classify.Item(nil), items...)
	delete(r.checkpoints, id)
	j.Status = StatusCompleted
	j.Description = "Completed"
	j.ItemCount = len(items)
	j.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepo) GetResult(_ context.Context, id string) ([]classify.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]classify.Item{}, r.results[id]...), nil
}

func (r *MemoryRepo) SaveCheckpoint(_ context.Context, cp Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[cp.JobID]
	if !ok {
		return ErrNotFound
	}
	if j.Status != StatusInProgress {
		return fmt.Errorf("%w: checkpoint for a %s job", ErrInvalidTransition, j.Status)
	}
	cp.Payload = append([]byte(nil), cp.Payload...)
	cp.UpdatedAt = r.now()
	r.checkpoints[cp.JobID] = cp
	return nil
}

func (r *MemoryRepo) LoadCheckpoint(_ context.Context, jobID string) (*Checkpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cp, ok := r.checkpoints[jobID]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (r *MemoryRepo) CountByStatus(_ context.Context) (map[Status]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[Status]int)
	for _, j := range r.jobs {
		counts[j.Status]++
	}
	return counts, nil
}

func (r *MemoryRepo) FailStuck(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, j := range r.jobs {
		if (j.Status == StatusInProgress || j.Status == StatusUpdating) && j.UpdatedAt.Before(cutoff) {
			j.Status = StatusFailed
			j.ErrorKind = ErrorKindStalled
			j.ErrorMessage = "no progress reported before timeout"
			j.UpdatedAt = r.now()
			n++
		}
	}
	return n, nil
}

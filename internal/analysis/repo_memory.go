package analysis

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu      sync.RWMutex
	jobs    map[string]Job
	units   map[string][]Unit                // jobId -> units ordered by seq
	results map[string]map[string]ResultItem // unitId -> checklistItemId -> item
	unitJob map[string]string                // unitId -> jobId
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		jobs:    make(map[string]Job),
		units:   make(map[string][]Unit),
		results: make(map[string]map[string]ResultItem),
		unitJob: make(map[string]string),
	}
}

// CreateJob stores the job and its units.
func (r *MemoryRepo) CreateJob(ctx context.Context, job Job, units []Unit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = job
	stored := make([]Unit, len(units))
	copy(stored, units)
	sort.Slice(stored, func(i, j int) bool { return stored[i].Seq < stored[j].Seq })
	r.units[job.ID] = stored
	for _, u := range stored {
		r.unitJob[u.ID] = job.ID
	}
	return nil
}

// GetJob returns a job by ID.
func (r *MemoryRepo) GetJob(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// ListJobsByUser returns the user's jobs newest first.
func (r *MemoryRepo) ListJobsByUser(ctx context.Context, userId string, limit, offset int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	var jobs []Job
	for _, job := range r.jobs {
		if job.UserID == userId {
			jobs = append(jobs, job)
		}
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if offset >= len(jobs) {
		return []Job{}, nil
	}
	end := len(jobs)
	if offset+limit < end {
		end = offset + limit
	}
	return jobs[offset:end], nil
}

// UpdateJob overwrites the stored job record.
func (r *MemoryRepo) UpdateJob(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	r.jobs[job.ID] = job
	return nil
}

// DeleteJob removes a job owned by the user, with its units and results.
func (r *MemoryRepo) DeleteJob(ctx context.Context, userId, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.UserID != userId {
		return ErrNotFound
	}
	for _, u := range r.units[jobID] {
		delete(r.results, u.ID)
		delete(r.unitJob, u.ID)
	}
	delete(r.units, jobID)
	delete(r.jobs, jobID)
	return nil
}

// ListUnits returns units for a job ordered by sequence.
func (r *MemoryRepo) ListUnits(ctx context.Context, jobID string) ([]Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	units := r.units[jobID]
	out := make([]Unit, len(units))
	copy(out, units)
	return out, nil
}

// UpdateUnitStatus sets the status and error detail of one unit.
func (r *MemoryRepo) UpdateUnitStatus(ctx context.Context, unitID string, status UnitStatus, errorDetail string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jobID, ok := r.unitJob[unitID]
	if !ok {
		return ErrNotFound
	}
	units := r.units[jobID]
	for i := range units {
		if units[i].ID == unitID {
			units[i].Status = status
			units[i].ErrorDetail = errorDetail
			r.units[jobID] = units
			return nil
		}
	}
	return ErrNotFound
}

// SaveResult upserts a result on the (unit, checklist item) key.
func (r *MemoryRepo) SaveResult(ctx context.Context, item ResultItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results[item.UnitID] == nil {
		r.results[item.UnitID] = make(map[string]ResultItem)
	}
	r.results[item.UnitID][item.ChecklistItemID] = item
	return nil
}

// ListResults returns all result items recorded for a job.
func (r *MemoryRepo) ListResults(ctx context.Context, jobID string) ([]ResultItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ResultItem
	for _, u := range r.units[jobID] {
		for _, item := range r.results[u.ID] {
			out = append(out, item)
		}
	}
	return out, nil
}

// ListUnfinishedJobs returns jobs still pending or processing.
func (r *MemoryRepo) ListUnfinishedJobs(ctx context.Context) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Job
	for _, job := range r.jobs {
		if job.Status == JobPending || job.Status == JobProcessing {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)

package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tender-backend/internal/notify"
	"tender-backend/internal/shared/metrics"
	"tender-backend/internal/shared/telemetry"
)

// Scheduler owns the pending unit queue and a bounded worker pool. Units are
// dispatched first-in-first-out across jobs, so a newly submitted job makes
// progress alongside older ones up to the concurrency cap.
type Scheduler struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     []unitTask
	cancelled map[string]bool // jobID -> cancel requested
	finalized map[string]bool // jobID -> terminal transition done
	stopped   bool

	workers int
	runner  *Runner
	repo    Repo
	events  *notify.Broadcaster

	wg sync.WaitGroup
}

// NewScheduler constructs a Scheduler with the given worker pool size.
func NewScheduler(workers int, runner *Runner, repo Repo, events *notify.Broadcaster) *Scheduler {
	if workers <= 0 {
		workers = 2
	}
	s := &Scheduler{
		cancelled: make(map[string]bool),
		finalized: make(map[string]bool),
		workers:   workers,
		runner:    runner,
		repo:      repo,
		events:    events,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start launches the worker pool. Workers exit when Stop is called or the
// context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	telemetry.Info("scheduler.started", map[string]any{"workers": s.workers})
}

// Stop drains nothing: queued units stay in the queue (and in durable
// storage) and workers finish their in-flight unit before exiting.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	s.cond.Broadcast()
	s.wg.Wait()
	telemetry.Info("scheduler.stopped", nil)
}

// Enqueue appends one unit task per unit, in sequence order, to the shared
// FIFO queue.
func (s *Scheduler) Enqueue(job Job, units []Unit, checklist ChecklistRef, docs map[string]DocumentRef) {
	progress := &progressCounter{total: len(units) * len(checklist.Items)}

	s.mu.Lock()
	for _, unit := range units {
		s.queue = append(s.queue, unitTask{
			job:       job,
			unit:      unit,
			checklist: checklist,
			doc:       docs[unit.DocumentID],
			progress:  progress,
		})
	}
	s.mu.Unlock()
	s.cond.Broadcast()
}

// RequestCancel flags a job so its not-yet-started units never run. In-flight
// units are unaffected. A job that already made its terminal transition has
// nothing left to cancel, and flagging it would leave a stale entry behind.
func (s *Scheduler) RequestCancel(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized[jobID] {
		return
	}
	s.cancelled[jobID] = true
}

// QueueDepth reports the number of units waiting for a worker.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		task, ok := s.next()
		if !ok {
			return
		}

		if s.isCancelled(task.job.ID) {
			s.skipCancelled(ctx, task)
			s.finalizeJob(ctx, task.job.ID)
			continue
		}

		if err := s.repo.UpdateUnitStatus(ctx, task.unit.ID, UnitRunning, ""); err != nil {
			telemetry.Error("unit.mark_running_failed", map[string]any{
				"unitId": task.unit.ID,
				"error":  err.Error(),
			})
		}
		s.finalizeJob(ctx, task.job.ID) // job leaves pending with its first unit

		s.runner.Run(ctx, task)
		s.finalizeJob(ctx, task.job.ID)
	}
}

func (s *Scheduler) next() (unitTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.stopped {
		s.cond.Wait()
	}
	if s.stopped {
		return unitTask{}, false
	}
	task := s.queue[0]
	s.queue = s.queue[1:]
	return task, true
}

func (s *Scheduler) isCancelled(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled[jobID]
}

func (s *Scheduler) skipCancelled(ctx context.Context, task unitTask) {
	if err := s.repo.UpdateUnitStatus(ctx, task.unit.ID, UnitFailed, "cancelled before start"); err != nil {
		telemetry.Error("unit.mark_cancelled_failed", map[string]any{
			"unitId": task.unit.ID,
			"error":  err.Error(),
		})
	}
	metrics.IncUnitFailed()
	s.events.Publish(task.job.UserID, notify.Event{
		Kind:       notify.EventUnitFailed,
		JobID:      task.job.ID,
		UnitID:     task.unit.ID,
		DocumentID: task.unit.DocumentID,
		Error:      "cancelled before start",
	})
}

// finalizeJob recomputes the job status from its units after every unit
// transition. The job record never carries status independent of unit state.
func (s *Scheduler) finalizeJob(ctx context.Context, jobID string) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		telemetry.Error("job.finalize_load_failed", map[string]any{
			"jobId": jobID,
			"error": err.Error(),
		})
		return
	}

	units, err := s.repo.ListUnits(ctx, jobID)
	if err != nil {
		telemetry.Error("job.finalize_units_failed", map[string]any{
			"jobId": jobID,
			"error": err.Error(),
		})
		return
	}

	derived := DeriveJobStatus(units)
	now := time.Now().UTC()

	switch derived {
	case JobProcessing:
		if job.Status == JobPending || job.StartedAt == nil {
			job.Status = JobProcessing
			if job.StartedAt == nil {
				job.StartedAt = &now
			}
			if err := s.repo.UpdateJob(ctx, job); err != nil {
				telemetry.Error("job.mark_processing_failed", map[string]any{
					"jobId": jobID,
					"error": err.Error(),
				})
			}
		}
	case JobCompleted, JobFailed:
		if !s.claimFinalize(jobID) {
			return
		}
		job.Status = derived
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
		job.CompletedAt = &now
		job.ErrorSummary = summarizeFailure(derived, units)
		if err := s.repo.UpdateJob(ctx, job); err != nil {
			telemetry.Error("job.finalize_update_failed", map[string]any{
				"jobId": jobID,
				"error": err.Error(),
			})
			return
		}

		kind := notify.EventJobCompleted
		if derived == JobFailed {
			kind = notify.EventJobFailed
			metrics.IncJobFailed()
		} else {
			metrics.IncJobCompleted()
		}
		metrics.ObserveJobDurationMs(float64(now.Sub(job.CreatedAt).Milliseconds()))
		s.events.Publish(job.UserID, notify.Event{
			Kind:  kind,
			JobID: job.ID,
			Error: job.ErrorSummary,
		})
		telemetry.Info("job.finished", map[string]any{
			"jobId":  job.ID,
			"status": string(derived),
		})
	}
}

// claimFinalize makes the terminal transition exactly-once when two workers
// finish the last two units concurrently.
func (s *Scheduler) claimFinalize(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized[jobID] {
		return false
	}
	s.finalized[jobID] = true
	delete(s.cancelled, jobID)
	return true
}

func summarizeFailure(status JobStatus, units []Unit) string {
	if status != JobFailed {
		return ""
	}
	for _, u := range units {
		if u.Status == UnitFailed && u.ErrorDetail != "" {
			return fmt.Sprintf("all %d document units failed; first error: %s", len(units), u.ErrorDetail)
		}
	}
	return fmt.Sprintf("all %d document units failed", len(units))
}

package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tender-backend/internal/shared/metrics"
	"tender-backend/internal/shared/telemetry"
)

const maxDocumentsPerJob = 20

// Service validates analysis requests, persists them, and hands units to the
// scheduler. Reads go straight to the repo so clients can always reconcile
// after missing live events.
type Service struct {
	Repo       Repo
	Aggregator *Aggregator
	Scheduler  *Scheduler
	Checklists ChecklistSource
	Documents  DocumentSource
	AIModel    string // default model when the request does not name one
}

// SubmitInput is one analysis request.
type SubmitInput struct {
	Name        string
	ChecklistID string
	DocumentIDs []string
	AIModel     string
}

// Submit validates ownership of the checklist and every document, persists
// the job with one pending unit per document, and enqueues it. It returns as
// soon as the job is queued.
func (s *Service) Submit(ctx context.Context, userId string, in SubmitInput) (Job, error) {
	if userId == "" || in.ChecklistID == "" {
		return Job{}, ErrInvalidInput
	}
	if len(in.DocumentIDs) == 0 || len(in.DocumentIDs) > maxDocumentsPerJob {
		return Job{}, ErrInvalidInput
	}

	checklist, err := s.Checklists.GetChecklist(ctx, userId, in.ChecklistID)
	if err != nil {
		return Job{}, fmt.Errorf("resolve checklist: %w", err)
	}
	if len(checklist.Items) == 0 {
		return Job{}, ErrInvalidInput
	}

	docs := make(map[string]DocumentRef, len(in.DocumentIDs))
	seen := make(map[string]bool, len(in.DocumentIDs))
	for _, documentID := range in.DocumentIDs {
		if seen[documentID] {
			return Job{}, ErrInvalidInput
		}
		seen[documentID] = true
		doc, err := s.Documents.GetDocument(ctx, userId, documentID)
		if err != nil {
			return Job{}, fmt.Errorf("resolve document %s: %w", documentID, err)
		}
		docs[documentID] = doc
	}

	model := strings.TrimSpace(in.AIModel)
	if model == "" {
		model = s.AIModel
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = fmt.Sprintf("Analysis %s", time.Now().UTC().Format("2006-01-02 15:04"))
	}

	job := Job{
		ID:          uuid.NewString(),
		UserID:      userId,
		Name:        name,
		ChecklistID: in.ChecklistID,
		AIModel:     model,
		Status:      JobPending,
		CreatedAt:   time.Now().UTC(),
	}

	units := make([]Unit, 0, len(in.DocumentIDs))
	for i, documentID := range in.DocumentIDs {
		units = append(units, Unit{
			ID:         uuid.NewString(),
			JobID:      job.ID,
			DocumentID: documentID,
			Seq:        i,
			Status:     UnitPending,
		})
	}

	if err := s.Repo.CreateJob(ctx, job, units); err != nil {
		return Job{}, err
	}

	metrics.IncJobSubmitted()
	telemetry.Info("job.submitted", map[string]any{
		"jobId":       job.ID,
		"checklistId": in.ChecklistID,
		"documents":   len(units),
		"items":       len(checklist.Items),
		"model":       model,
	})

	s.Scheduler.Enqueue(job, units, checklist, docs)
	return job, nil
}

// JobView is a job with its per-unit statuses.
type JobView struct {
	Job   Job
	Units []Unit
}

// Get returns a job with units, scoped to the owner.
func (s *Service) Get(ctx context.Context, userId, jobID string) (JobView, error) {
	if userId == "" || jobID == "" {
		return JobView{}, ErrInvalidInput
	}
	job, err := s.Repo.GetJob(ctx, jobID)
	if err != nil {
		return JobView{}, err
	}
	if job.UserID != userId {
		return JobView{}, ErrNotFound
	}
	units, err := s.Repo.ListUnits(ctx, jobID)
	if err != nil {
		return JobView{}, err
	}
	return JobView{Job: job, Units: units}, nil
}

// List returns the user's jobs newest first.
func (s *Service) List(ctx context.Context, userId string, limit, offset int) ([]Job, error) {
	if userId == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListJobsByUser(ctx, userId, limit, offset)
}

// Results returns the grouped-by-document view for a finished or in-flight
// job.
func (s *Service) Results(ctx context.Context, userId, jobID string) ([]DocumentResults, error) {
	job, err := s.Repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userId {
		return nil, ErrNotFound
	}

	checklist, err := s.Checklists.GetChecklist(ctx, userId, job.ChecklistID)
	if err != nil {
		return nil, fmt.Errorf("resolve checklist: %w", err)
	}

	return s.Aggregator.GroupedResults(ctx, jobID, checklist)
}

// Cancel requests best-effort cancellation: units not yet started never run;
// in-flight units finish naturally.
func (s *Service) Cancel(ctx context.Context, userId, jobID string) error {
	job, err := s.Repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.UserID != userId {
		return ErrNotFound
	}
	if job.Status == JobCompleted || job.Status == JobFailed {
		return ErrNotCancelable
	}

	s.Scheduler.RequestCancel(jobID)
	metrics.IncJobCancelled()
	telemetry.Info("job.cancel_requested", map[string]any{"jobId": jobID})
	return nil
}

// Delete removes a finished job with its units and results.
func (s *Service) Delete(ctx context.Context, userId, jobID string) error {
	if userId == "" || jobID == "" {
		return ErrInvalidInput
	}
	return s.Repo.DeleteJob(ctx, userId, jobID)
}

// RecoverPending re-enqueues units left pending by a previous process and
// fails units that were mid-flight when it died. Run once at startup, before
// the HTTP surface accepts new submissions.
func (s *Service) RecoverPending(ctx context.Context) error {
	jobs, err := s.Repo.ListUnfinishedJobs(ctx)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		units, err := s.Repo.ListUnits(ctx, job.ID)
		if err != nil {
			return err
		}

		checklist, err := s.Checklists.GetChecklist(ctx, job.UserID, job.ChecklistID)
		if err != nil {
			telemetry.Error("recover.checklist_failed", map[string]any{
				"jobId": job.ID,
				"error": err.Error(),
			})
			continue
		}

		var pending []Unit
		docs := make(map[string]DocumentRef)
		for _, unit := range units {
			switch unit.Status {
			case UnitRunning:
				// A unit left running has no owner anymore.
				if err := s.Repo.UpdateUnitStatus(ctx, unit.ID, UnitFailed, "interrupted by restart"); err != nil {
					return err
				}
			case UnitPending:
				doc, err := s.Documents.GetDocument(ctx, job.UserID, unit.DocumentID)
				if err != nil {
					if err := s.Repo.UpdateUnitStatus(ctx, unit.ID, UnitFailed, "document no longer available"); err != nil {
						return err
					}
					continue
				}
				docs[unit.DocumentID] = doc
				pending = append(pending, unit)
			}
		}

		if len(pending) > 0 {
			s.Scheduler.Enqueue(job, pending, checklist, docs)
			telemetry.Info("recover.requeued", map[string]any{
				"jobId": job.ID,
				"units": len(pending),
			})
			continue
		}

		// Nothing left to run; settle the job record now.
		s.Scheduler.finalizeJob(ctx, job.ID)
	}
	return nil
}

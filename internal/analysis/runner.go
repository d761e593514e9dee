package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tender-backend/internal/extract"
	"tender-backend/internal/llm"
	"tender-backend/internal/notify"
	"tender-backend/internal/shared/metrics"
	"tender-backend/internal/shared/telemetry"
)

// Extractor derives per-page text from a stored document.
type Extractor interface {
	Extract(ctx context.Context, storageKey, mimeType, fileName string) ([]extract.Page, error)
}

// progressCounter tracks job-wide item completion for progress events.
type progressCounter struct {
	mu    sync.Mutex
	done  int
	total int
}

func (p *progressCounter) increment() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	if p.total <= 0 {
		return 0
	}
	pct := p.done * 100 / p.total
	if pct > 100 {
		pct = 100
	}
	return pct
}

// unitTask is one dispatched unit with everything resolved at submit time.
type unitTask struct {
	job       Job
	unit      Unit
	checklist ChecklistRef
	doc       DocumentRef
	progress  *progressCounter
}

// Runner executes one unit: extract the document once, then evaluate every
// checklist item against it. Extraction failure fails the unit outright; an
// evaluation failure only error-marks that item.
type Runner struct {
	Repo            Repo
	Aggregator      *Aggregator
	Extractor       Extractor
	LLM             llm.Client
	Events          *notify.Broadcaster
	EvaluateTimeout time.Duration
}

// Run drives one unit to a terminal state and reports whether it completed.
// The caller has already marked the unit running.
func (r *Runner) Run(ctx context.Context, task unitTask) bool {
	job := task.job
	unit := task.unit

	r.Events.Publish(job.UserID, notify.Event{
		Kind:       notify.EventUnitStarted,
		JobID:      job.ID,
		UnitID:     unit.ID,
		DocumentID: unit.DocumentID,
	})
	telemetry.Info("unit.started", map[string]any{
		"jobId":      job.ID,
		"unitId":     unit.ID,
		"documentId": unit.DocumentID,
	})

	pages, err := r.Extractor.Extract(ctx, task.doc.StorageKey, task.doc.MimeType, task.doc.FileName)
	if err != nil {
		detail := extractionDetail(err)
		r.failUnit(ctx, job, unit, detail)
		return false
	}

	documentText := joinPages(task.doc.FileName, pages)

	successes := 0
	for _, item := range task.checklist.Items {
		result := r.evaluateItem(ctx, job, unit, item, documentText)
		if !result.Errored() {
			successes++
		}

		if err := r.Aggregator.Record(ctx, result); err != nil {
			telemetry.Error("result.record_failed", map[string]any{
				"unitId": unit.ID,
				"itemId": item.ID,
				"error":  err.Error(),
			})
		}

		progress := task.progress.increment()
		r.Events.Publish(job.UserID, notify.Event{
			Kind:            notify.EventItemCompleted,
			JobID:           job.ID,
			UnitID:          unit.ID,
			DocumentID:      unit.DocumentID,
			ChecklistItemID: item.ID,
			Progress:        &progress,
			Error:           result.ErrorMessage,
		})
	}

	if successes == 0 {
		r.failUnit(ctx, job, unit, "all item evaluations failed")
		return false
	}

	if err := r.Repo.UpdateUnitStatus(ctx, unit.ID, UnitCompleted, ""); err != nil {
		telemetry.Error("unit.mark_completed_failed", map[string]any{
			"unitId": unit.ID,
			"error":  err.Error(),
		})
	}
	metrics.IncUnitCompleted()
	r.Events.Publish(job.UserID, notify.Event{
		Kind:       notify.EventUnitCompleted,
		JobID:      job.ID,
		UnitID:     unit.ID,
		DocumentID: unit.DocumentID,
	})
	telemetry.Info("unit.completed", map[string]any{
		"jobId":     job.ID,
		"unitId":    unit.ID,
		"items":     len(task.checklist.Items),
		"successes": successes,
	})
	return true
}

// evaluateItem calls the model with a bounded wait and always returns a
// result item, error-marked on failure.
func (r *Runner) evaluateItem(ctx context.Context, job Job, unit Unit, item ChecklistItemRef, documentText string) ResultItem {
	result := ResultItem{
		ID:              uuid.NewString(),
		UnitID:          unit.ID,
		JobID:           job.ID,
		ChecklistItemID: item.ID,
		DocumentID:      unit.DocumentID,
		CreatedAt:       time.Now().UTC(),
	}

	timeout := r.EvaluateTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	eval, err := r.LLM.Evaluate(callCtx, llm.EvaluateInput{
		ItemText:     item.Text,
		ItemKind:     llm.ItemKind(item.Kind),
		DocumentText: documentText,
		Model:        job.AIModel,
	})
	if err != nil {
		metrics.IncItemErrored()
		result.ErrorMessage = evaluationDetail(err)
		telemetry.Warn("item.evaluation_failed", map[string]any{
			"jobId":  job.ID,
			"unitId": unit.ID,
			"itemId": item.ID,
			"error":  err.Error(),
		})
		return result
	}

	metrics.IncItemEvaluated()
	result.Answer = eval.Answer
	result.Verdict = eval.Verdict
	result.Confidence = eval.Confidence
	result.Evidence = eval.Evidence
	result.Pages = eval.Pages
	return result
}

func (r *Runner) failUnit(ctx context.Context, job Job, unit Unit, detail string) {
	if err := r.Repo.UpdateUnitStatus(ctx, unit.ID, UnitFailed, detail); err != nil {
		telemetry.Error("unit.mark_failed_failed", map[string]any{
			"unitId": unit.ID,
			"error":  err.Error(),
		})
	}
	metrics.IncUnitFailed()
	r.Events.Publish(job.UserID, notify.Event{
		Kind:       notify.EventUnitFailed,
		JobID:      job.ID,
		UnitID:     unit.ID,
		DocumentID: unit.DocumentID,
		Error:      detail,
	})
	telemetry.Warn("unit.failed", map[string]any{
		"jobId":  job.ID,
		"unitId": unit.ID,
		"detail": detail,
	})
}

func extractionDetail(err error) string {
	var extErr *extract.ExtractionError
	if errors.As(err, &extErr) {
		return fmt.Sprintf("text extraction failed: %v", extErr.Err)
	}
	return fmt.Sprintf("document could not be read: %v", err)
}

func evaluationDetail(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "evaluation timed out"
	}
	var evalErr *llm.EvaluationError
	if errors.As(err, &evalErr) {
		return fmt.Sprintf("evaluation failed: %v", evalErr.Err)
	}
	return fmt.Sprintf("evaluation failed: %v", err)
}

func joinPages(fileName string, pages []extract.Page) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("--- Document: %s ---\n", fileName))
	for _, page := range pages {
		b.WriteString(fmt.Sprintf("\n--- Page %d ---\n", page.Number))
		b.WriteString(page.Text)
	}
	return b.String()
}

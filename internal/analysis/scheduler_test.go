package analysis

import (
	"context"
	"testing"
	"time"
)

func TestJobAllUnitsSucceed(t *testing.T) {
	e := newTestEngine(t, 2)
	cl := e.seedChecklist("Wie lang ist die Lieferfrist?", "cond:ISO 9001 Zertifizierung vorhanden")
	docA := e.seedDocument("a.txt")
	docB := e.seedDocument("b.txt")

	job, err := e.svc.Submit(context.Background(), "user-1", SubmitInput{
		ChecklistID: cl.ID,
		DocumentIDs: []string{docA.ID, docB.ID},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != JobPending {
		t.Fatalf("submitted job should be pending, got %s", job.Status)
	}

	final := e.waitForTerminal(t, job.ID)
	if final.Status != JobCompleted {
		t.Fatalf("expected completed, got %s (%s)", final.Status, final.ErrorSummary)
	}
	if final.StartedAt == nil || final.CompletedAt == nil {
		t.Fatalf("expected start and completion timestamps")
	}

	units, err := e.repo.ListUnits(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("list units: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	for _, u := range units {
		if u.Status != UnitCompleted {
			t.Fatalf("unit %s expected completed, got %s", u.ID, u.Status)
		}
	}

	results, err := e.repo.ListResults(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(results) != 4 { // 2 documents x 2 items
		t.Fatalf("expected 4 result items, got %d", len(results))
	}
	for _, item := range results {
		if item.Errored() {
			t.Fatalf("unexpected errored item: %+v", item)
		}
	}
}

func TestExtractionFailureFailsOnlyThatUnit(t *testing.T) {
	e := newTestEngine(t, 2)
	cl := e.seedChecklist("Zahlungsziel?")
	good := e.seedDocument("good.txt")
	bad := e.seedDocument("bad.pdf")
	e.extractor.failKeys[bad.StorageKey] = true

	job, err := e.svc.Submit(context.Background(), "user-1", SubmitInput{
		ChecklistID: cl.ID,
		DocumentIDs: []string{good.ID, bad.ID},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := e.waitForTerminal(t, job.ID)
	if final.Status != JobCompleted {
		t.Fatalf("one healthy unit should complete the job, got %s", final.Status)
	}

	units, _ := e.repo.ListUnits(context.Background(), job.ID)
	byDoc := make(map[string]Unit)
	for _, u := range units {
		byDoc[u.DocumentID] = u
	}
	if byDoc[good.ID].Status != UnitCompleted {
		t.Fatalf("good unit expected completed, got %s", byDoc[good.ID].Status)
	}
	if byDoc[bad.ID].Status != UnitFailed {
		t.Fatalf("bad unit expected failed, got %s", byDoc[bad.ID].Status)
	}

	results, _ := e.repo.ListResults(context.Background(), job.ID)
	for _, item := range results {
		if item.DocumentID == bad.ID {
			t.Fatalf("failed extraction must leave zero results, found %+v", item)
		}
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result from the healthy unit, got %d", len(results))
	}
}

func TestAllUnitsFailedFailsJob(t *testing.T) {
	e := newTestEngine(t, 2)
	cl := e.seedChecklist("Frage?")
	doc := e.seedDocument("broken.pdf")
	e.extractor.failKeys[doc.StorageKey] = true

	job, err := e.svc.Submit(context.Background(), "user-1", SubmitInput{
		ChecklistID: cl.ID,
		DocumentIDs: []string{doc.ID},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := e.waitForTerminal(t, job.ID)
	if final.Status != JobFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.ErrorSummary == "" {
		t.Fatalf("failed job should carry an error summary")
	}
}

func TestConcurrencyBound(t *testing.T) {
	const workers = 2
	e := newTestEngine(t, workers)
	e.llm.delay = 30 * time.Millisecond
	cl := e.seedChecklist("Q1?", "Q2?")

	var jobIDs []string
	for i := 0; i < 4; i++ {
		doc1 := e.seedDocument("doc1.txt")
		doc2 := e.seedDocument("doc2.txt")
		job, err := e.svc.Submit(context.Background(), "user-1", SubmitInput{
			ChecklistID: cl.ID,
			DocumentIDs: []string{doc1.ID, doc2.ID},
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		jobIDs = append(jobIDs, job.ID)
	}

	for _, id := range jobIDs {
		if final := e.waitForTerminal(t, id); final.Status != JobCompleted {
			t.Fatalf("job %s expected completed, got %s", id, final.Status)
		}
	}

	e.llm.mu.Lock()
	maxActive := e.llm.maxActive
	e.llm.mu.Unlock()
	if maxActive > workers {
		t.Fatalf("observed %d concurrent evaluations, pool size is %d", maxActive, workers)
	}

	e.extractor.mu.Lock()
	maxExtract := e.extractor.maxActive
	e.extractor.mu.Unlock()
	if maxExtract > workers {
		t.Fatalf("observed %d concurrent extractions, pool size is %d", maxExtract, workers)
	}
}

func TestCancelPreventsPendingUnits(t *testing.T) {
	e := newTestEngine(t, 1)
	gate := make(chan struct{})
	e.llm.gate = gate

	cl := e.seedChecklist("Frage?")
	docA := e.seedDocument("a.txt")
	docB := e.seedDocument("b.txt")

	job, err := e.svc.Submit(context.Background(), "user-1", SubmitInput{
		ChecklistID: cl.ID,
		DocumentIDs: []string{docA.ID, docB.ID},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Wait until the single worker is inside the first unit's evaluation.
	deadline := time.Now().Add(5 * time.Second)
	for {
		e.llm.mu.Lock()
		active := e.llm.active
		e.llm.mu.Unlock()
		if active > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("first unit never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := e.svc.Cancel(context.Background(), "user-1", job.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	close(gate)

	final := e.waitForTerminal(t, job.ID)
	if final.Status != JobCompleted {
		t.Fatalf("in-flight unit should finish and complete the job, got %s", final.Status)
	}

	units, _ := e.repo.ListUnits(context.Background(), job.ID)
	byDoc := make(map[string]Unit)
	for _, u := range units {
		byDoc[u.DocumentID] = u
	}
	if byDoc[docA.ID].Status != UnitCompleted {
		t.Fatalf("running unit expected completed, got %s", byDoc[docA.ID].Status)
	}
	if byDoc[docB.ID].Status != UnitFailed || byDoc[docB.ID].ErrorDetail != "cancelled before start" {
		t.Fatalf("pending unit expected cancelled, got %+v", byDoc[docB.ID])
	}

	// Exactly one unit's worth of evaluations ran.
	e.llm.mu.Lock()
	calls := e.llm.calls
	e.llm.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected 1 evaluation call, got %d", calls)
	}
}

func TestCancelAfterFinalizeLeavesNoResidue(t *testing.T) {
	e := newTestEngine(t, 2)
	cl := e.seedChecklist("Frage?")
	doc := e.seedDocument("a.txt")

	job, err := e.svc.Submit(context.Background(), "user-1", SubmitInput{
		ChecklistID: cl.ID,
		DocumentIDs: []string{doc.ID},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	e.waitForTerminal(t, job.ID)

	// A cancel racing with finalization must not flag the finished job:
	// finalize already cleaned up and nothing would ever remove the entry.
	e.scheduler.RequestCancel(job.ID)

	e.scheduler.mu.Lock()
	flagged := e.scheduler.cancelled[job.ID]
	e.scheduler.mu.Unlock()
	if flagged {
		t.Fatalf("finalized job must not be flagged for cancellation")
	}
}

func TestCancelFinishedJobConflicts(t *testing.T) {
	e := newTestEngine(t, 2)
	cl := e.seedChecklist("Frage?")
	doc := e.seedDocument("a.txt")

	job, err := e.svc.Submit(context.Background(), "user-1", SubmitInput{
		ChecklistID: cl.ID,
		DocumentIDs: []string{doc.ID},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	e.waitForTerminal(t, job.ID)

	if err := e.svc.Cancel(context.Background(), "user-1", job.ID); err != ErrNotCancelable {
		t.Fatalf("expected ErrNotCancelable, got %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	e := newTestEngine(t, 1)
	cl := e.seedChecklist("Frage?")
	doc := e.seedDocument("a.txt")
	ctx := context.Background()

	if _, err := e.svc.Submit(ctx, "user-1", SubmitInput{ChecklistID: cl.ID}); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput for no documents, got %v", err)
	}
	if _, err := e.svc.Submit(ctx, "user-1", SubmitInput{
		ChecklistID: cl.ID,
		DocumentIDs: []string{doc.ID, doc.ID},
	}); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput for duplicate documents, got %v", err)
	}
	if _, err := e.svc.Submit(ctx, "user-1", SubmitInput{
		ChecklistID: "missing",
		DocumentIDs: []string{doc.ID},
	}); err == nil {
		t.Fatalf("expected error for unknown checklist")
	}
}

func TestRecoverPendingRequeuesAndFailsInterrupted(t *testing.T) {
	e := newTestEngine(t, 2)
	cl := e.seedChecklist("Frage?")
	docA := e.seedDocument("a.txt")
	docB := e.seedDocument("b.txt")

	// Simulate a job left behind by a crashed process: one unit was mid-run,
	// one never started.
	job := Job{
		ID:          "job-recovered",
		UserID:      "user-1",
		Name:        "restarted",
		ChecklistID: cl.ID,
		AIModel:     "claude-3-haiku-20240307",
		Status:      JobProcessing,
		CreatedAt:   time.Now().UTC(),
	}
	units := []Unit{
		{ID: "unit-running", JobID: job.ID, DocumentID: docA.ID, Seq: 0, Status: UnitRunning},
		{ID: "unit-pending", JobID: job.ID, DocumentID: docB.ID, Seq: 1, Status: UnitPending},
	}
	if err := e.repo.CreateJob(context.Background(), job, units); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	if err := e.svc.RecoverPending(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}

	final := e.waitForTerminal(t, job.ID)
	if final.Status != JobCompleted {
		t.Fatalf("expected completed after recovery, got %s", final.Status)
	}

	got, _ := e.repo.ListUnits(context.Background(), job.ID)
	byID := make(map[string]Unit)
	for _, u := range got {
		byID[u.ID] = u
	}
	if byID["unit-running"].Status != UnitFailed || byID["unit-running"].ErrorDetail != "interrupted by restart" {
		t.Fatalf("interrupted unit not failed: %+v", byID["unit-running"])
	}
	if byID["unit-pending"].Status != UnitCompleted {
		t.Fatalf("requeued unit expected completed, got %+v", byID["unit-pending"])
	}
}

package analysis

import (
	"context"
	"testing"
	"time"
)

func boolPtr(v bool) *bool        { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestRecordIsIdempotentOnKey(t *testing.T) {
	repo := NewMemoryRepo()
	agg := &Aggregator{Repo: repo}
	ctx := context.Background()

	job := Job{ID: "job-1", UserID: "u", Status: JobProcessing, CreatedAt: time.Now()}
	units := []Unit{{ID: "unit-1", JobID: job.ID, DocumentID: "doc-1", Seq: 0, Status: UnitRunning}}
	if err := repo.CreateJob(ctx, job, units); err != nil {
		t.Fatalf("create job: %v", err)
	}

	first := ResultItem{
		ID:              "res-1",
		UnitID:          "unit-1",
		JobID:           job.ID,
		ChecklistItemID: "item-1",
		DocumentID:      "doc-1",
		Answer:          "first attempt",
		CreatedAt:       time.Now(),
	}
	second := first
	second.ID = "res-2"
	second.Answer = "second attempt"

	if err := agg.Record(ctx, first); err != nil {
		t.Fatalf("record first: %v", err)
	}
	if err := agg.Record(ctx, second); err != nil {
		t.Fatalf("record second: %v", err)
	}

	results, err := repo.ListResults(ctx, job.ID)
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result after duplicate record, got %d", len(results))
	}
	if results[0].Answer != "second attempt" {
		t.Fatalf("latest write should win, got %q", results[0].Answer)
	}
}

func TestGroupedResultsOrderAndSummary(t *testing.T) {
	repo := NewMemoryRepo()
	agg := &Aggregator{Repo: repo}
	ctx := context.Background()

	checklist := ChecklistRef{
		ID: "cl-1",
		Items: []ChecklistItemRef{
			{ID: "q1", Kind: KindQuestion, Text: "Lieferfrist?", Position: 0},
			{ID: "c1", Kind: KindCondition, Text: "ISO 9001", Position: 1},
			{ID: "c2", Kind: KindCondition, Text: "Referenzen", Position: 2},
		},
	}

	job := Job{ID: "job-1", UserID: "u", ChecklistID: checklist.ID, Status: JobProcessing, CreatedAt: time.Now()}
	units := []Unit{
		{ID: "unit-b", JobID: job.ID, DocumentID: "doc-b", Seq: 1, Status: UnitCompleted},
		{ID: "unit-a", JobID: job.ID, DocumentID: "doc-a", Seq: 0, Status: UnitCompleted},
	}
	if err := repo.CreateJob(ctx, job, units); err != nil {
		t.Fatalf("create job: %v", err)
	}

	// Record out of checklist order on purpose.
	records := []ResultItem{
		{ID: "r1", UnitID: "unit-a", JobID: job.ID, ChecklistItemID: "c2", DocumentID: "doc-a", Verdict: boolPtr(false), Confidence: floatPtr(0.6)},
		{ID: "r2", UnitID: "unit-a", JobID: job.ID, ChecklistItemID: "q1", DocumentID: "doc-a", Answer: "30 Tage"},
		{ID: "r3", UnitID: "unit-a", JobID: job.ID, ChecklistItemID: "c1", DocumentID: "doc-a", Verdict: boolPtr(true)},
		{ID: "r4", UnitID: "unit-b", JobID: job.ID, ChecklistItemID: "q1", DocumentID: "doc-b", Answer: "14 Tage"},
		{ID: "r5", UnitID: "unit-b", JobID: job.ID, ChecklistItemID: "c1", DocumentID: "doc-b", ErrorMessage: "evaluation timed out"},
		{ID: "r6", UnitID: "unit-b", JobID: job.ID, ChecklistItemID: "c2", DocumentID: "doc-b", Verdict: boolPtr(true)},
	}
	for _, item := range records {
		if err := agg.Record(ctx, item); err != nil {
			t.Fatalf("record %s: %v", item.ID, err)
		}
	}

	grouped, err := agg.GroupedResults(ctx, job.ID, checklist)
	if err != nil {
		t.Fatalf("grouped results: %v", err)
	}
	if len(grouped) != 2 {
		t.Fatalf("expected 2 document buckets, got %d", len(grouped))
	}

	// Buckets follow unit sequence order.
	if grouped[0].DocumentID != "doc-a" || grouped[1].DocumentID != "doc-b" {
		t.Fatalf("unexpected bucket order: %s, %s", grouped[0].DocumentID, grouped[1].DocumentID)
	}

	// Items follow checklist order within a bucket.
	wantOrder := []string{"q1", "c1", "c2"}
	for i, itemID := range wantOrder {
		if grouped[0].Items[i].ChecklistItemID != itemID {
			t.Fatalf("doc-a item %d: expected %s, got %s", i, itemID, grouped[0].Items[i].ChecklistItemID)
		}
	}

	a := grouped[0].Summary
	if a.ConditionsTrue != 1 || a.ConditionsFalse != 1 || a.Questions != 1 || a.ItemErrors != 0 {
		t.Fatalf("doc-a summary wrong: %+v", a)
	}
	b := grouped[1].Summary
	if b.ConditionsTrue != 1 || b.ConditionsFalse != 0 || b.Questions != 1 || b.ItemErrors != 1 {
		t.Fatalf("doc-b summary wrong: %+v", b)
	}
}

func TestSummaryKeepsUndecidedConditionsOutOfFalse(t *testing.T) {
	repo := NewMemoryRepo()
	agg := &Aggregator{Repo: repo}
	ctx := context.Background()

	checklist := ChecklistRef{
		ID: "cl-1",
		Items: []ChecklistItemRef{
			{ID: "c1", Kind: KindCondition, Text: "ISO 9001", Position: 0},
			{ID: "c2", Kind: KindCondition, Text: "Referenzen", Position: 1},
			{ID: "c3", Kind: KindCondition, Text: "Bankgarantie", Position: 2},
		},
	}

	job := Job{ID: "job-1", UserID: "u", ChecklistID: checklist.ID, Status: JobProcessing, CreatedAt: time.Now()}
	units := []Unit{{ID: "unit-1", JobID: job.ID, DocumentID: "doc-1", Seq: 0, Status: UnitCompleted}}
	if err := repo.CreateJob(ctx, job, units); err != nil {
		t.Fatalf("create job: %v", err)
	}

	// c2 succeeded but the model gave no verdict.
	records := []ResultItem{
		{ID: "r1", UnitID: "unit-1", JobID: job.ID, ChecklistItemID: "c1", DocumentID: "doc-1", Verdict: boolPtr(true)},
		{ID: "r2", UnitID: "unit-1", JobID: job.ID, ChecklistItemID: "c2", DocumentID: "doc-1", Answer: "nicht eindeutig"},
		{ID: "r3", UnitID: "unit-1", JobID: job.ID, ChecklistItemID: "c3", DocumentID: "doc-1", Verdict: boolPtr(false)},
	}
	for _, item := range records {
		if err := agg.Record(ctx, item); err != nil {
			t.Fatalf("record %s: %v", item.ID, err)
		}
	}

	grouped, err := agg.GroupedResults(ctx, job.ID, checklist)
	if err != nil {
		t.Fatalf("grouped results: %v", err)
	}
	s := grouped[0].Summary
	if s.ConditionsTrue != 1 || s.ConditionsFalse != 1 || s.ConditionsUndecided != 1 {
		t.Fatalf("missing verdict must count as undecided, not false: %+v", s)
	}
}

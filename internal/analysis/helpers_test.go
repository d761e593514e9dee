package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"tender-backend/internal/extract"
	"tender-backend/internal/llm"
	"tender-backend/internal/notify"
)

// stubExtractor returns canned pages and can fail for selected documents.
// It tracks concurrent calls so tests can assert the worker-pool bound.
type stubExtractor struct {
	mu        sync.Mutex
	failKeys  map[string]bool // storageKey -> fail
	active    int
	maxActive int
}

func newStubExtractor() *stubExtractor {
	return &stubExtractor{failKeys: make(map[string]bool)}
}

func (e *stubExtractor) Extract(ctx context.Context, storageKey, mimeType, fileName string) ([]extract.Page, error) {
	e.mu.Lock()
	e.active++
	if e.active > e.maxActive {
		e.maxActive = e.active
	}
	fail := e.failKeys[storageKey]
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.active--
		e.mu.Unlock()
	}()

	if fail {
		return nil, &extract.ExtractionError{FileName: fileName, Err: errors.New("corrupt file")}
	}
	return []extract.Page{
		{Number: 1, Text: "Lieferfrist: 30 Tage. ISO 9001 zertifiziert."},
		{Number: 2, Text: "Zahlungsziel: 14 Tage netto."},
	}, nil
}

// stubLLM answers every item successfully unless the item text is registered
// as failing. An optional gate blocks evaluations until released.
type stubLLM struct {
	mu        sync.Mutex
	failTexts map[string]bool
	delay     time.Duration
	gate      chan struct{}
	active    int
	maxActive int
	calls     int
}

func newStubLLM() *stubLLM {
	return &stubLLM{failTexts: make(map[string]bool)}
}

func (s *stubLLM) Evaluate(ctx context.Context, in llm.EvaluateInput) (llm.Evaluation, error) {
	s.mu.Lock()
	s.active++
	s.calls++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	fail := s.failTexts[in.ItemText]
	gate := s.gate
	delay := s.delay
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return llm.Evaluation{}, &llm.EvaluationError{Model: in.Model, Err: ctx.Err()}
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return llm.Evaluation{}, &llm.EvaluationError{Model: in.Model, Err: ctx.Err()}
		}
	}
	if fail {
		return llm.Evaluation{}, &llm.EvaluationError{Model: in.Model, Err: errors.New("quota exceeded")}
	}

	conf := 0.9
	eval := llm.Evaluation{
		Answer:     fmt.Sprintf("answer to %q", in.ItemText),
		Confidence: &conf,
		Evidence:   "Lieferfrist: 30 Tage",
		Pages:      []int{1},
	}
	if in.ItemKind == llm.KindCondition {
		verdict := strings.Contains(in.DocumentText, "ISO 9001")
		eval.Verdict = &verdict
	}
	return eval, nil
}

// staticSources serves checklists and documents from maps and implements
// both engine source interfaces.
type staticSources struct {
	checklists map[string]ChecklistRef
	documents  map[string]DocumentRef
}

func (s *staticSources) GetChecklist(ctx context.Context, userId, checklistID string) (ChecklistRef, error) {
	cl, ok := s.checklists[checklistID]
	if !ok {
		return ChecklistRef{}, ErrNotFound
	}
	return cl, nil
}

func (s *staticSources) GetDocument(ctx context.Context, userId, documentID string) (DocumentRef, error) {
	doc, ok := s.documents[documentID]
	if !ok {
		return DocumentRef{}, ErrNotFound
	}
	return doc, nil
}

type testEngine struct {
	svc       *Service
	repo      *MemoryRepo
	events    *notify.Broadcaster
	extractor *stubExtractor
	llm       *stubLLM
	sources   *staticSources
	scheduler *Scheduler
}

func newTestEngine(t *testing.T, workers int) *testEngine {
	t.Helper()

	repo := NewMemoryRepo()
	events := notify.NewBroadcaster()
	extractor := newStubExtractor()
	llmClient := newStubLLM()
	sources := &staticSources{
		checklists: make(map[string]ChecklistRef),
		documents:  make(map[string]DocumentRef),
	}

	aggregator := &Aggregator{Repo: repo}
	runner := &Runner{
		Repo:            repo,
		Aggregator:      aggregator,
		Extractor:       extractor,
		LLM:             llmClient,
		Events:          events,
		EvaluateTimeout: 2 * time.Second,
	}
	scheduler := NewScheduler(workers, runner, repo, events)

	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx)
	t.Cleanup(func() {
		cancel()
		scheduler.Stop()
	})

	svc := &Service{
		Repo:       repo,
		Aggregator: aggregator,
		Scheduler:  scheduler,
		Checklists: sources,
		Documents:  sources,
		AIModel:    "claude-3-haiku-20240307",
	}

	return &testEngine{
		svc:       svc,
		repo:      repo,
		events:    events,
		extractor: extractor,
		llm:       llmClient,
		sources:   sources,
		scheduler: scheduler,
	}
}

// seedChecklist registers a checklist with the given item texts; texts
// prefixed "cond:" become conditions.
func (e *testEngine) seedChecklist(texts ...string) ChecklistRef {
	cl := ChecklistRef{ID: uuid.NewString()}
	for i, text := range texts {
		kind := KindQuestion
		if strings.HasPrefix(text, "cond:") {
			kind = KindCondition
			text = strings.TrimPrefix(text, "cond:")
		}
		cl.Items = append(cl.Items, ChecklistItemRef{
			ID:       uuid.NewString(),
			Kind:     kind,
			Text:     text,
			Position: i,
		})
	}
	e.sources.checklists[cl.ID] = cl
	return cl
}

func (e *testEngine) seedDocument(fileName string) DocumentRef {
	doc := DocumentRef{
		ID:         uuid.NewString(),
		FileName:   fileName,
		MimeType:   "text/plain",
		StorageKey: "store/" + fileName,
	}
	e.sources.documents[doc.ID] = doc
	return doc
}

func (e *testEngine) waitForTerminal(t *testing.T, jobID string) Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := e.repo.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Status == JobCompleted || job.Status == JobFailed {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", jobID)
	return Job{}
}

package analysis

import "time"

// JobStatus values for an analysis job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// UnitStatus values for one document unit within a job.
type UnitStatus string

const (
	UnitPending   UnitStatus = "pending"
	UnitRunning   UnitStatus = "running"
	UnitCompleted UnitStatus = "completed"
	UnitFailed    UnitStatus = "failed"
)

// Terminal reports whether the unit status is final.
func (s UnitStatus) Terminal() bool {
	return s == UnitCompleted || s == UnitFailed
}

// Job is one analysis request: a checklist evaluated against a set of
// documents with a chosen model.
type Job struct {
	ID           string
	UserID       string
	Name         string
	ChecklistID  string
	AIModel      string
	Status       JobStatus
	ErrorSummary string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// Unit is the per-document slice of a job. Seq preserves the submission order
// of documents and breaks dispatch ties.
type Unit struct {
	ID          string
	JobID       string
	DocumentID  string
	Seq         int
	Status      UnitStatus
	ErrorDetail string
}

// ResultItem is the outcome of evaluating one checklist item against one
// document. Error-marked items keep ErrorMessage set and carry no answer or
// verdict. Immutable once written except for idempotent overwrite on the
// (UnitID, ChecklistItemID) key.
type ResultItem struct {
	ID              string
	UnitID          string
	JobID           string
	ChecklistItemID string
	DocumentID      string
	Answer          string
	Verdict         *bool
	Confidence      *float64
	Evidence        string
	Pages           []int
	ErrorMessage    string
	CreatedAt       time.Time
}

// Errored reports whether this item records an evaluation failure instead of
// an answer.
func (r ResultItem) Errored() bool {
	return r.ErrorMessage != ""
}

// DeriveJobStatus computes the job status purely from its units. The job
// itself never stores an independent status.
func DeriveJobStatus(units []Unit) JobStatus {
	if len(units) == 0 {
		return JobPending
	}

	allTerminal := true
	anyStarted := false
	anyCompleted := false
	for _, u := range units {
		if u.Status != UnitPending {
			anyStarted = true
		}
		if !u.Status.Terminal() {
			allTerminal = false
		}
		if u.Status == UnitCompleted {
			anyCompleted = true
		}
	}

	if allTerminal {
		if anyCompleted {
			return JobCompleted
		}
		return JobFailed
	}
	if anyStarted {
		return JobProcessing
	}
	return JobPending
}

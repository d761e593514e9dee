package notify

import "time"

// Event kinds pushed to clients as analysis work progresses.
const (
	EventUnitStarted   = "unit_started"
	EventItemCompleted = "item_completed"
	EventUnitCompleted = "unit_completed"
	EventUnitFailed    = "unit_failed"
	EventJobCompleted  = "job_completed"
	EventJobFailed     = "job_failed"
)

// Event is a progress notification for one user's analysis job. Delivery is
// at-most-once; slow subscribers drop events rather than stall the engine.
type Event struct {
	Kind            string    `json:"kind"`
	JobID           string    `json:"jobId"`
	UnitID          string    `json:"unitId,omitempty"`
	DocumentID      string    `json:"documentId,omitempty"`
	ChecklistItemID string    `json:"checklistItemId,omitempty"`
	Progress        *int      `json:"progress,omitempty"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

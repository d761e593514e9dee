package analysis

import "context"

// Repo defines durable storage for jobs, units, and result items. Job and
// unit records are the recoverable source of truth; live scheduler state is a
// projection of them.
type Repo interface {
	CreateJob(ctx context.Context, job Job, units []Unit) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	ListJobsByUser(ctx context.Context, userId string, limit, offset int) ([]Job, error)
	UpdateJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, userId, jobID string) error

	ListUnits(ctx context.Context, jobID string) ([]Unit, error)
	UpdateUnitStatus(ctx context.Context, unitID string, status UnitStatus, errorDetail string) error

	// SaveResult upserts on the (UnitID, ChecklistItemID) key; the latest
	// write wins.
	SaveResult(ctx context.Context, item ResultItem) error
	ListResults(ctx context.Context, jobID string) ([]ResultItem, error)

	// ListUnfinishedJobs returns jobs whose status is pending or processing,
	// across all users, for restart recovery.
	ListUnfinishedJobs(ctx context.Context) ([]Job, error)
}

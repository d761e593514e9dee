package checklists

import "context"

// Repo defines persistence operations for checklists and their items.
// GetByID returns the checklist with items regardless of owner; access rules
// are applied by the service layer. Delete returns ErrInUse when the
// checklist is still referenced by an analysis job.
type Repo interface {
	Create(ctx context.Context, checklist Checklist) error
	GetByID(ctx context.Context, checklistID string) (Checklist, error)
	ListVisible(ctx context.Context, userId string) ([]Checklist, error)
	ListTemplates(ctx context.Context, language string) ([]Checklist, error)
	Update(ctx context.Context, checklist Checklist) error
	AddItem(ctx context.Context, item Item) error
	Delete(ctx context.Context, userId, checklistID string) error
}

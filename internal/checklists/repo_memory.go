package checklists

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Checklist // checklistId -> checklist
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]Checklist),
	}
}

// Create stores the checklist with its items.
func (r *MemoryRepo) Create(ctx context.Context, checklist Checklist) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[checklist.ID] = checklist
	return nil
}

// GetByID returns a checklist by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, checklistID string) (Checklist, error) {
	if err := ctx.Err(); err != nil {
		return Checklist{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cl, ok := r.data[checklistID]
	if !ok {
		return Checklist{}, ErrNotFound
	}
	return cl, nil
}

// ListVisible returns the user's own checklists plus templates, newest first.
func (r *MemoryRepo) ListVisible(ctx context.Context, userId string) ([]Checklist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Checklist, 0)
	for _, cl := range r.data {
		if cl.UserID == userId || cl.IsTemplate {
			out = append(out, cl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ListTemplates returns template checklists, optionally filtered by language,
// newest first.
func (r *MemoryRepo) ListTemplates(ctx context.Context, language string) ([]Checklist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Checklist, 0)
	for _, cl := range r.data {
		if !cl.IsTemplate {
			continue
		}
		if language != "" && cl.Language != language {
			continue
		}
		out = append(out, cl)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update replaces the stored checklist's mutable fields for its owner.
func (r *MemoryRepo) Update(ctx context.Context, checklist Checklist) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.data[checklist.ID]
	if !ok || cur.UserID != checklist.UserID {
		return ErrNotFound
	}
	cur.Name = checklist.Name
	cur.Description = checklist.Description
	cur.Language = checklist.Language
	r.data[checklist.ID] = cur
	return nil
}

// AddItem appends one item to an existing checklist.
func (r *MemoryRepo) AddItem(ctx context.Context, item Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cl, ok := r.data[item.ChecklistID]
	if !ok {
		return ErrNotFound
	}
	cl.Items = append(cl.Items, item)
	r.data[item.ChecklistID] = cl
	return nil
}

// Delete removes a checklist owned by the user.
func (r *MemoryRepo) Delete(ctx context.Context, userId, checklistID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cl, ok := r.data[checklistID]
	if !ok || cl.UserID != userId {
		return ErrNotFound
	}
	delete(r.data, checklistID)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)

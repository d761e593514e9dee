package checklists

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxItemsPerChecklist = 100

// Service contains business logic for checklists.
type Service struct {
	Repo Repo
}

// NewItemInput describes an item supplied on checklist creation.
type NewItemInput struct {
	Kind ItemKind
	Text string
}

// Create validates and stores a new checklist with its items.
func (s *Service) Create(ctx context.Context, userId, name, description, language string, isTemplate bool, items []NewItemInput) (Checklist, error) {
	name = strings.TrimSpace(name)
	if userId == "" || name == "" {
		return Checklist{}, ErrInvalidInput
	}
	if len(items) == 0 || len(items) > maxItemsPerChecklist {
		return Checklist{}, ErrInvalidInput
	}
	if language == "" {
		language = "de"
	}

	checklistID := uuid.NewString()
	cl := Checklist{
		ID:          checklistID,
		UserID:      userId,
		Name:        name,
		Description: strings.TrimSpace(description),
		Language:    language,
		IsTemplate:  isTemplate,
		CreatedAt:   time.Now().UTC(),
	}

	for i, in := range items {
		text := strings.TrimSpace(in.Text)
		if text == "" || !in.Kind.Valid() {
			return Checklist{}, ErrInvalidInput
		}
		cl.Items = append(cl.Items, Item{
			ID:          uuid.NewString(),
			ChecklistID: checklistID,
			Kind:        in.Kind,
			Text:        text,
			Position:    i,
		})
	}

	if err := s.Repo.Create(ctx, cl); err != nil {
		return Checklist{}, err
	}
	return cl, nil
}

// Get returns a checklist if the user owns it or it is a template.
func (s *Service) Get(ctx context.Context, userId, checklistID string) (Checklist, error) {
	if userId == "" || checklistID == "" {
		return Checklist{}, ErrInvalidInput
	}
	cl, err := s.Repo.GetByID(ctx, checklistID)
	if err != nil {
		return Checklist{}, err
	}
	if !cl.AccessibleBy(userId) {
		return Checklist{}, ErrNotFound
	}
	return cl, nil
}

// List returns the user's checklists plus templates.
func (s *Service) List(ctx context.Context, userId string) ([]Checklist, error) {
	if userId == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListVisible(ctx, userId)
}

// Templates returns template checklists, optionally filtered by language.
func (s *Service) Templates(ctx context.Context, language string) ([]Checklist, error) {
	return s.Repo.ListTemplates(ctx, strings.TrimSpace(language))
}

// UpdateInput carries the fields a checklist update may change. Nil fields
// are left untouched.
type UpdateInput struct {
	Name        *string
	Description *string
	Language    *string
}

// Update applies the supplied fields to a checklist the user owns and returns
// the updated checklist.
func (s *Service) Update(ctx context.Context, userId, checklistID string, in UpdateInput) (Checklist, error) {
	if userId == "" || checklistID == "" {
		return Checklist{}, ErrInvalidInput
	}

	cl, err := s.Repo.GetByID(ctx, checklistID)
	if err != nil {
		return Checklist{}, err
	}
	if cl.UserID != userId {
		return Checklist{}, ErrNotFound
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Checklist{}, ErrInvalidInput
		}
		cl.Name = name
	}
	if in.Description != nil {
		cl.Description = strings.TrimSpace(*in.Description)
	}
	if in.Language != nil {
		language := strings.TrimSpace(*in.Language)
		if language == "" {
			return Checklist{}, ErrInvalidInput
		}
		cl.Language = language
	}

	if err := s.Repo.Update(ctx, cl); err != nil {
		return Checklist{}, err
	}
	return cl, nil
}

// AddItem appends a new item to a checklist the user owns and returns it with
// its assigned position.
func (s *Service) AddItem(ctx context.Context, userId, checklistID string, in NewItemInput) (Item, error) {
	if userId == "" || checklistID == "" {
		return Item{}, ErrInvalidInput
	}
	text := strings.TrimSpace(in.Text)
	if text == "" || !in.Kind.Valid() {
		return Item{}, ErrInvalidInput
	}

	cl, err := s.Repo.GetByID(ctx, checklistID)
	if err != nil {
		return Item{}, err
	}
	if cl.UserID != userId {
		return Item{}, ErrNotFound
	}
	if len(cl.Items) >= maxItemsPerChecklist {
		return Item{}, ErrInvalidInput
	}

	item := Item{
		ID:          uuid.NewString(),
		ChecklistID: cl.ID,
		Kind:        in.Kind,
		Text:        text,
		Position:    len(cl.Items),
	}
	if err := s.Repo.AddItem(ctx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Delete removes a checklist the user owns. Templates are protected even from
// their owner; ownership is checked before the template guard so strangers
// see not found rather than forbidden.
func (s *Service) Delete(ctx context.Context, userId, checklistID string) error {
	if userId == "" || checklistID == "" {
		return ErrInvalidInput
	}

	cl, err := s.Repo.GetByID(ctx, checklistID)
	if err != nil {
		return err
	}
	if cl.UserID != userId {
		return ErrNotFound
	}
	if cl.IsTemplate {
		return ErrTemplateProtected
	}

	return s.Repo.Delete(ctx, userId, checklistID)
}

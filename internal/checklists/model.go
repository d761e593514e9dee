package checklists

import "time"

// ItemKind distinguishes free-form questions from yes/no conditions.
type ItemKind string

const (
	KindQuestion  ItemKind = "question"
	KindCondition ItemKind = "condition"
)

// Valid reports whether the kind is one of the known values.
func (k ItemKind) Valid() bool {
	return k == KindQuestion || k == KindCondition
}

// Checklist is a named set of items evaluated against documents.
type Checklist struct {
	ID          string
	UserID      string
	Name        string
	Description string
	Language    string
	IsTemplate  bool
	Items       []Item
	CreatedAt   time.Time
}

// Item is a single question or condition within a checklist.
type Item struct {
	ID          string
	ChecklistID string
	Kind        ItemKind
	Text        string
	Position    int
}

// AccessibleBy reports whether the user may read this checklist. Templates are
// readable by everyone; non-templates only by their owner.
func (c Checklist) AccessibleBy(userId string) bool {
	return c.IsTemplate || c.UserID == userId
}

package analysis

import "context"

// ItemKind mirrors checklist item kinds.
type ItemKind string

const (
	KindQuestion  ItemKind = "question"
	KindCondition ItemKind = "condition"
)

// ChecklistItemRef is the slice of a checklist item the engine needs.
type ChecklistItemRef struct {
	ID       string
	Kind     ItemKind
	Text     string
	Position int
}

// ChecklistRef is the slice of a checklist the engine needs. Items are in
// checklist order.
type ChecklistRef struct {
	ID    string
	Items []ChecklistItemRef
}

// DocumentRef is the slice of a document the engine needs to locate and
// extract it.
type DocumentRef struct {
	ID         string
	FileName   string
	MimeType   string
	StorageKey string
}

// ChecklistSource resolves checklists subject to the caller's access rules.
// Implementations return ErrNotFound for missing or inaccessible checklists.
type ChecklistSource interface {
	GetChecklist(ctx context.Context, userId, checklistID string) (ChecklistRef, error)
}

// DocumentSource resolves documents owned by the user. Implementations
// return ErrNotFound for missing or inaccessible documents.
type DocumentSource interface {
	GetDocument(ctx context.Context, userId, documentID string) (DocumentRef, error)
}

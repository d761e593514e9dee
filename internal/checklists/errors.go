package checklists

import "errors"

var (
	ErrNotFound          = errors.New("checklist not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemplateProtected = errors.New("template checklists cannot be deleted")
	ErrInUse             = errors.New("checklist is referenced by an analysis job")
)

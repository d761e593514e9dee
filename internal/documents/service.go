package documents

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tender-backend/internal/shared/storage/object"
)

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".txt":  true,
	".md":   true,
}

// Service contains business logic for documents.
type Service struct {
	Store object.ObjectStore
	Repo  DocumentsRepo
}

// Upload saves the file to object storage and records the document.
func (s *Service) Upload(ctx context.Context, userId, fileName, language string, r io.Reader) (Document, error) {
	if fileName == "" {
		return Document{}, ErrInvalidInput
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !supportedExtensions[ext] {
		return Document{}, ErrInvalidInput
	}
	if language == "" {
		language = "de"
	}

	storageKey, size, mimeType, err := s.Store.Save(ctx, userId, fileName, r)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		ID:         uuid.NewString(),
		UserID:     userId,
		FileName:   fileName,
		MimeType:   mimeType,
		SizeBytes:  size,
		StorageKey: storageKey,
		Language:   language,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}

	return doc, nil
}

// Get returns a single document owned by the user.
func (s *Service) Get(ctx context.Context, userId, documentID string) (Document, error) {
	if userId == "" || documentID == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, userId, documentID)
}

// List returns documents owned by the user, newest first.
func (s *Service) List(ctx context.Context, userId string, limit, offset int) ([]Document, error) {
	if userId == "" {
		return nil, errors.New("user id required")
	}
	return s.Repo.ListByUser(ctx, userId, limit, offset)
}

// Rename changes the document's display name. The stored object and its key
// are untouched; extension rules from upload still apply.
func (s *Service) Rename(ctx context.Context, userId, documentID, fileName string) (Document, error) {
	if userId == "" || documentID == "" {
		return Document{}, ErrInvalidInput
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return Document{}, ErrInvalidInput
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !supportedExtensions[ext] {
		return Document{}, ErrInvalidInput
	}

	if err := s.Repo.UpdateFileName(ctx, userId, documentID, fileName); err != nil {
		return Document{}, err
	}
	return s.Repo.GetByID(ctx, userId, documentID)
}

// Delete removes the document record and its stored object. Object deletion is
// best-effort: a missing object does not fail the request.
func (s *Service) Delete(ctx context.Context, userId, documentID string) error {
	if userId == "" || documentID == "" {
		return ErrInvalidInput
	}

	doc, err := s.Repo.GetByID(ctx, userId, documentID)
	if err != nil {
		return err
	}

	if err := s.Repo.Delete(ctx, userId, documentID); err != nil {
		return err
	}

	if doc.StorageKey != "" {
		_ = s.Store.Delete(ctx, doc.StorageKey)
	}
	return nil
}

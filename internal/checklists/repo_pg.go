package checklists

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error code for foreign key violations.
const foreignKeyViolation = "23503"

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts the checklist and its items in one transaction.
func (r *PGRepo) Create(ctx context.Context, checklist Checklist) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertChecklist = `
INSERT INTO checklists (id, user_id, name, description, language, is_template, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(
		ctx,
		insertChecklist,
		checklist.ID,
		checklist.UserID,
		checklist.Name,
		checklist.Description,
		checklist.Language,
		checklist.IsTemplate,
		checklist.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert checklist: %w", err)
	}

	const insertItem = `
INSERT INTO checklist_items (id, checklist_id, kind, text, position)
VALUES ($1, $2, $3, $4, $5)`
	for _, item := range checklist.Items {
		if _, err := tx.ExecContext(
			ctx,
			insertItem,
			item.ID,
			checklist.ID,
			string(item.Kind),
			item.Text,
			item.Position,
		); err != nil {
			return fmt.Errorf("insert checklist item: %w", err)
		}
	}

	return tx.Commit()
}

// GetByID fetches a checklist with its items ordered by position.
func (r *PGRepo) GetByID(ctx context.Context, checklistID string) (Checklist, error) {
	const query = `
SELECT id, user_id, name, description, language, is_template, created_at
FROM checklists
WHERE id = $1
LIMIT 1`
	var cl Checklist
	err := r.DB.QueryRowContext(ctx, query, checklistID).Scan(
		&cl.ID,
		&cl.UserID,
		&cl.Name,
		&cl.Description,
		&cl.Language,
		&cl.IsTemplate,
		&cl.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Checklist{}, ErrNotFound
		}
		return Checklist{}, err
	}

	items, err := r.itemsFor(ctx, cl.ID)
	if err != nil {
		return Checklist{}, err
	}
	cl.Items = items
	return cl, nil
}

// ListVisible lists the user's own checklists plus templates, newest first.
func (r *PGRepo) ListVisible(ctx context.Context, userId string) ([]Checklist, error) {
	const query = `
SELECT id, user_id, name, description, language, is_template, created_at
FROM checklists
WHERE user_id = $1 OR is_template = TRUE
ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, userId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Checklist
	for rows.Next() {
		var cl Checklist
		if err := rows.Scan(
			&cl.ID,
			&cl.UserID,
			&cl.Name,
			&cl.Description,
			&cl.Language,
			&cl.IsTemplate,
			&cl.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, cl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		items, err := r.itemsFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

// ListTemplates lists template checklists, optionally filtered by language,
// newest first.
func (r *PGRepo) ListTemplates(ctx context.Context, language string) ([]Checklist, error) {
	query := `
SELECT id, user_id, name, description, language, is_template, created_at
FROM checklists
WHERE is_template = TRUE
ORDER BY created_at DESC`
	args := []any{}
	if language != "" {
		query = `
SELECT id, user_id, name, description, language, is_template, created_at
FROM checklists
WHERE is_template = TRUE AND language = $1
ORDER BY created_at DESC`
		args = append(args, language)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Checklist
	for rows.Next() {
		var cl Checklist
		if err := rows.Scan(
			&cl.ID,
			&cl.UserID,
			&cl.Name,
			&cl.Description,
			&cl.Language,
			&cl.IsTemplate,
			&cl.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, cl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		items, err := r.itemsFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

// Update rewrites the checklist's mutable fields for its owner.
func (r *PGRepo) Update(ctx context.Context, checklist Checklist) error {
	const query = `
UPDATE checklists
SET name = $1, description = $2, language = $3
WHERE user_id = $4 AND id = $5`
	res, err := r.DB.ExecContext(
		ctx,
		query,
		checklist.Name,
		checklist.Description,
		checklist.Language,
		checklist.UserID,
		checklist.ID,
	)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddItem appends one item to an existing checklist.
func (r *PGRepo) AddItem(ctx context.Context, item Item) error {
	const query = `
INSERT INTO checklist_items (id, checklist_id, kind, text, position)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.DB.ExecContext(
		ctx,
		query,
		item.ID,
		item.ChecklistID,
		string(item.Kind),
		item.Text,
		item.Position,
	)
	return err
}

// Delete removes a checklist owned by the user. Items cascade; a checklist
// still referenced by an analysis job is reported as in use.
func (r *PGRepo) Delete(ctx context.Context, userId, checklistID string) error {
	const query = `
DELETE FROM checklists
WHERE user_id = $1 AND id = $2`
	res, err := r.DB.ExecContext(ctx, query, userId, checklistID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ErrInUse
		}
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) itemsFor(ctx context.Context, checklistID string) ([]Item, error) {
	const query = `
SELECT id, checklist_id, kind, text, position
FROM checklist_items
WHERE checklist_id = $1
ORDER BY position ASC`

	rows, err := r.DB.QueryContext(ctx, query, checklistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var kind string
		if err := rows.Scan(&item.ID, &item.ChecklistID, &kind, &item.Text, &item.Position); err != nil {
			return nil, err
		}
		item.Kind = ItemKind(kind)
		items = append(items, item)
	}
	return items, rows.Err()
}

var _ Repo = (*PGRepo)(nil)

package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// CreateJob inserts the job and its units in one transaction.
func (r *PGRepo) CreateJob(ctx context.Context, job Job, units []Unit) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertJob = `
INSERT INTO analysis_jobs (id, user_id, name, checklist_id, ai_model, status, error_summary, created_at, started_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := tx.ExecContext(
		ctx,
		insertJob,
		job.ID,
		job.UserID,
		job.Name,
		job.ChecklistID,
		job.AIModel,
		string(job.Status),
		nullString(job.ErrorSummary),
		job.CreatedAt,
		job.StartedAt,
		job.CompletedAt,
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	const insertUnit = `
INSERT INTO analysis_units (id, job_id, document_id, seq, status, error_detail)
VALUES ($1, $2, $3, $4, $5, $6)`
	for _, u := range units {
		if _, err := tx.ExecContext(
			ctx,
			insertUnit,
			u.ID,
			job.ID,
			u.DocumentID,
			u.Seq,
			string(u.Status),
			nullString(u.ErrorDetail),
		); err != nil {
			return fmt.Errorf("insert unit: %w", err)
		}
	}

	return tx.Commit()
}

// GetJob returns a job by ID.
func (r *PGRepo) GetJob(ctx context.Context, jobID string) (Job, error) {
	const query = `
SELECT id, user_id, name, checklist_id, ai_model, status, error_summary, created_at, started_at, completed_at
FROM analysis_jobs
WHERE id = $1
LIMIT 1`
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

// ListJobsByUser returns the user's jobs newest first.
func (r *PGRepo) ListJobsByUser(ctx context.Context, userId string, limit, offset int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, user_id, name, checklist_id, ai_model, status, error_summary, created_at, started_at, completed_at
FROM analysis_jobs
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userId, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// UpdateJob persists status, error summary, and timestamps.
func (r *PGRepo) UpdateJob(ctx context.Context, job Job) error {
	const query = `
UPDATE analysis_jobs
SET status = $1, error_summary = $2, started_at = $3, completed_at = $4
WHERE id = $5`
	res, err := r.DB.ExecContext(
		ctx,
		query,
		string(job.Status),
		nullString(job.ErrorSummary),
		job.StartedAt,
		job.CompletedAt,
		job.ID,
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

// DeleteJob removes a job owned by the user. Units and results cascade.
func (r *PGRepo) DeleteJob(ctx context.Context, userId, jobID string) error {
	const query = `
DELETE FROM analysis_jobs
WHERE user_id = $1 AND id = $2`
	res, err := r.DB.ExecContext(ctx, query, userId, jobID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUnits returns units for a job ordered by sequence.
func (r *PGRepo) ListUnits(ctx context.Context, jobID string) ([]Unit, error) {
	const query = `
SELECT id, job_id, document_id, seq, status, error_detail
FROM analysis_units
WHERE job_id = $1
ORDER BY seq ASC`

	rows, err := r.DB.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		var u Unit
		var status string
		var errorDetail sql.NullString
		if err := rows.Scan(&u.ID, &u.JobID, &u.DocumentID, &u.Seq, &status, &errorDetail); err != nil {
			return nil, err
		}
		u.Status = UnitStatus(status)
		if errorDetail.Valid {
			u.ErrorDetail = errorDetail.String
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateUnitStatus sets the status and error detail of one unit.
func (r *PGRepo) UpdateUnitStatus(ctx context.Context, unitID string, status UnitStatus, errorDetail string) error {
	const query = `
UPDATE analysis_units
SET status = $1, error_detail = $2
WHERE id = $3`
	res, err := r.DB.ExecContext(ctx, query, string(status), nullString(errorDetail), unitID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveResult upserts on the (unit_id, checklist_item_id) key.
func (r *PGRepo) SaveResult(ctx context.Context, item ResultItem) error {
	pages, err := json.Marshal(pagesOrEmpty(item.Pages))
	if err != nil {
		return fmt.Errorf("marshal page refs: %w", err)
	}

	const query = `
INSERT INTO analysis_results (id, unit_id, job_id, checklist_item_id, document_id, answer, verdict, confidence, evidence, page_refs, error_message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (unit_id, checklist_item_id) DO UPDATE
SET answer = EXCLUDED.answer,
    verdict = EXCLUDED.verdict,
    confidence = EXCLUDED.confidence,
    evidence = EXCLUDED.evidence,
    page_refs = EXCLUDED.page_refs,
    error_message = EXCLUDED.error_message,
    created_at = EXCLUDED.created_at`
	_, err = r.DB.ExecContext(
		ctx,
		query,
		item.ID,
		item.UnitID,
		item.JobID,
		item.ChecklistItemID,
		item.DocumentID,
		nullString(item.Answer),
		item.Verdict,
		item.Confidence,
		nullString(item.Evidence),
		pages,
		nullString(item.ErrorMessage),
		item.CreatedAt,
	)
	return err
}

// ListResults returns all result items recorded for a job.
func (r *PGRepo) ListResults(ctx context.Context, jobID string) ([]ResultItem, error) {
	const query = `
SELECT id, unit_id, job_id, checklist_item_id, document_id, answer, verdict, confidence, evidence, page_refs, error_message, created_at
FROM analysis_results
WHERE job_id = $1`

	rows, err := r.DB.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultItem
	for rows.Next() {
		var item ResultItem
		var answer, evidence, errorMessage sql.NullString
		var verdict sql.NullBool
		var confidence sql.NullFloat64
		var pages []byte
		if err := rows.Scan(
			&item.ID,
			&item.UnitID,
			&item.JobID,
			&item.ChecklistItemID,
			&item.DocumentID,
			&answer,
			&verdict,
			&confidence,
			&evidence,
			&pages,
			&errorMessage,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		if answer.Valid {
			item.Answer = answer.String
		}
		if verdict.Valid {
			v := verdict.Bool
			item.Verdict = &v
		}
		if confidence.Valid {
			c := confidence.Float64
			item.Confidence = &c
		}
		if evidence.Valid {
			item.Evidence = evidence.String
		}
		if errorMessage.Valid {
			item.ErrorMessage = errorMessage.String
		}
		if len(pages) > 0 {
			if err := json.Unmarshal(pages, &item.Pages); err != nil {
				return nil, fmt.Errorf("unmarshal page refs: %w", err)
			}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ListUnfinishedJobs returns jobs still pending or processing, oldest first.
func (r *PGRepo) ListUnfinishedJobs(ctx context.Context) ([]Job, error) {
	const query = `
SELECT id, user_id, name, checklist_id, ai_model, status, error_summary, created_at, started_at, completed_at
FROM analysis_jobs
WHERE status IN ('pending', 'processing')
ORDER BY created_at ASC`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var job Job
	var status string
	var errorSummary sql.NullString
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Name,
		&job.ChecklistID,
		&job.AIModel,
		&status,
		&errorSummary,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return Job{}, err
	}
	job.Status = JobStatus(status)
	if errorSummary.Valid {
		job.ErrorSummary = errorSummary.String
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func pagesOrEmpty(pages []int) []int {
	if pages == nil {
		return []int{}
	}
	return pages
}

var _ Repo = (*PGRepo)(nil)

package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreateJobInsertsJobAndUnits(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	job := Job{
		ID:          "job-1",
		UserID:      "user-1",
		Name:        "Vergabe Q3",
		ChecklistID: "cl-1",
		AIModel:     "claude-3-haiku-20240307",
		Status:      JobPending,
		CreatedAt:   time.Now().UTC(),
	}
	units := []Unit{
		{ID: "unit-1", JobID: job.ID, DocumentID: "doc-1", Seq: 0, Status: UnitPending},
		{ID: "unit-2", JobID: job.ID, DocumentID: "doc-2", Seq: 1, Status: UnitPending},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO analysis_jobs").
		WithArgs(
			job.ID,
			job.UserID,
			job.Name,
			job.ChecklistID,
			job.AIModel,
			string(JobPending),
			nil,
			sqlmock.AnyArg(),
			nil,
			nil,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO analysis_units").
		WithArgs("unit-1", job.ID, "doc-1", 0, string(UnitPending), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO analysis_units").
		WithArgs("unit-2", job.ID, "doc-2", 1, string(UnitPending), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.CreateJob(context.Background(), job, units); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSaveResultUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	verdict := true
	confidence := 0.85
	item := ResultItem{
		ID:              "res-1",
		UnitID:          "unit-1",
		JobID:           "job-1",
		ChecklistItemID: "item-1",
		DocumentID:      "doc-1",
		Answer:          "ja",
		Verdict:         &verdict,
		Confidence:      &confidence,
		Evidence:        "ISO 9001 zertifiziert",
		Pages:           []int{2, 3},
		CreatedAt:       time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO analysis_results").
		WithArgs(
			item.ID,
			item.UnitID,
			item.JobID,
			item.ChecklistItemID,
			item.DocumentID,
			item.Answer,
			&verdict,
			&confidence,
			item.Evidence,
			[]byte("[2,3]"),
			nil,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.SaveResult(context.Background(), item); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateUnitStatusNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE analysis_units").
		WithArgs(string(UnitFailed), "boom", "unit-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateUnitStatus(context.Background(), "unit-missing", UnitFailed, "boom"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

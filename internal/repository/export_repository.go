package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/learnhub-dev/learnhub-api/internal/models"
)

// ExportRepository handles persistence of roster export jobs.
type ExportRepository struct {
	db *sqlx.DB
}

// NewExportRepository constructs the repository.
func NewExportRepository(db *sqlx.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create persists a queued export job.
func (r *ExportRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.ExportStatusQueued
	}
	const query = `INSERT INTO export_jobs (id, course_id, format, status, file_path, created_by, created_at, finished_at, error_message)
        VALUES (:id, :course_id, :format, :status, :file_path, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// FindByID returns an export job by its ID.
func (r *ExportRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	const query = `SELECT id, course_id, format, status, file_path, created_by, created_at, finished_at, error_message
        FROM export_jobs WHERE id = $1`
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateStatus transitions a job's lifecycle state.
func (r *ExportRepository) UpdateStatus(ctx context.Context, id string, status models.ExportStatus) error {
	const query = `UPDATE export_jobs SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update export status: %w", err)
	}
	return nil
}

// Finish marks a job finished with its artifact path.
func (r *ExportRepository) Finish(ctx context.Context, id, filePath string, finishedAt time.Time) error {
	const query = `UPDATE export_jobs SET status = $2, file_path = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ExportStatusFinished, filePath, finishedAt); err != nil {
		return fmt.Errorf("finish export job: %w", err)
	}
	return nil
}

// Fail marks a job failed with the error message.
func (r *ExportRepository) Fail(ctx context.Context, id, message string, finishedAt time.Time) error {
	const query = `UPDATE export_jobs SET status = $2, error_message = $3, finished_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ExportStatusFailed, message, finishedAt); err != nil {
		return fmt.Errorf("fail export job: %w", err)
	}
	return nil
}

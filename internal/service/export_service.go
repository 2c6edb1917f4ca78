package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/export"
	"github.com/learnhub-dev/learnhub-api/pkg/jobs"
	"github.com/learnhub-dev/learnhub-api/pkg/storage"
)

const exportJobType = "course_roster_export"

type exportRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	UpdateStatus(ctx context.Context, id string, status models.ExportStatus) error
	Finish(ctx context.Context, id, filePath string, finishedAt time.Time) error
	Fail(ctx context.Context, id, message string, finishedAt time.Time) error
}

type rosterReader interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// RequestExportRequest asks for an asynchronous roster export.
type RequestExportRequest struct {
	Format models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportService produces course roster files in the background and exposes
// them through signed download tokens.
type ExportService struct {
	repo        exportRepository
	enrollments rosterReader
	courses     courseReader
	queue       jobEnqueuer
	store       *storage.LocalStorage
	signer      *storage.SignedURLSigner
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(
	repo exportRepository,
	enrollments rosterReader,
	courses courseReader,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	validate *validator.Validate,
	logger *zap.Logger,
) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		repo:        repo,
		enrollments: enrollments,
		courses:     courses,
		store:       store,
		signer:      signer,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		validator:   validate,
		logger:      logger,
	}
}

// SetQueue attaches the job queue after construction. The queue handler needs
// the service, so wiring happens in two steps.
func (s *ExportService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// SetMetrics attaches export instrumentation. A nil metrics service is a no-op.
func (s *ExportService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// Request persists a queued job and schedules it for processing.
func (s *ExportService) Request(ctx context.Context, courseID, requestedBy string, req RequestExportRequest) (*models.ExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue is not running")
	}

	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	job := &models.ExportJob{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		Format:    req.Format,
		Status:    models.ExportStatusQueued,
		CreatedBy: requestedBy,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: exportJobType, Payload: job.ID}); err != nil {
		now := time.Now().UTC()
		if failErr := s.repo.Fail(ctx, job.ID, "failed to enqueue", now); failErr != nil {
			s.logger.Error("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return job, nil
}

// Process is the queue handler. It renders the roster and stores the file.
func (s *ExportService) Process(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok || jobID == "" {
		return fmt.Errorf("export job payload missing id")
	}

	record, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}
	if record.Status == models.ExportStatusFinished {
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, jobID, models.ExportStatusProcessing); err != nil {
		return fmt.Errorf("mark export processing: %w", err)
	}

	data, title, err := s.rosterDataset(ctx, record.CourseID)
	if err != nil {
		s.failJob(ctx, jobID, err)
		return err
	}

	var rendered []byte
	switch record.Format {
	case models.ExportFormatPDF:
		rendered, err = s.pdf.Render(data, title)
	default:
		rendered, err = s.csv.Render(data)
	}
	if err != nil {
		s.failJob(ctx, jobID, err)
		return err
	}

	relPath := fmt.Sprintf("%s/roster-%s.%s", record.CourseID, jobID, record.Format)
	if _, err := s.store.Save(relPath, rendered); err != nil {
		s.failJob(ctx, jobID, err)
		return err
	}

	if err := s.repo.Finish(ctx, jobID, relPath, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark export finished: %w", err)
	}
	s.metrics.RecordExport(string(models.ExportStatusFinished))
	s.logger.Info("export job finished", zap.String("job_id", jobID), zap.String("path", relPath))
	return nil
}

// Get returns a job, attaching a fresh signed download URL once finished.
func (s *ExportService) Get(ctx context.Context, id string) (*models.ExportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}

	if job.Status == models.ExportStatusFinished && job.FilePath != nil {
		token, _, err := s.signer.Generate(job.ID, *job.FilePath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
		}
		url := fmt.Sprintf("/exports/download/%s", token)
		job.DownloadURL = &url
	}
	return job, nil
}

// Download resolves a signed token to the stored file.
func (s *ExportService) Download(ctx context.Context, token string) (*os.File, *models.ExportJob, error) {
	exportID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, "invalid download token")
	}

	job, err := s.repo.FindByID(ctx, exportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.FilePath == nil || *job.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidToken, "token does not match the stored file")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return file, job, nil
}

func (s *ExportService) rosterDataset(ctx context.Context, courseID string) (export.Dataset, string, error) {
	details, _, err := s.enrollments.List(ctx, models.EnrollmentFilter{CourseID: courseID, Page: 1, PageSize: 10000})
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load roster: %w", err)
	}

	data := export.Dataset{
		Headers: []string{"First Name", "Last Name", "Email", "Status", "Enrolled At"},
		Rows:    make([]map[string]string, 0, len(details)),
	}
	title := "Course Roster"
	for _, d := range details {
		if title == "Course Roster" && d.CourseTitle != "" {
			title = d.CourseTitle + " Roster"
		}
		data.Rows = append(data.Rows, map[string]string{
			"First Name":  d.StudentFirstName,
			"Last Name":   d.StudentLastName,
			"Email":       d.StudentEmail,
			"Status":      string(d.Status),
			"Enrolled At": d.EnrolledAt.Format(time.RFC3339),
		})
	}
	return data, title, nil
}

func (s *ExportService) failJob(ctx context.Context, jobID string, cause error) {
	s.metrics.RecordExport(string(models.ExportStatusFailed))
	if err := s.repo.Fail(ctx, jobID, cause.Error(), time.Now().UTC()); err != nil {
		s.logger.Error("failed to mark export job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

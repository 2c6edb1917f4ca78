package models

import "time"

// ExportFormat enumerates supported roster export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob is the persisted metadata of an asynchronous roster export.
type ExportJob struct {
	ID           string       `db:"id" json:"id"`
	CourseID     string       `db:"course_id" json:"course_id"`
	Format       ExportFormat `db:"format" json:"format"`
	Status       ExportStatus `db:"status" json:"status"`
	FilePath     *string      `db:"file_path" json:"-"`
	DownloadURL  *string      `db:"-" json:"download_url,omitempty"`
	CreatedBy    string       `db:"created_by" json:"created_by"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
}

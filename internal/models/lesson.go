package models

import (
	"time"

	"github.com/lib/pq"
)

// CompletionStatus enumerates per-student lesson progress.
type CompletionStatus string

const (
	CompletionPending   CompletionStatus = "pending"
	CompletionCompleted CompletionStatus = "completed"
)

// Lesson belongs to exactly one course.
type Lesson struct {
	ID          string         `db:"id" json:"id"`
	CourseID    string         `db:"course_id" json:"course_id"`
	Session     string         `db:"session" json:"session"`
	Description string         `db:"description" json:"description"`
	VideoURLs   pq.StringArray `db:"video_urls" json:"video_urls"`
	QuizID      *string        `db:"quiz_id" json:"quiz_id,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// LessonCompletion is the per-student completion entry. A student appears at
// most once per lesson; repeated submissions overwrite the status.
type LessonCompletion struct {
	LessonID    string           `db:"lesson_id" json:"lesson_id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	Status      CompletionStatus `db:"status" json:"status"`
	Score       float64          `db:"score" json:"score"`
	CompletedAt time.Time        `db:"completed_at" json:"completed_at"`
}

// CompletedStudent is the name-limited projection used when listing a
// lesson's completions.
type CompletedStudent struct {
	StudentID   string           `db:"student_id" json:"student_id"`
	FirstName   string           `db:"first_name" json:"first_name"`
	LastName    string           `db:"last_name" json:"last_name"`
	Status      CompletionStatus `db:"status" json:"status"`
	CompletedAt time.Time        `db:"completed_at" json:"completed_at"`
}

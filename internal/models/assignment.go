package models

import "time"

// Assignment belongs to a course.
type Assignment struct {
	ID          string     `db:"id" json:"id"`
	CourseID    string     `db:"course_id" json:"course_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// AssignmentSubmission is a student's handed-in work, optionally graded.
type AssignmentSubmission struct {
	ID           string    `db:"id" json:"id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	Content      string    `db:"content" json:"content"`
	Grade        *float64  `db:"grade" json:"grade,omitempty"`
	Feedback     *string   `db:"feedback" json:"feedback,omitempty"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submitted_at"`
}

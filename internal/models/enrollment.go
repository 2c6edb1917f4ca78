package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusPaid      EnrollmentStatus = "PAID"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Enrollment links one user to one course.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	UserID     string           `db:"user_id" json:"user_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentFirstName string `db:"student_first_name" json:"student_first_name"`
	StudentLastName  string `db:"student_last_name" json:"student_last_name"`
	StudentEmail     string `db:"student_email" json:"student_email"`
	CourseTitle      string `db:"course_title" json:"course_title"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	UserID   string
	CourseID string
	Status   EnrollmentStatus
	Page     int
	PageSize int
}

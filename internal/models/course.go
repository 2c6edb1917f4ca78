package models

import (
	"time"

	"github.com/lib/pq"
)

// Course is the root entity of the catalog. Relationships are references by
// identifier; the composed view resolves them on read.
type Course struct {
	ID           string         `db:"id" json:"id"`
	Title        string         `db:"title" json:"title"`
	Description  string         `db:"description" json:"description"`
	Price        float64        `db:"price" json:"price"`
	Duration     string         `db:"duration" json:"duration"`
	Category     string         `db:"category" json:"category"`
	InstructorID string         `db:"instructor_id" json:"instructor_id"`
	MediaURLs    pq.StringArray `db:"media_urls" json:"media_urls"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// InstructorInfo is the display-limited projection of an instructor used in
// composed views. Only name fields are exposed.
type InstructorInfo struct {
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}

// CourseView is the denormalized catalog entry: the course root plus its
// resolved instructor and child collections. Child lists may be empty; a
// course whose instructor does not resolve never appears.
type CourseView struct {
	Course
	Instructor  InstructorInfo `json:"instructor"`
	Lessons     []Lesson       `json:"lessons"`
	Quizzes     []Quiz         `json:"quizzes"`
	Assignments []Assignment   `json:"assignments"`
	Enrollments []Enrollment   `json:"enrollments"`
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	Category     string
	InstructorID string
	Page         int
	PageSize     int
}

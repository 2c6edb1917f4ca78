package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Quiz belongs to a course and carries an ordered question list.
type Quiz struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Question holds the option list and the index of the correct option. The
// correct answer never leaves the server.
type Question struct {
	ID            string         `db:"id" json:"id"`
	QuizID        string         `db:"quiz_id" json:"quiz_id"`
	Text          string         `db:"text" json:"text"`
	Options       pq.StringArray `db:"options" json:"options"`
	CorrectAnswer int            `db:"correct_answer" json:"-"`
	Position      int            `db:"position" json:"position"`
}

// QuizAnswer is a single selected option within a submission.
type QuizAnswer struct {
	QuestionID     string `json:"question_id"`
	SelectedOption int    `json:"selected_option"`
}

// QuizAnswers is the JSONB-persisted answer list.
type QuizAnswers []QuizAnswer

// Value marshals answers to JSON for persistence.
func (a QuizAnswers) Value() (driver.Value, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal quiz answers: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the answer list.
func (a *QuizAnswers) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for QuizAnswers", value)
	}
	if len(data) == 0 {
		*a = nil
		return nil
	}
	if err := json.Unmarshal(data, a); err != nil {
		return fmt.Errorf("unmarshal quiz answers: %w", err)
	}
	return nil
}

// QuizSubmission records a student's scored attempt. One row per
// (quiz, student); resubmission overwrites.
type QuizSubmission struct {
	ID          string      `db:"id" json:"id"`
	QuizID      string      `db:"quiz_id" json:"quiz_id"`
	StudentID   string      `db:"student_id" json:"student_id"`
	Answers     QuizAnswers `db:"answers" json:"answers"`
	Score       int         `db:"score" json:"score"`
	SubmittedAt time.Time   `db:"submitted_at" json:"submitted_at"`
}

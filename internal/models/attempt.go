package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptCompleted     AttemptStatus = "completed"
	AttemptAutoSubmitted AttemptStatus = "auto_submitted"
	AttemptAbandoned     AttemptStatus = "abandoned"
)

const (
	AttemptEndReasonCompleted = "completed"
	AttemptEndReasonTimeout   = "time_out"
	AttemptEndReasonAbandoned = "abandoned"
)

// TestAttempt is the persisted record of one finished (or abandoned) session.
// It is written exactly once, by the attempt sink, when the session reaches a
// terminal state.
type TestAttempt struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	TestID    uint          `json:"test_id" gorm:"not null;index"`
	StudentID string        `json:"student_id" gorm:"not null;index;size:255"`
	Status    AttemptStatus `json:"status" gorm:"not null;index"`
	EndReason string        `json:"end_reason" gorm:"size:50"`

	// Scoring
	Score       float64 `json:"score"`
	TotalMarks  int     `json:"total_marks"`
	Percentage  int     `json:"percentage"`
	Passed      bool    `json:"passed"`
	Correct     int     `json:"correct"`
	Incorrect   int     `json:"incorrect"`
	Unattempted int     `json:"unattempted"`

	// Per-question answers at submission time, stored as JSONB
	// ([]RecordedAnswer).
	Answers datatypes.JSON `json:"answers" gorm:"type:jsonb"`

	// Timing
	StartedAt   time.Time `json:"started_at"`
	SubmittedAt time.Time `json:"submitted_at"`
	TimeSpent   int       `json:"time_spent"` // seconds

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Test    Test `json:"test,omitempty" gorm:"foreignKey:TestID"`
	Student User `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

func (TestAttempt) TableName() string {
	return "test_attempts"
}

// RecordedAnswer is the serialized form of one answer inside
// TestAttempt.Answers.
type RecordedAnswer struct {
	QuestionID  uint   `json:"question_id"`
	OptionIndex *int   `json:"option_index"`
	Status      string `json:"status"`
}

// AttemptRecord is the write-path payload handed to the attempt sink when a
// session reaches a terminal state.
type AttemptRecord struct {
	TestID      uint
	StudentID   string
	Status      AttemptStatus
	EndReason   string
	Score       float64
	TotalMarks  int
	Percentage  int
	Passed      bool
	Correct     int
	Incorrect   int
	Unattempted int
	Answers     []RecordedAnswer
	StartedAt   time.Time
	SubmittedAt time.Time
	TimeSpent   int
}

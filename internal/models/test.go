package models

import (
	"time"

	"gorm.io/gorm"
)

type TestStatus string

const (
	TestDraft    TestStatus = "Draft"
	TestActive   TestStatus = "Active"
	TestArchived TestStatus = "Archived"
)

// Test is the immutable description of one timed assessment. It is loaded
// once at session start and never mutated for the lifetime of an attempt.
type Test struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string    `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	Duration    int        `json:"duration" gorm:"not null" validate:"required,min=30,max=14400"` // seconds
	Status      TestStatus `json:"status" gorm:"default:Draft;index" validate:"omitempty,oneof=Draft Active Archived"`

	// PassPercent is the pass threshold applied to the attempt percentage.
	PassPercent int `json:"pass_percent" gorm:"not null;default:80" validate:"min=0,max=100"`

	// Optional linkage to a course in the catalog service.
	CourseID *uint `json:"course_id" gorm:"index"`

	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question    `json:"questions,omitempty" gorm:"foreignKey:TestID"`
	Attempts  []TestAttempt `json:"attempts,omitempty" gorm:"foreignKey:TestID"`

	// Computed fields (not stored)
	QuestionCount int `json:"question_count" gorm:"-"`
	TotalMarks    int `json:"total_marks" gorm:"-"`
}

func (Test) TableName() string {
	return "tests"
}

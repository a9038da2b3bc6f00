package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Question is a single-answer multiple choice item. The set of questions for
// a test is fixed at session start, ordered by the Order field.
type Question struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	TestID uint   `json:"test_id" gorm:"not null;index"`
	Text   string `json:"text" gorm:"type:text;not null" validate:"required"`

	// Options stored as JSONB ([]string) for flexibility.
	Options datatypes.JSON `json:"options" gorm:"type:jsonb;not null"`

	// CorrectOption indexes into Options.
	CorrectOption int `json:"correct_option" gorm:"not null" validate:"min=0"`

	Marks int `json:"marks" gorm:"default:1" validate:"min=1,max=100"`

	// NegativeMarks is subtracted from the score for an incorrect (not
	// unattempted) answer. Zero means no penalty.
	NegativeMarks float64 `json:"negative_marks" gorm:"default:0" validate:"min=0"`

	Order int `json:"order" gorm:"not null;default:0;index"`

	// Metadata
	Explanation *string   `json:"explanation" gorm:"type:text"`
	CreatedBy   string    `json:"created_by" gorm:"index;size:255"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// OptionList decodes the JSONB options column. A decode failure yields nil;
// callers treat that the same as an empty option set.
func (q *Question) OptionList() []string {
	var opts []string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil
	}
	return opts
}

package session

import (
	"testing"

	"gorm.io/datatypes"

	"github.com/learnspace/session-service/internal/models"
)

func scoreQuestion(id uint, correct, marks int, negative float64) *models.Question {
	return &models.Question{
		ID:            id,
		Text:          "q",
		Options:       datatypes.JSON(`["a","b","c","d"]`),
		CorrectOption: correct,
		Marks:         marks,
		NegativeMarks: negative,
	}
}

func answered(questionID uint, option int) Answer {
	return Answer{QuestionID: questionID, OptionIndex: &option, Status: StatusAnswered}
}

func TestComputeScore(t *testing.T) {
	tests := []struct {
		name        string
		questions   []*models.Question
		answers     []Answer
		passPercent int
		want        ScoreBreakdown
	}{
		{
			name: "all correct",
			questions: []*models.Question{
				scoreQuestion(1, 0, 2, 0),
				scoreQuestion(2, 1, 2, 0),
			},
			answers:     []Answer{answered(1, 0), answered(2, 1)},
			passPercent: 80,
			want: ScoreBreakdown{
				Score: 4, TotalMarks: 4, Percentage: 100, Passed: true,
				Correct: 2,
			},
		},
		{
			name: "negative marking",
			questions: []*models.Question{
				scoreQuestion(1, 0, 4, 1),
				scoreQuestion(2, 0, 4, 1),
				scoreQuestion(3, 0, 4, 1),
			},
			answers:     []Answer{answered(1, 0), answered(2, 3), {QuestionID: 3, Status: StatusNotVisited}},
			passPercent: 50,
			want: ScoreBreakdown{
				Score: 3, TotalMarks: 12, Percentage: 25, Passed: false,
				Correct: 1, Incorrect: 1, Unattempted: 1,
			},
		},
		{
			name: "negative score clamps percentage at zero",
			questions: []*models.Question{
				scoreQuestion(1, 0, 1, 2),
				scoreQuestion(2, 0, 1, 2),
			},
			answers:     []Answer{answered(1, 1), answered(2, 1)},
			passPercent: 0,
			want: ScoreBreakdown{
				Score: -4, TotalMarks: 2, Percentage: 0, Passed: true,
				Incorrect: 2,
			},
		},
		{
			name:        "zero total marks grades to zero percent",
			questions:   []*models.Question{scoreQuestion(1, 0, 0, 0)},
			answers:     []Answer{answered(1, 0)},
			passPercent: 80,
			want: ScoreBreakdown{
				Score: 0, TotalMarks: 0, Percentage: 0, Passed: false,
				Correct: 1,
			},
		},
		{
			name: "percentage rounds to nearest integer",
			questions: []*models.Question{
				scoreQuestion(1, 0, 1, 0),
				scoreQuestion(2, 0, 1, 0),
				scoreQuestion(3, 0, 1, 0),
			},
			answers:     []Answer{answered(1, 0), answered(2, 0), answered(3, 1)},
			passPercent: 67,
			want: ScoreBreakdown{
				Score: 2, TotalMarks: 3, Percentage: 67, Passed: true,
				Correct: 2, Incorrect: 1,
			},
		},
		{
			name: "pass threshold boundary",
			questions: []*models.Question{
				scoreQuestion(1, 0, 1, 0),
				scoreQuestion(2, 0, 1, 0),
			},
			answers:     []Answer{answered(1, 0), answered(2, 1)},
			passPercent: 50,
			want: ScoreBreakdown{
				Score: 1, TotalMarks: 2, Percentage: 50, Passed: true,
				Correct: 1, Incorrect: 1,
			},
		},
		{
			name: "empty answer sheet counts everything unattempted",
			questions: []*models.Question{
				scoreQuestion(1, 0, 5, 1),
				scoreQuestion(2, 0, 5, 1),
			},
			answers:     nil,
			passPercent: 80,
			want: ScoreBreakdown{
				Score: 0, TotalMarks: 10, Percentage: 0, Passed: false,
				Unattempted: 2,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeScore(tt.questions, tt.answers, tt.passPercent)
			if got != tt.want {
				t.Errorf("ComputeScore() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestComputeScoreIsPure(t *testing.T) {
	questions := []*models.Question{scoreQuestion(1, 0, 2, 1)}
	answers := []Answer{answered(1, 0)}

	first := ComputeScore(questions, answers, 80)
	second := ComputeScore(questions, answers, 80)

	if first != second {
		t.Errorf("repeated scoring diverged: %+v vs %+v", first, second)
	}
	if *answers[0].OptionIndex != 0 || answers[0].Status != StatusAnswered {
		t.Error("scoring mutated the answer sheet")
	}
}

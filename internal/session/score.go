package session

import (
	"math"

	"github.com/learnspace/session-service/internal/models"
)

// ScoreBreakdown is the outcome of scoring one answer sheet against its
// question list. Computing it is a pure function of its inputs.
type ScoreBreakdown struct {
	Score       float64 `json:"score"`
	TotalMarks  int     `json:"total_marks"`
	Percentage  int     `json:"percentage"`
	Passed      bool    `json:"passed"`
	Correct     int     `json:"correct"`
	Incorrect   int     `json:"incorrect"`
	Unattempted int     `json:"unattempted"`
}

// ComputeScore grades the answer sheet. An unattempted question contributes
// zero, a correct answer contributes the question's marks, an incorrect one
// subtracts its negative-marking penalty. The percentage is computed from the
// score clamped at zero and rounded to the nearest integer; a test with zero
// total marks grades to 0%.
func ComputeScore(questions []*models.Question, answers []Answer, passPercent int) ScoreBreakdown {
	var b ScoreBreakdown

	for i, q := range questions {
		b.TotalMarks += q.Marks

		if i >= len(answers) || answers[i].OptionIndex == nil {
			b.Unattempted++
			continue
		}
		if *answers[i].OptionIndex == q.CorrectOption {
			b.Correct++
			b.Score += float64(q.Marks)
		} else {
			b.Incorrect++
			b.Score -= q.NegativeMarks
		}
	}

	if b.TotalMarks > 0 {
		b.Percentage = int(math.Round(100 * math.Max(b.Score, 0) / float64(b.TotalMarks)))
	}
	b.Passed = b.Percentage >= passPercent

	return b
}

package session

// AnswerStatus tracks the review state of one question within a session.
// Transitions happen only through the functions below so the status logic
// lives in exactly one place.
type AnswerStatus string

const (
	StatusNotVisited     AnswerStatus = "not_visited"
	StatusNotAnswered    AnswerStatus = "not_answered"
	StatusAnswered       AnswerStatus = "answered"
	StatusMarked         AnswerStatus = "marked"
	StatusAnsweredMarked AnswerStatus = "answered_marked"
)

// HasSelection reports whether the status implies a selected option.
// Invariant: HasSelection(status) <=> OptionIndex != nil.
func (s AnswerStatus) HasSelection() bool {
	return s == StatusAnswered || s == StatusAnsweredMarked
}

// Visited reports whether the question has ever been the current question.
func (s AnswerStatus) Visited() bool {
	return s != StatusNotVisited
}

// visited is applied when a question becomes the current question. Once
// visited, a status never reverts to StatusNotVisited.
func visited(s AnswerStatus) AnswerStatus {
	if s == StatusNotVisited {
		return StatusNotAnswered
	}
	return s
}

// selected is applied when an option is chosen. A marked question keeps its
// mark; everything else becomes plain answered.
func selected(s AnswerStatus) AnswerStatus {
	if s == StatusMarked || s == StatusAnsweredMarked {
		return StatusAnsweredMarked
	}
	return StatusAnswered
}

// cleared is applied when the selection is removed. Clearing always drops
// the marked qualifier.
func cleared() AnswerStatus {
	return StatusNotAnswered
}

// toggledMark flips the marked qualifier, keeping the answered/unanswered
// half of the status intact.
func toggledMark(s AnswerStatus) AnswerStatus {
	switch s {
	case StatusAnswered:
		return StatusAnsweredMarked
	case StatusAnsweredMarked:
		return StatusAnswered
	case StatusMarked:
		return StatusNotAnswered
	default: // not_visited, not_answered
		return StatusMarked
	}
}

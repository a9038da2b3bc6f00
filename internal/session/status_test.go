package session

import "testing"

func TestAnswerStatusTransitions(t *testing.T) {
	t.Run("visited", func(t *testing.T) {
		tests := []struct {
			from, want AnswerStatus
		}{
			{StatusNotVisited, StatusNotAnswered},
			{StatusNotAnswered, StatusNotAnswered},
			{StatusAnswered, StatusAnswered},
			{StatusMarked, StatusMarked},
			{StatusAnsweredMarked, StatusAnsweredMarked},
		}
		for _, tt := range tests {
			if got := visited(tt.from); got != tt.want {
				t.Errorf("visited(%s) = %s, want %s", tt.from, got, tt.want)
			}
		}
	})

	t.Run("selected keeps mark", func(t *testing.T) {
		tests := []struct {
			from, want AnswerStatus
		}{
			{StatusNotVisited, StatusAnswered},
			{StatusNotAnswered, StatusAnswered},
			{StatusAnswered, StatusAnswered},
			{StatusMarked, StatusAnsweredMarked},
			{StatusAnsweredMarked, StatusAnsweredMarked},
		}
		for _, tt := range tests {
			if got := selected(tt.from); got != tt.want {
				t.Errorf("selected(%s) = %s, want %s", tt.from, got, tt.want)
			}
		}
	})

	t.Run("toggledMark flips only the mark half", func(t *testing.T) {
		tests := []struct {
			from, want AnswerStatus
		}{
			{StatusNotVisited, StatusMarked},
			{StatusNotAnswered, StatusMarked},
			{StatusMarked, StatusNotAnswered},
			{StatusAnswered, StatusAnsweredMarked},
			{StatusAnsweredMarked, StatusAnswered},
		}
		for _, tt := range tests {
			if got := toggledMark(tt.from); got != tt.want {
				t.Errorf("toggledMark(%s) = %s, want %s", tt.from, got, tt.want)
			}
		}
	})
}

func TestHasSelection(t *testing.T) {
	withSelection := map[AnswerStatus]bool{
		StatusNotVisited:     false,
		StatusNotAnswered:    false,
		StatusAnswered:       true,
		StatusMarked:         false,
		StatusAnsweredMarked: true,
	}
	for status, want := range withSelection {
		if got := status.HasSelection(); got != want {
			t.Errorf("%s.HasSelection() = %v, want %v", status, got, want)
		}
	}
}

func TestStateTerminal(t *testing.T) {
	terminal := map[State]bool{
		StateRunning:       false,
		StateSubmitting:    false,
		StateSubmitted:     true,
		StateAutoSubmitted: true,
		StateAbandoned:     true,
	}
	for state, want := range terminal {
		if got := state.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", state, got, want)
		}
	}
}

func TestSubmitReasonTerminalState(t *testing.T) {
	tests := []struct {
		reason SubmitReason
		want   State
	}{
		{ReasonCompleted, StateSubmitted},
		{ReasonTimeout, StateAutoSubmitted},
		{ReasonAbandoned, StateAbandoned},
	}
	for _, tt := range tests {
		if got := tt.reason.terminalState(); got != tt.want {
			t.Errorf("%s.terminalState() = %s, want %s", tt.reason, got, tt.want)
		}
	}
}

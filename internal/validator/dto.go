package validator

// StartSessionRequest opens a new timed session on a test.
type StartSessionRequest struct {
	TestID uint `json:"test_id" validate:"required"`
}

// NavigateRequest moves the session's current-question pointer.
type NavigateRequest struct {
	Index int `json:"index" validate:"min=0"`
}

// SelectAnswerRequest records an option on the current question.
type SelectAnswerRequest struct {
	OptionIndex int `json:"option_index" validate:"min=0"`
}

// SubmitRequest finishes a session. Reason is optional and may only name
// "completed"; timeout submissions are produced by the countdown, never by
// the client.
type SubmitRequest struct {
	Reason *string `json:"reason" validate:"omitempty,oneof=completed"`
}

// TestCreateRequest creates a test shell; questions are added separately.
type TestCreateRequest struct {
	Title       string  `json:"title" validate:"required,test_title"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Duration    int     `json:"duration" validate:"required,test_duration"` // seconds
	PassPercent int     `json:"pass_percent" validate:"min=0,max=100"`
	CourseID    *uint   `json:"course_id"`
}

// QuestionCreateRequest adds one multiple-choice question to a test.
type QuestionCreateRequest struct {
	Text          string   `json:"text" validate:"required,max=2000"`
	Options       []string `json:"options" validate:"required,min=2,max=10,dive,required,max=500"`
	CorrectOption int      `json:"correct_option" validate:"min=0"`
	Marks         int      `json:"marks" validate:"min=1,max=100"`
	NegativeMarks float64  `json:"negative_marks" validate:"min=0"`
	Order         int      `json:"order" validate:"min=0"`
	Explanation   *string  `json:"explanation" validate:"omitempty,max=2000"`
}

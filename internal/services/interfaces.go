package services

import (
	"context"

	"github.com/learnspace/session-service/internal/models"
	"github.com/learnspace/session-service/internal/repositories"
	"github.com/learnspace/session-service/internal/session"
	"github.com/learnspace/session-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Request types are defined next to their validation rules.
type StartSessionRequest = validator.StartSessionRequest
type NavigateRequest = validator.NavigateRequest
type SelectAnswerRequest = validator.SelectAnswerRequest
type SubmitRequest = validator.SubmitRequest

// QuestionForSession is a question as a student sees it during a session:
// the correct option and explanation are stripped.
type QuestionForSession struct {
	ID            uint     `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	Marks         int      `json:"marks"`
	NegativeMarks float64  `json:"negative_marks"`
	Order         int      `json:"order"`
}

// SessionResponse is the live view of one session.
type SessionResponse struct {
	SessionID string           `json:"session_id"`
	TestID    uint             `json:"test_id"`
	Title     string           `json:"title"`
	Duration  int              `json:"duration"` // seconds
	State     session.State    `json:"state"`
	Current   int              `json:"current"`
	Remaining int              `json:"remaining"` // seconds
	Answers   []session.Answer `json:"answers"`

	// Questions are included on start and single-session reads, omitted from
	// post-operation responses.
	Questions []QuestionForSession `json:"questions,omitempty"`
}

type AttemptResponse struct {
	*models.TestAttempt
	CanViewAnswers bool `json:"can_view_answers"`
}

type AttemptListResponse struct {
	Attempts []*AttemptResponse `json:"attempts"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	Size     int                `json:"size"`
}

// ===== SERVICE INTERFACES =====

// SessionService owns the registry of live session controllers, one per
// in-flight attempt. Every session is driven at 1 Hz by its own ticker
// goroutine; all other mutations arrive through the methods below.
type SessionService interface {
	Start(ctx context.Context, req *StartSessionRequest, studentID string) (*SessionResponse, error)
	Get(ctx context.Context, sessionID, studentID string) (*SessionResponse, error)

	Navigate(ctx context.Context, sessionID, studentID string, req *NavigateRequest) (*SessionResponse, error)
	SelectAnswer(ctx context.Context, sessionID, studentID string, req *SelectAnswerRequest) (*SessionResponse, error)
	ClearAnswer(ctx context.Context, sessionID, studentID string) (*SessionResponse, error)
	ToggleMarkForReview(ctx context.Context, sessionID, studentID string) (*SessionResponse, error)

	Submit(ctx context.Context, sessionID, studentID string, req *SubmitRequest) (*SessionResponse, error)
	RetrySubmit(ctx context.Context, sessionID, studentID string) (*SessionResponse, error)
	Abandon(ctx context.Context, sessionID, studentID string) (*SessionResponse, error)

	ActiveSessions() int
	Shutdown(ctx context.Context) error
}

// AttemptService is the instructor/student read path over finished attempts.
type AttemptService interface {
	GetByID(ctx context.Context, id uint, userID string) (*AttemptResponse, error)
	GetByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) (*AttemptListResponse, error)
	GetByTest(ctx context.Context, testID uint, filters repositories.AttemptFilters, userID string) (*AttemptListResponse, error)
	GetStats(ctx context.Context, testID uint, userID string) (*repositories.AttemptStats, error)

	// ExportByTest renders all attempts of a test as an XLSX workbook.
	ExportByTest(ctx context.Context, testID uint, userID string) ([]byte, string, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Session() SessionService
	Attempt() AttemptService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

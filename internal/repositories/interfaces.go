package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/learnspace/session-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type AttemptFilters struct {
	TestID    *uint                 `json:"test_id"`
	StudentID *string               `json:"student_id"`
	Status    *models.AttemptStatus `json:"status"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`    // "submitted_at", "percentage"
	SortOrder string                `json:"sort_order"` // "asc", "desc"
}

type UserFilters struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// ===== SHARED STATISTICS STRUCTS =====

type AttemptStats struct {
	TotalAttempts    int                          `json:"total_attempts"`
	StatusBreakdown  map[models.AttemptStatus]int `json:"status_breakdown"`
	AveragePercent   float64                      `json:"average_percent"`
	AverageTimeSpent int                          `json:"average_time_spent"`
	PassRate         float64                      `json:"pass_rate"`
}

// ===== REPOSITORY INTERFACES =====

// QuestionStore is the read-side collaborator of a session: test metadata
// plus the ordered question list, fetched once at session start.
type QuestionStore interface {
	GetTest(ctx context.Context, id uint) (*models.Test, error)
	GetQuestions(ctx context.Context, testID uint) ([]*models.Question, error)
}

// AttemptSink is the write-side collaborator: it persists the final attempt
// record exactly once per session.
type AttemptSink interface {
	RecordAttempt(ctx context.Context, record *models.AttemptRecord) (uint, error)
}

// AttemptRepository is the instructor-facing read path over recorded
// attempts.
type AttemptRepository interface {
	GetByID(ctx context.Context, id uint) (*models.TestAttempt, error)
	List(ctx context.Context, filters AttemptFilters) ([]*models.TestAttempt, int64, error)
	GetByStudent(ctx context.Context, studentID string, filters AttemptFilters) ([]*models.TestAttempt, int64, error)
	GetByTest(ctx context.Context, testID uint, filters AttemptFilters) ([]*models.TestAttempt, int64, error)
	GetTestAttemptStats(ctx context.Context, testID uint) (*AttemptStats, error)
}

// UserRepository resolves identities for the auth middleware and permission
// checks (read-only for this service).
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	HasRole(ctx context.Context, id string, role models.UserRole) (bool, error)
}

// Repository aggregates all repository interfaces.
type Repository interface {
	Store() QuestionStore
	Sink() AttemptSink
	Attempt() AttemptRepository
	User() UserRepository

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager manages repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ===== ERROR HELPERS =====

var ErrNotFound = errors.New("record not found")

// IsNotFoundError reports whether err denotes a missing record, from either
// this package or gorm.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

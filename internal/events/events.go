package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/learnspace/session-service/internal/models"
)

// Event types published by this service.
const (
	EventSessionCompleted = "session.completed"
	EventSessionAbandoned = "session.abandoned"
)

const (
	eventSource  = "session-service"
	eventVersion = "1.0"
)

// Event is the envelope for every message this service publishes. Data holds
// the type-specific payload.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent builds an envelope with a fresh ID and timestamp.
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// SessionCompletedEvent is emitted when a session reaches the submitted or
// auto-submitted state and the attempt has been recorded.
type SessionCompletedEvent struct {
	AttemptID  uint    `json:"attempt_id"`
	TestID     uint    `json:"test_id"`
	StudentID  string  `json:"student_id"`
	EndReason  string  `json:"end_reason"`
	Score      float64 `json:"score"`
	TotalMarks int     `json:"total_marks"`
	Percentage int     `json:"percentage"`
	Passed     bool    `json:"passed"`
	TimeSpent  int     `json:"time_spent"`
}

// SessionAbandonedEvent is emitted when a student walks away from a session.
type SessionAbandonedEvent struct {
	AttemptID uint   `json:"attempt_id"`
	TestID    uint   `json:"test_id"`
	StudentID string `json:"student_id"`
	TimeSpent int    `json:"time_spent"`
}

// NewSessionCompletedEvent wraps a recorded attempt into its event envelope.
func NewSessionCompletedEvent(attemptID uint, record *models.AttemptRecord) *Event {
	return NewEvent(EventSessionCompleted, SessionCompletedEvent{
		AttemptID:  attemptID,
		TestID:     record.TestID,
		StudentID:  record.StudentID,
		EndReason:  record.EndReason,
		Score:      record.Score,
		TotalMarks: record.TotalMarks,
		Percentage: record.Percentage,
		Passed:     record.Passed,
		TimeSpent:  record.TimeSpent,
	})
}

// NewSessionAbandonedEvent wraps an abandoned attempt into its event
// envelope. AttemptID may be zero when the sink write failed.
func NewSessionAbandonedEvent(attemptID uint, record *models.AttemptRecord) *Event {
	return NewEvent(EventSessionAbandoned, SessionAbandonedEvent{
		AttemptID: attemptID,
		TestID:    record.TestID,
		StudentID: record.StudentID,
		TimeSpent: record.TimeSpent,
	})
}

// EventPublisher publishes service events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

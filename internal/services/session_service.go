package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/learnspace/session-service/internal/events"
	"github.com/learnspace/session-service/internal/models"
	"github.com/learnspace/session-service/internal/repositories"
	"github.com/learnspace/session-service/internal/session"
	"github.com/learnspace/session-service/internal/validator"
)

// liveSession pairs one controller with the ticker goroutine driving it.
type liveSession struct {
	id        string
	testID    uint
	studentID string
	ctrl      *session.Controller

	done     chan struct{}
	stopOnce sync.Once
}

func (ls *liveSession) stop() {
	ls.stopOnce.Do(func() { close(ls.done) })
}

type ownerKey struct {
	studentID string
	testID    uint
}

type sessionService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher

	mu       sync.RWMutex
	sessions map[string]*liveSession
	byOwner  map[ownerKey]string
	closed   bool
}

func NewSessionService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) SessionService {
	return &sessionService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		sessions:  make(map[string]*liveSession),
		byOwner:   make(map[ownerKey]string),
	}
}

// ===== LIFECYCLE =====

func (s *sessionService) Start(ctx context.Context, req *StartSessionRequest, studentID string) (*SessionResponse, error) {
	s.logger.Info("Starting test session",
		"test_id", req.TestID,
		"student_id", studentID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	// One live session per student and test: starting again resumes it.
	if existing := s.findByOwner(studentID, req.TestID); existing != nil {
		s.logger.Info("Resuming live session",
			"session_id", existing.id,
			"student_id", studentID)
		return s.respond(existing, true), nil
	}

	test, err := s.repo.Store().GetTest(ctx, req.TestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to load test: %w", err)
	}
	if test.Status != models.TestActive {
		return nil, ErrTestNotActive
	}

	ls := &liveSession{
		id:        uuid.NewString(),
		testID:    req.TestID,
		studentID: studentID,
		done:      make(chan struct{}),
	}

	ctrl, err := session.Start(ctx, session.Config{
		Store:     s.repo.Store(),
		Sink:      &retryingSink{sink: s.repo.Sink(), logger: s.logger},
		Logger:    s.logger,
		TestID:    req.TestID,
		StudentID: studentID,
		OnTerminal: func(res session.Result) {
			s.finishSession(ls, res)
		},
	})
	if err != nil {
		if errors.Is(err, session.ErrNoQuestions) {
			return nil, ErrTestHasNoQuestions
		}
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	ls.ctrl = ctrl

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("session service is shutting down")
	}
	s.sessions[ls.id] = ls
	s.byOwner[ownerKey{studentID, req.TestID}] = ls.id
	s.mu.Unlock()

	go s.runTicker(ls)

	s.logger.Info("Test session started",
		"session_id", ls.id,
		"test_id", req.TestID,
		"student_id", studentID)

	return s.respond(ls, true), nil
}

func (s *sessionService) Get(ctx context.Context, sessionID, studentID string) (*SessionResponse, error) {
	ls, err := s.lookup(sessionID, studentID)
	if err != nil {
		return nil, err
	}
	return s.respond(ls, true), nil
}

// ===== DISPATCH OPERATIONS =====

func (s *sessionService) Navigate(ctx context.Context, sessionID, studentID string, req *NavigateRequest) (*SessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	ls, err := s.lookup(sessionID, studentID)
	if err != nil {
		return nil, err
	}
	ls.ctrl.Navigate(req.Index)
	return s.respond(ls, false), nil
}

func (s *sessionService) SelectAnswer(ctx context.Context, sessionID, studentID string, req *SelectAnswerRequest) (*SessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	ls, err := s.lookup(sessionID, studentID)
	if err != nil {
		return nil, err
	}
	ls.ctrl.SelectAnswer(req.OptionIndex)
	return s.respond(ls, false), nil
}

func (s *sessionService) ClearAnswer(ctx context.Context, sessionID, studentID string) (*SessionResponse, error) {
	ls, err := s.lookup(sessionID, studentID)
	if err != nil {
		return nil, err
	}
	ls.ctrl.ClearAnswer()
	return s.respond(ls, false), nil
}

func (s *sessionService) ToggleMarkForReview(ctx context.Context, sessionID, studentID string) (*SessionResponse, error) {
	ls, err := s.lookup(sessionID, studentID)
	if err != nil {
		return nil, err
	}
	ls.ctrl.ToggleMarkForReview()
	return s.respond(ls, false), nil
}

// ===== TERMINATION =====

func (s *sessionService) Submit(ctx context.Context, sessionID, studentID string, req *SubmitRequest) (*SessionResponse, error) {
	if req != nil {
		if err := s.validator.Validate(req); err != nil {
			return nil, err
		}
	}

	ls, err := s.lookup(sessionID, studentID)
	if err != nil {
		return nil, err
	}

	reason := session.ReasonCompleted
	if req != nil && req.Reason != nil {
		reason = session.SubmitReason(*req.Reason)
	}

	return s.submit(ctx, ls, reason)
}

// RetrySubmit re-runs a submission whose sink write failed. The controller
// keeps the original submit reason, so a timed-out session stays
// auto-submitted no matter who retries.
func (s *sessionService) RetrySubmit(ctx context.Context, sessionID, studentID string) (*SessionResponse, error) {
	ls, err := s.lookup(sessionID, studentID)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, ls, session.ReasonCompleted)
}

func (s *sessionService) submit(ctx context.Context, ls *liveSession, reason session.SubmitReason) (*SessionResponse, error) {
	if err := ls.ctrl.Submit(ctx, reason); err != nil {
		if errors.Is(err, session.ErrSubmitInFlight) {
			return nil, ErrSubmitInProgress
		}
		s.logger.Error("Session submission failed, held for retry",
			"session_id", ls.id,
			"error", err)
		return nil, fmt.Errorf("%w: %v", ErrAttemptRecordFailed, err)
	}
	return s.respond(ls, false), nil
}

func (s *sessionService) Abandon(ctx context.Context, sessionID, studentID string) (*SessionResponse, error) {
	ls, err := s.lookup(sessionID, studentID)
	if err != nil {
		return nil, err
	}
	if err := ls.ctrl.Abandon(ctx); err != nil {
		if errors.Is(err, session.ErrAlreadyTerminal) {
			return nil, ErrSessionTerminal
		}
		return nil, fmt.Errorf("failed to abandon session: %w", err)
	}
	return s.respond(ls, false), nil
}

// ===== REGISTRY =====

func (s *sessionService) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *sessionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	live := make([]*liveSession, 0, len(s.sessions))
	for _, ls := range s.sessions {
		live = append(live, ls)
	}
	s.mu.Unlock()

	for _, ls := range live {
		ls.stop()
	}

	if len(live) > 0 {
		s.logger.Warn("Shut down with live sessions still running",
			"count", len(live))
	}
	return nil
}

func (s *sessionService) lookup(sessionID, studentID string) (*liveSession, error) {
	s.mu.RLock()
	ls, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if ls.studentID != studentID {
		return nil, NewPermissionError(studentID, "access this session")
	}
	return ls, nil
}

func (s *sessionService) findByOwner(studentID string, testID uint) *liveSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOwner[ownerKey{studentID, testID}]
	if !ok {
		return nil
	}
	return s.sessions[id]
}

// finishSession runs from the controller's OnTerminal hook: it tears down
// the registry entry and publishes the outcome event.
func (s *sessionService) finishSession(ls *liveSession, res session.Result) {
	ls.stop()

	s.mu.Lock()
	delete(s.sessions, ls.id)
	if s.byOwner[ownerKey{ls.studentID, ls.testID}] == ls.id {
		delete(s.byOwner, ownerKey{ls.studentID, ls.testID})
	}
	s.mu.Unlock()

	var event *events.Event
	if res.Record.Status == models.AttemptAbandoned {
		event = events.NewSessionAbandonedEvent(res.AttemptID, res.Record)
	} else {
		event = events.NewSessionCompletedEvent(res.AttemptID, res.Record)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish session event",
			"event_type", event.Type,
			"session_id", ls.id,
			"error", err)
	}

	s.logger.Info("Session finished",
		"session_id", ls.id,
		"attempt_id", res.AttemptID,
		"status", res.Record.Status)
}

// runTicker drives the countdown at 1 Hz until the session goes terminal or
// the service shuts down.
func (s *sessionService) runTicker(ls *liveSession) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ls.ctrl.Tick()
		case <-ls.done:
			return
		}
	}
}

func (s *sessionService) respond(ls *liveSession, withQuestions bool) *SessionResponse {
	snap := ls.ctrl.Snapshot()
	test := ls.ctrl.Test()

	resp := &SessionResponse{
		SessionID: ls.id,
		TestID:    test.ID,
		Title:     test.Title,
		Duration:  test.Duration,
		State:     snap.State,
		Current:   snap.Current,
		Remaining: snap.Remaining,
		Answers:   snap.Answers,
	}

	if withQuestions {
		questions := ls.ctrl.Questions()
		resp.Questions = make([]QuestionForSession, len(questions))
		for i, q := range questions {
			resp.Questions[i] = QuestionForSession{
				ID:            q.ID,
				Text:          q.Text,
				Options:       q.OptionList(),
				Marks:         q.Marks,
				NegativeMarks: q.NegativeMarks,
				Order:         q.Order,
			}
		}
	}

	return resp
}

// ===== SINK RETRY =====

const (
	sinkRetries    = 3
	sinkRetryDelay = 200 * time.Millisecond
)

// retryingSink wraps the attempt sink with a bounded retry. If all tries
// fail the controller stays in the submitting state and the client retries
// explicitly.
type retryingSink struct {
	sink   repositories.AttemptSink
	logger *slog.Logger
}

func (r *retryingSink) RecordAttempt(ctx context.Context, record *models.AttemptRecord) (uint, error) {
	var lastErr error
	delay := sinkRetryDelay

	for try := 1; try <= sinkRetries; try++ {
		id, err := r.sink.RecordAttempt(ctx, record)
		if err == nil {
			return id, nil
		}
		lastErr = err
		r.logger.Warn("Attempt sink write failed",
			"try", try,
			"test_id", record.TestID,
			"student_id", record.StudentID,
			"error", err)

		if try < sinkRetries {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
			delay *= 2
		}
	}
	return 0, lastErr
}

package services

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the service layer. Handlers map these onto
// HTTP status codes.
var (
	ErrTestNotFound       = errors.New("test not found")
	ErrTestNotActive      = errors.New("test is not active")
	ErrTestHasNoQuestions = errors.New("test has no questions")

	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionTerminal  = errors.New("session already finished")
	ErrSubmitInProgress = errors.New("submission already in progress")

	// ErrAttemptRecordFailed marks a submission whose sink write failed; the
	// session is intact and the client should retry.
	ErrAttemptRecordFailed = errors.New("failed to record attempt")

	ErrAttemptNotFound = errors.New("attempt not found")

	ErrUserNotFound     = errors.New("user not found")
	ErrPermissionDenied = errors.New("permission denied")
)

// PermissionError carries who tried what. It unwraps to ErrPermissionDenied
// so callers can match with errors.Is.
type PermissionError struct {
	UserID string
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s is not allowed to %s", e.UserID, e.Action)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }

func NewPermissionError(userID, action string) *PermissionError {
	return &PermissionError{UserID: userID, Action: action}
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/learnspace/session-service/internal/models"
	"github.com/learnspace/session-service/internal/repositories"
	"github.com/learnspace/session-service/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewAttemptService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) AttemptService {
	return &attemptService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// ===== READ OPERATIONS =====

func (s *attemptService) GetByID(ctx context.Context, id uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	staff, err := s.isStaff(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !staff && attempt.StudentID != userID {
		return nil, NewPermissionError(userID, "view this attempt")
	}

	return &AttemptResponse{TestAttempt: attempt, CanViewAnswers: staff}, nil
}

func (s *attemptService) GetByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) (*AttemptListResponse, error) {
	attempts, total, err := s.repo.Attempt().GetByStudent(ctx, studentID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts for student: %w", err)
	}
	return s.listResponse(attempts, total, filters, false), nil
}

func (s *attemptService) GetByTest(ctx context.Context, testID uint, filters repositories.AttemptFilters, userID string) (*AttemptListResponse, error) {
	if err := s.requireStaff(ctx, userID, "list attempts for a test"); err != nil {
		return nil, err
	}

	attempts, total, err := s.repo.Attempt().GetByTest(ctx, testID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts for test: %w", err)
	}
	return s.listResponse(attempts, total, filters, true), nil
}

func (s *attemptService) GetStats(ctx context.Context, testID uint, userID string) (*repositories.AttemptStats, error) {
	if err := s.requireStaff(ctx, userID, "view attempt statistics"); err != nil {
		return nil, err
	}

	stats, err := s.repo.Attempt().GetTestAttemptStats(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt stats: %w", err)
	}
	return stats, nil
}

// ===== EXPORT =====

var exportHeaders = []string{
	"Attempt ID", "Student ID", "Status", "End Reason",
	"Score", "Total Marks", "Percentage", "Passed",
	"Correct", "Incorrect", "Unattempted",
	"Started At", "Submitted At", "Time Spent (s)",
}

// ExportByTest renders every attempt of a test into an XLSX workbook,
// newest first.
func (s *attemptService) ExportByTest(ctx context.Context, testID uint, userID string) ([]byte, string, error) {
	if err := s.requireStaff(ctx, userID, "export attempts"); err != nil {
		return nil, "", err
	}

	test, err := s.repo.Store().GetTest(ctx, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", ErrTestNotFound
		}
		return nil, "", fmt.Errorf("failed to load test: %w", err)
	}

	attempts, _, err := s.repo.Attempt().GetByTest(ctx, testID, repositories.AttemptFilters{
		SortBy:    "submitted_at",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to load attempts: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Attempts"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", fmt.Errorf("failed to name sheet: %w", err)
	}

	for col, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, "", fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, attempt := range attempts {
		values := []interface{}{
			attempt.ID,
			attempt.StudentID,
			string(attempt.Status),
			attempt.EndReason,
			attempt.Score,
			attempt.TotalMarks,
			attempt.Percentage,
			attempt.Passed,
			attempt.Correct,
			attempt.Incorrect,
			attempt.Unattempted,
			attempt.StartedAt.Format(time.RFC3339),
			attempt.SubmittedAt.Format(time.RFC3339),
			attempt.TimeSpent,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, "", fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, "", fmt.Errorf("failed to write row: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to render workbook: %w", err)
	}

	filename := fmt.Sprintf("attempts_test_%d_%s.xlsx", test.ID, time.Now().Format("20060102"))

	s.logger.Info("Exported attempts",
		"test_id", testID,
		"user_id", userID,
		"rows", len(attempts))

	return buf.Bytes(), filename, nil
}

// ===== HELPERS =====

func (s *attemptService) isStaff(ctx context.Context, userID string) (bool, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("failed to resolve user: %w", err)
	}
	return user.Role == models.RoleInstructor || user.Role == models.RoleAdmin, nil
}

func (s *attemptService) requireStaff(ctx context.Context, userID, action string) error {
	staff, err := s.isStaff(ctx, userID)
	if err != nil {
		return err
	}
	if !staff {
		return NewPermissionError(userID, action)
	}
	return nil
}

func (s *attemptService) listResponse(attempts []*models.TestAttempt, total int64, filters repositories.AttemptFilters, staff bool) *AttemptListResponse {
	out := make([]*AttemptResponse, len(attempts))
	for i, attempt := range attempts {
		out[i] = &AttemptResponse{TestAttempt: attempt, CanViewAnswers: staff}
	}

	page, size := 1, len(out)
	if filters.Limit > 0 {
		size = filters.Limit
		page = filters.Offset/filters.Limit + 1
	}

	return &AttemptListResponse{
		Attempts: out,
		Total:    total,
		Page:     page,
		Size:     size,
	}
}

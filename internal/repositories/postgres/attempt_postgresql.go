package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/learnspace/session-service/internal/models"
	"github.com/learnspace/session-service/internal/repositories"
)

// AttemptPostgreSQL implements both AttemptSink (write-once on session end)
// and AttemptRepository (instructor read path).
type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) *AttemptPostgreSQL {
	return &AttemptPostgreSQL{db: db}
}

// ===== SINK =====

// RecordAttempt persists one finished attempt and returns its ID.
func (a *AttemptPostgreSQL) RecordAttempt(ctx context.Context, record *models.AttemptRecord) (uint, error) {
	answers, err := json.Marshal(record.Answers)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal answers: %w", err)
	}

	attempt := &models.TestAttempt{
		TestID:      record.TestID,
		StudentID:   record.StudentID,
		Status:      record.Status,
		EndReason:   record.EndReason,
		Score:       record.Score,
		TotalMarks:  record.TotalMarks,
		Percentage:  record.Percentage,
		Passed:      record.Passed,
		Correct:     record.Correct,
		Incorrect:   record.Incorrect,
		Unattempted: record.Unattempted,
		Answers:     answers,
		StartedAt:   record.StartedAt,
		SubmittedAt: record.SubmittedAt,
		TimeSpent:   record.TimeSpent,
	}

	if err := a.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return 0, fmt.Errorf("failed to record attempt: %w", err)
	}

	return attempt.ID, nil
}

// ===== READ OPERATIONS =====

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	if err := a.db.WithContext(ctx).Preload("Test").First(&attempt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	query := a.db.WithContext(ctx).Model(&models.TestAttempt{})
	query = a.applyFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count attempts: %w", err)
	}

	var attempts []*models.TestAttempt
	if err := a.applyPagination(query, filters).Find(&attempts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) GetByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	filters.StudentID = &studentID
	return a.List(ctx, filters)
}

func (a *AttemptPostgreSQL) GetByTest(ctx context.Context, testID uint, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	filters.TestID = &testID
	return a.List(ctx, filters)
}

func (a *AttemptPostgreSQL) GetTestAttemptStats(ctx context.Context, testID uint) (*repositories.AttemptStats, error) {
	stats := &repositories.AttemptStats{
		StatusBreakdown: make(map[models.AttemptStatus]int),
	}

	rows, err := a.db.WithContext(ctx).
		Model(&models.TestAttempt{}).
		Select("status, COUNT(*) as count").
		Where("test_id = ?", testID).
		Group("status").
		Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to get status breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status models.AttemptStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status row: %w", err)
		}
		stats.StatusBreakdown[status] = count
		stats.TotalAttempts += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status rows: %w", err)
	}

	type aggregates struct {
		AvgPercent   float64
		AvgTimeSpent float64
		Passed       int64
	}
	var agg aggregates
	err = a.db.WithContext(ctx).
		Model(&models.TestAttempt{}).
		Select("COALESCE(AVG(percentage), 0) as avg_percent, COALESCE(AVG(time_spent), 0) as avg_time_spent, COUNT(*) FILTER (WHERE passed) as passed").
		Where("test_id = ?", testID).
		Scan(&agg).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt aggregates: %w", err)
	}

	stats.AveragePercent = agg.AvgPercent
	stats.AverageTimeSpent = int(agg.AvgTimeSpent)
	if stats.TotalAttempts > 0 {
		stats.PassRate = float64(agg.Passed) / float64(stats.TotalAttempts) * 100
	}

	return stats, nil
}

// ===== HELPERS =====

func (a *AttemptPostgreSQL) applyFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.TestID != nil {
		query = query.Where("test_id = ?", *filters.TestID)
	}
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("submitted_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("submitted_at <= ?", *filters.DateTo)
	}
	return query
}

func (a *AttemptPostgreSQL) applyPagination(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	sortBy := filters.SortBy
	switch sortBy {
	case "percentage", "submitted_at", "time_spent":
	default:
		sortBy = "submitted_at"
	}
	sortOrder := "DESC"
	if filters.SortOrder == "asc" {
		sortOrder = "ASC"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}

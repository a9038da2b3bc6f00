package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/learnspace/session-service/internal/cache"
	"github.com/learnspace/session-service/internal/models"
	"github.com/learnspace/session-service/internal/repositories"
)

type QuestionStorePostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionStorePostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.QuestionStore {
	return &QuestionStorePostgreSQL{
		db:           db,
		cacheManager: cacheManager,
	}
}

// GetTest retrieves test metadata by ID with caching. Only active tests are
// visible to the session layer.
func (s *QuestionStorePostgreSQL) GetTest(ctx context.Context, id uint) (*models.Test, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var test models.Test

	err := s.cacheManager.Test.CacheOrExecute(ctx, cacheKey, &test, cache.TestCacheConfig.TTL, func() (interface{}, error) {
		var dbTest models.Test
		if err := s.db.WithContext(ctx).First(&dbTest, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.ErrNotFound
			}
			return nil, fmt.Errorf("failed to get test: %w", err)
		}
		return &dbTest, nil
	})
	if err != nil {
		return nil, err
	}

	return &test, nil
}

// GetQuestions retrieves the full ordered question list for a test. The
// result is cached as one unit since the set is immutable during attempts.
func (s *QuestionStorePostgreSQL) GetQuestions(ctx context.Context, testID uint) ([]*models.Question, error) {
	cacheKey := fmt.Sprintf("test:%d:questions", testID)
	var questions []*models.Question

	err := s.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &questions, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var dbQuestions []*models.Question
		if err := s.db.WithContext(ctx).
			Where("test_id = ?", testID).
			Order(`"order" ASC, id ASC`).
			Find(&dbQuestions).Error; err != nil {
			return nil, fmt.Errorf("failed to get questions: %w", err)
		}
		return dbQuestions, nil
	})
	if err != nil {
		return nil, err
	}

	return questions, nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/learnspace/session-service/internal/events"
	"github.com/learnspace/session-service/internal/repositories"
	"github.com/learnspace/session-service/internal/validator"
)

// serviceManager wires the services to their shared dependencies and owns
// their lifecycle.
type serviceManager struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher

	sessionService SessionService
	attemptService AttemptService

	initialized bool
	mu          sync.RWMutex
}

func NewServiceManager(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) ServiceManager {
	return &serviceManager{
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

func (m *serviceManager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return fmt.Errorf("service manager already initialized")
	}
	if m.repo == nil {
		return fmt.Errorf("repository is required")
	}

	m.sessionService = NewSessionService(m.repo, m.logger, m.validator, m.publisher)
	m.attemptService = NewAttemptService(m.repo, m.logger, m.validator)
	m.initialized = true

	m.logger.Info("Service manager initialized")
	return nil
}

func (m *serviceManager) Session() SessionService {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionService
}

func (m *serviceManager) Attempt() AttemptService {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attemptService
}

func (m *serviceManager) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	return m.repo.Ping(ctx)
}

func (m *serviceManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil
	}

	if err := m.sessionService.Shutdown(ctx); err != nil {
		m.logger.Error("Session service shutdown failed", "error", err)
	}
	if err := m.publisher.Close(); err != nil {
		m.logger.Error("Event publisher close failed", "error", err)
	}

	m.initialized = false
	m.logger.Info("Service manager shut down")
	return nil
}

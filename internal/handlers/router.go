package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnspace/session-service/internal/config"
	"github.com/learnspace/session-service/internal/models"
	"github.com/learnspace/session-service/internal/repositories"
	"github.com/learnspace/session-service/internal/services"
	"github.com/learnspace/session-service/internal/utils"
	"github.com/learnspace/session-service/internal/validator"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
	attemptHandler *AttemptHandler
	authMiddleware *CasdoorAuthMiddleware
	serviceManager services.ServiceManager
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		sessionHandler: NewSessionHandler(serviceManager.Session(), validator, logger),
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		authMiddleware: authMiddleware,
		serviceManager: serviceManager,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Session routes - the live test-taking surface
		sessions := v1.Group("/sessions")
		{
			// Only students sit tests; instructors review attempts instead.
			sessions.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.sessionHandler.StartSession)

			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.POST("/:id/navigate", hm.sessionHandler.Navigate)
			sessions.POST("/:id/answer", hm.sessionHandler.SelectAnswer)
			sessions.POST("/:id/clear", hm.sessionHandler.ClearAnswer)
			sessions.POST("/:id/mark", hm.sessionHandler.ToggleMark)
			sessions.POST("/:id/submit", hm.sessionHandler.Submit)
			sessions.POST("/:id/retry-submit", hm.sessionHandler.RetrySubmit)
			sessions.POST("/:id/abandon", hm.sessionHandler.Abandon)
		}

		// Attempt routes - finished results
		attempts := v1.Group("/attempts")
		{
			attempts.GET("", hm.attemptHandler.ListMyAttempts)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
		}

		// Test-scoped result routes - Instructors and Admins only
		tests := v1.Group("/tests")
		tests.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleInstructor, models.RoleAdmin))
		{
			tests.GET("/:id/attempts", hm.attemptHandler.GetAttemptsByTest)
			tests.GET("/:id/attempts/stats", hm.attemptHandler.GetAttemptStats)
			tests.GET("/:id/attempts/export", hm.attemptHandler.ExportAttempts)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": "session-service",
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "session-service",
		})
	})
}

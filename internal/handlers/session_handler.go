package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnspace/session-service/internal/services"
	"github.com/learnspace/session-service/internal/utils"
	"github.com/learnspace/session-service/internal/validator"
)

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	validator      *validator.Validator
}

func NewSessionHandler(
	sessionService services.SessionService,
	validator *validator.Validator,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		validator:      validator,
	}
}

// StartSession opens a timed session on a test
// @Summary Start test session
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body services.StartSessionRequest true "Start session data"
// @Success 201 {object} services.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	h.LogRequest(c, "Starting test session")

	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Start(c.Request.Context(), &req, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// GetSession returns the live view of a session
// @Summary Get session state
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Get(c.Request.Context(), c.Param("id"), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// Navigate moves the current-question pointer
// @Summary Navigate to a question
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param navigation body services.NavigateRequest true "Target question index"
// @Success 200 {object} services.SessionResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/navigate [post]
func (h *SessionHandler) Navigate(c *gin.Context) {
	var req services.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Navigate(c.Request.Context(), c.Param("id"), studentID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// SelectAnswer records an option on the current question
// @Summary Select an answer
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param answer body services.SelectAnswerRequest true "Selected option"
// @Success 200 {object} services.SessionResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/answer [post]
func (h *SessionHandler) SelectAnswer(c *gin.Context) {
	var req services.SelectAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.SelectAnswer(c.Request.Context(), c.Param("id"), studentID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// ClearAnswer removes the selection from the current question
// @Summary Clear the current answer
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/clear [post]
func (h *SessionHandler) ClearAnswer(c *gin.Context) {
	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.ClearAnswer(c.Request.Context(), c.Param("id"), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// ToggleMark flips the review mark and advances
// @Summary Toggle mark-for-review
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/mark [post]
func (h *SessionHandler) ToggleMark(c *gin.Context) {
	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.ToggleMarkForReview(c.Request.Context(), c.Param("id"), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// Submit finishes and grades the session
// @Summary Submit session
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param submission body services.SubmitRequest false "Submit options"
// @Success 200 {object} services.SessionResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) Submit(c *gin.Context) {
	h.LogRequest(c, "Submitting session", "session_id", c.Param("id"))

	var req services.SubmitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "bad_request",
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
	}

	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Submit(c.Request.Context(), c.Param("id"), studentID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// RetrySubmit retries a submission whose attempt write failed
// @Summary Retry a failed submission
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /sessions/{id}/retry-submit [post]
func (h *SessionHandler) RetrySubmit(c *gin.Context) {
	h.LogRequest(c, "Retrying session submission", "session_id", c.Param("id"))

	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.RetrySubmit(c.Request.Context(), c.Param("id"), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// Abandon forfeits the session
// @Summary Abandon session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/abandon [post]
func (h *SessionHandler) Abandon(c *gin.Context) {
	h.LogRequest(c, "Abandoning session", "session_id", c.Param("id"))

	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Abandon(c.Request.Context(), c.Param("id"), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

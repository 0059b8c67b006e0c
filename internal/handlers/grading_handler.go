package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/grading-integrity-service/internal/services"
	"github.com/SAP-F-2025/grading-integrity-service/internal/utils"
	"github.com/SAP-F-2025/grading-integrity-service/internal/validator"
)

type GradingHandler struct {
	BaseHandler
	gradingService      services.GradingService
	orchestratorService services.OrchestratorService
	attemptService      services.AttemptService
	validator           *validator.Validator
}

func NewGradingHandler(
	gradingService services.GradingService,
	orchestratorService services.OrchestratorService,
	attemptService services.AttemptService,
	validator *validator.Validator,
	logger utils.Logger,
) *GradingHandler {
	return &GradingHandler{
		BaseHandler:         NewBaseHandler(logger),
		gradingService:      gradingService,
		orchestratorService: orchestratorService,
		attemptService:      attemptService,
		validator:           validator,
	}
}

// GradeAnswer writes a human grade for one answer
// @Summary Write human grade
// @Description Records a human grader's verdict and locks the answer against automatic overwrites
// @Tags grading
// @Accept json
// @Produce json
// @Param answer_id path uint true "Answer ID"
// @Param grade body services.HumanGradeRequest true "Grade data"
// @Success 200 {object} models.GradeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /grading/answers/{answer_id} [post]
func (h *GradingHandler) GradeAnswer(c *gin.Context) {
	answerID := h.parseIDParam(c, "answer_id")
	if answerID == 0 {
		return
	}

	var req services.HumanGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Writing human grade", "answer_id", answerID)

	grade, err := h.gradingService.WriteHumanGrade(c.Request.Context(), answerID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, grade)
}

// GetGrade returns the grade for one answer
// @Summary Get grade
// @Tags grading
// @Produce json
// @Param answer_id path uint true "Answer ID"
// @Success 200 {object} models.GradeResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /grading/answers/{answer_id} [get]
func (h *GradingHandler) GetGrade(c *gin.Context) {
	answerID := h.parseIDParam(c, "answer_id")
	if answerID == 0 {
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	grade, err := h.gradingService.GetByAnswer(c.Request.Context(), answerID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, grade)
}

// RegradeAnswer forces a fresh grade for one answer
// @Summary Force re-grade
// @Description Clears the grade's provenance and re-scores the answer
// @Tags grading
// @Produce json
// @Param answer_id path uint true "Answer ID"
// @Success 202 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /grading/answers/{answer_id}/regrade [post]
func (h *GradingHandler) RegradeAnswer(c *gin.Context) {
	answerID := h.parseIDParam(c, "answer_id")
	if answerID == 0 {
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Forcing re-grade", "answer_id", answerID)

	if err := h.gradingService.ForceRegrade(c.Request.Context(), answerID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, SuccessResponse{Message: "Re-grade queued"})
}

// EnqueueAttemptGrading queues grading jobs for an attempt
// @Summary Enqueue grading jobs
// @Description Queues one job per open-ended answer; human and locked grades are skipped unless forced
// @Tags grading
// @Accept json
// @Produce json
// @Param attempt_id path uint true "Attempt ID"
// @Param request body services.EnqueueGradingRequest false "Enqueue options"
// @Success 202 {object} models.EnqueueGradingResponse
// @Failure 403 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /grading/attempts/{attempt_id}/enqueue [post]
func (h *GradingHandler) EnqueueAttemptGrading(c *gin.Context) {
	attemptID := h.parseIDParam(c, "attempt_id")
	if attemptID == 0 {
		return
	}

	var req services.EnqueueGradingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Enqueueing grading jobs",
		"attempt_id", attemptID,
		"force_regrade", req.ForceRegrade)

	resp, err := h.orchestratorService.EnqueueAttemptGrading(c.Request.Context(), attemptID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// RecomputeStatus re-derives the attempt status from its grade tally
// @Summary Recompute attempt status
// @Tags grading
// @Produce json
// @Param attempt_id path uint true "Attempt ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /grading/attempts/{attempt_id}/recompute-status [post]
func (h *GradingHandler) RecomputeStatus(c *gin.Context) {
	attemptID := h.parseIDParam(c, "attempt_id")
	if attemptID == 0 {
		return
	}

	status, err := h.attemptService.RecomputeStatus(c.Request.Context(), attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(status)})
}

// GetGradingOverview returns grading progress for an exam
// @Summary Get grading overview
// @Tags grading
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Success 200 {object} repositories.GradingStats
// @Failure 403 {object} ErrorResponse
// @Router /grading/exams/{exam_id}/overview [get]
func (h *GradingHandler) GetGradingOverview(c *gin.Context) {
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	stats, err := h.gradingService.GetGradingOverview(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/grading-integrity-service/internal/services"
	"github.com/SAP-F-2025/grading-integrity-service/internal/utils"
)

type ProctoringHandler struct {
	BaseHandler
	proctoringService services.ProctoringService
}

func NewProctoringHandler(proctoringService services.ProctoringService, logger utils.Logger) *ProctoringHandler {
	return &ProctoringHandler{
		BaseHandler:       NewBaseHandler(logger),
		proctoringService: proctoringService,
	}
}

// RecordEvent stores one browser-side proctoring signal
// @Summary Record proctor event
// @Description Appends a focus, tab, copy or paste signal to the attempt's event stream
// @Tags proctoring
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param event body services.RecordProctorEventRequest true "Event data"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/events [post]
func (h *ProctoringHandler) RecordEvent(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req services.RecordProctorEventRequest
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

	if err := h.proctoringService.RecordEvent(c.Request.Context(), attemptID, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetReport returns the suspicion report for one attempt
// @Summary Get suspicion report
// @Tags proctoring
// @Produce json
// @Param attempt_id path uint true "Attempt ID"
// @Success 200 {object} models.SuspicionReport
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /proctoring/attempts/{attempt_id}/report [get]
func (h *ProctoringHandler) GetReport(c *gin.Context) {
	attemptID := h.parseIDParam(c, "attempt_id")
	if attemptID == 0 {
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	report, err := h.proctoringService.GetReport(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ExportExamReports streams the per-attempt suspicion workbook
// @Summary Export suspicion reports
// @Description Renders an xlsx workbook with one row per attempt of the exam
// @Tags proctoring
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param exam_id path uint true "Exam ID"
// @Success 200 {file} binary
// @Failure 403 {object} ErrorResponse
// @Router /proctoring/exams/{exam_id}/report.xlsx [get]
func (h *ProctoringHandler) ExportExamReports(c *gin.Context) {
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting suspicion reports", "exam_id", examID)

	data, err := h.proctoringService.ExportExamReports(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("suspicion-reports-exam-%d.xlsx", examID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

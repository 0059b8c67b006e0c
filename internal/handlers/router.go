package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/grading-integrity-service/internal/config"
	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
	"github.com/SAP-F-2025/grading-integrity-service/internal/services"
	"github.com/SAP-F-2025/grading-integrity-service/internal/utils"
	"github.com/SAP-F-2025/grading-integrity-service/internal/validator"
)

// HandlerManager wires handlers to services and owns route setup.
type HandlerManager struct {
	attemptHandler    *AttemptHandler
	gradingHandler    *GradingHandler
	proctoringHandler *ProctoringHandler
	userHandler       *UserHandler
	authMiddleware    *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		gradingHandler: NewGradingHandler(
			serviceManager.Grading(),
			serviceManager.Orchestrator(),
			serviceManager.Attempt(),
			validator,
			logger,
		),
		proctoringHandler: NewProctoringHandler(serviceManager.Proctoring(), logger),
		userHandler:       NewUserHandler(userRepo, logger),
		authMiddleware:    NewCasdoorAuthMiddleware(casdoorConfig, userRepo),
	}
}

// SetupRoutes registers all API routes on the router.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "grading-integrity-service",
		})
	})

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())

	staffOnly := hm.authMiddleware.RequireRoleMiddleware(
		models.RoleTeacher, models.RoleProctor, models.RoleAdmin)

	// Attempt lifecycle. Start, save, submit and timeout are driven by
	// the student owning the attempt; ownership is enforced in the
	// service layer.
	attempts := v1.Group("/attempts")
	{
		attempts.POST("", hm.attemptHandler.StartAttempt)
		attempts.GET("/:id", hm.attemptHandler.GetAttempt)
		attempts.GET("/:id/details", hm.attemptHandler.GetAttemptWithDetails)
		attempts.GET("/:id/time-remaining", hm.attemptHandler.GetTimeRemaining)
		attempts.PUT("/:id/answers", hm.attemptHandler.SaveAnswer)
		attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
		attempts.POST("/:id/timeout", hm.attemptHandler.HandleTimeout)
		attempts.POST("/:id/events", hm.proctoringHandler.RecordEvent)

		examScoped := attempts.Group("/exam/:exam_id", staffOnly)
		{
			examScoped.GET("", hm.attemptHandler.GetAttemptsByExam)
			examScoped.GET("/stats", hm.attemptHandler.GetAttemptStats)
			examScoped.POST("/reset-stuck", hm.attemptHandler.ResetStuckAttempts)
		}
	}

	// Grading. Reads are open to any authenticated user (results
	// visibility is enforced per-grade in the service); writes and
	// queue operations are staff only.
	grading := v1.Group("/grading")
	{
		grading.GET("/answers/:answer_id", hm.gradingHandler.GetGrade)

		staff := grading.Group("", staffOnly)
		{
			staff.POST("/answers/:answer_id", hm.gradingHandler.GradeAnswer)
			staff.POST("/answers/:answer_id/regrade", hm.gradingHandler.RegradeAnswer)
			staff.POST("/attempts/:attempt_id/enqueue", hm.gradingHandler.EnqueueAttemptGrading)
			staff.POST("/attempts/:attempt_id/recompute-status", hm.gradingHandler.RecomputeStatus)
			staff.GET("/exams/:exam_id/overview", hm.gradingHandler.GetGradingOverview)
		}
	}

	proctoring := v1.Group("/proctoring", staffOnly)
	{
		proctoring.GET("/attempts/:attempt_id/report", hm.proctoringHandler.GetReport)
		proctoring.GET("/exams/:exam_id/report.xlsx", hm.proctoringHandler.ExportExamReports)
	}

	users := v1.Group("/users")
	{
		users.GET("", hm.userHandler.ListUsers)
		users.GET("/search", hm.userHandler.SearchUsers)
		users.GET("/:id", hm.userHandler.GetUser)
	}
}

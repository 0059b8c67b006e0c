package services

import (
	"context"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use model DTO types
type StartAttemptRequest = models.StartAttemptRequest
type SaveAnswerRequest = models.SaveAnswerRequest
type SubmitAttemptRequest = models.SubmitAttemptRequest
type RecordProctorEventRequest = models.RecordProctorEventRequest
type HumanGradeRequest = models.HumanGradeRequest
type EnqueueGradingRequest = models.EnqueueGradingRequest

// ClientInfo carries request metadata recorded on the attempt row.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type AttemptResponse struct {
	*models.ExamAttempt
	CanSubmit     bool `json:"can_submit"`
	TimeRemaining int  `json:"time_remaining_seconds"`
}

type AttemptListResponse struct {
	Attempts []*models.AttemptSummary `json:"attempts"`
	Total    int64                    `json:"total"`
	Page     int                      `json:"page"`
	Size     int                      `json:"size"`
}

// ===== SERVICE INTERFACES =====

type AttemptService interface {
	// Lifecycle
	Start(ctx context.Context, req *StartAttemptRequest, studentID string, client *ClientInfo) (*models.StartAttemptResponse, error)
	SaveAnswer(ctx context.Context, attemptID uint, req *SaveAnswerRequest, studentID string) error
	Submit(ctx context.Context, attemptID uint, req *SubmitAttemptRequest, studentID string) (*models.SubmitAttemptResponse, error)
	HandleTimeout(ctx context.Context, attemptID uint) error

	// Status derivation
	RecomputeStatus(ctx context.Context, attemptID uint) (models.AttemptStatus, error)
	ResetStuckAttempts(ctx context.Context, examID uint, userID string) (*models.ResetStuckResponse, error)

	// Get operations
	GetByID(ctx context.Context, id uint, userID string) (*AttemptResponse, error)
	GetByIDWithDetails(ctx context.Context, id uint, userID string) (*AttemptResponse, error)
	GetTimeRemaining(ctx context.Context, attemptID uint, studentID string) (int, error)

	// List operations
	GetByExam(ctx context.Context, examID uint, filters repositories.AttemptFilters, userID string) (*AttemptListResponse, error)

	// Statistics
	GetStats(ctx context.Context, examID uint, userID string) (*repositories.AttemptStats, error)
}

type GradingService interface {
	// WriteAutomaticGrade writes a machine grade. The write silently
	// no-ops (returns false) when a human or locked grade is present.
	WriteAutomaticGrade(ctx context.Context, answerID uint, score, maxScore float64, feedback, rationale *string) (bool, error)

	// WriteHumanGrade writes a human grade and locks out future
	// automatic overwrites of the answer.
	WriteHumanGrade(ctx context.Context, answerID uint, req *HumanGradeRequest, graderID string) (*models.GradeResponse, error)

	// ForceRegrade clears the grade's provenance and queues one fresh
	// grading job for the answer.
	ForceRegrade(ctx context.Context, answerID uint, userID string) error

	// Reads
	GetByAnswer(ctx context.Context, answerID uint, userID string) (*models.GradeResponse, error)
	GetGradingOverview(ctx context.Context, examID uint, userID string) (*repositories.GradingStats, error)
}

type OrchestratorService interface {
	// EnqueueAttemptGrading queues grading jobs for an attempt's
	// open-ended answers, skipping human and locked grades unless a
	// forced re-grade is requested.
	EnqueueAttemptGrading(ctx context.Context, attemptID uint, req *EnqueueGradingRequest, userID string) (*models.EnqueueGradingResponse, error)
}

type ProctoringService interface {
	RecordEvent(ctx context.Context, attemptID uint, req *RecordProctorEventRequest, studentID string) error
	GetReport(ctx context.Context, attemptID uint, userID string) (*models.SuspicionReport, error)

	// ExportExamReports renders one xlsx workbook with a suspicion row
	// per attempt of the exam.
	ExportExamReports(ctx context.Context, examID uint, userID string) ([]byte, error)
}

type IntegrityService interface {
	// VerifyNonce compares the presented nonce bit-for-bit against the
	// one issued at attempt start.
	VerifyNonce(ctx context.Context, attempt *models.ExamAttempt, presented string) error

	// PrecheckNonce rejects a tampered nonce from the cache before the
	// submission transaction opens. Misses fall through to VerifyNonce.
	PrecheckNonce(ctx context.Context, attemptID uint, presented string) error

	// BeginSubmission claims the (attempt, request) idempotency slot
	// inside the submission transaction, rejecting request ids outside
	// the length bounds. A true result means the request was already
	// processed and must be answered as a replay.
	BeginSubmission(ctx context.Context, repo repositories.Repository, attemptID uint, requestID string) (bool, error)

	// ConsumeRateBudget spends one submission token for the student.
	ConsumeRateBudget(ctx context.Context, studentID string) error

	// Nonce cache maintenance around the attempt lifecycle.
	CacheNonce(ctx context.Context, attempt *models.ExamAttempt)
	DropNonce(ctx context.Context, attemptID uint)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	// Core service getters
	Attempt() AttemptService
	Grading() GradingService
	Orchestrator() OrchestratorService
	Proctoring() ProctoringService
	Integrity() IntegrityService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

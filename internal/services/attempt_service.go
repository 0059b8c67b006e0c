package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/grading-integrity-service/internal/events"
	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
	"github.com/SAP-F-2025/grading-integrity-service/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	integrity IntegrityService
	publisher events.EventPublisher
}

func NewAttemptService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	integrity IntegrityService,
	publisher events.EventPublisher,
) AttemptService {
	return &attemptService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		integrity: integrity,
		publisher: publisher,
	}
}

// ===== LIFECYCLE =====

// Start opens the student's single attempt for an exam. The integrity
// nonce is issued here, exactly once; it is never rotated afterwards.
func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest, studentID string, client *ClientInfo) (*models.StartAttemptResponse, error) {
	s.logger.Info("Starting exam attempt",
		"exam_id", req.ExamID,
		"student_id", studentID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, req.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	hasAttempt, err := s.repo.Attempt().HasActiveAttempt(ctx, nil, studentID, req.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing attempt: %w", err)
	}

	if verrs := validator.ValidateAttemptStart(exam.Status, exam.DueDate, hasAttempt); verrs.HasErrors() {
		return nil, verrs
	}

	now := time.Now()
	endedAt := now.Add(time.Duration(exam.Duration) * time.Minute)

	attempt := &models.ExamAttempt{
		ExamID:         req.ExamID,
		StudentID:      studentID,
		Status:         models.AttemptInProgress,
		StartedAt:      &now,
		EndedAt:        &endedAt,
		IntegrityNonce: uuid.New().String(),
	}
	if client != nil {
		if client.IPAddress != "" {
			attempt.IPAddress = &client.IPAddress
		}
		if client.UserAgent != "" {
			attempt.UserAgent = &client.UserAgent
		}
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Attempt().Create(ctx, nil, attempt); err != nil {
			if repositories.IsDuplicateError(err) {
				return NewBusinessRuleError(
					"an attempt already exists for this exam",
					"single_attempt_per_exam",
					map[string]interface{}{"exam_id": req.ExamID},
				)
			}
			return fmt.Errorf("failed to create attempt: %w", err)
		}

		// Seed one answer row per question so autosave and grading
		// never have to create rows on the fly.
		answers := make([]*models.Answer, 0, len(exam.Questions))
		for _, q := range exam.Questions {
			answers = append(answers, &models.Answer{
				AttemptID:  attempt.ID,
				QuestionID: q.ID,
			})
		}
		if len(answers) > 0 {
			if err := txRepo.Answer().CreateBatch(ctx, nil, answers); err != nil {
				return fmt.Errorf("failed to seed answers: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.integrity.CacheNonce(ctx, attempt)

	s.logger.Info("Attempt started",
		"attempt_id", attempt.ID,
		"exam_id", req.ExamID,
		"student_id", studentID,
		"ends_at", endedAt)

	return &models.StartAttemptResponse{
		AttemptID:      attempt.ID,
		ExamID:         attempt.ExamID,
		Status:         attempt.Status,
		StartedAt:      now,
		EndedAt:        attempt.EndedAt,
		IntegrityNonce: attempt.IntegrityNonce,
	}, nil
}

// SaveAnswer autosaves segment contents for one question. Only allowed
// while the attempt is in progress and inside the time window.
func (s *attemptService) SaveAnswer(ctx context.Context, attemptID uint, req *SaveAnswerRequest, studentID string) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return err
	}

	if attempt.Status != models.AttemptInProgress {
		return ErrAttemptNotActive
	}
	if attempt.EndedAt != nil && time.Now().After(*attempt.EndedAt) {
		return ErrAttemptTimeExpired
	}

	answer, err := s.repo.Answer().GetByAttemptAndQuestion(ctx, nil, attemptID, req.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAnswerNotFound
		}
		return fmt.Errorf("failed to get answer: %w", err)
	}

	if err := s.repo.Answer().SaveSegments(ctx, nil, answer.ID, req.Segments, time.Now()); err != nil {
		return fmt.Errorf("failed to save answer segments: %w", err)
	}

	s.logger.Debug("Answer autosaved",
		"attempt_id", attemptID,
		"question_id", req.QuestionID,
		"segments", len(req.Segments))

	return nil
}

// Submit finalizes the attempt. The nonce check, the idempotency claim,
// the status flip and the inline objective scoring all run inside one
// transaction: either all of it commits or none of it does.
func (s *attemptService) Submit(ctx context.Context, attemptID uint, req *SubmitAttemptRequest, studentID string) (*models.SubmitAttemptResponse, error) {
	s.logger.Info("Submitting attempt",
		"attempt_id", attemptID,
		"student_id", studentID,
		"request_id", req.RequestID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if err := s.integrity.ConsumeRateBudget(ctx, studentID); err != nil {
		return nil, err
	}

	// Fast path: a cached nonce lets us throw out tampered requests
	// before opening the transaction.
	if err := s.integrity.PrecheckNonce(ctx, attemptID, req.IntegrityNonce); err != nil {
		return nil, err
	}

	var resp *models.SubmitAttemptResponse
	var examID uint

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		attempt, err := txRepo.Attempt().GetByIDWithDetails(ctx, nil, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to get attempt: %w", err)
		}

		if attempt.StudentID != studentID {
			return NewPermissionError(studentID, "attempt", "submit", "attempt belongs to another student")
		}
		examID = attempt.ExamID

		if err := s.integrity.VerifyNonce(ctx, attempt, req.IntegrityNonce); err != nil {
			return err
		}

		replay, err := s.integrity.BeginSubmission(ctx, txRepo, attemptID, req.RequestID)
		if err != nil {
			return err
		}
		if replay {
			resp = &models.SubmitAttemptResponse{
				AttemptID:   attempt.ID,
				Status:      attempt.Status,
				SubmittedAt: attempt.SubmittedAt,
				Replay:      true,
				AutoGraded:  countGraded(attempt.Answers),
			}
			return nil
		}

		if attempt.Status != models.AttemptInProgress {
			return ErrAttemptAlreadySubmitted
		}

		autoGraded, err := s.finalizeSubmission(ctx, txRepo, attempt, models.AttemptEndReasonManual)
		if err != nil {
			return err
		}

		resp = &models.SubmitAttemptResponse{
			AttemptID:   attempt.ID,
			Status:      attempt.Status,
			SubmittedAt: attempt.SubmittedAt,
			Replay:      false,
			AutoGraded:  autoGraded,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !resp.Replay {
		s.integrity.DropNonce(ctx, attemptID)
		s.publishAttemptEvent(ctx, events.EventAttemptSubmitted, attemptID, examID, studentID, resp.Status)
	}

	s.logger.Info("Attempt submitted",
		"attempt_id", attemptID,
		"status", resp.Status,
		"replay", resp.Replay,
		"auto_graded", resp.AutoGraded)

	return resp, nil
}

// HandleTimeout force-submits an attempt whose hard deadline has
// passed. Safe to call repeatedly; already-closed attempts no-op.
func (s *attemptService) HandleTimeout(ctx context.Context, attemptID uint) error {
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		attempt, err := txRepo.Attempt().GetByIDWithDetails(ctx, nil, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to get attempt: %w", err)
		}

		if attempt.Status != models.AttemptInProgress {
			return nil
		}
		if attempt.EndedAt == nil || time.Now().Before(*attempt.EndedAt) {
			return nil
		}

		if _, err := s.finalizeSubmission(ctx, txRepo, attempt, models.AttemptEndReasonTimeout); err != nil {
			return err
		}

		s.logger.Info("Attempt timed out and closed", "attempt_id", attemptID)
		return nil
	})
	if err != nil {
		return err
	}

	s.integrity.DropNonce(ctx, attemptID)
	return nil
}

// finalizeSubmission flips the attempt out of in_progress, runs the
// deterministic scorer over every multi-select answer and derives the
// resulting status, all inside the caller's transaction.
func (s *attemptService) finalizeSubmission(ctx context.Context, txRepo repositories.Repository, attempt *models.ExamAttempt, endReason string) (int, error) {
	now := time.Now()
	attempt.SubmittedAt = &now
	attempt.EndReason = &endReason
	attempt.Status = models.AttemptSubmitted

	autoGraded := 0
	for i := range attempt.Answers {
		answer := &attempt.Answers[i]
		if !answer.Question.IsAutoScorable() {
			continue
		}

		result := ScoreMultiSelect(&answer.Question, answer.Segments)

		written, err := writeAutomaticGradeTx(ctx, txRepo, answer.ID, result.Score, result.MaxScore, result.IsCorrect, nil, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to score answer %d: %w", answer.ID, err)
		}
		if written {
			autoGraded++
		}
	}

	counts, err := txRepo.Attempt().GradingCounts(ctx, nil, attempt.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to count grades: %w", err)
	}
	attempt.Status = deriveStatus(counts)

	if err := txRepo.Attempt().Update(ctx, nil, attempt); err != nil {
		return 0, fmt.Errorf("failed to update attempt: %w", err)
	}

	return autoGraded, nil
}

// ===== STATUS DERIVATION =====

// RecomputeStatus re-derives the attempt status from the grade tally.
// The derivation only looks at counts, so grading completion order does
// not matter. Attempts still in progress are never touched.
func (s *attemptService) RecomputeStatus(ctx context.Context, attemptID uint) (models.AttemptStatus, error) {
	var status models.AttemptStatus

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		attempt, err := txRepo.Attempt().GetByID(ctx, nil, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to get attempt: %w", err)
		}

		if attempt.Status == models.AttemptInProgress {
			status = attempt.Status
			return nil
		}

		counts, err := txRepo.Attempt().GradingCounts(ctx, nil, attemptID)
		if err != nil {
			return fmt.Errorf("failed to count grades: %w", err)
		}

		status = deriveStatus(counts)
		if status == attempt.Status {
			return nil
		}

		if err := txRepo.Attempt().UpdateStatus(ctx, nil, attemptID, status); err != nil {
			return fmt.Errorf("failed to update attempt status: %w", err)
		}

		s.logger.Info("Attempt status recomputed",
			"attempt_id", attemptID,
			"from", attempt.Status,
			"to", status,
			"graded", counts.Graded,
			"total", counts.Total)

		if status == models.AttemptGraded {
			s.publishAttemptEvent(ctx, events.EventAttemptGraded, attemptID, attempt.ExamID, attempt.StudentID, status)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return status, nil
}

// ResetStuckAttempts bulk-moves an exam's grading_in_progress attempts
// back to submitted so their jobs can be re-queued after a worker
// outage. Recovery is deliberately manual, not timer-driven.
func (s *attemptService) ResetStuckAttempts(ctx context.Context, examID uint, userID string) (*models.ResetStuckResponse, error) {
	if err := s.checkExamManagePermission(ctx, examID, userID, "reset attempts"); err != nil {
		return nil, err
	}

	var reset int
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		ids, err := txRepo.Attempt().GetIDsByExamAndStatus(ctx, nil, examID, models.AttemptGradingInProgress)
		if err != nil {
			return fmt.Errorf("failed to list stuck attempts: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		if err := txRepo.Attempt().BulkUpdateStatus(ctx, nil, ids, models.AttemptSubmitted); err != nil {
			return fmt.Errorf("failed to reset attempts: %w", err)
		}
		reset = len(ids)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stuck attempts reset",
		"exam_id", examID,
		"count", reset,
		"user_id", userID)

	return &models.ResetStuckResponse{ExamID: examID, ResetCount: reset}, nil
}

// ===== GET OPERATIONS =====

func (s *attemptService) GetByID(ctx context.Context, id uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if err := s.checkAttemptViewPermission(ctx, attempt, userID); err != nil {
		return nil, err
	}

	return s.toAttemptResponse(attempt), nil
}

func (s *attemptService) GetByIDWithDetails(ctx context.Context, id uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if err := s.checkAttemptViewPermission(ctx, attempt, userID); err != nil {
		return nil, err
	}

	// Students only see grades after the exam's results are released.
	if attempt.StudentID == userID && !attempt.Exam.ResultsReleased {
		for i := range attempt.Answers {
			attempt.Answers[i].Grade = nil
		}
	}

	return s.toAttemptResponse(attempt), nil
}

func (s *attemptService) GetTimeRemaining(ctx context.Context, attemptID uint, studentID string) (int, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return 0, err
	}

	return timeRemainingSeconds(attempt), nil
}

// ===== LIST OPERATIONS =====

func (s *attemptService) GetByExam(ctx context.Context, examID uint, filters repositories.AttemptFilters, userID string) (*AttemptListResponse, error) {
	if err := s.checkExamManagePermission(ctx, examID, userID, "list attempts"); err != nil {
		return nil, err
	}

	attempts, total, err := s.repo.Attempt().GetByExam(ctx, nil, examID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	page := 1
	size := filters.Limit
	if size > 0 {
		page = filters.Offset/size + 1
	}

	return &AttemptListResponse{
		Attempts: toAttemptSummaries(attempts),
		Total:    total,
		Page:     page,
		Size:     size,
	}, nil
}

// ===== STATISTICS =====

func (s *attemptService) GetStats(ctx context.Context, examID uint, userID string) (*repositories.AttemptStats, error) {
	if err := s.checkExamManagePermission(ctx, examID, userID, "view stats"); err != nil {
		return nil, err
	}

	stats, err := s.repo.Attempt().GetExamAttemptStats(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt stats: %w", err)
	}
	return stats, nil
}

// ===== EVENTS =====

func (s *attemptService) publishAttemptEvent(ctx context.Context, eventType string, attemptID, examID uint, studentID string, status models.AttemptStatus) {
	if s.publisher == nil {
		return
	}

	event := events.NewEvent(eventType, events.AttemptEventPayload{
		AttemptID: attemptID,
		ExamID:    examID,
		StudentID: studentID,
		Status:    string(status),
	})
	if err := s.publisher.Publish(ctx, events.TopicAttemptEvents, event); err != nil {
		// Lifecycle notifications are best-effort; the state change
		// already committed.
		s.logger.Warn("failed to publish attempt event",
			"event_type", eventType,
			"attempt_id", attemptID,
			"error", err)
	}
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/grading-integrity-service/internal/events"
	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
	"github.com/SAP-F-2025/grading-integrity-service/internal/validator"
)

type gradingService struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewGradingService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) GradingService {
	return &gradingService{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

// ===== AUTOMATIC GRADING =====

// WriteAutomaticGrade records a machine-produced grade. The write holds
// a row lock while it checks provenance: a human or locked grade is
// never overwritten, and losing that race is not an error.
func (s *gradingService) WriteAutomaticGrade(ctx context.Context, answerID uint, score, maxScore float64, feedback, rationale *string) (bool, error) {
	// Stored scores stay within [0, maxScore] no matter what the
	// external scorer returned.
	if clamped := clampScore(score, maxScore); clamped != score {
		s.logger.Warn("automatic grade out of range, clamping",
			"answer_id", answerID,
			"score", score,
			"max_score", maxScore)
		score = clamped
	}

	var written bool

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		isCorrect := maxScore > 0 && score >= maxScore

		var err error
		written, err = writeAutomaticGradeTx(ctx, txRepo, answerID, score, maxScore, isCorrect, feedback, rationale)
		if err != nil {
			return err
		}
		if !written {
			return nil
		}

		answer, err := txRepo.Answer().GetByID(ctx, nil, answerID)
		if err != nil {
			return fmt.Errorf("failed to get answer: %w", err)
		}
		return recomputeAttemptStatusTx(ctx, txRepo, answer.AttemptID)
	})
	if err != nil {
		return false, err
	}

	if written {
		s.logger.Debug("Automatic grade written",
			"answer_id", answerID,
			"score", score,
			"max_score", maxScore)
	} else {
		s.logger.Debug("Automatic grade skipped, human or locked grade present",
			"answer_id", answerID)
	}

	return written, nil
}

func clampScore(score, maxScore float64) float64 {
	if score < 0 {
		return 0
	}
	if maxScore > 0 && score > maxScore {
		return maxScore
	}
	return score
}

// writeAutomaticGradeTx is the provenance-checked automatic write,
// shared by inline submission scoring and the async worker. Returns
// false when an existing human or locked grade wins.
func writeAutomaticGradeTx(ctx context.Context, txRepo repositories.Repository, answerID uint, score, maxScore float64, isCorrect bool, feedback, rationale *string) (bool, error) {
	existing, err := txRepo.Grade().GetByAnswerForUpdate(ctx, nil, answerID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return false, fmt.Errorf("failed to lock grade row: %w", err)
	}

	now := time.Now()

	if existing == nil || repositories.IsNotFoundError(err) {
		grade := &models.Grade{
			AnswerID:  answerID,
			Score:     score,
			MaxScore:  maxScore,
			IsCorrect: isCorrect,
			Feedback:  feedback,
			Rationale: rationale,
			GradedBy:  nil,
			Locked:    false,
			GradedAt:  &now,
		}
		if err := txRepo.Grade().Create(ctx, nil, grade); err != nil {
			return false, fmt.Errorf("failed to create grade: %w", err)
		}
		return true, nil
	}

	if !existing.AllowsAutomaticWrite() {
		return false, nil
	}

	existing.Score = score
	existing.MaxScore = maxScore
	existing.IsCorrect = isCorrect
	existing.Feedback = feedback
	existing.Rationale = rationale
	existing.GradedBy = nil
	existing.GradedAt = &now

	if err := txRepo.Grade().Update(ctx, nil, existing); err != nil {
		return false, fmt.Errorf("failed to update grade: %w", err)
	}
	return true, nil
}

// ===== HUMAN GRADING =====

// WriteHumanGrade records a human grader's verdict. Human grades always
// win: the write succeeds regardless of what is already stored, and it
// locks the answer against future automatic overwrites.
func (s *gradingService) WriteHumanGrade(ctx context.Context, answerID uint, req *HumanGradeRequest, graderID string) (*models.GradeResponse, error) {
	s.logger.Info("Writing human grade",
		"answer_id", answerID,
		"score", req.Score,
		"grader_id", graderID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	answer, err := s.repo.Answer().GetByIDWithDetails(ctx, nil, answerID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAnswerNotFound
		}
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}

	if err := s.checkGradingPermission(ctx, answer, graderID, "grade"); err != nil {
		return nil, err
	}

	maxScore := float64(answer.Question.MaxPoints())
	if verrs := validator.ValidateHumanGrade(req.Score, maxScore); verrs.HasErrors() {
		return nil, verrs
	}

	var grade *models.Grade

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		existing, err := txRepo.Grade().GetByAnswerForUpdate(ctx, nil, answerID)
		if err != nil && !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to lock grade row: %w", err)
		}

		now := time.Now()

		if existing == nil || repositories.IsNotFoundError(err) {
			grade = &models.Grade{
				AnswerID:  answerID,
				Score:     req.Score,
				MaxScore:  maxScore,
				IsCorrect: maxScore > 0 && req.Score >= maxScore,
				Feedback:  req.Feedback,
				GradedBy:  &graderID,
				Locked:    true,
				GradedAt:  &now,
			}
			if err := txRepo.Grade().Create(ctx, nil, grade); err != nil {
				return fmt.Errorf("failed to create grade: %w", err)
			}
		} else {
			existing.Score = req.Score
			existing.MaxScore = maxScore
			existing.IsCorrect = maxScore > 0 && req.Score >= maxScore
			existing.Feedback = req.Feedback
			existing.Rationale = nil
			existing.GradedBy = &graderID
			existing.Locked = true
			existing.GradedAt = &now

			if err := txRepo.Grade().Update(ctx, nil, existing); err != nil {
				return fmt.Errorf("failed to update grade: %w", err)
			}
			grade = existing
		}

		return recomputeAttemptStatusTx(ctx, txRepo, answer.AttemptID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Human grade written",
		"answer_id", answerID,
		"score", req.Score,
		"max_score", maxScore,
		"grader_id", graderID)

	return toGradeResponse(grade), nil
}

// ===== FORCED RE-GRADE =====

// ForceRegrade clears the grade's provenance so the automatic pipeline
// may write again, then re-scores the answer: multi-select inline with
// the deterministic scorer, open-ended via one fresh queue job.
func (s *gradingService) ForceRegrade(ctx context.Context, answerID uint, userID string) error {
	answer, err := s.repo.Answer().GetByIDWithDetails(ctx, nil, answerID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAnswerNotFound
		}
		return fmt.Errorf("failed to get answer: %w", err)
	}

	if err := s.checkGradingPermission(ctx, answer, userID, "regrade"); err != nil {
		return err
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Grade().ClearProvenance(ctx, nil, answerID); err != nil {
			return fmt.Errorf("failed to clear grade provenance: %w", err)
		}

		if answer.Question.IsAutoScorable() {
			result := ScoreMultiSelect(&answer.Question, answer.Segments)
			if _, err := writeAutomaticGradeTx(ctx, txRepo, answerID, result.Score, result.MaxScore, result.IsCorrect, nil, nil); err != nil {
				return err
			}
			return recomputeAttemptStatusTx(ctx, txRepo, answer.AttemptID)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Grade provenance cleared for re-grade",
		"answer_id", answerID,
		"user_id", userID)

	if answer.Question.IsAutoScorable() {
		return nil
	}

	// Open-ended answers go back through the async pipeline.
	job := events.NewEvent(events.EventGradingJobQueued, events.GradingJobPayload{
		AttemptID:    answer.AttemptID,
		AnswerID:     answer.ID,
		QuestionID:   answer.QuestionID,
		ForceRegrade: true,
	})
	if err := s.publisher.Publish(ctx, events.TopicGradingJobs, job); err != nil {
		s.logger.Error("failed to queue re-grade job",
			"answer_id", answerID,
			"error", err)
		return ErrQueueUnavailable
	}

	return nil
}

// ===== READS =====

func (s *gradingService) GetByAnswer(ctx context.Context, answerID uint, userID string) (*models.GradeResponse, error) {
	answer, err := s.repo.Answer().GetByIDWithDetails(ctx, nil, answerID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAnswerNotFound
		}
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}

	if err := s.checkGradeViewPermission(ctx, answer, userID); err != nil {
		return nil, err
	}

	grade, err := s.repo.Grade().GetByAnswer(ctx, nil, answerID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrGradeNotFound
		}
		return nil, fmt.Errorf("failed to get grade: %w", err)
	}

	return toGradeResponse(grade), nil
}

func (s *gradingService) GetGradingOverview(ctx context.Context, examID uint, userID string) (*repositories.GradingStats, error) {
	if err := s.checkExamGradingPermission(ctx, examID, userID); err != nil {
		return nil, err
	}

	stats, err := s.repo.Grade().GetGradingStats(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get grading stats: %w", err)
	}
	return stats, nil
}

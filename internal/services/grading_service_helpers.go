package services

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
)

// ===== PERMISSION HELPERS =====

// checkGradingPermission allows the exam owner and admins to write or
// clear grades for an answer.
func (s *gradingService) checkGradingPermission(ctx context.Context, answer *models.Answer, userID string, action string) error {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, answer.AttemptID)
	if err != nil {
		return fmt.Errorf("failed to get attempt: %w", err)
	}

	return s.checkExamGradingPermissionFor(ctx, attempt.ExamID, userID, action)
}

func (s *gradingService) checkExamGradingPermission(ctx context.Context, examID uint, userID string) error {
	return s.checkExamGradingPermissionFor(ctx, examID, userID, "grade")
}

func (s *gradingService) checkExamGradingPermissionFor(ctx context.Context, examID uint, userID string, action string) error {
	isOwner, err := s.repo.Exam().IsOwner(ctx, nil, examID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to check exam ownership: %w", err)
	}
	if isOwner {
		return nil
	}

	isAdmin, err := s.repo.User().HasRole(ctx, userID, models.RoleAdmin)
	if err == nil && isAdmin {
		return nil
	}

	return NewPermissionError(userID, "answer", action, "not exam owner or admin")
}

// checkGradeViewPermission additionally admits the owning student once
// the exam's results are released.
func (s *gradingService) checkGradeViewPermission(ctx context.Context, answer *models.Answer, userID string) error {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, answer.AttemptID)
	if err != nil {
		return fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.StudentID == userID {
		exam, err := s.repo.Exam().GetByID(ctx, nil, attempt.ExamID)
		if err != nil {
			return fmt.Errorf("failed to get exam: %w", err)
		}
		if exam.ResultsReleased {
			return nil
		}
		return NewPermissionError(userID, "grade", "view", "results not released")
	}

	return s.checkExamGradingPermissionFor(ctx, attempt.ExamID, userID, "view")
}

// ===== SHARED TX HELPERS =====

// recomputeAttemptStatusTx re-derives the attempt status inside the
// caller's transaction. Attempts still in progress are left alone.
func recomputeAttemptStatusTx(ctx context.Context, txRepo repositories.Repository, attemptID uint) error {
	attempt, err := txRepo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		return fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.Status == models.AttemptInProgress {
		return nil
	}

	counts, err := txRepo.Attempt().GradingCounts(ctx, nil, attemptID)
	if err != nil {
		return fmt.Errorf("failed to count grades: %w", err)
	}

	status := deriveStatus(counts)
	if status == attempt.Status {
		return nil
	}

	if err := txRepo.Attempt().UpdateStatus(ctx, nil, attemptID, status); err != nil {
		return fmt.Errorf("failed to update attempt status: %w", err)
	}
	return nil
}

// ===== RESPONSE MAPPING =====

func toGradeResponse(grade *models.Grade) *models.GradeResponse {
	return &models.GradeResponse{
		AnswerID:  grade.AnswerID,
		Score:     grade.Score,
		MaxScore:  grade.MaxScore,
		IsCorrect: grade.IsCorrect,
		Feedback:  grade.Feedback,
		Rationale: grade.Rationale,
		GradedBy:  grade.GradedBy,
		Automatic: !grade.IsHuman(),
		Locked:    grade.Locked,
		GradedAt:  grade.GradedAt,
	}
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
)

// ===== PERMISSION HELPERS =====

// getOwnedAttempt loads an attempt and verifies the caller is the
// student who owns it.
func (s *attemptService) getOwnedAttempt(ctx context.Context, attemptID uint, studentID string) (*models.ExamAttempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.StudentID != studentID {
		return nil, NewPermissionError(studentID, "attempt", "access", "attempt belongs to another student")
	}

	return attempt, nil
}

// checkAttemptViewPermission allows the owning student, the exam owner,
// and staff roles (teacher, proctor, admin) to read an attempt.
func (s *attemptService) checkAttemptViewPermission(ctx context.Context, attempt *models.ExamAttempt, userID string) error {
	if attempt.StudentID == userID {
		return nil
	}

	isOwner, err := s.repo.Exam().IsOwner(ctx, nil, attempt.ExamID, userID)
	if err != nil {
		return fmt.Errorf("failed to check exam ownership: %w", err)
	}
	if isOwner {
		return nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return NewPermissionError(userID, "attempt", "view", "user not found")
	}
	switch user.Role {
	case models.RoleAdmin, models.RoleProctor:
		return nil
	}

	return NewPermissionError(userID, "attempt", "view", "not the student, exam owner, proctor or admin")
}

// checkExamManagePermission allows the exam owner and admins to run
// exam-level operations (listing attempts, resets, stats).
func (s *attemptService) checkExamManagePermission(ctx context.Context, examID uint, userID string, action string) error {
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

	return NewPermissionError(userID, "exam", action, "not owner or admin")
}

// ===== STATUS DERIVATION =====

// deriveStatus maps the grade tally to the attempt status. An attempt
// with no answers counts as fully ungraded and stays submitted.
func deriveStatus(counts *repositories.AttemptGradingCounts) models.AttemptStatus {
	switch {
	case counts.Graded == 0:
		return models.AttemptSubmitted
	case counts.Graded < counts.Total:
		return models.AttemptGradingInProgress
	default:
		return models.AttemptGraded
	}
}

func countGraded(answers []models.Answer) int {
	n := 0
	for i := range answers {
		if answers[i].Grade != nil {
			n++
		}
	}
	return n
}

// ===== RESPONSE MAPPING =====

func timeRemainingSeconds(attempt *models.ExamAttempt) int {
	if attempt.Status != models.AttemptInProgress || attempt.EndedAt == nil {
		return 0
	}
	remaining := int(time.Until(*attempt.EndedAt).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *attemptService) toAttemptResponse(attempt *models.ExamAttempt) *AttemptResponse {
	return &AttemptResponse{
		ExamAttempt:   attempt,
		CanSubmit:     attempt.Status == models.AttemptInProgress,
		TimeRemaining: timeRemainingSeconds(attempt),
	}
}

func toAttemptSummaries(attempts []*models.ExamAttempt) []*models.AttemptSummary {
	out := make([]*models.AttemptSummary, 0, len(attempts))
	for _, a := range attempts {
		summary := &models.AttemptSummary{
			ID:          a.ID,
			ExamID:      a.ExamID,
			StudentID:   a.StudentID,
			Status:      a.Status,
			StartedAt:   a.StartedAt,
			SubmittedAt: a.SubmittedAt,
		}
		if a.Student.FullName != "" {
			summary.StudentName = a.Student.FullName
		}
		out = append(out, summary)
	}
	return out
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/grading-integrity-service/internal/events"
	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
)

type orchestratorService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	publisher events.EventPublisher
}

func NewOrchestratorService(repo repositories.Repository, logger *slog.Logger, publisher events.EventPublisher) OrchestratorService {
	return &orchestratorService{
		repo:      repo,
		logger:    logger,
		publisher: publisher,
	}
}

// EnqueueAttemptGrading queues one grading job per open-ended answer of
// the attempt. Answers already carrying a human or locked grade are
// skipped unless a forced re-grade is requested, in which case their
// provenance is cleared first so the worker's write can land.
func (s *orchestratorService) EnqueueAttemptGrading(ctx context.Context, attemptID uint, req *EnqueueGradingRequest, userID string) (*models.EnqueueGradingResponse, error) {
	s.logger.Info("Enqueueing grading jobs",
		"attempt_id", attemptID,
		"force_regrade", req.ForceRegrade,
		"user_id", userID)

	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if err := s.checkEnqueuePermission(ctx, attempt.ExamID, userID); err != nil {
		return nil, err
	}

	if attempt.Status == models.AttemptInProgress {
		return nil, ErrAttemptNotActive
	}

	candidates, err := s.selectCandidates(attempt, req)
	if err != nil {
		return nil, err
	}

	resp := &models.EnqueueGradingResponse{Total: len(candidates)}

	var toEnqueue []*models.Answer
	for _, answer := range candidates {
		if answer.Grade != nil && !answer.Grade.AllowsAutomaticWrite() && !req.ForceRegrade {
			resp.Skipped++
			continue
		}
		toEnqueue = append(toEnqueue, answer)
	}

	if len(toEnqueue) == 0 {
		return resp, nil
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if req.ForceRegrade {
			for _, answer := range toEnqueue {
				if answer.Grade == nil {
					continue
				}
				if err := txRepo.Grade().ClearProvenance(ctx, nil, answer.ID); err != nil {
					return fmt.Errorf("failed to clear provenance for answer %d: %w", answer.ID, err)
				}
			}
		}

		// Mark the attempt as being graded while jobs are in flight.
		// A worker outage leaves it here; recovery is the explicit
		// reset endpoint, never a timer.
		if attempt.Status == models.AttemptSubmitted {
			if err := txRepo.Attempt().UpdateStatus(ctx, nil, attemptID, models.AttemptGradingInProgress); err != nil {
				return fmt.Errorf("failed to mark attempt grading: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, answer := range toEnqueue {
		job := events.NewEvent(events.EventGradingJobQueued, events.GradingJobPayload{
			AttemptID:    attemptID,
			AnswerID:     answer.ID,
			QuestionID:   answer.QuestionID,
			ForceRegrade: req.ForceRegrade,
		})
		if err := s.publisher.Publish(ctx, events.TopicGradingJobs, job); err != nil {
			s.logger.Error("failed to publish grading job",
				"attempt_id", attemptID,
				"answer_id", answer.ID,
				"error", err)
			return nil, ErrQueueUnavailable
		}
		resp.Enqueued++
	}

	s.logger.Info("Grading jobs enqueued",
		"attempt_id", attemptID,
		"total", resp.Total,
		"enqueued", resp.Enqueued,
		"skipped", resp.Skipped)

	return resp, nil
}

// selectCandidates picks the open-ended answers the request targets:
// one specific answer, or all of them.
func (s *orchestratorService) selectCandidates(attempt *models.ExamAttempt, req *EnqueueGradingRequest) ([]*models.Answer, error) {
	var candidates []*models.Answer

	for i := range attempt.Answers {
		answer := &attempt.Answers[i]
		if answer.Question.IsAutoScorable() {
			continue
		}
		if req.AnswerID != nil && answer.ID != *req.AnswerID {
			continue
		}
		candidates = append(candidates, answer)
	}

	if req.AnswerID != nil && len(candidates) == 0 {
		return nil, ErrAnswerNotFound
	}
	return candidates, nil
}

func (s *orchestratorService) checkEnqueuePermission(ctx context.Context, examID uint, userID string) error {
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

	return NewPermissionError(userID, "attempt", "enqueue grading", "not exam owner or admin")
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/grading-integrity-service/internal/events"
	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
	"github.com/SAP-F-2025/grading-integrity-service/internal/validator"
)

func newTestAttemptService(repo repositories.Repository, publisher events.EventPublisher) AttemptService {
	integrity := NewIntegrityService(testLogger(), nil, nil)
	return NewAttemptService(repo, nil, testLogger(), validator.New(), integrity, publisher)
}

// submittableAttempt is in progress, inside the time window, with one
// multi-select answer and one open-ended answer.
func submittableAttempt() *models.ExamAttempt {
	started := time.Now().Add(-10 * time.Minute)
	deadline := time.Now().Add(20 * time.Minute)
	return &models.ExamAttempt{
		ID:             1,
		ExamID:         10,
		StudentID:      "student-1",
		Status:         models.AttemptInProgress,
		StartedAt:      &started,
		EndedAt:        &deadline,
		IntegrityNonce: "issued-nonce",
		Answers: []models.Answer{
			{
				ID: 100, AttemptID: 1, QuestionID: 1,
				Question: models.Question{
					ID: 1, Type: models.MultiSelect, ScoringMode: models.ScoringPartialCredit,
					Segments: []models.QuestionSegment{
						{ID: 11, Correct: true, Points: 2},
						{ID: 12, Correct: false},
					},
				},
				Segments: []models.AnswerSegment{{SegmentID: 11, Content: "true"}},
			},
			{
				ID: 101, AttemptID: 1, QuestionID: 2,
				Question: models.Question{ID: 2, Type: models.OpenEnded},
			},
		},
	}
}

func submitRequest() *SubmitAttemptRequest {
	return &SubmitAttemptRequest{
		RequestID:      "req-12345678",
		IntegrityNonce: "issued-nonce",
	}
}

func TestSubmit_FirstSubmission(t *testing.T) {
	attempt := submittableAttempt()
	repo := newMockRepository()
	repo.attempt.GetByIDWithDetailsFn = func(id uint) (*models.ExamAttempt, error) { return attempt, nil }
	repo.attempt.GradingCountsFn = func(attemptID uint) (*repositories.AttemptGradingCounts, error) {
		return &repositories.AttemptGradingCounts{AttemptID: attemptID, Total: 2, Graded: 1}, nil
	}

	var createdGrade *models.Grade
	repo.grade.CreateFn = func(grade *models.Grade) error {
		createdGrade = grade
		return nil
	}

	var updated *models.ExamAttempt
	repo.attempt.UpdateFn = func(a *models.ExamAttempt) error {
		updated = a
		return nil
	}

	publisher := events.NewMockEventPublisher(testLogger())
	svc := newTestAttemptService(repo, publisher)

	resp, err := svc.Submit(context.Background(), 1, submitRequest(), "student-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Replay {
		t.Error("Replay = true, want false")
	}
	if resp.AutoGraded != 1 {
		t.Errorf("AutoGraded = %d, want 1", resp.AutoGraded)
	}
	if resp.Status != models.AttemptGradingInProgress {
		t.Errorf("Status = %v, want %v", resp.Status, models.AttemptGradingInProgress)
	}
	if createdGrade == nil || createdGrade.Score != 2 {
		t.Fatalf("multi-select grade = %+v, want score 2", createdGrade)
	}
	if updated == nil || updated.SubmittedAt == nil {
		t.Fatal("attempt not updated with SubmittedAt")
	}
	if updated.EndReason == nil || *updated.EndReason != models.AttemptEndReasonManual {
		t.Errorf("EndReason = %v, want manual", updated.EndReason)
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 1 || published[0].Type != events.EventAttemptSubmitted {
		t.Fatalf("published events = %+v, want one attempt.submitted", published)
	}
	payload, ok := published[0].Data.(events.AttemptEventPayload)
	if !ok {
		t.Fatalf("event data = %T, want AttemptEventPayload", published[0].Data)
	}
	if payload.ExamID != 10 || payload.StudentID != "student-1" {
		t.Errorf("payload = %+v, want exam 10 for student-1", payload)
	}
}

func TestSubmit_MalformedRequestID(t *testing.T) {
	attempt := submittableAttempt()
	repo := newMockRepository()
	repo.attempt.GetByIDWithDetailsFn = func(id uint) (*models.ExamAttempt, error) { return attempt, nil }
	repo.idempotency.CreateFn = func(record *models.IdempotencyRecord) error {
		t.Fatal("idempotency slot must not be claimed for a malformed request id")
		return nil
	}

	svc := newTestAttemptService(repo, events.NewMockEventPublisher(testLogger()))

	// A missing or undersized idempotency key is tampering, not a
	// shape error.
	for _, requestID := range []string{"", "short"} {
		req := submitRequest()
		req.RequestID = requestID

		_, err := svc.Submit(context.Background(), 1, req, "student-1")
		if !errors.Is(err, ErrIntegrity) {
			t.Errorf("request id %q: error = %v, want ErrIntegrity", requestID, err)
		}
	}
}

func TestSubmit_NonceMismatch(t *testing.T) {
	attempt := submittableAttempt()
	repo := newMockRepository()
	repo.attempt.GetByIDWithDetailsFn = func(id uint) (*models.ExamAttempt, error) { return attempt, nil }
	repo.idempotency.CreateFn = func(record *models.IdempotencyRecord) error {
		t.Fatal("idempotency slot must not be claimed on a failed nonce check")
		return nil
	}

	svc := newTestAttemptService(repo, events.NewMockEventPublisher(testLogger()))

	req := submitRequest()
	req.IntegrityNonce = "tampered-nonce"

	_, err := svc.Submit(context.Background(), 1, req, "student-1")
	if !errors.Is(err, ErrIntegrity) {
		t.Errorf("error = %v, want ErrIntegrity", err)
	}
}

func TestSubmit_ReplayReturnsStoredOutcome(t *testing.T) {
	attempt := submittableAttempt()
	submittedAt := time.Now().Add(-time.Minute)
	attempt.Status = models.AttemptGradingInProgress
	attempt.SubmittedAt = &submittedAt
	attempt.Answers[0].Grade = &models.Grade{AnswerID: 100, Score: 2}

	repo := newMockRepository()
	repo.attempt.GetByIDWithDetailsFn = func(id uint) (*models.ExamAttempt, error) { return attempt, nil }
	repo.idempotency.CreateFn = func(record *models.IdempotencyRecord) error {
		return gorm.ErrDuplicatedKey
	}
	repo.attempt.UpdateFn = func(a *models.ExamAttempt) error {
		t.Fatal("replay must not re-finalize the attempt")
		return nil
	}

	publisher := events.NewMockEventPublisher(testLogger())
	svc := newTestAttemptService(repo, publisher)

	resp, err := svc.Submit(context.Background(), 1, submitRequest(), "student-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.Replay {
		t.Error("Replay = false, want true")
	}
	if resp.Status != models.AttemptGradingInProgress {
		t.Errorf("Status = %v, want stored status", resp.Status)
	}
	if resp.AutoGraded != 1 {
		t.Errorf("AutoGraded = %d, want stored tally 1", resp.AutoGraded)
	}
	if len(publisher.GetPublishedEvents()) != 0 {
		t.Error("replay must not publish a second submitted event")
	}
}

func TestSubmit_WrongStudent(t *testing.T) {
	attempt := submittableAttempt()
	repo := newMockRepository()
	repo.attempt.GetByIDWithDetailsFn = func(id uint) (*models.ExamAttempt, error) { return attempt, nil }

	svc := newTestAttemptService(repo, events.NewMockEventPublisher(testLogger()))

	_, err := svc.Submit(context.Background(), 1, submitRequest(), "student-2")

	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Errorf("error = %v, want PermissionError", err)
	}
}

func TestSubmit_AlreadySubmittedWithNewRequestID(t *testing.T) {
	attempt := submittableAttempt()
	attempt.Status = models.AttemptSubmitted

	repo := newMockRepository()
	repo.attempt.GetByIDWithDetailsFn = func(id uint) (*models.ExamAttempt, error) { return attempt, nil }

	svc := newTestAttemptService(repo, events.NewMockEventPublisher(testLogger()))

	// Fresh request id, so this is not a replay: the closed attempt
	// rejects it.
	_, err := svc.Submit(context.Background(), 1, submitRequest(), "student-1")
	if !errors.Is(err, ErrAttemptAlreadySubmitted) {
		t.Errorf("error = %v, want ErrAttemptAlreadySubmitted", err)
	}
}

func TestHandleTimeout(t *testing.T) {
	t.Run("past deadline closes the attempt", func(t *testing.T) {
		attempt := submittableAttempt()
		deadline := time.Now().Add(-time.Minute)
		attempt.EndedAt = &deadline

		repo := newMockRepository()
		repo.attempt.GetByIDWithDetailsFn = func(id uint) (*models.ExamAttempt, error) { return attempt, nil }
		repo.attempt.GradingCountsFn = func(attemptID uint) (*repositories.AttemptGradingCounts, error) {
			return &repositories.AttemptGradingCounts{AttemptID: attemptID, Total: 2, Graded: 1}, nil
		}

		var updated *models.ExamAttempt
		repo.attempt.UpdateFn = func(a *models.ExamAttempt) error {
			updated = a
			return nil
		}

		svc := newTestAttemptService(repo, events.NewMockEventPublisher(testLogger()))
		if err := svc.HandleTimeout(context.Background(), 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated == nil {
			t.Fatal("attempt not finalized")
		}
		if updated.EndReason == nil || *updated.EndReason != models.AttemptEndReasonTimeout {
			t.Errorf("EndReason = %v, want time_out", updated.EndReason)
		}
	})

	t.Run("before deadline is a no-op", func(t *testing.T) {
		attempt := submittableAttempt()

		repo := newMockRepository()
		repo.attempt.GetByIDWithDetailsFn = func(id uint) (*models.ExamAttempt, error) { return attempt, nil }
		repo.attempt.UpdateFn = func(a *models.ExamAttempt) error {
			t.Fatal("attempt inside its window must not be closed")
			return nil
		}

		svc := newTestAttemptService(repo, events.NewMockEventPublisher(testLogger()))
		if err := svc.HandleTimeout(context.Background(), 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("already closed is a no-op", func(t *testing.T) {
		attempt := submittableAttempt()
		attempt.Status = models.AttemptGraded

		repo := newMockRepository()
		repo.attempt.GetByIDWithDetailsFn = func(id uint) (*models.ExamAttempt, error) { return attempt, nil }
		repo.attempt.UpdateFn = func(a *models.ExamAttempt) error {
			t.Fatal("closed attempt must not be touched")
			return nil
		}

		svc := newTestAttemptService(repo, events.NewMockEventPublisher(testLogger()))
		if err := svc.HandleTimeout(context.Background(), 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestResetStuckAttempts(t *testing.T) {
	repo := newMockRepository()
	repo.exam.IsOwnerFn = func(examID uint, userID string) (bool, error) {
		return userID == "owner", nil
	}
	repo.attempt.GetIDsByExamAndStatusFn = func(examID uint, status models.AttemptStatus) ([]uint, error) {
		if status != models.AttemptGradingInProgress {
			t.Errorf("queried status %v, want grading_in_progress", status)
		}
		return []uint{3, 4, 5}, nil
	}

	var resetIDs []uint
	var resetTo models.AttemptStatus
	repo.attempt.BulkUpdateStatusFn = func(ids []uint, status models.AttemptStatus) error {
		resetIDs = ids
		resetTo = status
		return nil
	}

	svc := newTestAttemptService(repo, events.NewMockEventPublisher(testLogger()))

	resp, err := svc.ResetStuckAttempts(context.Background(), 10, "owner")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ResetCount != 3 {
		t.Errorf("ResetCount = %d, want 3", resp.ResetCount)
	}
	if len(resetIDs) != 3 || resetTo != models.AttemptSubmitted {
		t.Errorf("reset %v to %v, want ids back to submitted", resetIDs, resetTo)
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name   string
		counts repositories.AttemptGradingCounts
		want   models.AttemptStatus
	}{
		{name: "nothing graded", counts: repositories.AttemptGradingCounts{Total: 4, Graded: 0}, want: models.AttemptSubmitted},
		{name: "partially graded", counts: repositories.AttemptGradingCounts{Total: 4, Graded: 2}, want: models.AttemptGradingInProgress},
		{name: "fully graded", counts: repositories.AttemptGradingCounts{Total: 4, Graded: 4}, want: models.AttemptGraded},
		{name: "no answers at all", counts: repositories.AttemptGradingCounts{Total: 0, Graded: 0}, want: models.AttemptSubmitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveStatus(&tt.counts); got != tt.want {
				t.Errorf("deriveStatus(%+v) = %v, want %v", tt.counts, got, tt.want)
			}
		})
	}
}

func TestTimeRemainingSeconds(t *testing.T) {
	deadline := time.Now().Add(90 * time.Second)
	past := time.Now().Add(-time.Minute)

	tests := []struct {
		name    string
		attempt models.ExamAttempt
		check   func(t *testing.T, got int)
	}{
		{
			name:    "in progress with time left",
			attempt: models.ExamAttempt{Status: models.AttemptInProgress, EndedAt: &deadline},
			check: func(t *testing.T, got int) {
				if got < 85 || got > 90 {
					t.Errorf("got %d, want about 90", got)
				}
			},
		},
		{
			name:    "past deadline clamps to zero",
			attempt: models.ExamAttempt{Status: models.AttemptInProgress, EndedAt: &past},
			check: func(t *testing.T, got int) {
				if got != 0 {
					t.Errorf("got %d, want 0", got)
				}
			},
		},
		{
			name:    "submitted attempt has no remaining time",
			attempt: models.ExamAttempt{Status: models.AttemptSubmitted, EndedAt: &deadline},
			check: func(t *testing.T, got int) {
				if got != 0 {
					t.Errorf("got %d, want 0", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, timeRemainingSeconds(&tt.attempt))
		})
	}
}

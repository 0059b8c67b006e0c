package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteAutomaticGradeTx_CreatesWhenMissing(t *testing.T) {
	repo := newMockRepository()

	var created *models.Grade
	repo.grade.CreateFn = func(grade *models.Grade) error {
		created = grade
		return nil
	}

	written, err := writeAutomaticGradeTx(context.Background(), repo, 42, 3, 4, false, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !written {
		t.Fatal("written = false, want true")
	}
	if created == nil {
		t.Fatal("no grade created")
	}
	if created.GradedBy != nil {
		t.Errorf("GradedBy = %v, want nil for automatic grade", *created.GradedBy)
	}
	if created.Locked {
		t.Error("new automatic grade must not be locked")
	}
	if created.Score != 3 || created.MaxScore != 4 {
		t.Errorf("Score/MaxScore = %v/%v, want 3/4", created.Score, created.MaxScore)
	}
	if created.GradedAt == nil {
		t.Error("GradedAt not set")
	}
}

func TestWriteAutomaticGradeTx_HumanGradeWins(t *testing.T) {
	grader := "teacher-1"
	repo := newMockRepository()
	repo.grade.GetByAnswerForUpdateF = func(answerID uint) (*models.Grade, error) {
		return &models.Grade{AnswerID: answerID, Score: 5, GradedBy: &grader, Locked: true}, nil
	}
	repo.grade.UpdateFn = func(grade *models.Grade) error {
		t.Fatal("automatic write must not touch a human grade")
		return nil
	}

	written, err := writeAutomaticGradeTx(context.Background(), repo, 42, 3, 4, false, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written {
		t.Error("written = true, want silent no-op against human grade")
	}
}

func TestWriteAutomaticGradeTx_LockedGradeWins(t *testing.T) {
	repo := newMockRepository()
	repo.grade.GetByAnswerForUpdateF = func(answerID uint) (*models.Grade, error) {
		return &models.Grade{AnswerID: answerID, Score: 2, Locked: true}, nil
	}

	written, err := writeAutomaticGradeTx(context.Background(), repo, 42, 3, 4, false, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written {
		t.Error("written = true, want no-op against locked grade")
	}
}

func TestWriteAutomaticGradeTx_OverwritesAutomaticGrade(t *testing.T) {
	repo := newMockRepository()
	repo.grade.GetByAnswerForUpdateF = func(answerID uint) (*models.Grade, error) {
		return &models.Grade{AnswerID: answerID, Score: 1, MaxScore: 4}, nil
	}

	var updated *models.Grade
	repo.grade.UpdateFn = func(grade *models.Grade) error {
		updated = grade
		return nil
	}

	written, err := writeAutomaticGradeTx(context.Background(), repo, 42, 3.5, 4, false, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !written {
		t.Fatal("written = false, want overwrite of unlocked automatic grade")
	}
	if updated == nil || updated.Score != 3.5 {
		t.Fatalf("updated grade = %+v, want score 3.5", updated)
	}
	if updated.GradedBy != nil {
		t.Error("overwrite must keep GradedBy nil")
	}
}

func TestRecomputeAttemptStatusTx(t *testing.T) {
	tests := []struct {
		name       string
		current    models.AttemptStatus
		counts     repositories.AttemptGradingCounts
		wantStatus *models.AttemptStatus
	}{
		{
			name:    "in progress is never touched",
			current: models.AttemptInProgress,
			counts:  repositories.AttemptGradingCounts{Total: 3, Graded: 3},
		},
		{
			name:       "no grades derives submitted",
			current:    models.AttemptGradingInProgress,
			counts:     repositories.AttemptGradingCounts{Total: 3, Graded: 0},
			wantStatus: statusPtr(models.AttemptSubmitted),
		},
		{
			name:       "partial grades derive grading in progress",
			current:    models.AttemptSubmitted,
			counts:     repositories.AttemptGradingCounts{Total: 3, Graded: 1},
			wantStatus: statusPtr(models.AttemptGradingInProgress),
		},
		{
			name:       "all graded derives graded",
			current:    models.AttemptGradingInProgress,
			counts:     repositories.AttemptGradingCounts{Total: 3, Graded: 3},
			wantStatus: statusPtr(models.AttemptGraded),
		},
		{
			name:    "unchanged status writes nothing",
			current: models.AttemptGraded,
			counts:  repositories.AttemptGradingCounts{Total: 3, Graded: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			repo.attempt.GetByIDFn = func(id uint) (*models.ExamAttempt, error) {
				return &models.ExamAttempt{ID: id, Status: tt.current}, nil
			}
			repo.attempt.GradingCountsFn = func(attemptID uint) (*repositories.AttemptGradingCounts, error) {
				return &repositories.AttemptGradingCounts{AttemptID: attemptID, Total: tt.counts.Total, Graded: tt.counts.Graded}, nil
			}

			var gotStatus *models.AttemptStatus
			repo.attempt.UpdateStatusFn = func(id uint, status models.AttemptStatus) error {
				gotStatus = &status
				return nil
			}

			if err := recomputeAttemptStatusTx(context.Background(), repo, 7); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			switch {
			case tt.wantStatus == nil && gotStatus != nil:
				t.Errorf("status written to %v, want no write", *gotStatus)
			case tt.wantStatus != nil && gotStatus == nil:
				t.Errorf("no status write, want %v", *tt.wantStatus)
			case tt.wantStatus != nil && *gotStatus != *tt.wantStatus:
				t.Errorf("status = %v, want %v", *gotStatus, *tt.wantStatus)
			}
		})
	}
}

func TestWriteAutomaticGrade_ServiceRecomputesStatus(t *testing.T) {
	repo := newMockRepository()
	repo.answer.GetByIDFn = func(id uint) (*models.Answer, error) {
		return &models.Answer{ID: id, AttemptID: 9}, nil
	}
	repo.attempt.GetByIDFn = func(id uint) (*models.ExamAttempt, error) {
		return &models.ExamAttempt{ID: id, Status: models.AttemptSubmitted}, nil
	}
	repo.attempt.GradingCountsFn = func(attemptID uint) (*repositories.AttemptGradingCounts, error) {
		return &repositories.AttemptGradingCounts{AttemptID: attemptID, Total: 1, Graded: 1}, nil
	}

	var gotStatus models.AttemptStatus
	repo.attempt.UpdateStatusFn = func(id uint, status models.AttemptStatus) error {
		gotStatus = status
		return nil
	}

	svc := NewGradingService(nil, repo, testLogger(), nil, nil)
	written, err := svc.WriteAutomaticGrade(context.Background(), 42, 4, 4, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !written {
		t.Fatal("written = false, want true")
	}
	if gotStatus != models.AttemptGraded {
		t.Errorf("attempt status = %v, want %v", gotStatus, models.AttemptGraded)
	}
}

func TestWriteAutomaticGrade_ClampsOutOfRangeScores(t *testing.T) {
	tests := []struct {
		name      string
		score     float64
		maxScore  float64
		wantScore float64
	}{
		{name: "above maximum clamps down", score: 120, maxScore: 10, wantScore: 10},
		{name: "negative clamps to zero", score: -5, maxScore: 10, wantScore: 0},
		{name: "in range passes through", score: 7.5, maxScore: 10, wantScore: 7.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			repo.answer.GetByIDFn = func(id uint) (*models.Answer, error) {
				return &models.Answer{ID: id, AttemptID: 9}, nil
			}
			repo.attempt.GetByIDFn = func(id uint) (*models.ExamAttempt, error) {
				return &models.ExamAttempt{ID: id, Status: models.AttemptSubmitted}, nil
			}

			var created *models.Grade
			repo.grade.CreateFn = func(grade *models.Grade) error {
				created = grade
				return nil
			}

			svc := NewGradingService(nil, repo, testLogger(), nil, nil)
			written, err := svc.WriteAutomaticGrade(context.Background(), 42, tt.score, tt.maxScore, nil, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !written {
				t.Fatal("written = false, want true")
			}
			if created == nil || created.Score != tt.wantScore {
				t.Fatalf("stored grade = %+v, want score %v", created, tt.wantScore)
			}
		})
	}
}

func TestWriteAutomaticGrade_LockedRaceIsNotAnError(t *testing.T) {
	repo := newMockRepository()
	repo.grade.GetByAnswerForUpdateF = func(answerID uint) (*models.Grade, error) {
		grader := "teacher-1"
		return &models.Grade{AnswerID: answerID, GradedBy: &grader, Locked: true}, nil
	}

	svc := NewGradingService(nil, repo, testLogger(), nil, nil)
	written, err := svc.WriteAutomaticGrade(context.Background(), 42, 4, 4, nil, nil)
	if err != nil {
		t.Fatalf("losing the provenance race must not error, got: %v", err)
	}
	if written {
		t.Error("written = true, want false")
	}
}

func statusPtr(s models.AttemptStatus) *models.AttemptStatus { return &s }

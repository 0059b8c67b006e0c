package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
	"github.com/SAP-F-2025/grading-integrity-service/internal/validator"
)

type proctoringService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewProctoringService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) ProctoringService {
	return &proctoringService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// RecordEvent stores one browser-side signal. Events are only accepted
// while the attempt is in progress; signals are append-only and never
// interpreted at write time.
func (s *proctoringService) RecordEvent(ctx context.Context, attemptID uint, req *RecordProctorEventRequest, studentID string) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.StudentID != studentID {
		return NewPermissionError(studentID, "attempt", "record event", "attempt belongs to another student")
	}
	if attempt.Status != models.AttemptInProgress {
		return ErrAttemptNotActive
	}

	var metadata datatypes.JSON
	if req.Metadata != nil {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode event metadata: %w", err)
		}
		metadata = raw
	}

	event := &models.ProctorEvent{
		AttemptID:  attemptID,
		Type:       req.Type,
		Metadata:   metadata,
		OccurredAt: req.OccurredAt,
	}
	if err := s.repo.ProctorEvent().Create(ctx, nil, event); err != nil {
		return fmt.Errorf("failed to record proctor event: %w", err)
	}

	s.logger.Debug("Proctor event recorded",
		"attempt_id", attemptID,
		"type", req.Type)

	return nil
}

// GetReport runs the pattern analyzer over the attempt's full event
// stream.
func (s *proctoringService) GetReport(ctx context.Context, attemptID uint, userID string) (*models.SuspicionReport, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if err := s.checkReportPermission(ctx, attempt.ExamID, userID); err != nil {
		return nil, err
	}

	return s.buildReport(ctx, attemptID)
}

func (s *proctoringService) buildReport(ctx context.Context, attemptID uint) (*models.SuspicionReport, error) {
	evts, err := s.repo.ProctorEvent().GetByAttempt(ctx, nil, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load proctor events: %w", err)
	}

	answerTimes, err := s.repo.Answer().GetAnswerTimestamps(ctx, nil, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answer timestamps: %w", err)
	}

	return AnalyzeProctorEvents(attemptID, evts, answerTimes), nil
}

// ExportExamReports renders one workbook row per attempt of the exam.
func (s *proctoringService) ExportExamReports(ctx context.Context, examID uint, userID string) ([]byte, error) {
	if err := s.checkReportPermission(ctx, examID, userID); err != nil {
		return nil, err
	}

	attempts, _, err := s.repo.Attempt().GetByExam(ctx, nil, examID, repositories.AttemptFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Suspicion Reports"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"Attempt ID", "Student ID", "Status",
		"Focus Lost", "Tab Switches", "Suspicious Pairs", "Strong Pairs",
		"External Pastes", "Answers Near Focus Loss", "Answers Total",
		"Focus Pattern", "Composite Score",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, attempt := range attempts {
		report, err := s.buildReport(ctx, attempt.ID)
		if err != nil {
			return nil, err
		}

		strong := 0
		for _, pair := range report.SuspiciousPairs {
			if pair.Strong {
				strong++
			}
		}

		values := []interface{}{
			attempt.ID, attempt.StudentID, string(attempt.Status),
			report.EventCounts[models.EventFocusLost],
			report.EventCounts[models.EventTabSwitch],
			len(report.SuspiciousPairs) - strong, strong,
			report.ExternalPastes,
			report.AnswersNearFocus, report.AnswersTotal,
			string(report.FocusPattern), report.CompositeScore,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("Suspicion reports exported",
		"exam_id", examID,
		"attempts", len(attempts))

	return buf.Bytes(), nil
}

func (s *proctoringService) checkReportPermission(ctx context.Context, examID uint, userID string) error {
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

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return NewPermissionError(userID, "proctoring report", "view", "user not found")
	}
	switch user.Role {
	case models.RoleAdmin, models.RoleProctor:
		return nil
	}

	return NewPermissionError(userID, "proctoring report", "view", "not exam owner, proctor or admin")
}

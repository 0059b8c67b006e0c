package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/grading-integrity-service/internal/cache"
	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
)

// Idempotency key length bounds. A request id outside them is an
// integrity rejection, not a validation error: the submit contract
// treats a malformed key the same as a forged nonce.
const (
	requestIDMinLen = 8
	requestIDMaxLen = 128
)

type integrityService struct {
	logger     *slog.Logger
	rateBudget *cache.RateBudget
	nonceCache *cache.NonceCache
}

func NewIntegrityService(logger *slog.Logger, rateBudget *cache.RateBudget, nonceCache *cache.NonceCache) IntegrityService {
	return &integrityService{
		logger:     logger,
		rateBudget: rateBudget,
		nonceCache: nonceCache,
	}
}

// VerifyNonce compares the presented nonce against the one issued at
// attempt start. The comparison is exact: any difference, including
// case or whitespace, fails. No detail about the stored nonce leaks
// into the error.
func (s *integrityService) VerifyNonce(ctx context.Context, attempt *models.ExamAttempt, presented string) error {
	issued := []byte(attempt.IntegrityNonce)
	if subtle.ConstantTimeCompare(issued, []byte(presented)) != 1 {
		s.logger.Warn("integrity nonce mismatch",
			"attempt_id", attempt.ID,
			"student_id", attempt.StudentID)
		return ErrIntegrity
	}
	return nil
}

// BeginSubmission claims the idempotency slot for this (attempt,
// request) pair by inserting the record inside the caller's
// transaction. The unique index makes the first insert win: a duplicate
// key here means a previous request already ran the submission, so the
// caller must replay the stored outcome instead of re-executing.
func (s *integrityService) BeginSubmission(ctx context.Context, repo repositories.Repository, attemptID uint, requestID string) (bool, error) {
	if n := len(requestID); n < requestIDMinLen || n > requestIDMaxLen {
		s.logger.Warn("submission request id outside length bounds",
			"attempt_id", attemptID,
			"length", n)
		return false, ErrIntegrity
	}

	record := &models.IdempotencyRecord{
		AttemptID: attemptID,
		RequestID: requestID,
		Operation: models.OpSubmitAttempt,
	}

	err := repo.Idempotency().Create(ctx, nil, record)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Info("duplicate submission request replayed",
				"attempt_id", attemptID,
				"request_id", requestID)
			return true, nil
		}
		return false, fmt.Errorf("failed to claim idempotency slot: %w", err)
	}

	return false, nil
}

// ConsumeRateBudget spends one submission token for the student. With
// no rate budget configured every request is allowed.
func (s *integrityService) ConsumeRateBudget(ctx context.Context, studentID string) error {
	if s.rateBudget == nil {
		return nil
	}

	allowed, err := s.rateBudget.Allow(ctx, studentID, string(models.OpSubmitAttempt))
	if err != nil {
		// A broken limiter must not block legitimate submissions.
		s.logger.Warn("rate budget check failed, allowing request",
			"student_id", studentID, "error", err)
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// PrecheckNonce rejects a tampered submission from the cached nonce
// before any transaction opens. A cache miss or error proves nothing
// and falls through; the row-backed VerifyNonce inside the submission
// transaction stays authoritative.
func (s *integrityService) PrecheckNonce(ctx context.Context, attemptID uint, presented string) error {
	if s.nonceCache == nil {
		return nil
	}

	cached, err := s.nonceCache.Get(ctx, attemptID)
	if err != nil {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(cached), []byte(presented)) != 1 {
		s.logger.Warn("integrity nonce mismatch against cache",
			"attempt_id", attemptID)
		return ErrIntegrity
	}
	return nil
}

// CacheNonce stores the attempt's nonce for the remaining attempt
// window so PrecheckNonce can reject tampered submissions without
// touching the attempts table.
func (s *integrityService) CacheNonce(ctx context.Context, attempt *models.ExamAttempt) {
	if s.nonceCache == nil {
		return
	}

	ttl := 24 * time.Hour
	if attempt.EndedAt != nil {
		if remaining := time.Until(*attempt.EndedAt); remaining > 0 {
			// Grace period after the hard deadline for timeout submits.
			ttl = remaining + time.Hour
		}
	}

	if err := s.nonceCache.Put(ctx, attempt.ID, attempt.IntegrityNonce, ttl); err != nil {
		s.logger.Warn("failed to cache nonce", "attempt_id", attempt.ID, "error", err)
	}
}

// DropNonce removes the cached nonce once the attempt leaves
// in_progress.
func (s *integrityService) DropNonce(ctx context.Context, attemptID uint) {
	if s.nonceCache == nil {
		return
	}
	if err := s.nonceCache.Invalidate(ctx, attemptID); err != nil {
		s.logger.Warn("failed to drop cached nonce", "attempt_id", attemptID, "error", err)
	}
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/grading-integrity-service/internal/cache"
	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
)

func TestVerifyNonce(t *testing.T) {
	svc := NewIntegrityService(testLogger(), nil, nil)
	attempt := &models.ExamAttempt{ID: 1, IntegrityNonce: "a1b2c3d4-issued-nonce"}

	tests := []struct {
		name      string
		presented string
		wantErr   bool
	}{
		{name: "exact match", presented: "a1b2c3d4-issued-nonce"},
		{name: "case difference fails", presented: "A1B2C3D4-ISSUED-NONCE", wantErr: true},
		{name: "trailing whitespace fails", presented: "a1b2c3d4-issued-nonce ", wantErr: true},
		{name: "empty fails", presented: "", wantErr: true},
		{name: "truncated fails", presented: "a1b2c3d4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.VerifyNonce(context.Background(), attempt, tt.presented)
			if tt.wantErr {
				if !errors.Is(err, ErrIntegrity) {
					t.Errorf("error = %v, want ErrIntegrity", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBeginSubmission(t *testing.T) {
	t.Run("first claim wins", func(t *testing.T) {
		repo := newMockRepository()

		var inserted *models.IdempotencyRecord
		repo.idempotency.CreateFn = func(record *models.IdempotencyRecord) error {
			inserted = record
			return nil
		}

		svc := NewIntegrityService(testLogger(), nil, nil)
		replay, err := svc.BeginSubmission(context.Background(), repo, 5, "req-12345678")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if replay {
			t.Error("replay = true, want false for first claim")
		}
		if inserted == nil || inserted.Operation != models.OpSubmitAttempt {
			t.Fatalf("record = %+v, want submit_attempt operation", inserted)
		}
	})

	t.Run("duplicate key means replay", func(t *testing.T) {
		repo := newMockRepository()
		repo.idempotency.CreateFn = func(record *models.IdempotencyRecord) error {
			return gorm.ErrDuplicatedKey
		}

		svc := NewIntegrityService(testLogger(), nil, nil)
		replay, err := svc.BeginSubmission(context.Background(), repo, 5, "req-12345678")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !replay {
			t.Error("replay = false, want true on duplicate key")
		}
	})

	t.Run("request id outside length bounds is an integrity rejection", func(t *testing.T) {
		repo := newMockRepository()
		repo.idempotency.CreateFn = func(record *models.IdempotencyRecord) error {
			t.Fatal("idempotency slot must not be claimed for a malformed request id")
			return nil
		}

		svc := NewIntegrityService(testLogger(), nil, nil)

		oversized := make([]byte, 129)
		for i := range oversized {
			oversized[i] = 'x'
		}

		for _, requestID := range []string{"", "short", string(oversized)} {
			if _, err := svc.BeginSubmission(context.Background(), repo, 5, requestID); !errors.Is(err, ErrIntegrity) {
				t.Errorf("request id %q: error = %v, want ErrIntegrity", requestID, err)
			}
		}
	})

	t.Run("other insert errors propagate", func(t *testing.T) {
		repo := newMockRepository()
		repo.idempotency.CreateFn = func(record *models.IdempotencyRecord) error {
			return errors.New("connection reset")
		}

		svc := NewIntegrityService(testLogger(), nil, nil)
		_, err := svc.BeginSubmission(context.Background(), repo, 5, "req-12345678")
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}

func TestConsumeRateBudget(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	budget := cache.NewRateBudget(client, 3, time.Minute)
	svc := NewIntegrityService(testLogger(), budget, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := svc.ConsumeRateBudget(ctx, "student-1"); err != nil {
			t.Fatalf("request %d unexpectedly limited: %v", i+1, err)
		}
	}

	if err := svc.ConsumeRateBudget(ctx, "student-1"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("error = %v, want ErrRateLimited after budget exhausted", err)
	}

	// A different student has an untouched budget.
	if err := svc.ConsumeRateBudget(ctx, "student-2"); err != nil {
		t.Errorf("other student limited: %v", err)
	}

	// The window expiring refills the budget.
	mr.FastForward(time.Minute + time.Second)
	if err := svc.ConsumeRateBudget(ctx, "student-1"); err != nil {
		t.Errorf("request after window expiry limited: %v", err)
	}
}

func TestConsumeRateBudget_NoBudgetConfigured(t *testing.T) {
	svc := NewIntegrityService(testLogger(), nil, nil)
	for i := 0; i < 50; i++ {
		if err := svc.ConsumeRateBudget(context.Background(), "student-1"); err != nil {
			t.Fatalf("request %d limited without a budget: %v", i+1, err)
		}
	}
}

func TestNonceCacheLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	nonceCache := cache.NewNonceCache(client)
	svc := NewIntegrityService(testLogger(), nil, nonceCache)

	endedAt := time.Now().Add(30 * time.Minute)
	attempt := &models.ExamAttempt{ID: 9, IntegrityNonce: "issued-nonce", EndedAt: &endedAt}

	ctx := context.Background()
	svc.CacheNonce(ctx, attempt)

	got, err := nonceCache.Get(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("cached nonce not found: %v", err)
	}
	if got != "issued-nonce" {
		t.Errorf("cached nonce = %q, want %q", got, "issued-nonce")
	}

	svc.DropNonce(ctx, attempt.ID)
	if _, err := nonceCache.Get(ctx, attempt.ID); !errors.Is(err, cache.ErrCacheNotFound) {
		t.Errorf("error after drop = %v, want ErrCacheNotFound", err)
	}
}

func TestPrecheckNonce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	nonceCache := cache.NewNonceCache(client)
	svc := NewIntegrityService(testLogger(), nil, nonceCache)

	endedAt := time.Now().Add(30 * time.Minute)
	attempt := &models.ExamAttempt{ID: 9, IntegrityNonce: "issued-nonce", EndedAt: &endedAt}

	ctx := context.Background()
	svc.CacheNonce(ctx, attempt)

	if err := svc.PrecheckNonce(ctx, attempt.ID, "issued-nonce"); err != nil {
		t.Errorf("matching nonce rejected: %v", err)
	}
	if err := svc.PrecheckNonce(ctx, attempt.ID, "tampered-nonce"); !errors.Is(err, ErrIntegrity) {
		t.Errorf("error = %v, want ErrIntegrity for tampered nonce", err)
	}

	// With nothing cached the precheck proves nothing and falls
	// through to the row-backed check.
	svc.DropNonce(ctx, attempt.ID)
	if err := svc.PrecheckNonce(ctx, attempt.ID, "tampered-nonce"); err != nil {
		t.Errorf("cache miss must fall through, got %v", err)
	}
}

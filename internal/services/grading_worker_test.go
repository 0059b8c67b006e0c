package services

import (
	"encoding/json"
	"testing"

	"github.com/SAP-F-2025/grading-integrity-service/internal/events"
)

func TestDecodeGradingJob(t *testing.T) {
	t.Run("valid envelope", func(t *testing.T) {
		event := events.NewEvent(events.EventGradingJobQueued, events.GradingJobPayload{
			AttemptID:  1,
			AnswerID:   42,
			QuestionID: 7,
		})
		payload, err := json.Marshal(event)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		job, err := decodeGradingJob(payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.AnswerID != 42 || job.AttemptID != 1 || job.QuestionID != 7 {
			t.Errorf("job = %+v, want answer 42 of attempt 1", job)
		}
	})

	t.Run("force regrade flag survives the round trip", func(t *testing.T) {
		event := events.NewEvent(events.EventGradingJobQueued, events.GradingJobPayload{
			AnswerID:     42,
			ForceRegrade: true,
		})
		payload, _ := json.Marshal(event)

		job, err := decodeGradingJob(payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !job.ForceRegrade {
			t.Error("ForceRegrade = false, want true")
		}
	})

	t.Run("garbage payload", func(t *testing.T) {
		if _, err := decodeGradingJob([]byte("not json")); err == nil {
			t.Error("expected error for non-json payload")
		}
	})

	t.Run("missing answer id", func(t *testing.T) {
		event := events.NewEvent(events.EventGradingJobQueued, events.GradingJobPayload{AttemptID: 1})
		payload, _ := json.Marshal(event)

		if _, err := decodeGradingJob(payload); err == nil {
			t.Error("expected error for job without answer id")
		}
	})
}

func TestStrOrNil(t *testing.T) {
	if strOrNil("") != nil {
		t.Error("empty string must map to nil")
	}
	if got := strOrNil("feedback"); got == nil || *got != "feedback" {
		t.Errorf("got %v, want pointer to %q", got, "feedback")
	}
}

package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Source identifies this service on every published event.
const Source = "grading-integrity-service"

// Topics
const (
	TopicGradingJobs   = "grading.jobs"
	TopicAttemptEvents = "attempt.events"
)

// Event types
const (
	EventAttemptSubmitted = "attempt.submitted"
	EventAttemptGraded    = "attempt.graded"
	EventGradingJobQueued = "grading.job_queued"
)

// Event is the envelope every published message is wrapped in.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent builds an envelope with a fresh id and timestamp.
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    Source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// GradingJobPayload is the unit of work the grading worker consumes.
// Delivery is at-least-once; the grade write path tolerates duplicates.
type GradingJobPayload struct {
	AttemptID    uint `json:"attempt_id"`
	AnswerID     uint `json:"answer_id"`
	QuestionID   uint `json:"question_id"`
	ForceRegrade bool `json:"force_regrade"`
}

// AttemptEventPayload carries attempt lifecycle notifications.
type AttemptEventPayload struct {
	AttemptID uint   `json:"attempt_id"`
	ExamID    uint   `json:"exam_id"`
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
}

// EventPublisher publishes envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *Event) error
	Close() error
}

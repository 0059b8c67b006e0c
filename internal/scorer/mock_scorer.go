package scorer

import (
	"context"
	"fmt"
	"sync"
)

// MockScorer is a canned-response scorer for tests.
type MockScorer struct {
	mu sync.Mutex

	// Result is returned for every call unless ScoreFunc is set.
	Result *ScoreResult

	// ScoreFunc overrides the canned result when set.
	ScoreFunc func(ctx context.Context, req *ScoreRequest) (*ScoreResult, error)

	// FailAlways makes every call return an error.
	FailAlways bool

	calls []*ScoreRequest
}

func NewMockScorer() *MockScorer {
	return &MockScorer{
		Result: &ScoreResult{Score: 1, Feedback: "ok", Rationale: "mock"},
	}
}

func (m *MockScorer) Score(ctx context.Context, req *ScoreRequest) (*ScoreResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.FailAlways {
		return nil, fmt.Errorf("mock scorer: unavailable")
	}
	if m.ScoreFunc != nil {
		return m.ScoreFunc(ctx, req)
	}
	return m.Result, nil
}

// Calls returns every request seen so far.
func (m *MockScorer) Calls() []*ScoreRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*ScoreRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

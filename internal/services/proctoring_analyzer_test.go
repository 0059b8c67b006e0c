package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
)

var analyzerBase = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func event(t models.ProctorEventType, offset time.Duration) *models.ProctorEvent {
	return &models.ProctorEvent{Type: t, OccurredAt: analyzerBase.Add(offset)}
}

func copyEvent(offset time.Duration, selectionLen int) *models.ProctorEvent {
	e := event(models.EventCopy, offset)
	e.Metadata = []byte(fmt.Sprintf(`{"selection_length":%d}`, selectionLen))
	return e
}

func pasteEvent(offset time.Duration, pasteLen int, external bool) *models.ProctorEvent {
	e := event(models.EventPaste, offset)
	e.Metadata = []byte(fmt.Sprintf(`{"paste_length":%d,"external":%v}`, pasteLen, external))
	return e
}

func savedAt(offset time.Duration) repositories.AnswerTimestamp {
	return repositories.AnswerTimestamp{SavedAt: analyzerBase.Add(offset)}
}

func TestMatchCopyPastePairs(t *testing.T) {
	t.Run("equal lengths read as internal copy-paste", func(t *testing.T) {
		evts := []*models.ProctorEvent{
			copyEvent(0, 40),
			pasteEvent(5*time.Second, 40, false),
		}
		if pairs := matchCopyPastePairs(evts); len(pairs) != 0 {
			t.Errorf("got %d pairs, want 0", len(pairs))
		}
	})

	t.Run("differing lengths are suspicious", func(t *testing.T) {
		evts := []*models.ProctorEvent{
			copyEvent(0, 40),
			pasteEvent(5*time.Second, 120, false),
		}
		pairs := matchCopyPastePairs(evts)
		if len(pairs) != 1 {
			t.Fatalf("got %d pairs, want 1", len(pairs))
		}
		if pairs[0].Strong {
			t.Error("pair marked strong without a focus break")
		}
	})

	t.Run("focus break between copy and paste makes the pair strong", func(t *testing.T) {
		evts := []*models.ProctorEvent{
			copyEvent(0, 40),
			event(models.EventTabSwitch, 2*time.Second),
			pasteEvent(5*time.Second, 120, false),
		}
		pairs := matchCopyPastePairs(evts)
		if len(pairs) != 1 {
			t.Fatalf("got %d pairs, want 1", len(pairs))
		}
		if !pairs[0].Strong {
			t.Error("pair not marked strong despite interleaved tab switch")
		}
	})

	t.Run("copy is consumed by the first paste", func(t *testing.T) {
		evts := []*models.ProctorEvent{
			copyEvent(0, 40),
			pasteEvent(5*time.Second, 120, false),
			pasteEvent(10*time.Second, 200, false), // no copy left to pair with
		}
		if pairs := matchCopyPastePairs(evts); len(pairs) != 1 {
			t.Errorf("got %d pairs, want 1", len(pairs))
		}
	})

	t.Run("paste without copy is ignored", func(t *testing.T) {
		evts := []*models.ProctorEvent{
			pasteEvent(5*time.Second, 120, true),
		}
		if pairs := matchCopyPastePairs(evts); len(pairs) != 0 {
			t.Errorf("got %d pairs, want 0", len(pairs))
		}
	})

	t.Run("zero length copy never becomes pending", func(t *testing.T) {
		evts := []*models.ProctorEvent{
			copyEvent(0, 0),
			pasteEvent(5*time.Second, 120, false),
		}
		if pairs := matchCopyPastePairs(evts); len(pairs) != 0 {
			t.Errorf("got %d pairs, want 0", len(pairs))
		}
	})

	t.Run("zero length copy does not displace a pending copy", func(t *testing.T) {
		evts := []*models.ProctorEvent{
			copyEvent(0, 40),
			copyEvent(2*time.Second, 0),
			pasteEvent(5*time.Second, 120, false),
		}
		pairs := matchCopyPastePairs(evts)
		if len(pairs) != 1 {
			t.Fatalf("got %d pairs, want 1", len(pairs))
		}
		if pairs[0].SelectionLength != 40 {
			t.Errorf("SelectionLength = %d, want 40", pairs[0].SelectionLength)
		}
	})

	t.Run("paste without a length leaves the copy pending", func(t *testing.T) {
		evts := []*models.ProctorEvent{
			copyEvent(0, 40),
			pasteEvent(5*time.Second, 0, false),
			pasteEvent(10*time.Second, 120, false),
		}
		pairs := matchCopyPastePairs(evts)
		if len(pairs) != 1 {
			t.Fatalf("got %d pairs, want 1", len(pairs))
		}
		if pairs[0].PasteLength != 120 {
			t.Errorf("PasteLength = %d, want 120", pairs[0].PasteLength)
		}
	})
}

func TestCountAnswersNearFocusLoss(t *testing.T) {
	evts := []*models.ProctorEvent{
		event(models.EventFocusLost, 0),
	}

	tests := []struct {
		name    string
		answers []repositories.AnswerTimestamp
		want    int
	}{
		{name: "save inside window", answers: []repositories.AnswerTimestamp{savedAt(10 * time.Second)}, want: 1},
		{name: "save at window edge", answers: []repositories.AnswerTimestamp{savedAt(30 * time.Second)}, want: 1},
		{name: "save outside window", answers: []repositories.AnswerTimestamp{savedAt(40 * time.Second)}, want: 0},
		{name: "save before the break", answers: []repositories.AnswerTimestamp{savedAt(-5 * time.Second)}, want: 0},
		{
			name: "answer counted once despite multiple breaks",
			answers: []repositories.AnswerTimestamp{
				savedAt(10 * time.Second),
				savedAt(2 * time.Minute),
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countAnswersNearFocusLoss(evts, tt.answers); got != tt.want {
				t.Errorf("countAnswersNearFocusLoss() = %d, want %d", got, tt.want)
			}
		})
	}

	t.Run("tab switch is not a focus loss", func(t *testing.T) {
		tabOnly := []*models.ProctorEvent{
			event(models.EventTabSwitch, 0),
		}
		answers := []repositories.AnswerTimestamp{savedAt(10 * time.Second)}
		if got := countAnswersNearFocusLoss(tabOnly, answers); got != 0 {
			t.Errorf("countAnswersNearFocusLoss() = %d, want 0", got)
		}
	})
}

func TestClassifyFocusPattern(t *testing.T) {
	tests := []struct {
		name  string
		near  int
		total int
		want  models.SuspicionLevel
	}{
		{name: "no answers", near: 0, total: 0, want: models.SuspicionNone},
		{name: "low ratio", near: 2, total: 10, want: models.SuspicionNone},
		{name: "medium threshold", near: 6, total: 10, want: models.SuspicionMedium},
		{name: "below medium", near: 5, total: 10, want: models.SuspicionNone},
		{name: "high threshold", near: 8, total: 10, want: models.SuspicionHigh},
		{name: "all answers near focus loss", near: 10, total: 10, want: models.SuspicionHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyFocusPattern(tt.near, tt.total); got != tt.want {
				t.Errorf("classifyFocusPattern(%d, %d) = %v, want %v", tt.near, tt.total, got, tt.want)
			}
		})
	}
}

func TestAnalyzeProctorEvents_CompositeScore(t *testing.T) {
	// 2 focus losses, 1 tab switch, 1 external paste paired strongly
	// with a copy, and 2 of 2 answers saved right after a focus loss:
	// 2*2 + 3*1 + 7 + 5 + 30 = 49.
	evts := []*models.ProctorEvent{
		copyEvent(0, 40),
		event(models.EventFocusLost, 1*time.Second),
		pasteEvent(3*time.Second, 150, true),
		event(models.EventFocusLost, 1*time.Minute),
		event(models.EventTabSwitch, 2*time.Minute),
	}
	answers := []repositories.AnswerTimestamp{
		savedAt(1*time.Minute + 10*time.Second),
		savedAt(1*time.Minute + 20*time.Second),
	}

	report := AnalyzeProctorEvents(7, evts, answers)

	if report.AttemptID != 7 {
		t.Errorf("AttemptID = %d, want 7", report.AttemptID)
	}
	if report.EventCounts[models.EventFocusLost] != 2 {
		t.Errorf("focus_lost count = %d, want 2", report.EventCounts[models.EventFocusLost])
	}
	if report.ExternalPastes != 1 {
		t.Errorf("ExternalPastes = %d, want 1", report.ExternalPastes)
	}
	if len(report.SuspiciousPairs) != 1 || !report.SuspiciousPairs[0].Strong {
		t.Fatalf("SuspiciousPairs = %+v, want one strong pair", report.SuspiciousPairs)
	}
	if report.AnswersNearFocus != 2 {
		t.Errorf("AnswersNearFocus = %d, want 2", report.AnswersNearFocus)
	}
	if report.FocusPattern != models.SuspicionHigh {
		t.Errorf("FocusPattern = %v, want %v", report.FocusPattern, models.SuspicionHigh)
	}
	if want := 2*2 + 3*1 + 7 + 5 + 30; report.CompositeScore != want {
		t.Errorf("CompositeScore = %d, want %d", report.CompositeScore, want)
	}
}

func TestCompositeScore_Weighting(t *testing.T) {
	report := &models.SuspicionReport{
		EventCounts: map[models.ProctorEventType]int{
			models.EventFocusLost: 5,
			models.EventTabSwitch: 2,
		},
		SuspiciousPairs: []models.CopyPasteMatch{
			{Strong: false},
			{Strong: false},
			{Strong: true},
		},
		FocusPattern:   models.SuspicionHigh,
		ExternalPastes: 3,
	}

	// 2*5 + 3*2 + 3*2 + 7 + 30 + 5*3
	if got := compositeScore(report); got != 74 {
		t.Errorf("compositeScore() = %d, want 74", got)
	}
}

func TestAnalyzeProctorEvents_Empty(t *testing.T) {
	report := AnalyzeProctorEvents(1, nil, nil)

	if report.CompositeScore != 0 {
		t.Errorf("CompositeScore = %d, want 0", report.CompositeScore)
	}
	if report.FocusPattern != models.SuspicionNone {
		t.Errorf("FocusPattern = %v, want %v", report.FocusPattern, models.SuspicionNone)
	}
}

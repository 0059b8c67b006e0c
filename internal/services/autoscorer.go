package services

import (
	"math"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
)

// AutoScoreResult is the deterministic scorer's verdict for one
// multi-select answer.
type AutoScoreResult struct {
	Score     float64
	MaxScore  float64
	IsCorrect bool
}

// ScoreMultiSelect grades a multi-select answer against the question's
// segment key. It is pure: same inputs, same output, no clock and no
// randomness, so re-grading an unchanged answer always reproduces the
// stored score.
//
// Partial credit: max(0, (correct - incorrect) / totalCorrect) * points,
// rounded to 2 decimals. Exact match: all-or-nothing.
func ScoreMultiSelect(question *models.Question, segments []models.AnswerSegment) AutoScoreResult {
	maxPoints := float64(question.MaxPoints())

	selected := make(map[uint]bool, len(segments))
	for _, seg := range segments {
		if seg.Selected() {
			selected[seg.SegmentID] = true
		}
	}

	totalCorrect := 0
	correctSelected := 0
	incorrectSelected := 0
	exactMatch := true

	for _, option := range question.Segments {
		if option.Correct {
			totalCorrect++
			if selected[option.ID] {
				correctSelected++
			} else {
				exactMatch = false
			}
		} else if selected[option.ID] {
			incorrectSelected++
			exactMatch = false
		}
	}

	// A key with no correct options cannot award points; this is an
	// upstream configuration problem, not a scoring case.
	if totalCorrect == 0 {
		return AutoScoreResult{Score: 0, MaxScore: maxPoints, IsCorrect: false}
	}

	switch question.ScoringMode {
	case models.ScoringExactMatch:
		if exactMatch {
			return AutoScoreResult{Score: maxPoints, MaxScore: maxPoints, IsCorrect: true}
		}
		return AutoScoreResult{Score: 0, MaxScore: maxPoints, IsCorrect: false}

	default: // partial credit
		ratio := float64(correctSelected-incorrectSelected) / float64(totalCorrect)
		if ratio < 0 {
			ratio = 0
		}
		// IsCorrect mirrors exact set equality; the rounded score can
		// reach maxPoints without the selection being exact.
		return AutoScoreResult{
			Score:     roundScore(ratio * maxPoints),
			MaxScore:  maxPoints,
			IsCorrect: exactMatch,
		}
	}
}

// roundScore rounds half away from zero to 2 decimal places.
func roundScore(score float64) float64 {
	return math.Round(score*100) / 100
}

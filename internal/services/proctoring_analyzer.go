package services

import (
	"time"

	"github.com/SAP-F-2025/grading-integrity-service/internal/models"
	"github.com/SAP-F-2025/grading-integrity-service/internal/repositories"
)

// focusWindow is how far back from an answer save the analyzer looks
// for a focus_lost event.
const focusWindow = 30 * time.Second

// Focus-pattern thresholds on the fraction of answers saved shortly
// after a focus loss.
const (
	focusRatioHigh   = 0.8
	focusRatioMedium = 0.6
)

// Composite score weights.
const (
	weightFocusLost      = 2
	weightTabSwitch      = 3
	weightSuspiciousPair = 3
	weightStrongPair     = 7
	weightExternalPaste  = 5
	scoreFocusMedium     = 15
	scoreFocusHigh       = 30
)

// AnalyzeProctorEvents derives a suspicion report from an attempt's
// event stream and answer save times. Pure and deterministic: events
// must arrive in chronological order.
func AnalyzeProctorEvents(attemptID uint, evts []*models.ProctorEvent, answerTimes []repositories.AnswerTimestamp) *models.SuspicionReport {
	report := &models.SuspicionReport{
		AttemptID:    attemptID,
		EventCounts:  make(map[models.ProctorEventType]int),
		AnswersTotal: len(answerTimes),
		FocusPattern: models.SuspicionNone,
	}

	for _, e := range evts {
		report.EventCounts[e.Type]++
		if e.Type == models.EventPaste && e.PasteMeta().External {
			report.ExternalPastes++
		}
	}

	report.SuspiciousPairs = matchCopyPastePairs(evts)
	report.AnswersNearFocus = countAnswersNearFocusLoss(evts, answerTimes)
	report.FocusPattern = classifyFocusPattern(report.AnswersNearFocus, report.AnswersTotal)
	report.CompositeScore = compositeScore(report)

	return report
}

// matchCopyPastePairs pairs each paste with the most recent unconsumed
// copy. Only a copy with a non-zero selection length becomes pending,
// and only a paste carrying a paste length consumes it. Equal selection
// and paste lengths read as an internal copy-paste and are ignored;
// differing lengths are suspicious, and a focus loss or tab switch
// between the two makes the pair strong evidence of an external source.
func matchCopyPastePairs(evts []*models.ProctorEvent) []models.CopyPasteMatch {
	var pairs []models.CopyPasteMatch
	var lastCopy *models.ProctorEvent
	focusBreakSinceCopy := false

	for _, e := range evts {
		switch e.Type {
		case models.EventCopy:
			if e.CopyMeta().SelectionLength > 0 {
				lastCopy = e
				focusBreakSinceCopy = false
			}

		case models.EventFocusLost, models.EventTabSwitch:
			if lastCopy != nil {
				focusBreakSinceCopy = true
			}

		case models.EventPaste:
			if lastCopy == nil {
				continue
			}
			pasteLen := e.PasteMeta().PasteLength
			if pasteLen == 0 {
				continue
			}
			selLen := lastCopy.CopyMeta().SelectionLength

			if pasteLen != selLen {
				pairs = append(pairs, models.CopyPasteMatch{
					CopyAt:          lastCopy.OccurredAt,
					PasteAt:         e.OccurredAt,
					SelectionLength: selLen,
					PasteLength:     pasteLen,
					Strong:          focusBreakSinceCopy,
				})
			}
			lastCopy = nil
			focusBreakSinceCopy = false
		}
	}

	return pairs
}

// countAnswersNearFocusLoss counts answers whose last save landed
// within the focus window after a focus_lost event. Tab switches only
// matter for copy/paste pair classification, not here.
func countAnswersNearFocusLoss(evts []*models.ProctorEvent, answerTimes []repositories.AnswerTimestamp) int {
	var breaks []time.Time
	for _, e := range evts {
		if e.Type == models.EventFocusLost {
			breaks = append(breaks, e.OccurredAt)
		}
	}

	count := 0
	for _, at := range answerTimes {
		for _, b := range breaks {
			delta := at.SavedAt.Sub(b)
			if delta >= 0 && delta <= focusWindow {
				count++
				break
			}
		}
	}
	return count
}

func classifyFocusPattern(near, total int) models.SuspicionLevel {
	if total == 0 {
		return models.SuspicionNone
	}
	ratio := float64(near) / float64(total)
	switch {
	case ratio >= focusRatioHigh:
		return models.SuspicionHigh
	case ratio >= focusRatioMedium:
		return models.SuspicionMedium
	default:
		return models.SuspicionNone
	}
}

func compositeScore(report *models.SuspicionReport) int {
	score := weightFocusLost*report.EventCounts[models.EventFocusLost] +
		weightTabSwitch*report.EventCounts[models.EventTabSwitch] +
		weightExternalPaste*report.ExternalPastes

	for _, pair := range report.SuspiciousPairs {
		if pair.Strong {
			score += weightStrongPair
		} else {
			score += weightSuspiciousPair
		}
	}

	switch report.FocusPattern {
	case models.SuspicionMedium:
		score += scoreFocusMedium
	case models.SuspicionHigh:
		score += scoreFocusHigh
	}

	return score
}

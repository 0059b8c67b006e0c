package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type ProctorEventType string

const (
	EventFocusLost      ProctorEventType = "focus_lost"
	EventFocusGained    ProctorEventType = "focus_gained"
	EventTabSwitch      ProctorEventType = "tab_switch"
	EventFullscreenExit ProctorEventType = "fullscreen_exit"
	EventCopy           ProctorEventType = "copy"
	EventPaste          ProctorEventType = "paste"
)

// ProctorEvent is one browser-side signal recorded during an attempt.
// Metadata is a free-form jsonb blob; the analyzer reads the keys it
// knows about and ignores the rest.
type ProctorEvent struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	AttemptID uint             `json:"attempt_id" gorm:"not null;index"`
	Type      ProctorEventType `json:"type" gorm:"not null;index;size:32"`
	Metadata  datatypes.JSON   `json:"metadata" gorm:"type:jsonb"`

	OccurredAt time.Time `json:"occurred_at" gorm:"not null;index"`
	CreatedAt  time.Time `json:"created_at"`

	// Relations
	Attempt ExamAttempt `json:"-" gorm:"foreignKey:AttemptID"`
}

// CopyEventMeta is the metadata shape the analyzer expects on copy events.
type CopyEventMeta struct {
	SelectionLength int `json:"selection_length"`
}

// PasteEventMeta is the metadata shape the analyzer expects on paste events.
type PasteEventMeta struct {
	PasteLength int  `json:"paste_length"`
	External    bool `json:"external"`
}

// CopyMeta decodes the event metadata as a copy payload. Missing or
// malformed metadata decodes to the zero value.
func (e *ProctorEvent) CopyMeta() CopyEventMeta {
	var meta CopyEventMeta
	if len(e.Metadata) > 0 {
		_ = json.Unmarshal(e.Metadata, &meta)
	}
	return meta
}

// PasteMeta decodes the event metadata as a paste payload.
func (e *ProctorEvent) PasteMeta() PasteEventMeta {
	var meta PasteEventMeta
	if len(e.Metadata) > 0 {
		_ = json.Unmarshal(e.Metadata, &meta)
	}
	return meta
}

// SuspicionLevel classifies the focus-loss answer pattern.
type SuspicionLevel string

const (
	SuspicionNone   SuspicionLevel = "NONE"
	SuspicionMedium SuspicionLevel = "SUSPICIOUS"
	SuspicionHigh   SuspicionLevel = "HIGHLY_SUSPICIOUS"
)

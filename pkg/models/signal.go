package models

import (
	"time"

	"github.com/google/uuid"
)

// SignalKind classifies where a signal came from.
type SignalKind string

const (
	SignalDocument        SignalKind = "document"
	SignalChat            SignalKind = "chat"
	SignalMeetingNote     SignalKind = "meeting_note"
	SignalPrototypeReview SignalKind = "prototype_review"
)

// IsValid returns true if the kind is one of the known kinds.
func (k SignalKind) IsValid() bool {
	switch k {
	case SignalDocument, SignalChat, SignalMeetingNote, SignalPrototypeReview:
		return true
	default:
		return false
	}
}

// Signal processing status constants.
const (
	SignalStatusPending    = "pending"
	SignalStatusProcessing = "processing"
	SignalStatusProcessed  = "processed"
	SignalStatusFailed     = "failed"
)

// Signal is one unit of incoming evidence (document, chat excerpt, meeting
// note, prototype review) awaiting processing into entity changes.
// Stored in the engine_signals table.
type Signal struct {
	ID              uuid.UUID       `json:"id"`
	ProjectID       uuid.UUID       `json:"project_id"`
	Kind            SignalKind      `json:"kind"`
	Title           string          `json:"title"`
	Body            string          `json:"body"`
	SourceAuthority SourceAuthority `json:"source_authority"`
	Status          string          `json:"status"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// SignalChunk is one extraction unit of a signal's body. Chunk IDs are stable
// within a run and referenced by evidence entries.
type SignalChunk struct {
	ID   string
	Text string
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// ConfirmationStatus represents the strength of evidence backing an entity's
// current field values. Ordered hierarchy:
// ai_generated < needs_client < confirmed_consultant < confirmed_client.
// Status only moves up this order during normal processing; it is never
// silently downgraded by lower-authority evidence.
type ConfirmationStatus string

const (
	StatusAIGenerated         ConfirmationStatus = "ai_generated"
	StatusNeedsClient         ConfirmationStatus = "needs_client"
	StatusConfirmedConsultant ConfirmationStatus = "confirmed_consultant"
	StatusConfirmedClient     ConfirmationStatus = "confirmed_client"
)

var confirmationRanks = map[ConfirmationStatus]int{
	StatusAIGenerated:         0,
	StatusNeedsClient:         1,
	StatusConfirmedConsultant: 2,
	StatusConfirmedClient:     3,
}

// IsValid returns true if the status is one of the known statuses.
func (s ConfirmationStatus) IsValid() bool {
	_, ok := confirmationRanks[s]
	return ok
}

// String returns the string representation of the status.
func (s ConfirmationStatus) String() string {
	return string(s)
}

// Rank returns the ordinal position of the status in the hierarchy.
func (s ConfirmationStatus) Rank() int {
	return confirmationRanks[s]
}

// AtLeast reports whether s is equal to or higher than other in the hierarchy.
func (s ConfirmationStatus) AtLeast(other ConfirmationStatus) bool {
	return s.Rank() >= other.Rank()
}

// Entity is a persisted requirements-model object (feature, persona, workflow,
// and so on). Fields holds the entity-type-specific payload; the patch system
// treats it as opaque apart from the display-name keys.
// Stored in the engine_entities table.
type Entity struct {
	ID                 uuid.UUID          `json:"id"`
	ProjectID          uuid.UUID          `json:"project_id"`
	EntityType         EntityType         `json:"entity_type"`
	Name               string             `json:"name"`
	Fields             map[string]any     `json:"fields"`
	Evidence           []EvidenceRef      `json:"evidence"`
	SourceSignalIDs    []uuid.UUID        `json:"source_signal_ids"`
	ConfirmationStatus ConfirmationStatus `json:"confirmation_status"`
	IsStale            bool               `json:"is_stale"`
	StaleReason        *string            `json:"stale_reason,omitempty"`
	Embedding          []float32          `json:"embedding,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// StateRevision records one applied change for the audit trail: what changed,
// by whose authority, and why. Revisions are advisory; their write failures
// never roll back the entity mutation they describe.
// Stored in the engine_state_revisions table.
type StateRevision struct {
	ID              uuid.UUID       `json:"id"`
	ProjectID       uuid.UUID       `json:"project_id"`
	EntityID        *uuid.UUID      `json:"entity_id,omitempty"`
	EntityType      EntityType      `json:"entity_type"`
	Operation       PatchOperation  `json:"operation"`
	SourceAuthority SourceAuthority `json:"source_authority"`
	Summary         string          `json:"summary"`
	SignalID        *uuid.UUID      `json:"signal_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// EvidenceLink ties evidence on an entity back to its source signal and chunk
// for provenance queries. Stored in the engine_evidence_links table.
type EvidenceLink struct {
	ID        uuid.UUID  `json:"id"`
	ProjectID uuid.UUID  `json:"project_id"`
	EntityID  uuid.UUID  `json:"entity_id"`
	SignalID  *uuid.UUID `json:"signal_id,omitempty"`
	ChunkID   string     `json:"chunk_id"`
	Quote     string     `json:"quote"`
	CreatedAt time.Time  `json:"created_at"`
}

// Escalation is a persisted review-queue entry for a patch that could not be
// auto-applied. Stored in the engine_escalations table.
type Escalation struct {
	ID         uuid.UUID      `json:"id"`
	ProjectID  uuid.UUID      `json:"project_id"`
	SignalID   *uuid.UUID     `json:"signal_id,omitempty"`
	Patch      *EntityPatch   `json:"patch"`
	Confidence ConfidenceTier `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
	Status     string         `json:"status"`
	ReviewedBy *string        `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Escalation status constants.
const (
	EscalationStatusPending  = "pending"
	EscalationStatusApproved = "approved"
	EscalationStatusRejected = "rejected"
)

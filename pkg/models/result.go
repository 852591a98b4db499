package models

import (
	"github.com/google/uuid"
)

// AppliedPatch summarizes one successfully applied patch.
type AppliedPatch struct {
	EntityID   uuid.UUID      `json:"entity_id"`
	EntityType EntityType     `json:"entity_type"`
	Operation  PatchOperation `json:"operation"`
	Name       string         `json:"name"`
	Summary    string         `json:"summary"`
}

// SkippedPatch records a patch that was not applied, with the reason.
// Skips are defined outcomes (hierarchy guard, store error), never silent.
type SkippedPatch struct {
	Patch  *EntityPatch `json:"patch"`
	Reason string       `json:"reason"`
}

// EscalatedPatch records a patch routed to human review instead of
// auto-application.
type EscalatedPatch struct {
	Patch      *EntityPatch   `json:"patch"`
	Confidence ConfidenceTier `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
}

// PatchApplicationResult is the aggregate outcome of one application run.
type PatchApplicationResult struct {
	CreatedCount int `json:"created_count"`
	MergedCount  int `json:"merged_count"`
	UpdatedCount int `json:"updated_count"`
	StaledCount  int `json:"staled_count"`
	DeletedCount int `json:"deleted_count"`

	Applied   []AppliedPatch   `json:"applied"`
	Skipped   []SkippedPatch   `json:"skipped"`
	Escalated []EscalatedPatch `json:"escalated"`

	EntityIDsModified []uuid.UUID `json:"entity_ids_modified"`
}

// TotalApplied returns the number of patches that mutated state.
func (r *PatchApplicationResult) TotalApplied() int {
	return r.CreatedCount + r.MergedCount + r.UpdatedCount + r.StaledCount + r.DeletedCount
}

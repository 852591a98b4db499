// Package models contains domain types for scopeline-engine.
package models

import (
	"fmt"

	"github.com/google/uuid"
)

// PatchOperation represents the kind of change a patch proposes.
type PatchOperation string

const (
	OpCreate PatchOperation = "create"
	OpMerge  PatchOperation = "merge"
	OpUpdate PatchOperation = "update"
	OpStale  PatchOperation = "stale"
	OpDelete PatchOperation = "delete"
)

// IsValid returns true if the operation is one of the known operations.
func (o PatchOperation) IsValid() bool {
	switch o {
	case OpCreate, OpMerge, OpUpdate, OpStale, OpDelete:
		return true
	default:
		return false
	}
}

// String returns the string representation of the operation.
func (o PatchOperation) String() string {
	return string(o)
}

// RequiresTarget reports whether the operation must carry a target entity id.
// Only create proposes a brand-new entity; every other operation mutates one
// that already exists.
func (o PatchOperation) RequiresTarget() bool {
	return o != OpCreate
}

// EntityType identifies which kind of requirements-model object a patch touches.
type EntityType string

const (
	TypeFeature        EntityType = "feature"
	TypePersona        EntityType = "persona"
	TypeStakeholder    EntityType = "stakeholder"
	TypeWorkflow       EntityType = "workflow"
	TypeWorkflowStep   EntityType = "workflow_step"
	TypeDataEntity     EntityType = "data_entity"
	TypeBusinessDriver EntityType = "business_driver"
	TypeConstraint     EntityType = "constraint"
	TypeCompetitor     EntityType = "competitor"
	// TypeVision resolves to the owning project's singleton vision field,
	// not a row in the entity table.
	TypeVision EntityType = "vision"
)

// AllEntityTypes lists every entity type, in display order.
var AllEntityTypes = []EntityType{
	TypeFeature, TypePersona, TypeStakeholder, TypeWorkflow, TypeWorkflowStep,
	TypeDataEntity, TypeBusinessDriver, TypeConstraint, TypeCompetitor, TypeVision,
}

// IsValid returns true if the entity type is one of the known types.
func (t EntityType) IsValid() bool {
	switch t {
	case TypeFeature, TypePersona, TypeStakeholder, TypeWorkflow, TypeWorkflowStep,
		TypeDataEntity, TypeBusinessDriver, TypeConstraint, TypeCompetitor, TypeVision:
		return true
	default:
		return false
	}
}

// String returns the string representation of the entity type.
func (t EntityType) String() string {
	return string(t)
}

// ConfidenceTier represents the extraction system's belief in one patch.
// Ordered: conflict < low < medium < high < very_high.
type ConfidenceTier string

const (
	ConfidenceConflict ConfidenceTier = "conflict"
	ConfidenceLow      ConfidenceTier = "low"
	ConfidenceMedium   ConfidenceTier = "medium"
	ConfidenceHigh     ConfidenceTier = "high"
	ConfidenceVeryHigh ConfidenceTier = "very_high"
)

// confidenceRanks orders tiers for comparison. Conflict ranks below every
// evidence-bearing tier.
var confidenceRanks = map[ConfidenceTier]int{
	ConfidenceConflict: 0,
	ConfidenceLow:      1,
	ConfidenceMedium:   2,
	ConfidenceHigh:     3,
	ConfidenceVeryHigh: 4,
}

// IsValid returns true if the tier is one of the known tiers.
func (c ConfidenceTier) IsValid() bool {
	_, ok := confidenceRanks[c]
	return ok
}

// String returns the string representation of the tier.
func (c ConfidenceTier) String() string {
	return string(c)
}

// Rank returns the ordinal position of the tier (conflict lowest).
func (c ConfidenceTier) Rank() int {
	return confidenceRanks[c]
}

// Bump raises the tier by exactly one step along low -> medium -> high ->
// very_high. Bumping very_high is a no-op. A conflict tier is never produced
// or escaped by bumping: conflict bumps to low, the floor of the ladder.
func (c ConfidenceTier) Bump() ConfidenceTier {
	switch c {
	case ConfidenceConflict:
		return ConfidenceLow
	case ConfidenceLow:
		return ConfidenceMedium
	case ConfidenceMedium:
		return ConfidenceHigh
	case ConfidenceHigh, ConfidenceVeryHigh:
		return ConfidenceVeryHigh
	default:
		return c
	}
}

// SourceAuthority represents where the evidence behind a patch came from.
type SourceAuthority string

const (
	AuthorityClient     SourceAuthority = "client"
	AuthorityConsultant SourceAuthority = "consultant"
	AuthorityResearch   SourceAuthority = "research"
	AuthorityPrototype  SourceAuthority = "prototype"
)

// IsValid returns true if the authority is one of the known authorities.
func (a SourceAuthority) IsValid() bool {
	switch a {
	case AuthorityClient, AuthorityConsultant, AuthorityResearch, AuthorityPrototype:
		return true
	default:
		return false
	}
}

// String returns the string representation of the authority.
func (a SourceAuthority) String() string {
	return string(a)
}

// ImpliedStatus maps an authority to the confirmation status it can vouch for.
// Client evidence confirms for the client, consultant evidence for the
// consultant; research and prototype evidence is AI-grade.
func (a SourceAuthority) ImpliedStatus() ConfirmationStatus {
	switch a {
	case AuthorityClient:
		return StatusConfirmedClient
	case AuthorityConsultant:
		return StatusConfirmedConsultant
	default:
		return StatusAIGenerated
	}
}

// EvidenceRef ties a patch (or an entity field value) back to source text.
type EvidenceRef struct {
	ChunkID       string `json:"chunk_id"`
	Quote         string `json:"quote"`
	PageOrSection string `json:"page_or_section,omitempty"`
}

// BeliefImpactKind classifies how new evidence relates to a standing belief.
type BeliefImpactKind string

const (
	ImpactSupports    BeliefImpactKind = "supports"
	ImpactContradicts BeliefImpactKind = "contradicts"
	ImpactRefines     BeliefImpactKind = "refines"
)

// IsValid returns true if the impact kind is known.
func (k BeliefImpactKind) IsValid() bool {
	switch k {
	case ImpactSupports, ImpactContradicts, ImpactRefines:
		return true
	default:
		return false
	}
}

// BeliefImpact records how one patch bears on one standing belief.
// Populated by the scorer's LLM pass.
type BeliefImpact struct {
	BeliefID      *uuid.UUID       `json:"belief_id,omitempty"`
	BeliefSummary string           `json:"belief_summary"`
	Impact        BeliefImpactKind `json:"impact"`
	NewEvidence   string           `json:"new_evidence"`
}

// EntityPatch is a proposed, not-yet-committed change to one entity.
// It is created by the extractor, may be rewritten by the deduplicator
// (operation/target) and the scorer (confidence/belief impacts), is consumed
// exactly once by the applicator, and is never persisted as a standalone row.
type EntityPatch struct {
	Operation           PatchOperation  `json:"operation"`
	EntityType          EntityType      `json:"entity_type"`
	Payload             map[string]any  `json:"payload"`
	Evidence            []EvidenceRef   `json:"evidence"`
	Confidence          ConfidenceTier  `json:"confidence"`
	ConfidenceReasoning string          `json:"confidence_reasoning"`
	SourceAuthority     SourceAuthority `json:"source_authority"`
	MentionCount        int             `json:"mention_count"`
	BeliefImpacts       []BeliefImpact  `json:"belief_impacts,omitempty"`
	AnswersQuestionID   *uuid.UUID      `json:"answers_question_id,omitempty"`
	TargetEntityID      *uuid.UUID      `json:"target_entity_id,omitempty"`
}

// DisplayName returns the best available human-readable name from the payload,
// checking name, label, and title fields in that priority order.
func (p *EntityPatch) DisplayName() string {
	for _, key := range []string{"name", "label", "title"} {
		if v, ok := p.Payload[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Summary returns a short human-readable description of the patch for
// logging, escalation records, and revision summaries.
func (p *EntityPatch) Summary() string {
	name := p.DisplayName()
	if name == "" && p.TargetEntityID != nil {
		name = p.TargetEntityID.String()
	}
	if name == "" {
		name = "(unnamed)"
	}
	return fmt.Sprintf("%s %s %q", p.Operation, p.EntityType, name)
}

// Validate checks the structural invariants of a patch: known enums and the
// create-vs-target rule. Payload contents are entity-type-specific and opaque.
func (p *EntityPatch) Validate() error {
	if !p.Operation.IsValid() {
		return fmt.Errorf("unknown operation %q", p.Operation)
	}
	if !p.EntityType.IsValid() {
		return fmt.Errorf("unknown entity type %q", p.EntityType)
	}
	if !p.Confidence.IsValid() {
		return fmt.Errorf("unknown confidence tier %q", p.Confidence)
	}
	if !p.SourceAuthority.IsValid() {
		return fmt.Errorf("unknown source authority %q", p.SourceAuthority)
	}
	if p.Operation == OpCreate && p.TargetEntityID != nil {
		return fmt.Errorf("create patch must not carry a target entity id")
	}
	// Vision is a singleton field on the project record, so vision patches
	// never carry an entity-table target.
	if p.Operation.RequiresTarget() && p.TargetEntityID == nil && p.EntityType != TypeVision {
		return fmt.Errorf("%s patch requires a target entity id", p.Operation)
	}
	if p.MentionCount < 1 {
		return fmt.Errorf("mention count must be >= 1, got %d", p.MentionCount)
	}
	return nil
}

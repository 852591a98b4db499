package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfidenceTier_Bump(t *testing.T) {
	tests := []struct {
		in   ConfidenceTier
		want ConfidenceTier
	}{
		{ConfidenceLow, ConfidenceMedium},
		{ConfidenceMedium, ConfidenceHigh},
		{ConfidenceHigh, ConfidenceVeryHigh},
		{ConfidenceVeryHigh, ConfidenceVeryHigh}, // ceiling
		{ConfidenceConflict, ConfidenceLow},      // bump never stays at conflict
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Bump(), "bump(%s)", tt.in)
	}
}

func TestConfidenceTier_Ordering(t *testing.T) {
	assert.Less(t, ConfidenceConflict.Rank(), ConfidenceLow.Rank())
	assert.Less(t, ConfidenceLow.Rank(), ConfidenceMedium.Rank())
	assert.Less(t, ConfidenceMedium.Rank(), ConfidenceHigh.Rank())
	assert.Less(t, ConfidenceHigh.Rank(), ConfidenceVeryHigh.Rank())
}

func TestConfirmationStatus_Ordering(t *testing.T) {
	assert.True(t, StatusConfirmedClient.AtLeast(StatusConfirmedConsultant))
	assert.True(t, StatusConfirmedConsultant.AtLeast(StatusConfirmedConsultant))
	assert.False(t, StatusAIGenerated.AtLeast(StatusNeedsClient))
}

func TestSourceAuthority_ImpliedStatus(t *testing.T) {
	assert.Equal(t, StatusConfirmedClient, AuthorityClient.ImpliedStatus())
	assert.Equal(t, StatusConfirmedConsultant, AuthorityConsultant.ImpliedStatus())
	assert.Equal(t, StatusAIGenerated, AuthorityResearch.ImpliedStatus())
	assert.Equal(t, StatusAIGenerated, AuthorityPrototype.ImpliedStatus())
}

func validCreatePatch() *EntityPatch {
	return &EntityPatch{
		Operation:       OpCreate,
		EntityType:      TypeFeature,
		Payload:         map[string]any{"name": "SSO"},
		Confidence:      ConfidenceMedium,
		SourceAuthority: AuthorityClient,
		MentionCount:    1,
	}
}

func TestEntityPatch_Validate(t *testing.T) {
	require.NoError(t, validCreatePatch().Validate())

	p := validCreatePatch()
	p.Operation = "upsert"
	assert.Error(t, p.Validate())

	p = validCreatePatch()
	p.EntityType = "epic"
	assert.Error(t, p.Validate())

	p = validCreatePatch()
	p.Confidence = "certain"
	assert.Error(t, p.Validate())

	p = validCreatePatch()
	id := uuid.New()
	p.TargetEntityID = &id
	assert.Error(t, p.Validate(), "create must not carry a target")

	p = validCreatePatch()
	p.Operation = OpUpdate
	assert.Error(t, p.Validate(), "update requires a target")
	p.TargetEntityID = &id
	assert.NoError(t, p.Validate())

	p = validCreatePatch()
	p.MentionCount = 0
	assert.Error(t, p.Validate())
}

func TestEntityPatch_Validate_VisionUpdateWithoutTarget(t *testing.T) {
	p := validCreatePatch()
	p.Operation = OpUpdate
	p.EntityType = TypeVision
	p.Payload = map[string]any{"statement": "Be the system of record for discovery."}
	assert.NoError(t, p.Validate())
}

func TestEntityPatch_DisplayName(t *testing.T) {
	p := &EntityPatch{Payload: map[string]any{"label": "Checkout flow"}}
	assert.Equal(t, "Checkout flow", p.DisplayName())

	p = &EntityPatch{Payload: map[string]any{"title": "Q3 goals", "name": "Roadmap"}}
	assert.Equal(t, "Roadmap", p.DisplayName(), "name takes priority over title")

	p = &EntityPatch{Payload: map[string]any{"description": "no name here"}}
	assert.Equal(t, "", p.DisplayName())
}

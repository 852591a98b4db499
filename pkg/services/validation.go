package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scopeline-ai/scopeline-engine/pkg/jsonutil"
	"github.com/scopeline-ai/scopeline-engine/pkg/llm"
	"github.com/scopeline-ai/scopeline-engine/pkg/models"
)

// rawPatch mirrors one loosely-typed patch object from LLM output. Every
// field is raw so coercion can repair numbers-as-strings and similar drift.
type rawPatch struct {
	Operation           json.RawMessage `json:"operation"`
	EntityType          json.RawMessage `json:"entity_type"`
	Payload             map[string]any  `json:"payload"`
	Evidence            []rawEvidence   `json:"evidence"`
	Confidence          json.RawMessage `json:"confidence"`
	ConfidenceReasoning json.RawMessage `json:"confidence_reasoning"`
	MentionCount        json.RawMessage `json:"mention_count"`
	TargetEntityID      json.RawMessage `json:"target_entity_id"`
}

type rawEvidence struct {
	ChunkID       json.RawMessage `json:"chunk_id"`
	Quote         json.RawMessage `json:"quote"`
	PageOrSection json.RawMessage `json:"page_or_section"`
}

// patchListWrapper handles responses that wrap the array in an object.
type patchListWrapper struct {
	Patches []json.RawMessage `json:"patches"`
}

// ParsePatches turns raw LLM output into well-formed patches. Items that fail
// validation are dropped and logged individually; a completely unparseable
// response yields an empty list and an error. Evidence chunk-id placeholders
// ("...", empty) are repaired to fallbackChunkID rather than discarded.
func ParsePatches(content string, fallbackChunkID string, authority models.SourceAuthority, logger *zap.Logger) ([]*models.EntityPatch, error) {
	jsonStr, err := llm.ExtractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("no JSON found in extraction response: %w", err)
	}

	items, err := splitPatchItems(jsonStr)
	if err != nil {
		return nil, err
	}

	patches := make([]*models.EntityPatch, 0, len(items))
	for i, item := range items {
		patch, err := parsePatchItem(item, fallbackChunkID, authority)
		if err != nil {
			logger.Warn("dropping malformed patch",
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		patches = append(patches, patch)
	}

	return patches, nil
}

func splitPatchItems(jsonStr string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &items); err == nil {
		return items, nil
	}

	var wrapper patchListWrapper
	if err := json.Unmarshal([]byte(jsonStr), &wrapper); err == nil && wrapper.Patches != nil {
		return wrapper.Patches, nil
	}

	// A single bare object is accepted as a one-item batch.
	trimmed := strings.TrimSpace(jsonStr)
	if strings.HasPrefix(trimmed, "{") {
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	}

	return nil, fmt.Errorf("extraction response is neither a patch array nor a patches wrapper")
}

func parsePatchItem(item json.RawMessage, fallbackChunkID string, authority models.SourceAuthority) (*models.EntityPatch, error) {
	var raw rawPatch
	if err := json.Unmarshal(item, &raw); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}

	patch := &models.EntityPatch{
		Operation:           models.PatchOperation(jsonutil.FlexibleStringValue(raw.Operation)),
		EntityType:          models.EntityType(jsonutil.FlexibleStringValue(raw.EntityType)),
		Payload:             raw.Payload,
		Confidence:          models.ConfidenceTier(jsonutil.FlexibleStringValue(raw.Confidence)),
		ConfidenceReasoning: jsonutil.FlexibleStringValue(raw.ConfidenceReasoning),
		SourceAuthority:     authority,
		MentionCount:        jsonutil.FlexibleIntValue(raw.MentionCount, 1),
	}

	if patch.Payload == nil {
		patch.Payload = map[string]any{}
	}
	if patch.Confidence == "" {
		patch.Confidence = models.ConfidenceLow
	}
	if patch.MentionCount < 1 {
		patch.MentionCount = 1
	}

	if idStr := jsonutil.FlexibleStringValue(raw.TargetEntityID); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid target_entity_id %q: %w", idStr, err)
		}
		patch.TargetEntityID = &id
	}

	for _, ev := range raw.Evidence {
		ref := models.EvidenceRef{
			ChunkID:       repairChunkID(jsonutil.FlexibleStringValue(ev.ChunkID), fallbackChunkID),
			Quote:         jsonutil.FlexibleStringValue(ev.Quote),
			PageOrSection: jsonutil.FlexibleStringValue(ev.PageOrSection),
		}
		if ref.Quote == "" {
			continue
		}
		patch.Evidence = append(patch.Evidence, ref)
	}

	if err := patch.Validate(); err != nil {
		return nil, err
	}

	return patch, nil
}

// repairChunkID substitutes the real chunk id for placeholder values the
// model sometimes echoes back from the prompt's format example.
func repairChunkID(chunkID, fallback string) string {
	trimmed := strings.TrimSpace(chunkID)
	if trimmed == "" || trimmed == "..." || strings.HasPrefix(trimmed, "<") {
		return fallback
	}
	return trimmed
}

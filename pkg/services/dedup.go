package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scopeline-ai/scopeline-engine/pkg/llm"
	"github.com/scopeline-ai/scopeline-engine/pkg/models"
	"github.com/scopeline-ai/scopeline-engine/pkg/repositories"
)

// Deduplicator converts create patches that actually describe existing
// entities into merge patches, via 3-tier matching (exact name, fuzzy
// token-set, embedding cosine). Non-create operations pass through untouched.
type Deduplicator struct {
	entityRepo repositories.EntityRepository
	embedder   llm.LLMClient
	cfg        DedupConfig
	logger     *zap.Logger
}

// NewDeduplicator creates a new Deduplicator. The embedder may be nil, which
// disables the embedding tier entirely (ambiguous fuzzy scores then pass
// through as create).
func NewDeduplicator(entityRepo repositories.EntityRepository, embedder llm.LLMClient, cfg DedupConfig, logger *zap.Logger) *Deduplicator {
	return &Deduplicator{
		entityRepo: entityRepo,
		embedder:   embedder,
		cfg:        cfg,
		logger:     logger.Named("deduplicator"),
	}
}

// Deduplicate rewrites create patches in place where they match an existing
// entity. The returned slice is the same set of patches.
func (d *Deduplicator) Deduplicate(ctx context.Context, projectID uuid.UUID, patches []*models.EntityPatch) []*models.EntityPatch {
	candidateCache := map[models.EntityType][]*models.Entity{}

	for _, patch := range patches {
		if patch.Operation != models.OpCreate {
			continue
		}
		// Vision is a project-record singleton; there is nothing to match
		// against in the entity table.
		if patch.EntityType == models.TypeVision {
			continue
		}

		candidates, ok := candidateCache[patch.EntityType]
		if !ok {
			loaded, err := d.entityRepo.GetByProjectAndType(ctx, projectID, patch.EntityType)
			if err != nil {
				d.logger.Warn("candidate lookup failed, passing patch through",
					zap.String("entity_type", patch.EntityType.String()),
					zap.Error(err))
				candidateCache[patch.EntityType] = nil
				continue
			}
			candidates = loaded
			candidateCache[patch.EntityType] = candidates
		}
		if len(candidates) == 0 {
			continue
		}

		decision := Match(patch, candidates, d.cfg)
		switch decision.Action {
		case MatchExact, MatchFuzzy:
			d.convertToMerge(patch, decision.Candidate, string(decision.Action), decision.Score)
		case MatchAmbiguous:
			score, ok := d.embeddingScore(ctx, patch, decision.Candidate)
			threshold := d.cfg.ThresholdsFor(patch.EntityType).EmbeddingMerge
			if ok && score >= threshold {
				d.convertToMerge(patch, decision.Candidate, "embedding", score)
			}
		}
	}

	return patches
}

// convertToMerge rewrites a create patch into a merge against target,
// preserving every other field and appending a machine-readable note with
// the strategy and score to the confidence reasoning.
func (d *Deduplicator) convertToMerge(patch *models.EntityPatch, target *models.Entity, strategy string, score float64) {
	patch.Operation = models.OpMerge
	id := target.ID
	patch.TargetEntityID = &id

	note := fmt.Sprintf("dedup:%s:%.2f", strategy, score)
	if patch.ConfidenceReasoning == "" {
		patch.ConfidenceReasoning = note
	} else {
		patch.ConfidenceReasoning = patch.ConfidenceReasoning + "; " + note
	}

	d.logger.Debug("converted create to merge",
		zap.String("entity_type", patch.EntityType.String()),
		zap.String("name", patch.DisplayName()),
		zap.String("target", target.ID.String()),
		zap.String("strategy", strategy),
		zap.Float64("score", score))
}

// embeddingScore runs the tier-3 check: embed the patch's text representation
// and the candidate's (or use its stored embedding) and return the cosine
// similarity. Any failure degrades to "no merge" rather than erroring.
func (d *Deduplicator) embeddingScore(ctx context.Context, patch *models.EntityPatch, candidate *models.Entity) (float64, bool) {
	if d.embedder == nil {
		return 0, false
	}

	patchVec, err := d.embedder.CreateEmbedding(ctx, embeddingTextForPatch(patch), d.embedder.GetModel())
	if err != nil || len(patchVec) == 0 {
		d.logger.Debug("patch embedding failed, skipping embedding tier", zap.Error(err))
		return 0, false
	}

	candidateVec := candidate.Embedding
	if len(candidateVec) == 0 {
		candidateVec, err = d.embedder.CreateEmbedding(ctx, embeddingTextForEntity(candidate), d.embedder.GetModel())
		if err != nil || len(candidateVec) == 0 {
			d.logger.Debug("candidate embedding failed, skipping embedding tier",
				zap.String("candidate", candidate.ID.String()),
				zap.Error(err))
			return 0, false
		}
	}

	score, ok := cosineSimilarity(patchVec, candidateVec)
	return score, ok
}

// embeddingTextForPatch concatenates the name with the remaining string
// payload fields, sorted by key for determinism.
func embeddingTextForPatch(patch *models.EntityPatch) string {
	parts := []string{patch.DisplayName()}

	keys := make([]string, 0, len(patch.Payload))
	for k := range patch.Payload {
		if k == "name" || k == "label" || k == "title" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if s, ok := patch.Payload[k].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, " | ")
}

func embeddingTextForEntity(entity *models.Entity) string {
	parts := []string{entity.Name}

	keys := make([]string, 0, len(entity.Fields))
	for k := range entity.Fields {
		if k == "name" || k == "label" || k == "title" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if s, ok := entity.Fields[k].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, " | ")
}

// cosineSimilarity returns the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors report not-ok.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

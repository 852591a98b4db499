package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scopeline-ai/scopeline-engine/pkg/llm"
	"github.com/scopeline-ai/scopeline-engine/pkg/logging"
	"github.com/scopeline-ai/scopeline-engine/pkg/models"
	"github.com/scopeline-ai/scopeline-engine/pkg/prompts"
)

const extractionTemperature = 0.2

// Extractor produces entity patches from signal chunks. Chunks are extracted
// independently with bounded fan-out; raw outputs are merged by a
// deterministic cross-chunk step before dedup. A failed chunk yields zero
// patches and the run continues, except when it was the only chunk.
type Extractor struct {
	client              llm.LLMClient
	pool                *llm.WorkerPool
	maxEvidencePerPatch int
	logger              *zap.Logger
}

// NewExtractor creates a new Extractor.
func NewExtractor(client llm.LLMClient, pool *llm.WorkerPool, maxEvidencePerPatch int, logger *zap.Logger) *Extractor {
	if maxEvidencePerPatch <= 0 {
		maxEvidencePerPatch = 12
	}
	return &Extractor{
		client:              client,
		pool:                pool,
		maxEvidencePerPatch: maxEvidencePerPatch,
		logger:              logger.Named("extractor"),
	}
}

// ExtractPatches fans extraction out across chunks and merges the results.
// Returns an error only for total extraction failure on a single-chunk
// signal; multi-chunk runs degrade to whatever chunks succeeded.
func (e *Extractor) ExtractPatches(ctx context.Context, chunks []models.SignalChunk, extractionCtx prompts.ExtractionContext, authority models.SourceAuthority) ([]*models.EntityPatch, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	items := make([]llm.WorkItem[[]*models.EntityPatch], 0, len(chunks))
	for _, chunk := range chunks {
		chunk := chunk
		items = append(items, llm.WorkItem[[]*models.EntityPatch]{
			ID: chunk.ID,
			Execute: func(ctx context.Context) ([]*models.EntityPatch, error) {
				return e.extractChunk(ctx, chunk, extractionCtx, authority)
			},
		})
	}

	results := llm.Process(ctx, e.pool, items)

	var (
		patches  []*models.EntityPatch
		failures int
		lastErr  error
	)
	for _, result := range results {
		if result.Err != nil {
			failures++
			lastErr = result.Err
			e.logger.Warn("chunk extraction failed",
				zap.String("chunk_id", result.ID),
				zap.String("error", logging.SanitizeError(result.Err)))
			continue
		}
		patches = append(patches, result.Result...)
	}

	if len(chunks) == 1 && failures == 1 {
		return nil, fmt.Errorf("extraction failed for only chunk: %w", lastErr)
	}

	return e.mergeAcrossChunks(patches), nil
}

func (e *Extractor) extractChunk(ctx context.Context, chunk models.SignalChunk, extractionCtx prompts.ExtractionContext, authority models.SourceAuthority) ([]*models.EntityPatch, error) {
	prompt := prompts.BuildExtractionPrompt(chunk.ID, chunk.Text, extractionCtx, authority)

	resp, err := e.client.GenerateResponse(ctx, prompt, prompts.BuildExtractionSystemMessage(), extractionTemperature)
	if err != nil {
		return nil, err
	}

	patches, err := ParsePatches(resp.Content, chunk.ID, authority, e.logger)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("chunk extracted",
		zap.String("chunk_id", chunk.ID),
		zap.Int("patches", len(patches)),
		zap.Int("total_tokens", resp.TotalTokens))

	return patches, nil
}

// mergeAcrossChunks fuses create patches from different chunks that propose
// the same normalized name and type into one patch: mention counts summed,
// evidence concatenated and capped. Everything else passes through.
func (e *Extractor) mergeAcrossChunks(patches []*models.EntityPatch) []*models.EntityPatch {
	type mergeKey struct {
		entityType models.EntityType
		name       string
	}

	merged := make([]*models.EntityPatch, 0, len(patches))
	byKey := map[mergeKey]*models.EntityPatch{}

	for _, patch := range patches {
		name := NormalizeName(patch.DisplayName())
		if patch.Operation != models.OpCreate || name == "" {
			merged = append(merged, patch)
			continue
		}

		key := mergeKey{entityType: patch.EntityType, name: name}
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = patch
			merged = append(merged, patch)
			continue
		}

		existing.MentionCount += patch.MentionCount
		existing.Evidence = append(existing.Evidence, patch.Evidence...)
		// Later chunks may carry payload fields the first mention lacked.
		for k, v := range patch.Payload {
			if _, present := existing.Payload[k]; !present {
				existing.Payload[k] = v
			}
		}
	}

	// Cap applies to every patch, merged or not: one verbose chunk can emit
	// more evidence than the limit on its own.
	for _, patch := range merged {
		if len(patch.Evidence) > e.maxEvidencePerPatch {
			patch.Evidence = patch.Evidence[:e.maxEvidencePerPatch]
		}
	}

	return merged
}

package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scopeline-ai/scopeline-engine/pkg/llm"
	"github.com/scopeline-ai/scopeline-engine/pkg/models"
)

func TestDeduplicate_ExactNameBecomesMerge(t *testing.T) {
	projectID := uuid.New()
	repo := newMockEntityRepo()
	existing := repo.add(&models.Entity{
		ProjectID:  projectID,
		EntityType: models.TypeFeature,
		Name:       "Realtime Sync",
	})

	patch := createPatch(models.TypeFeature, "realtime sync")
	patch.ConfidenceReasoning = "mentioned twice"

	d := NewDeduplicator(repo, nil, DefaultDedupConfig(), zap.NewNop())
	out := d.Deduplicate(context.Background(), projectID, []*models.EntityPatch{patch})

	require.Len(t, out, 1)
	assert.Equal(t, models.OpMerge, out[0].Operation)
	require.NotNil(t, out[0].TargetEntityID)
	assert.Equal(t, existing.ID, *out[0].TargetEntityID)
	assert.True(t, strings.HasSuffix(out[0].ConfidenceReasoning, "dedup:exact_name:1.00"))
	assert.True(t, strings.HasPrefix(out[0].ConfidenceReasoning, "mentioned twice; "))
}

func TestDeduplicate_EmbeddingTierMerges(t *testing.T) {
	projectID := uuid.New()
	repo := newMockEntityRepo()
	existing := repo.add(&models.Entity{
		ProjectID:  projectID,
		EntityType: models.TypeFeature,
		Name:       "payment gateway integration layer",
		Embedding:  []float32{1, 0, 0},
	})

	embedder := llm.NewMockLLMClient()
	embedder.CreateEmbeddingFunc = func(ctx context.Context, input string, model string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}

	patch := createPatch(models.TypeFeature, "payment gateway")

	d := NewDeduplicator(repo, embedder, DefaultDedupConfig(), zap.NewNop())
	out := d.Deduplicate(context.Background(), projectID, []*models.EntityPatch{patch})

	require.Len(t, out, 1)
	assert.Equal(t, models.OpMerge, out[0].Operation)
	require.NotNil(t, out[0].TargetEntityID)
	assert.Equal(t, existing.ID, *out[0].TargetEntityID)
	assert.Contains(t, out[0].ConfidenceReasoning, "dedup:embedding:")
	// The candidate had a stored embedding, so only the patch was embedded.
	assert.Equal(t, 1, embedder.CreateEmbeddingCalls)
}

func TestDeduplicate_EmbeddingBelowThresholdStaysCreate(t *testing.T) {
	projectID := uuid.New()
	repo := newMockEntityRepo()
	repo.add(&models.Entity{
		ProjectID:  projectID,
		EntityType: models.TypeFeature,
		Name:       "payment gateway integration layer",
		Embedding:  []float32{0, 1, 0},
	})

	embedder := llm.NewMockLLMClient()
	embedder.CreateEmbeddingFunc = func(ctx context.Context, input string, model string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}

	patch := createPatch(models.TypeFeature, "payment gateway")

	d := NewDeduplicator(repo, embedder, DefaultDedupConfig(), zap.NewNop())
	out := d.Deduplicate(context.Background(), projectID, []*models.EntityPatch{patch})

	assert.Equal(t, models.OpCreate, out[0].Operation)
	assert.Nil(t, out[0].TargetEntityID)
}

func TestDeduplicate_EmbeddingFailureDegradesToCreate(t *testing.T) {
	projectID := uuid.New()
	repo := newMockEntityRepo()
	repo.add(&models.Entity{
		ProjectID:  projectID,
		EntityType: models.TypeFeature,
		Name:       "payment gateway integration layer",
	})

	embedder := llm.NewMockLLMClient()
	embedder.CreateEmbeddingFunc = func(ctx context.Context, input string, model string) ([]float32, error) {
		return nil, errors.New("embedding service unavailable")
	}

	patch := createPatch(models.TypeFeature, "payment gateway")

	d := NewDeduplicator(repo, embedder, DefaultDedupConfig(), zap.NewNop())
	out := d.Deduplicate(context.Background(), projectID, []*models.EntityPatch{patch})

	assert.Equal(t, models.OpCreate, out[0].Operation)
}

func TestDeduplicate_NilEmbedderDisablesTierThree(t *testing.T) {
	projectID := uuid.New()
	repo := newMockEntityRepo()
	repo.add(&models.Entity{
		ProjectID:  projectID,
		EntityType: models.TypeFeature,
		Name:       "payment gateway integration layer",
	})

	patch := createPatch(models.TypeFeature, "payment gateway")

	d := NewDeduplicator(repo, nil, DefaultDedupConfig(), zap.NewNop())
	out := d.Deduplicate(context.Background(), projectID, []*models.EntityPatch{patch})

	assert.Equal(t, models.OpCreate, out[0].Operation)
}

func TestDeduplicate_LookupFailurePassesPatchThrough(t *testing.T) {
	projectID := uuid.New()
	repo := newMockEntityRepo()
	repo.byTypeErr = errors.New("connection reset")

	patch := createPatch(models.TypeFeature, "realtime sync")

	d := NewDeduplicator(repo, nil, DefaultDedupConfig(), zap.NewNop())
	out := d.Deduplicate(context.Background(), projectID, []*models.EntityPatch{patch})

	require.Len(t, out, 1)
	assert.Equal(t, models.OpCreate, out[0].Operation)
}

func TestDeduplicate_SkipsNonCreateAndVision(t *testing.T) {
	projectID := uuid.New()
	repo := newMockEntityRepo()
	repo.byTypeErr = errors.New("must not be called")

	target := uuid.New()
	update := &models.EntityPatch{
		Operation:       models.OpUpdate,
		EntityType:      models.TypeFeature,
		Payload:         map[string]any{"name": "renamed"},
		Confidence:      models.ConfidenceHigh,
		SourceAuthority: models.AuthorityClient,
		MentionCount:    1,
		TargetEntityID:  &target,
	}
	vision := &models.EntityPatch{
		Operation:       models.OpCreate,
		EntityType:      models.TypeVision,
		Payload:         map[string]any{"vision": "one platform for all field crews"},
		Confidence:      models.ConfidenceHigh,
		SourceAuthority: models.AuthorityClient,
		MentionCount:    1,
	}

	d := NewDeduplicator(repo, nil, DefaultDedupConfig(), zap.NewNop())
	out := d.Deduplicate(context.Background(), projectID, []*models.EntityPatch{update, vision})

	assert.Equal(t, models.OpUpdate, out[0].Operation)
	assert.Equal(t, models.OpCreate, out[1].Operation)
	assert.Nil(t, out[1].TargetEntityID)
}

func TestCosineSimilarity(t *testing.T) {
	score, ok := cosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-9)

	score, ok = cosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.True(t, ok)
	assert.InDelta(t, 0.0, score, 1e-9)

	_, ok = cosineSimilarity([]float32{1, 0}, []float32{1})
	assert.False(t, ok)

	_, ok = cosineSimilarity([]float32{0, 0}, []float32{1, 0})
	assert.False(t, ok)
}

func TestEmbeddingTextForPatch_DeterministicKeyOrder(t *testing.T) {
	patch := &models.EntityPatch{
		Payload: map[string]any{
			"name":        "realtime sync",
			"description": "syncs data in real time",
			"area":        "mobile",
			"priority":    2,
		},
	}
	assert.Equal(t, "realtime sync | mobile | syncs data in real time", embeddingTextForPatch(patch))
}

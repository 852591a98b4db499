package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scopeline-ai/scopeline-engine/pkg/llm"
	"github.com/scopeline-ai/scopeline-engine/pkg/models"
	"github.com/scopeline-ai/scopeline-engine/pkg/prompts"
)

func extractionPool(t *testing.T) *llm.WorkerPool {
	t.Helper()
	return llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: 2}, zap.NewNop())
}

func patchJSON(name, chunkID string, mentions int) string {
	return `{"operation": "create", "entity_type": "feature", "payload": {"name": "` + name + `"},` +
		` "evidence": [{"chunk_id": "` + chunkID + `", "quote": "quote from ` + chunkID + `"}],` +
		` "confidence": "medium", "mention_count": ` + strconv.Itoa(mentions) + `}`
}

func TestExtractPatches_MergesSameEntityAcrossChunks(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		chunkID := "chunk-1"
		if strings.Contains(prompt, `"chunk-2"`) {
			chunkID = "chunk-2"
		}
		return &llm.GenerateResponseResult{
			Content: "[" + patchJSON("Realtime Sync", chunkID, 2) + "]",
		}, nil
	}

	e := NewExtractor(client, extractionPool(t), 12, zap.NewNop())
	chunks := []models.SignalChunk{
		{ID: "chunk-1", Text: "we need realtime sync"},
		{ID: "chunk-2", Text: "realtime sync again"},
	}

	patches, err := e.ExtractPatches(context.Background(), chunks, prompts.ExtractionContext{}, models.AuthorityClient)
	require.NoError(t, err)
	require.Len(t, patches, 1)

	assert.Equal(t, 4, patches[0].MentionCount)
	assert.Len(t, patches[0].Evidence, 2)
	assert.Equal(t, 2, client.GenerateResponseCalls)
}

func TestExtractPatches_MergeFillsMissingPayloadFields(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		if strings.Contains(prompt, `"chunk-2"`) {
			return &llm.GenerateResponseResult{
				Content: `[{"operation": "create", "entity_type": "feature", "payload": {"name": "Realtime Sync", "description": "bidirectional"}, "confidence": "medium", "mention_count": 1}]`,
			}, nil
		}
		return &llm.GenerateResponseResult{
			Content: `[{"operation": "create", "entity_type": "feature", "payload": {"name": "realtime sync"}, "confidence": "medium", "mention_count": 1}]`,
		}, nil
	}

	e := NewExtractor(client, extractionPool(t), 12, zap.NewNop())
	chunks := []models.SignalChunk{
		{ID: "chunk-1", Text: "first"},
		{ID: "chunk-2", Text: "second"},
	}

	patches, err := e.ExtractPatches(context.Background(), chunks, prompts.ExtractionContext{}, models.AuthorityClient)
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Equal(t, "bidirectional", patches[0].Payload["description"])
}

func TestExtractPatches_EvidenceCappedOnMerge(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		chunkID := "chunk-1"
		for _, id := range []string{"chunk-2", "chunk-3"} {
			if strings.Contains(prompt, `"`+id+`"`) {
				chunkID = id
			}
		}
		return &llm.GenerateResponseResult{
			Content: `[{"operation": "create", "entity_type": "feature", "payload": {"name": "audit log"},` +
				` "evidence": [{"chunk_id": "` + chunkID + `", "quote": "a"}, {"chunk_id": "` + chunkID + `", "quote": "b"}],` +
				` "confidence": "medium", "mention_count": 1}]`,
		}, nil
	}

	e := NewExtractor(client, extractionPool(t), 3, zap.NewNop())
	chunks := []models.SignalChunk{
		{ID: "chunk-1", Text: "x"},
		{ID: "chunk-2", Text: "y"},
		{ID: "chunk-3", Text: "z"},
	}

	patches, err := e.ExtractPatches(context.Background(), chunks, prompts.ExtractionContext{}, models.AuthorityClient)
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Len(t, patches[0].Evidence, 3)
	assert.Equal(t, 3, patches[0].MentionCount)
}

func TestExtractPatches_EvidenceCappedOnSingleVerboseChunk(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		return &llm.GenerateResponseResult{
			Content: `[{"operation": "create", "entity_type": "feature", "payload": {"name": "audit log"},` +
				` "evidence": [{"chunk_id": "chunk-1", "quote": "a"}, {"chunk_id": "chunk-1", "quote": "b"},` +
				` {"chunk_id": "chunk-1", "quote": "c"}, {"chunk_id": "chunk-1", "quote": "d"},` +
				` {"chunk_id": "chunk-1", "quote": "e"}], "confidence": "medium", "mention_count": 1}]`,
		}, nil
	}

	e := NewExtractor(client, extractionPool(t), 3, zap.NewNop())
	chunks := []models.SignalChunk{{ID: "chunk-1", Text: "verbose chunk"}}

	patches, err := e.ExtractPatches(context.Background(), chunks, prompts.ExtractionContext{}, models.AuthorityClient)
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Len(t, patches[0].Evidence, 3)
}

func TestExtractPatches_SingleChunkFailureIsFatal(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		return nil, errors.New("model overloaded")
	}

	e := NewExtractor(client, extractionPool(t), 12, zap.NewNop())
	chunks := []models.SignalChunk{{ID: "chunk-1", Text: "only chunk"}}

	_, err := e.ExtractPatches(context.Background(), chunks, prompts.ExtractionContext{}, models.AuthorityClient)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only chunk")
}

func TestExtractPatches_MultiChunkPartialFailureDegrades(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		if strings.Contains(prompt, `"chunk-2"`) {
			return nil, errors.New("model overloaded")
		}
		return &llm.GenerateResponseResult{
			Content: "[" + patchJSON("audit log", "chunk-1", 1) + "]",
		}, nil
	}

	e := NewExtractor(client, extractionPool(t), 12, zap.NewNop())
	chunks := []models.SignalChunk{
		{ID: "chunk-1", Text: "works"},
		{ID: "chunk-2", Text: "fails"},
	}

	patches, err := e.ExtractPatches(context.Background(), chunks, prompts.ExtractionContext{}, models.AuthorityClient)
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Equal(t, "audit log", patches[0].DisplayName())
}

func TestExtractPatches_AllChunksFailOnMultiChunkSignal(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		return nil, errors.New("model overloaded")
	}

	e := NewExtractor(client, extractionPool(t), 12, zap.NewNop())
	chunks := []models.SignalChunk{
		{ID: "chunk-1", Text: "a"},
		{ID: "chunk-2", Text: "b"},
	}

	patches, err := e.ExtractPatches(context.Background(), chunks, prompts.ExtractionContext{}, models.AuthorityClient)
	require.NoError(t, err)
	assert.Empty(t, patches)
}

func TestExtractPatches_NoChunks(t *testing.T) {
	client := llm.NewMockLLMClient()
	e := NewExtractor(client, extractionPool(t), 12, zap.NewNop())

	patches, err := e.ExtractPatches(context.Background(), nil, prompts.ExtractionContext{}, models.AuthorityClient)
	require.NoError(t, err)
	assert.Nil(t, patches)
	assert.Equal(t, 0, client.GenerateResponseCalls)
}

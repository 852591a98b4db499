package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scopeline-ai/scopeline-engine/pkg/apperrors"
	"github.com/scopeline-ai/scopeline-engine/pkg/audit"
	"github.com/scopeline-ai/scopeline-engine/pkg/llm"
	"github.com/scopeline-ai/scopeline-engine/pkg/models"
)

type processorFixture struct {
	signalRepo      *mockSignalRepo
	beliefRepo      *mockBeliefRepo
	entityRepo      *mockEntityRepo
	projectRepo     *mockProjectRepo
	extractorClient *llm.MockLLMClient
	scorerClient    *llm.MockLLMClient
	processor       *SignalProcessor
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	logger := zap.NewNop()

	f := &processorFixture{
		signalRepo:      newMockSignalRepo(),
		beliefRepo:      newMockBeliefRepo(),
		entityRepo:      newMockEntityRepo(),
		projectRepo:     newMockProjectRepo(),
		extractorClient: llm.NewMockLLMClient(),
		scorerClient:    llm.NewMockLLMClient(),
	}

	pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: 2}, logger)
	contextBuilder := NewContextBuilder(f.projectRepo, f.entityRepo, f.beliefRepo, logger)
	extractor := NewExtractor(f.extractorClient, pool, 12, logger)
	deduplicator := NewDeduplicator(f.entityRepo, nil, DefaultDedupConfig(), logger)
	scorer := NewScorer(f.scorerClient, 3, logger)
	applicator := NewApplicator(f.entityRepo, f.projectRepo, &mockEscalationRepo{}, &mockRevisionRepo{}, defaultAutoApply, logger)

	f.processor = NewSignalProcessor(
		f.signalRepo, f.beliefRepo, contextBuilder, extractor, deduplicator,
		scorer, applicator, audit.NewSink("", logger), 6000, logger)
	return f
}

func (f *processorFixture) addSignal(body string) *models.Signal {
	return f.signalRepo.add(&models.Signal{
		ProjectID:       uuid.New(),
		Kind:            models.SignalMeetingNote,
		Title:           "kickoff notes",
		Body:            body,
		SourceAuthority: models.AuthorityClient,
		Status:          models.SignalStatusPending,
	})
}

func TestProcessSignal_NotFound(t *testing.T) {
	f := newProcessorFixture(t)

	_, err := f.processor.ProcessSignal(context.Background(), uuid.New())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestProcessSignal_EmptyBodyShortCircuits(t *testing.T) {
	f := newProcessorFixture(t)
	signal := f.addSignal("   \n\t ")

	processed, err := f.processor.ProcessSignal(context.Background(), signal.ID)

	require.NoError(t, err)
	assert.Equal(t, 0, processed.Result.TotalApplied())
	assert.Nil(t, processed.Patches)
	assert.Equal(t, 0, f.extractorClient.GenerateResponseCalls)
	assert.Equal(t, models.SignalStatusProcessed, signal.Status)
}

func TestProcessSignal_HappyPathCreatesEntity(t *testing.T) {
	f := newProcessorFixture(t)
	signal := f.addSignal("The client wants a self-service portal for order tracking.")

	f.extractorClient.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		return &llm.GenerateResponseResult{
			Content: `[{"operation": "create", "entity_type": "feature", "payload": {"name": "self-service portal"},` +
				` "evidence": [{"chunk_id": "chunk-1", "quote": "wants a self-service portal"}],` +
				` "confidence": "high", "mention_count": 1}]`,
		}, nil
	}

	processed, err := f.processor.ProcessSignal(context.Background(), signal.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, processed.Result.CreatedCount)
	require.Len(t, processed.Patches, 1)
	assert.Contains(t, processed.Summary, "self-service portal")

	assert.Equal(t, []string{models.SignalStatusProcessing, models.SignalStatusProcessed}, f.signalRepo.statuses)
	require.Len(t, f.entityRepo.entities, 1)
	for _, entity := range f.entityRepo.entities {
		assert.Equal(t, models.StatusConfirmedClient, entity.ConfirmationStatus)
	}
	// No standing beliefs or questions, so the scorer's LLM pass never ran.
	assert.Equal(t, 0, f.scorerClient.GenerateResponseCalls)
}

func TestProcessSignal_DeduplicatesAgainstExistingEntity(t *testing.T) {
	f := newProcessorFixture(t)
	signal := f.addSignal("They mentioned realtime sync again today.")
	existing := f.entityRepo.add(&models.Entity{
		ProjectID:          signal.ProjectID,
		EntityType:         models.TypeFeature,
		Name:               "Realtime Sync",
		ConfirmationStatus: models.StatusAIGenerated,
	})

	f.extractorClient.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		return &llm.GenerateResponseResult{
			Content: `[{"operation": "create", "entity_type": "feature", "payload": {"name": "realtime sync"},` +
				` "confidence": "high", "mention_count": 1}]`,
		}, nil
	}

	processed, err := f.processor.ProcessSignal(context.Background(), signal.ID)

	require.NoError(t, err)
	assert.Equal(t, 0, processed.Result.CreatedCount)
	assert.Equal(t, 1, processed.Result.MergedCount)
	assert.Len(t, f.entityRepo.entities, 1)
	assert.Contains(t, f.entityRepo.entities[existing.ID].SourceSignalIDs, signal.ID)
}

func TestProcessSignal_ExtractionFailureMarksSignalFailed(t *testing.T) {
	f := newProcessorFixture(t)
	signal := f.addSignal("short single-chunk signal")

	f.extractorClient.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		return nil, errors.New("model overloaded")
	}

	_, err := f.processor.ProcessSignal(context.Background(), signal.ID)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "extraction failed")
	assert.Equal(t, models.SignalStatusFailed, signal.Status)
	require.NotNil(t, signal.ErrorMessage)
	assert.NotEmpty(t, *signal.ErrorMessage)
}

func TestProcessSignal_BeliefImpactsFeedMemoryStore(t *testing.T) {
	f := newProcessorFixture(t)
	signal := f.addSignal("Confirmed: the crews want live sync on mobile.")

	belief := &models.Belief{ID: uuid.New(), ProjectID: signal.ProjectID, Summary: "client wants live data", Status: models.BeliefStatusActive}
	question := &models.OpenQuestion{ID: uuid.New(), ProjectID: signal.ProjectID, Question: "batch or realtime?", Status: models.QuestionStatusOpen}
	f.beliefRepo.beliefs = append(f.beliefRepo.beliefs, belief)
	f.beliefRepo.questions = append(f.beliefRepo.questions, question)

	f.extractorClient.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		return &llm.GenerateResponseResult{
			Content: `[{"operation": "create", "entity_type": "feature", "payload": {"name": "live mobile sync"},` +
				` "confidence": "high", "mention_count": 1}]`,
		}, nil
	}
	f.scorerClient.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		return &llm.GenerateResponseResult{
			Content: `{"assessments": [{
				"patch_index": 0,
				"adjustment": "none",
				"belief_impacts": [{"belief_id": "` + belief.ID.String() + `", "belief_summary": "client wants live data", "impact": "supports", "new_evidence": "crews want live sync on mobile"}],
				"answers_question_id": "` + question.ID.String() + `"
			}]}`,
		}, nil
	}

	processed, err := f.processor.ProcessSignal(context.Background(), signal.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, processed.Result.CreatedCount)

	require.Contains(t, f.beliefRepo.appended, belief.ID)
	assert.Equal(t, []string{"crews want live sync on mobile"}, f.beliefRepo.appended[belief.ID])
	assert.Equal(t, []uuid.UUID{question.ID}, f.beliefRepo.answered)
}

func TestProcessSignal_NoAppliedChangesSkipsBeliefBookkeeping(t *testing.T) {
	f := newProcessorFixture(t)
	signal := f.addSignal("vague chatter with nothing concrete")

	f.extractorClient.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		return &llm.GenerateResponseResult{
			Content: `[{"operation": "create", "entity_type": "feature", "payload": {"name": "maybe something"},` +
				` "confidence": "low", "mention_count": 1}]`,
		}, nil
	}

	processed, err := f.processor.ProcessSignal(context.Background(), signal.ID)

	require.NoError(t, err)
	assert.Equal(t, 0, processed.Result.TotalApplied())
	assert.Len(t, processed.Result.Escalated, 1)
	assert.Empty(t, f.beliefRepo.appended)
	assert.Empty(t, f.beliefRepo.answered)
}

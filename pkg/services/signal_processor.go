package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scopeline-ai/scopeline-engine/pkg/audit"
	"github.com/scopeline-ai/scopeline-engine/pkg/logging"
	"github.com/scopeline-ai/scopeline-engine/pkg/models"
	"github.com/scopeline-ai/scopeline-engine/pkg/repositories"
)

// ProcessResult is the orchestrator-facing output of one signal run: the
// application result, the scored patches that produced it, and the
// human-readable digest.
type ProcessResult struct {
	Result  *models.PatchApplicationResult
	Patches []*models.EntityPatch
	Summary string
}

// SignalProcessor sequences one signal through the pipeline:
// extract, dedup, score, apply, summarize. Stage failures degrade; only
// signal-not-found and total extraction failure on a single-chunk signal
// fail the run.
type SignalProcessor struct {
	signalRepo     repositories.SignalRepository
	beliefRepo     repositories.BeliefRepository
	contextBuilder *ContextBuilder
	extractor      *Extractor
	deduplicator   *Deduplicator
	scorer         *Scorer
	applicator     *Applicator
	auditSink      *audit.Sink
	chunkSize      int
	logger         *zap.Logger
}

// NewSignalProcessor creates a new SignalProcessor.
func NewSignalProcessor(
	signalRepo repositories.SignalRepository,
	beliefRepo repositories.BeliefRepository,
	contextBuilder *ContextBuilder,
	extractor *Extractor,
	deduplicator *Deduplicator,
	scorer *Scorer,
	applicator *Applicator,
	auditSink *audit.Sink,
	chunkSize int,
	logger *zap.Logger,
) *SignalProcessor {
	return &SignalProcessor{
		signalRepo:     signalRepo,
		beliefRepo:     beliefRepo,
		contextBuilder: contextBuilder,
		extractor:      extractor,
		deduplicator:   deduplicator,
		scorer:         scorer,
		applicator:     applicator,
		auditSink:      auditSink,
		chunkSize:      chunkSize,
		logger:         logger.Named("signal-processor"),
	}
}

// ProcessSignal runs the full pipeline for one signal.
func (p *SignalProcessor) ProcessSignal(ctx context.Context, signalID uuid.UUID) (*ProcessResult, error) {
	started := time.Now()

	signal, err := p.signalRepo.GetByID(ctx, signalID)
	if err != nil {
		return nil, fmt.Errorf("signal load failed: %w", err)
	}

	if err := p.signalRepo.UpdateStatus(ctx, signalID, models.SignalStatusProcessing, nil); err != nil {
		p.logger.Warn("failed to mark signal processing", zap.Error(err))
	}

	record := &audit.RunRecord{
		SignalID:  signal.ID,
		ProjectID: signal.ProjectID,
		StartedAt: started,
	}

	result, scored, runErr := p.runPipeline(ctx, signal, record)
	record.Duration = time.Since(started).String()

	if runErr != nil {
		record.Error = logging.SanitizeError(runErr)
		p.recordAudit(record)
		msg := logging.TruncateSnippet(logging.SanitizeError(runErr))
		if err := p.signalRepo.UpdateStatus(ctx, signalID, models.SignalStatusFailed, &msg); err != nil {
			p.logger.Warn("failed to mark signal failed", zap.Error(err))
		}
		return nil, runErr
	}

	if err := p.signalRepo.MarkProcessed(ctx, signalID); err != nil {
		p.logger.Warn("failed to mark signal processed", zap.Error(err))
	}

	record.EscalatedPatches = len(result.Escalated)
	record.SkippedPatches = len(result.Skipped)
	record.EntitiesModified = len(result.EntityIDsModified)
	record.Result = result
	p.recordAudit(record)

	return &ProcessResult{
		Result:  result,
		Patches: scored,
		Summary: BuildSummary(result),
	}, nil
}

func (p *SignalProcessor) runPipeline(ctx context.Context, signal *models.Signal, record *audit.RunRecord) (*models.PatchApplicationResult, []*models.EntityPatch, error) {
	chunks := SplitIntoChunks(signal.Body, p.chunkSize)
	record.ChunkCount = len(chunks)

	// An empty signal short-circuits to an empty result without ever
	// invoking the extractor.
	if len(chunks) == 0 {
		p.logger.Info("signal has no usable text, short-circuiting",
			zap.String("signal_id", signal.ID.String()))
		return emptyResult(), nil, nil
	}

	extractionCtx, beliefs, questions := p.contextBuilder.Build(ctx, signal.ProjectID)
	record.ContextInventory = extractionCtx.EntityInventory
	record.ContextMemory = extractionCtx.Memory
	record.ContextGaps = extractionCtx.Gaps

	patches, err := p.extractor.ExtractPatches(ctx, chunks, extractionCtx, signal.SourceAuthority)
	if err != nil {
		return nil, nil, fmt.Errorf("extraction failed: %w", err)
	}
	record.ExtractedPatches = len(patches)

	patches = p.deduplicator.Deduplicate(ctx, signal.ProjectID, patches)
	for _, patch := range patches {
		if patch.Operation == models.OpMerge {
			record.MergedToExisting++
		}
	}

	p.scorer.Score(ctx, patches, beliefs, questions)

	signalID := signal.ID
	result := p.applicator.Apply(ctx, signal.ProjectID, &signalID, patches)

	p.updateBeliefStore(ctx, signal, patches, result)

	return result, patches, nil
}

// updateBeliefStore feeds the scorer's belief impacts back into the memory
// layer and resolves answered questions. Best-effort: belief bookkeeping
// never fails a run.
func (p *SignalProcessor) updateBeliefStore(ctx context.Context, signal *models.Signal, patches []*models.EntityPatch, result *models.PatchApplicationResult) {
	appliedCount := result.TotalApplied()
	if appliedCount == 0 {
		return
	}

	for _, patch := range patches {
		for _, impact := range patch.BeliefImpacts {
			if impact.BeliefID == nil || impact.NewEvidence == "" {
				continue
			}
			if err := p.beliefRepo.AppendEvidence(ctx, *impact.BeliefID, impact.NewEvidence); err != nil {
				p.logger.Warn("failed to append belief evidence",
					zap.String("belief_id", impact.BeliefID.String()),
					zap.Error(err))
			}
		}

		if patch.AnswersQuestionID != nil {
			if err := p.beliefRepo.MarkAnswered(ctx, *patch.AnswersQuestionID, signal.ID); err != nil {
				p.logger.Warn("failed to mark question answered",
					zap.String("question_id", patch.AnswersQuestionID.String()),
					zap.Error(err))
			}
		}
	}
}

func (p *SignalProcessor) recordAudit(record *audit.RunRecord) {
	if p.auditSink != nil {
		p.auditSink.Record(record)
	}
}

func emptyResult() *models.PatchApplicationResult {
	return &models.PatchApplicationResult{
		Applied:   []models.AppliedPatch{},
		Skipped:   []models.SkippedPatch{},
		Escalated: []models.EscalatedPatch{},
	}
}

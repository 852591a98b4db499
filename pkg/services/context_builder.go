package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scopeline-ai/scopeline-engine/pkg/models"
	"github.com/scopeline-ai/scopeline-engine/pkg/prompts"
	"github.com/scopeline-ai/scopeline-engine/pkg/repositories"
)

// ContextBuilder assembles the 3-layer extraction context: what the model
// already contains, what we currently believe, and what we still don't know.
// Any layer that fails to load degrades to empty rather than blocking the
// pipeline.
type ContextBuilder struct {
	projectRepo repositories.ProjectRepository
	entityRepo  repositories.EntityRepository
	beliefRepo  repositories.BeliefRepository
	logger      *zap.Logger
}

// NewContextBuilder creates a new ContextBuilder.
func NewContextBuilder(
	projectRepo repositories.ProjectRepository,
	entityRepo repositories.EntityRepository,
	beliefRepo repositories.BeliefRepository,
	logger *zap.Logger,
) *ContextBuilder {
	return &ContextBuilder{
		projectRepo: projectRepo,
		entityRepo:  entityRepo,
		beliefRepo:  beliefRepo,
		logger:      logger.Named("context-builder"),
	}
}

// Build returns the extraction context plus the beliefs and open questions it
// was built from, so the scorer can reuse them without a second load.
func (b *ContextBuilder) Build(ctx context.Context, projectID uuid.UUID) (prompts.ExtractionContext, []*models.Belief, []*models.OpenQuestion) {
	extractionCtx := prompts.ExtractionContext{
		EntityInventory: b.buildInventory(ctx, projectID),
	}

	beliefs, err := b.beliefRepo.GetActiveByProject(ctx, projectID)
	if err != nil {
		b.logger.Warn("belief load failed, extracting without memory context", zap.Error(err))
		beliefs = nil
	}
	extractionCtx.Memory = formatBeliefs(beliefs)

	questions, err := b.beliefRepo.GetOpenQuestions(ctx, projectID)
	if err != nil {
		b.logger.Warn("open-question load failed, extracting without gap context", zap.Error(err))
		questions = nil
	}
	extractionCtx.Gaps = formatQuestions(questions)

	return extractionCtx, beliefs, questions
}

// buildInventory renders every existing entity grouped by type, with ids so
// the extractor can target update/merge/stale/delete patches directly.
func (b *ContextBuilder) buildInventory(ctx context.Context, projectID uuid.UUID) string {
	var sb strings.Builder

	if project, err := b.projectRepo.GetByID(ctx, projectID); err == nil && project.Vision != "" {
		sb.WriteString(fmt.Sprintf("Vision: %s\n\n", project.Vision))
	}

	entities, err := b.entityRepo.GetByProject(ctx, projectID)
	if err != nil {
		b.logger.Warn("entity inventory load failed, extracting without it", zap.Error(err))
		return strings.TrimSpace(sb.String())
	}

	byType := map[models.EntityType][]*models.Entity{}
	for _, entity := range entities {
		byType[entity.EntityType] = append(byType[entity.EntityType], entity)
	}

	for _, entityType := range models.AllEntityTypes {
		group := byType[entityType]
		if len(group) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s:\n", entityType))
		for _, entity := range group {
			marker := ""
			if entity.IsStale {
				marker = " (stale)"
			}
			sb.WriteString(fmt.Sprintf("- %s [id %s, %s]%s\n", entity.Name, entity.ID, entity.ConfirmationStatus, marker))
		}
		sb.WriteString("\n")
	}

	return strings.TrimSpace(sb.String())
}

func formatBeliefs(beliefs []*models.Belief) string {
	if len(beliefs) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, belief := range beliefs {
		sb.WriteString(fmt.Sprintf("- %s\n", belief.Summary))
	}
	return strings.TrimSpace(sb.String())
}

func formatQuestions(questions []*models.OpenQuestion) string {
	if len(questions) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, question := range questions {
		sb.WriteString(fmt.Sprintf("- %s\n", question.Question))
	}
	return strings.TrimSpace(sb.String())
}

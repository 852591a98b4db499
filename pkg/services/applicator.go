package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scopeline-ai/scopeline-engine/pkg/apperrors"
	"github.com/scopeline-ai/scopeline-engine/pkg/logging"
	"github.com/scopeline-ai/scopeline-engine/pkg/models"
	"github.com/scopeline-ai/scopeline-engine/pkg/repositories"
	"github.com/scopeline-ai/scopeline-engine/pkg/retry"
)

// Applicator mutates the entity store from scored patches. Only patches
// whose confidence tier is in the allow-set are applied automatically;
// everything else is escalated to the review queue. Updates run under the
// confirmation-hierarchy guard: confirmed facts are never overwritten by
// weaker evidence.
type Applicator struct {
	entityRepo     repositories.EntityRepository
	projectRepo    repositories.ProjectRepository
	escalationRepo repositories.EscalationRepository
	revisionRepo   repositories.RevisionRepository
	autoApplyTiers map[models.ConfidenceTier]bool
	retryCfg       *retry.Config
	logger         *zap.Logger
}

// NewApplicator creates a new Applicator. autoApplyTiers lists the tier
// names the applicator may apply without review. Low and conflict always go
// to the review queue and are stripped if configured.
func NewApplicator(
	entityRepo repositories.EntityRepository,
	projectRepo repositories.ProjectRepository,
	escalationRepo repositories.EscalationRepository,
	revisionRepo repositories.RevisionRepository,
	autoApplyTiers []string,
	logger *zap.Logger,
) *Applicator {
	allowed := make(map[models.ConfidenceTier]bool, len(autoApplyTiers))
	for _, tier := range autoApplyTiers {
		t := models.ConfidenceTier(tier)
		if t == models.ConfidenceLow || t == models.ConfidenceConflict {
			logger.Warn("tier never auto-applies, ignoring allow-set entry",
				zap.String("tier", tier))
			continue
		}
		allowed[t] = true
	}

	return &Applicator{
		entityRepo:     entityRepo,
		projectRepo:    projectRepo,
		escalationRepo: escalationRepo,
		revisionRepo:   revisionRepo,
		autoApplyTiers: allowed,
		retryCfg:       retry.DefaultConfig(),
		logger:         logger.Named("applicator"),
	}
}

// Apply runs every patch against the store and reports outcomes. One bad
// patch never aborts the batch: failures land in skipped, low-confidence
// patches land in escalated, and the caller always gets a complete result.
func (a *Applicator) Apply(ctx context.Context, projectID uuid.UUID, signalID *uuid.UUID, patches []*models.EntityPatch) *models.PatchApplicationResult {
	result := &models.PatchApplicationResult{
		Applied:   []models.AppliedPatch{},
		Skipped:   []models.SkippedPatch{},
		Escalated: []models.EscalatedPatch{},
	}

	for _, patch := range patches {
		if !a.autoApplyTiers[patch.Confidence] {
			a.escalate(ctx, projectID, signalID, patch, result)
			continue
		}
		a.applyOne(ctx, projectID, signalID, patch, result)
	}

	return result
}

// applyOne applies a single patch with panic and error isolation: any
// failure is recorded in skipped and the batch continues.
func (a *Applicator) applyOne(ctx context.Context, projectID uuid.UUID, signalID *uuid.UUID, patch *models.EntityPatch, result *models.PatchApplicationResult) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("panic applying patch",
				zap.String("patch", patch.Summary()),
				zap.Any("panic", r))
			result.Skipped = append(result.Skipped, models.SkippedPatch{
				Patch:  patch,
				Reason: logging.TruncateSnippet(fmt.Sprintf("panic: %v", r)),
			})
		}
	}()

	var err error
	switch patch.Operation {
	case models.OpCreate:
		err = a.applyCreate(ctx, projectID, signalID, patch, result)
	case models.OpMerge:
		err = a.applyMerge(ctx, projectID, signalID, patch, result)
	case models.OpUpdate:
		err = a.applyUpdate(ctx, projectID, signalID, patch, result)
	case models.OpStale:
		err = a.applyStale(ctx, projectID, signalID, patch, result)
	case models.OpDelete:
		err = a.applyDelete(ctx, projectID, signalID, patch, result)
	default:
		err = fmt.Errorf("unknown operation %q", patch.Operation)
	}

	if err != nil {
		a.logger.Warn("patch application failed",
			zap.String("patch", patch.Summary()),
			zap.String("error", logging.SanitizeError(err)))
		result.Skipped = append(result.Skipped, models.SkippedPatch{
			Patch:  patch,
			Reason: logging.TruncateSnippet(logging.SanitizeError(err)),
		})
	}
}

func (a *Applicator) applyCreate(ctx context.Context, projectID uuid.UUID, signalID *uuid.UUID, patch *models.EntityPatch, result *models.PatchApplicationResult) error {
	if patch.EntityType == models.TypeVision {
		return a.applyVision(ctx, projectID, signalID, patch, result)
	}

	entity := &models.Entity{
		ProjectID:          projectID,
		EntityType:         patch.EntityType,
		Name:               patch.DisplayName(),
		Fields:             patch.Payload,
		Evidence:           patch.Evidence,
		ConfirmationStatus: patch.SourceAuthority.ImpliedStatus(),
	}
	if signalID != nil {
		entity.SourceSignalIDs = []uuid.UUID{*signalID}
	}

	if err := retry.Do(ctx, a.retryCfg, func() error {
		return a.entityRepo.Create(ctx, entity)
	}); err != nil {
		return fmt.Errorf("create failed: %w", err)
	}

	result.CreatedCount++
	a.recordApplied(ctx, projectID, signalID, patch, entity, models.OpCreate, result)
	return nil
}

func (a *Applicator) applyMerge(ctx context.Context, projectID uuid.UUID, signalID *uuid.UUID, patch *models.EntityPatch, result *models.PatchApplicationResult) error {
	if patch.EntityType == models.TypeVision {
		return a.applyVision(ctx, projectID, signalID, patch, result)
	}
	if patch.TargetEntityID == nil {
		return fmt.Errorf("merge patch has no target: %w", apperrors.ErrInvalidPatch)
	}

	entity, err := a.entityRepo.GetByID(ctx, *patch.TargetEntityID)
	if err != nil {
		return fmt.Errorf("merge target lookup failed: %w", err)
	}

	// Evidence and source signals are append-only; identical entries from a
	// re-applied patch are not duplicated.
	entity.Evidence = appendNewEvidence(entity.Evidence, patch.Evidence)
	if signalID != nil && !containsUUID(entity.SourceSignalIDs, *signalID) {
		entity.SourceSignalIDs = append(entity.SourceSignalIDs, *signalID)
	}

	// Payload values override only fields explicitly present. The established
	// display name wins on merge: the incoming name was just a weaker alias
	// of the same entity.
	if entity.Fields == nil {
		entity.Fields = map[string]any{}
	}
	for k, v := range patch.Payload {
		if k == "name" || k == "label" || k == "title" {
			continue
		}
		entity.Fields[k] = v
	}

	if implied := patch.SourceAuthority.ImpliedStatus(); implied.Rank() > entity.ConfirmationStatus.Rank() {
		entity.ConfirmationStatus = implied
	}

	if err := retry.Do(ctx, a.retryCfg, func() error {
		return a.entityRepo.Update(ctx, entity)
	}); err != nil {
		return fmt.Errorf("merge write failed: %w", err)
	}

	result.MergedCount++
	a.recordApplied(ctx, projectID, signalID, patch, entity, models.OpMerge, result)
	return nil
}

func (a *Applicator) applyUpdate(ctx context.Context, projectID uuid.UUID, signalID *uuid.UUID, patch *models.EntityPatch, result *models.PatchApplicationResult) error {
	if patch.EntityType == models.TypeVision {
		return a.applyVision(ctx, projectID, signalID, patch, result)
	}
	if patch.TargetEntityID == nil {
		return fmt.Errorf("update patch has no target: %w", apperrors.ErrInvalidPatch)
	}

	entity, err := a.entityRepo.GetByID(ctx, *patch.TargetEntityID)
	if err != nil {
		return fmt.Errorf("update target lookup failed: %w", err)
	}

	implied := patch.SourceAuthority.ImpliedStatus()
	if entity.ConfirmationStatus.Rank() > implied.Rank() {
		// Hierarchy guard: confirmed facts are never overwritten by weaker
		// evidence. A defined skip, not an error and not an escalation.
		result.Skipped = append(result.Skipped, models.SkippedPatch{
			Patch: patch,
			Reason: fmt.Sprintf("confirmation hierarchy: entity is %s, %s authority implies %s",
				entity.ConfirmationStatus, patch.SourceAuthority, implied),
		})
		return nil
	}

	if entity.Fields == nil {
		entity.Fields = map[string]any{}
	}
	for k, v := range patch.Payload {
		entity.Fields[k] = v
	}
	if name := patch.DisplayName(); name != "" {
		entity.Name = name
	}
	entity.Evidence = appendNewEvidence(entity.Evidence, patch.Evidence)
	if signalID != nil && !containsUUID(entity.SourceSignalIDs, *signalID) {
		entity.SourceSignalIDs = append(entity.SourceSignalIDs, *signalID)
	}
	if implied.Rank() > entity.ConfirmationStatus.Rank() {
		entity.ConfirmationStatus = implied
	}

	if err := retry.Do(ctx, a.retryCfg, func() error {
		return a.entityRepo.Update(ctx, entity)
	}); err != nil {
		return fmt.Errorf("update write failed: %w", err)
	}

	result.UpdatedCount++
	a.recordApplied(ctx, projectID, signalID, patch, entity, models.OpUpdate, result)
	return nil
}

func (a *Applicator) applyStale(ctx context.Context, projectID uuid.UUID, signalID *uuid.UUID, patch *models.EntityPatch, result *models.PatchApplicationResult) error {
	if patch.TargetEntityID == nil {
		return fmt.Errorf("stale patch has no target: %w", apperrors.ErrInvalidPatch)
	}

	reason := staleReason(patch)
	if err := retry.Do(ctx, a.retryCfg, func() error {
		return a.entityRepo.SetStale(ctx, *patch.TargetEntityID, reason)
	}); err != nil {
		return fmt.Errorf("stale write failed: %w", err)
	}

	result.StaledCount++
	a.recordAppliedByID(ctx, projectID, signalID, patch, *patch.TargetEntityID, models.OpStale, result)
	return nil
}

func (a *Applicator) applyDelete(ctx context.Context, projectID uuid.UUID, signalID *uuid.UUID, patch *models.EntityPatch, result *models.PatchApplicationResult) error {
	if patch.TargetEntityID == nil {
		return fmt.Errorf("delete patch has no target: %w", apperrors.ErrInvalidPatch)
	}

	entity, err := a.entityRepo.GetByID(ctx, *patch.TargetEntityID)
	if err != nil {
		return fmt.Errorf("delete target lookup failed: %w", err)
	}

	// Unconfirmed AI guesses are disposable; anything human-confirmed is
	// kept and flagged stale instead of destroyed.
	if entity.ConfirmationStatus == models.StatusAIGenerated {
		if err := retry.Do(ctx, a.retryCfg, func() error {
			return a.entityRepo.Delete(ctx, entity.ID)
		}); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		result.DeletedCount++
		a.recordAppliedByID(ctx, projectID, signalID, patch, entity.ID, models.OpDelete, result)
		return nil
	}

	reason := "delete requested against " + entity.ConfirmationStatus.String() + " entity: " + staleReason(patch)
	if err := retry.Do(ctx, a.retryCfg, func() error {
		return a.entityRepo.SetStale(ctx, entity.ID, reason)
	}); err != nil {
		return fmt.Errorf("delete-as-stale write failed: %w", err)
	}

	result.StaledCount++
	a.recordAppliedByID(ctx, projectID, signalID, patch, entity.ID, models.OpStale, result)
	return nil
}

// applyVision writes the project's vision singleton. Vision patches carry no
// entity-table target; create, merge, and update all resolve to the same
// field write.
func (a *Applicator) applyVision(ctx context.Context, projectID uuid.UUID, signalID *uuid.UUID, patch *models.EntityPatch, result *models.PatchApplicationResult) error {
	vision := visionText(patch)
	if vision == "" {
		return fmt.Errorf("vision patch has no text: %w", apperrors.ErrNoVisionTarget)
	}

	if err := retry.Do(ctx, a.retryCfg, func() error {
		return a.projectRepo.UpdateVision(ctx, projectID, vision)
	}); err != nil {
		return fmt.Errorf("vision write failed: %w", err)
	}

	switch patch.Operation {
	case models.OpCreate:
		result.CreatedCount++
	case models.OpMerge:
		result.MergedCount++
	default:
		result.UpdatedCount++
	}

	result.Applied = append(result.Applied, models.AppliedPatch{
		EntityID:   projectID,
		EntityType: models.TypeVision,
		Operation:  patch.Operation,
		Name:       "vision",
		Summary:    patch.Summary(),
	})
	a.recordSideEffects(ctx, projectID, signalID, patch, nil)
	return nil
}

func (a *Applicator) escalate(ctx context.Context, projectID uuid.UUID, signalID *uuid.UUID, patch *models.EntityPatch, result *models.PatchApplicationResult) {
	result.Escalated = append(result.Escalated, models.EscalatedPatch{
		Patch:      patch,
		Confidence: patch.Confidence,
		Reasoning:  patch.ConfidenceReasoning,
	})

	if a.escalationRepo == nil {
		return
	}
	escalation := &models.Escalation{
		ProjectID:  projectID,
		SignalID:   signalID,
		Patch:      patch,
		Confidence: patch.Confidence,
		Reasoning:  patch.ConfidenceReasoning,
	}
	if err := a.escalationRepo.Create(ctx, escalation); err != nil {
		// The in-memory escalation entry is the source of truth for this
		// run; queue persistence is best-effort.
		a.logger.Warn("failed to persist escalation",
			zap.String("patch", patch.Summary()),
			zap.String("error", logging.SanitizeError(err)))
	}
}

func (a *Applicator) recordApplied(ctx context.Context, projectID uuid.UUID, signalID *uuid.UUID, patch *models.EntityPatch, entity *models.Entity, op models.PatchOperation, result *models.PatchApplicationResult) {
	result.Applied = append(result.Applied, models.AppliedPatch{
		EntityID:   entity.ID,
		EntityType: entity.EntityType,
		Operation:  op,
		Name:       entity.Name,
		Summary:    patch.Summary(),
	})
	result.EntityIDsModified = append(result.EntityIDsModified, entity.ID)
	entityID := entity.ID
	a.recordSideEffects(ctx, projectID, signalID, patch, &entityID)
}

func (a *Applicator) recordAppliedByID(ctx context.Context, projectID uuid.UUID, signalID *uuid.UUID, patch *models.EntityPatch, entityID uuid.UUID, op models.PatchOperation, result *models.PatchApplicationResult) {
	result.Applied = append(result.Applied, models.AppliedPatch{
		EntityID:   entityID,
		EntityType: patch.EntityType,
		Operation:  op,
		Name:       patch.DisplayName(),
		Summary:    patch.Summary(),
	})
	result.EntityIDsModified = append(result.EntityIDsModified, entityID)
	a.recordSideEffects(ctx, projectID, signalID, patch, &entityID)
}

// recordSideEffects writes the state revision and evidence links for one
// applied patch. Both are advisory: failures are logged, never rolled back
// into the entity mutation.
func (a *Applicator) recordSideEffects(ctx context.Context, projectID uuid.UUID, signalID *uuid.UUID, patch *models.EntityPatch, entityID *uuid.UUID) {
	if a.revisionRepo == nil {
		return
	}

	revision := &models.StateRevision{
		ProjectID:       projectID,
		EntityID:        entityID,
		EntityType:      patch.EntityType,
		Operation:       patch.Operation,
		SourceAuthority: patch.SourceAuthority,
		Summary:         patch.Summary(),
		SignalID:        signalID,
	}
	if err := a.revisionRepo.CreateRevision(ctx, revision); err != nil {
		a.logger.Warn("failed to write state revision",
			zap.String("patch", patch.Summary()),
			zap.String("error", logging.SanitizeError(err)))
	}

	if entityID == nil {
		return
	}
	for _, ev := range patch.Evidence {
		link := &models.EvidenceLink{
			ProjectID: projectID,
			EntityID:  *entityID,
			SignalID:  signalID,
			ChunkID:   ev.ChunkID,
			Quote:     ev.Quote,
		}
		if err := a.revisionRepo.CreateEvidenceLink(ctx, link); err != nil {
			a.logger.Warn("failed to write evidence link",
				zap.String("chunk_id", ev.ChunkID),
				zap.String("error", logging.SanitizeError(err)))
			break
		}
	}
}

// appendNewEvidence appends entries from incoming that are not already
// present (same chunk id and quote) in existing.
func appendNewEvidence(existing, incoming []models.EvidenceRef) []models.EvidenceRef {
	for _, ev := range incoming {
		duplicate := false
		for _, have := range existing {
			if have.ChunkID == ev.ChunkID && have.Quote == ev.Quote {
				duplicate = true
				break
			}
		}
		if !duplicate {
			existing = append(existing, ev)
		}
	}
	return existing
}

func containsUUID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, have := range ids {
		if have == id {
			return true
		}
	}
	return false
}

// staleReason picks the best available human-readable reason for flagging an
// entity stale.
func staleReason(patch *models.EntityPatch) string {
	for _, key := range []string{"reason", "stale_reason"} {
		if v, ok := patch.Payload[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	if patch.ConfidenceReasoning != "" {
		return patch.ConfidenceReasoning
	}
	return patch.Summary()
}

// visionText extracts the vision statement from a vision patch's payload.
func visionText(patch *models.EntityPatch) string {
	for _, key := range []string{"vision", "statement", "description", "text"} {
		if v, ok := patch.Payload[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return patch.DisplayName()
}

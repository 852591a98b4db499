package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scopeline-ai/scopeline-engine/pkg/database"
	"github.com/scopeline-ai/scopeline-engine/pkg/models"
)

// RevisionRepository provides data access for the audit trail: state
// revisions and evidence links. Writes here are best-effort from the
// caller's perspective; a failed revision never rolls back the entity
// mutation it describes.
type RevisionRepository interface {
	CreateRevision(ctx context.Context, revision *models.StateRevision) error
	GetRevisionsByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*models.StateRevision, error)
	CreateEvidenceLink(ctx context.Context, link *models.EvidenceLink) error
	GetEvidenceLinksByEntity(ctx context.Context, entityID uuid.UUID) ([]*models.EvidenceLink, error)
}

type revisionRepository struct {
	db *database.DB
}

// NewRevisionRepository creates a new RevisionRepository.
func NewRevisionRepository(db *database.DB) RevisionRepository {
	return &revisionRepository{db: db}
}

var _ RevisionRepository = (*revisionRepository)(nil)

func (r *revisionRepository) CreateRevision(ctx context.Context, revision *models.StateRevision) error {
	revision.CreatedAt = time.Now()

	if revision.ID == uuid.Nil {
		revision.ID = uuid.New()
	}

	query := `
		INSERT INTO engine_state_revisions (
			id, project_id, entity_id, entity_type, operation,
			source_authority, summary, signal_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		revision.ID, revision.ProjectID, revision.EntityID, revision.EntityType,
		revision.Operation, revision.SourceAuthority, revision.Summary,
		revision.SignalID, revision.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create state revision: %w", err)
	}

	return nil
}

func (r *revisionRepository) GetRevisionsByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*models.StateRevision, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, project_id, entity_id, entity_type, operation,
		       source_authority, summary, signal_id, created_at
		FROM engine_state_revisions
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query state revisions: %w", err)
	}
	defer rows.Close()

	var revisions []*models.StateRevision
	for rows.Next() {
		var rev models.StateRevision
		if err := rows.Scan(
			&rev.ID, &rev.ProjectID, &rev.EntityID, &rev.EntityType, &rev.Operation,
			&rev.SourceAuthority, &rev.Summary, &rev.SignalID, &rev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan state revision: %w", err)
		}
		revisions = append(revisions, &rev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating state revisions: %w", err)
	}

	return revisions, nil
}

func (r *revisionRepository) CreateEvidenceLink(ctx context.Context, link *models.EvidenceLink) error {
	link.CreatedAt = time.Now()

	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}

	query := `
		INSERT INTO engine_evidence_links (
			id, project_id, entity_id, signal_id, chunk_id, quote, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		link.ID, link.ProjectID, link.EntityID, link.SignalID,
		link.ChunkID, link.Quote, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create evidence link: %w", err)
	}

	return nil
}

func (r *revisionRepository) GetEvidenceLinksByEntity(ctx context.Context, entityID uuid.UUID) ([]*models.EvidenceLink, error) {
	query := `
		SELECT id, project_id, entity_id, signal_id, chunk_id, quote, created_at
		FROM engine_evidence_links
		WHERE entity_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence links: %w", err)
	}
	defer rows.Close()

	var links []*models.EvidenceLink
	for rows.Next() {
		var l models.EvidenceLink
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.EntityID, &l.SignalID, &l.ChunkID, &l.Quote, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evidence link: %w", err)
		}
		links = append(links, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evidence links: %w", err)
	}

	return links, nil
}

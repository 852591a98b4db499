package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/scopeline-ai/scopeline-engine/pkg/apperrors"
	"github.com/scopeline-ai/scopeline-engine/pkg/database"
	"github.com/scopeline-ai/scopeline-engine/pkg/models"
)

// EntityRepository provides data access for requirements-model entities.
type EntityRepository interface {
	Create(ctx context.Context, entity *models.Entity) error
	GetByID(ctx context.Context, entityID uuid.UUID) (*models.Entity, error)
	GetByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Entity, error)
	GetByProjectAndType(ctx context.Context, projectID uuid.UUID, entityType models.EntityType) ([]*models.Entity, error)
	Update(ctx context.Context, entity *models.Entity) error
	SetStale(ctx context.Context, entityID uuid.UUID, reason string) error
	Delete(ctx context.Context, entityID uuid.UUID) error
}

type entityRepository struct {
	db *database.DB
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(db *database.DB) EntityRepository {
	return &entityRepository{db: db}
}

var _ EntityRepository = (*entityRepository)(nil)

const entityColumns = `
	id, project_id, entity_type, name, fields, evidence, source_signal_ids,
	confirmation_status, is_stale, stale_reason, embedding, created_at, updated_at`

func (r *entityRepository) Create(ctx context.Context, entity *models.Entity) error {
	now := time.Now()
	entity.CreatedAt = now
	entity.UpdatedAt = now

	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}

	fieldsJSON, evidenceJSON, err := marshalEntityPayloads(entity)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO engine_entities (
			id, project_id, entity_type, name, fields, evidence, source_signal_ids,
			confirmation_status, is_stale, stale_reason, embedding, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.Exec(ctx, query,
		entity.ID, entity.ProjectID, entity.EntityType, entity.Name,
		fieldsJSON, evidenceJSON, entity.SourceSignalIDs,
		entity.ConfirmationStatus, entity.IsStale, entity.StaleReason,
		entity.Embedding, entity.CreatedAt, entity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}

	return nil
}

func (r *entityRepository) GetByID(ctx context.Context, entityID uuid.UUID) (*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM engine_entities WHERE id = $1`

	row := r.db.QueryRow(ctx, query, entityID)
	entity, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	return entity, nil
}

func (r *entityRepository) GetByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Entity, error) {
	query := `SELECT ` + entityColumns + `
		FROM engine_entities
		WHERE project_id = $1
		ORDER BY entity_type, name`

	return r.queryEntities(ctx, query, projectID)
}

func (r *entityRepository) GetByProjectAndType(ctx context.Context, projectID uuid.UUID, entityType models.EntityType) ([]*models.Entity, error) {
	query := `SELECT ` + entityColumns + `
		FROM engine_entities
		WHERE project_id = $1 AND entity_type = $2
		ORDER BY name`

	return r.queryEntities(ctx, query, projectID, entityType)
}

func (r *entityRepository) queryEntities(ctx context.Context, query string, args ...any) ([]*models.Entity, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}

	return entities, nil
}

func (r *entityRepository) Update(ctx context.Context, entity *models.Entity) error {
	entity.UpdatedAt = time.Now()

	fieldsJSON, evidenceJSON, err := marshalEntityPayloads(entity)
	if err != nil {
		return err
	}

	query := `
		UPDATE engine_entities
		SET name = $2, fields = $3, evidence = $4, source_signal_ids = $5,
		    confirmation_status = $6, is_stale = $7, stale_reason = $8,
		    embedding = $9, updated_at = $10
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		entity.ID, entity.Name, fieldsJSON, evidenceJSON, entity.SourceSignalIDs,
		entity.ConfirmationStatus, entity.IsStale, entity.StaleReason,
		entity.Embedding, entity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *entityRepository) SetStale(ctx context.Context, entityID uuid.UUID, reason string) error {
	query := `
		UPDATE engine_entities
		SET is_stale = TRUE, stale_reason = $2, updated_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, entityID, reason)
	if err != nil {
		return fmt.Errorf("failed to mark entity stale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *entityRepository) Delete(ctx context.Context, entityID uuid.UUID) error {
	query := `DELETE FROM engine_entities WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func marshalEntityPayloads(entity *models.Entity) ([]byte, []byte, error) {
	fields := entity.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal entity fields: %w", err)
	}

	evidence := entity.Evidence
	if evidence == nil {
		evidence = []models.EvidenceRef{}
	}
	evidenceJSON, err := json.Marshal(evidence)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal entity evidence: %w", err)
	}

	return fieldsJSON, evidenceJSON, nil
}

func scanEntity(row pgx.Row) (*models.Entity, error) {
	var (
		entity       models.Entity
		fieldsJSON   []byte
		evidenceJSON []byte
	)

	err := row.Scan(
		&entity.ID, &entity.ProjectID, &entity.EntityType, &entity.Name,
		&fieldsJSON, &evidenceJSON, &entity.SourceSignalIDs,
		&entity.ConfirmationStatus, &entity.IsStale, &entity.StaleReason,
		&entity.Embedding, &entity.CreatedAt, &entity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(fieldsJSON, &entity.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity fields: %w", err)
	}
	if err := json.Unmarshal(evidenceJSON, &entity.Evidence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity evidence: %w", err)
	}

	return &entity, nil
}

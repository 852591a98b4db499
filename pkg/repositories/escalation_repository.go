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

// EscalationRepository provides data access for the human review queue.
type EscalationRepository interface {
	Create(ctx context.Context, escalation *models.Escalation) error
	GetByID(ctx context.Context, escalationID uuid.UUID) (*models.Escalation, error)
	GetPendingByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Escalation, error)
	Resolve(ctx context.Context, escalationID uuid.UUID, status string, reviewedBy string) error
}

type escalationRepository struct {
	db *database.DB
}

// NewEscalationRepository creates a new EscalationRepository.
func NewEscalationRepository(db *database.DB) EscalationRepository {
	return &escalationRepository{db: db}
}

var _ EscalationRepository = (*escalationRepository)(nil)

func (r *escalationRepository) Create(ctx context.Context, escalation *models.Escalation) error {
	escalation.CreatedAt = time.Now()

	if escalation.ID == uuid.Nil {
		escalation.ID = uuid.New()
	}
	if escalation.Status == "" {
		escalation.Status = models.EscalationStatusPending
	}

	patchJSON, err := json.Marshal(escalation.Patch)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation patch: %w", err)
	}

	query := `
		INSERT INTO engine_escalations (
			id, project_id, signal_id, patch, confidence, reasoning,
			status, reviewed_by, reviewed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.Exec(ctx, query,
		escalation.ID, escalation.ProjectID, escalation.SignalID, patchJSON,
		escalation.Confidence, escalation.Reasoning, escalation.Status,
		escalation.ReviewedBy, escalation.ReviewedAt, escalation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}

	return nil
}

func (r *escalationRepository) GetByID(ctx context.Context, escalationID uuid.UUID) (*models.Escalation, error) {
	query := `
		SELECT id, project_id, signal_id, patch, confidence, reasoning,
		       status, reviewed_by, reviewed_at, created_at
		FROM engine_escalations
		WHERE id = $1`

	row := r.db.QueryRow(ctx, query, escalationID)
	escalation, err := scanEscalation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get escalation: %w", err)
	}

	return escalation, nil
}

func (r *escalationRepository) GetPendingByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Escalation, error) {
	query := `
		SELECT id, project_id, signal_id, patch, confidence, reasoning,
		       status, reviewed_by, reviewed_at, created_at
		FROM engine_escalations
		WHERE project_id = $1 AND status = $2
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, projectID, models.EscalationStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalations: %w", err)
	}
	defer rows.Close()

	var escalations []*models.Escalation
	for rows.Next() {
		escalation, err := scanEscalation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		escalations = append(escalations, escalation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escalations: %w", err)
	}

	return escalations, nil
}

func (r *escalationRepository) Resolve(ctx context.Context, escalationID uuid.UUID, status string, reviewedBy string) error {
	query := `
		UPDATE engine_escalations
		SET status = $2, reviewed_by = $3, reviewed_at = now()
		WHERE id = $1 AND status = $4`

	tag, err := r.db.Exec(ctx, query, escalationID, status, reviewedBy, models.EscalationStatusPending)
	if err != nil {
		return fmt.Errorf("failed to resolve escalation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanEscalation(row pgx.Row) (*models.Escalation, error) {
	var (
		e         models.Escalation
		patchJSON []byte
	)

	err := row.Scan(
		&e.ID, &e.ProjectID, &e.SignalID, &patchJSON, &e.Confidence,
		&e.Reasoning, &e.Status, &e.ReviewedBy, &e.ReviewedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(patchJSON, &e.Patch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal escalation patch: %w", err)
	}

	return &e, nil
}

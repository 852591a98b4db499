package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/scopeline-ai/scopeline-engine/pkg/apperrors"
	"github.com/scopeline-ai/scopeline-engine/pkg/database"
	"github.com/scopeline-ai/scopeline-engine/pkg/models"
)

// SignalRepository provides data access for incoming signals.
type SignalRepository interface {
	Create(ctx context.Context, signal *models.Signal) error
	GetByID(ctx context.Context, signalID uuid.UUID) (*models.Signal, error)
	GetByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Signal, error)
	UpdateStatus(ctx context.Context, signalID uuid.UUID, status string, errorMessage *string) error
	MarkProcessed(ctx context.Context, signalID uuid.UUID) error
}

type signalRepository struct {
	db *database.DB
}

// NewSignalRepository creates a new SignalRepository.
func NewSignalRepository(db *database.DB) SignalRepository {
	return &signalRepository{db: db}
}

var _ SignalRepository = (*signalRepository)(nil)

const signalColumns = `
	id, project_id, kind, title, body, source_authority, status,
	error_message, processed_at, created_at`

func (r *signalRepository) Create(ctx context.Context, signal *models.Signal) error {
	signal.CreatedAt = time.Now()

	if signal.ID == uuid.Nil {
		signal.ID = uuid.New()
	}
	if signal.Status == "" {
		signal.Status = models.SignalStatusPending
	}

	query := `
		INSERT INTO engine_signals (
			id, project_id, kind, title, body, source_authority, status,
			error_message, processed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		signal.ID, signal.ProjectID, signal.Kind, signal.Title, signal.Body,
		signal.SourceAuthority, signal.Status,
		signal.ErrorMessage, signal.ProcessedAt, signal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create signal: %w", err)
	}

	return nil
}

func (r *signalRepository) GetByID(ctx context.Context, signalID uuid.UUID) (*models.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM engine_signals WHERE id = $1`

	var s models.Signal
	err := r.db.QueryRow(ctx, query, signalID).Scan(
		&s.ID, &s.ProjectID, &s.Kind, &s.Title, &s.Body, &s.SourceAuthority,
		&s.Status, &s.ErrorMessage, &s.ProcessedAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get signal: %w", err)
	}

	return &s, nil
}

func (r *signalRepository) GetByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Signal, error) {
	query := `SELECT ` + signalColumns + `
		FROM engine_signals
		WHERE project_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []*models.Signal
	for rows.Next() {
		var s models.Signal
		if err := rows.Scan(
			&s.ID, &s.ProjectID, &s.Kind, &s.Title, &s.Body, &s.SourceAuthority,
			&s.Status, &s.ErrorMessage, &s.ProcessedAt, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		signals = append(signals, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signals: %w", err)
	}

	return signals, nil
}

func (r *signalRepository) UpdateStatus(ctx context.Context, signalID uuid.UUID, status string, errorMessage *string) error {
	query := `
		UPDATE engine_signals
		SET status = $2, error_message = $3
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, signalID, status, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update signal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *signalRepository) MarkProcessed(ctx context.Context, signalID uuid.UUID) error {
	query := `
		UPDATE engine_signals
		SET status = $2, error_message = NULL, processed_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, signalID, models.SignalStatusProcessed)
	if err != nil {
		return fmt.Errorf("failed to mark signal processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

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

// ProjectRepository provides data access for projects. The project record
// also carries the vision singleton that vision patches resolve to.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, projectID uuid.UUID) (*models.Project, error)
	List(ctx context.Context) ([]*models.Project, error)
	UpdateVision(ctx context.Context, projectID uuid.UUID, vision string) error
}

type projectRepository struct {
	db *database.DB
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *database.DB) ProjectRepository {
	return &projectRepository{db: db}
}

var _ ProjectRepository = (*projectRepository)(nil)

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}

	query := `
		INSERT INTO engine_projects (id, name, vision, vision_updated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		project.ID, project.Name, project.Vision, project.VisionUpdatedAt,
		project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

func (r *projectRepository) GetByID(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	query := `
		SELECT id, name, vision, vision_updated_at, created_at, updated_at
		FROM engine_projects
		WHERE id = $1`

	var p models.Project
	err := r.db.QueryRow(ctx, query, projectID).Scan(
		&p.ID, &p.Name, &p.Vision, &p.VisionUpdatedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &p, nil
}

func (r *projectRepository) List(ctx context.Context) ([]*models.Project, error) {
	query := `
		SELECT id, name, vision, vision_updated_at, created_at, updated_at
		FROM engine_projects
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Vision, &p.VisionUpdatedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

func (r *projectRepository) UpdateVision(ctx context.Context, projectID uuid.UUID, vision string) error {
	query := `
		UPDATE engine_projects
		SET vision = $2, vision_updated_at = now(), updated_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, projectID, vision)
	if err != nil {
		return fmt.Errorf("failed to update project vision: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scopeline-ai/scopeline-engine/pkg/apperrors"
	"github.com/scopeline-ai/scopeline-engine/pkg/database"
	"github.com/scopeline-ai/scopeline-engine/pkg/models"
)

// BeliefRepository provides data access for project beliefs and open
// questions -- the memory layer that scoring reads and belief impacts write.
type BeliefRepository interface {
	// Belief operations
	Create(ctx context.Context, belief *models.Belief) error
	GetActiveByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Belief, error)
	AppendEvidence(ctx context.Context, beliefID uuid.UUID, evidence string) error
	UpdateStatus(ctx context.Context, beliefID uuid.UUID, status string) error

	// Open question operations
	CreateQuestion(ctx context.Context, question *models.OpenQuestion) error
	GetOpenQuestions(ctx context.Context, projectID uuid.UUID) ([]*models.OpenQuestion, error)
	MarkAnswered(ctx context.Context, questionID uuid.UUID, signalID uuid.UUID) error
}

type beliefRepository struct {
	db *database.DB
}

// NewBeliefRepository creates a new BeliefRepository.
func NewBeliefRepository(db *database.DB) BeliefRepository {
	return &beliefRepository{db: db}
}

var _ BeliefRepository = (*beliefRepository)(nil)

func (r *beliefRepository) Create(ctx context.Context, belief *models.Belief) error {
	now := time.Now()
	belief.CreatedAt = now
	belief.UpdatedAt = now

	if belief.ID == uuid.Nil {
		belief.ID = uuid.New()
	}
	if belief.Status == "" {
		belief.Status = models.BeliefStatusActive
	}

	evidence := belief.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	evidenceJSON, err := json.Marshal(evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal belief evidence: %w", err)
	}

	query := `
		INSERT INTO engine_beliefs (id, project_id, summary, status, evidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.Exec(ctx, query,
		belief.ID, belief.ProjectID, belief.Summary, belief.Status,
		evidenceJSON, belief.CreatedAt, belief.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create belief: %w", err)
	}

	return nil
}

func (r *beliefRepository) GetActiveByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Belief, error) {
	query := `
		SELECT id, project_id, summary, status, evidence, created_at, updated_at
		FROM engine_beliefs
		WHERE project_id = $1 AND status = $2
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, projectID, models.BeliefStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query beliefs: %w", err)
	}
	defer rows.Close()

	var beliefs []*models.Belief
	for rows.Next() {
		var (
			b            models.Belief
			evidenceJSON []byte
		)
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Summary, &b.Status, &evidenceJSON, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan belief: %w", err)
		}
		if err := json.Unmarshal(evidenceJSON, &b.Evidence); err != nil {
			return nil, fmt.Errorf("failed to unmarshal belief evidence: %w", err)
		}
		beliefs = append(beliefs, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating beliefs: %w", err)
	}

	return beliefs, nil
}

func (r *beliefRepository) AppendEvidence(ctx context.Context, beliefID uuid.UUID, evidence string) error {
	query := `
		UPDATE engine_beliefs
		SET evidence = evidence || to_jsonb($2::text), updated_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, beliefID, evidence)
	if err != nil {
		return fmt.Errorf("failed to append belief evidence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *beliefRepository) UpdateStatus(ctx context.Context, beliefID uuid.UUID, status string) error {
	query := `
		UPDATE engine_beliefs
		SET status = $2, updated_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, beliefID, status)
	if err != nil {
		return fmt.Errorf("failed to update belief status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *beliefRepository) CreateQuestion(ctx context.Context, question *models.OpenQuestion) error {
	now := time.Now()
	question.CreatedAt = now
	question.UpdatedAt = now

	if question.ID == uuid.Nil {
		question.ID = uuid.New()
	}
	if question.Status == "" {
		question.Status = models.QuestionStatusOpen
	}

	query := `
		INSERT INTO engine_open_questions (id, project_id, question, status, answered_by_signal_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		question.ID, question.ProjectID, question.Question, question.Status,
		question.AnsweredBySignalID, question.CreatedAt, question.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create open question: %w", err)
	}

	return nil
}

func (r *beliefRepository) GetOpenQuestions(ctx context.Context, projectID uuid.UUID) ([]*models.OpenQuestion, error) {
	query := `
		SELECT id, project_id, question, status, answered_by_signal_id, created_at, updated_at
		FROM engine_open_questions
		WHERE project_id = $1 AND status = $2
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, projectID, models.QuestionStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to query open questions: %w", err)
	}
	defer rows.Close()

	var questions []*models.OpenQuestion
	for rows.Next() {
		var q models.OpenQuestion
		if err := rows.Scan(&q.ID, &q.ProjectID, &q.Question, &q.Status, &q.AnsweredBySignalID, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan open question: %w", err)
		}
		questions = append(questions, &q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating open questions: %w", err)
	}

	return questions, nil
}

func (r *beliefRepository) MarkAnswered(ctx context.Context, questionID uuid.UUID, signalID uuid.UUID) error {
	query := `
		UPDATE engine_open_questions
		SET status = $2, answered_by_signal_id = $3, updated_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, questionID, models.QuestionStatusAnswered, signalID)
	if err != nil {
		return fmt.Errorf("failed to mark question answered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/scopeline-ai/scopeline-engine/pkg/apperrors"
	"github.com/scopeline-ai/scopeline-engine/pkg/models"
	"github.com/scopeline-ai/scopeline-engine/pkg/repositories"
)

// mockEntityRepo is an in-memory entity repository with optional function
// overrides for failure injection.
type mockEntityRepo struct {
	entities map[uuid.UUID]*models.Entity

	CreateFunc   func(ctx context.Context, entity *models.Entity) error
	UpdateFunc   func(ctx context.Context, entity *models.Entity) error
	GetByIDFunc  func(ctx context.Context, entityID uuid.UUID) (*models.Entity, error)
	byTypeErr    error
	createdCount int
}

func newMockEntityRepo() *mockEntityRepo {
	return &mockEntityRepo{entities: map[uuid.UUID]*models.Entity{}}
}

func (m *mockEntityRepo) add(entity *models.Entity) *models.Entity {
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	m.entities[entity.ID] = entity
	return entity
}

func (m *mockEntityRepo) Create(ctx context.Context, entity *models.Entity) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entity)
	}
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	m.entities[entity.ID] = entity
	m.createdCount++
	return nil
}

func (m *mockEntityRepo) GetByID(ctx context.Context, entityID uuid.UUID) (*models.Entity, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, entityID)
	}
	entity, ok := m.entities[entityID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return entity, nil
}

func (m *mockEntityRepo) GetByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Entity, error) {
	var out []*models.Entity
	for _, entity := range m.entities {
		if entity.ProjectID == projectID {
			out = append(out, entity)
		}
	}
	return out, nil
}

func (m *mockEntityRepo) GetByProjectAndType(ctx context.Context, projectID uuid.UUID, entityType models.EntityType) ([]*models.Entity, error) {
	if m.byTypeErr != nil {
		return nil, m.byTypeErr
	}
	var out []*models.Entity
	for _, entity := range m.entities {
		if entity.ProjectID == projectID && entity.EntityType == entityType {
			out = append(out, entity)
		}
	}
	return out, nil
}

func (m *mockEntityRepo) Update(ctx context.Context, entity *models.Entity) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, entity)
	}
	if _, ok := m.entities[entity.ID]; !ok {
		return apperrors.ErrNotFound
	}
	m.entities[entity.ID] = entity
	return nil
}

func (m *mockEntityRepo) SetStale(ctx context.Context, entityID uuid.UUID, reason string) error {
	entity, ok := m.entities[entityID]
	if !ok {
		return apperrors.ErrNotFound
	}
	entity.IsStale = true
	entity.StaleReason = &reason
	return nil
}

func (m *mockEntityRepo) Delete(ctx context.Context, entityID uuid.UUID) error {
	if _, ok := m.entities[entityID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.entities, entityID)
	return nil
}

var _ repositories.EntityRepository = (*mockEntityRepo)(nil)

// mockProjectRepo tracks vision writes.
type mockProjectRepo struct {
	projects map[uuid.UUID]*models.Project
	visions  []string
}

func newMockProjectRepo() *mockProjectRepo {
	return &mockProjectRepo{projects: map[uuid.UUID]*models.Project{}}
}

func (m *mockProjectRepo) Create(ctx context.Context, project *models.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	m.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepo) GetByID(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	project, ok := m.projects[projectID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return project, nil
}

func (m *mockProjectRepo) List(ctx context.Context) ([]*models.Project, error) {
	var out []*models.Project
	for _, project := range m.projects {
		out = append(out, project)
	}
	return out, nil
}

func (m *mockProjectRepo) UpdateVision(ctx context.Context, projectID uuid.UUID, vision string) error {
	m.visions = append(m.visions, vision)
	if project, ok := m.projects[projectID]; ok {
		project.Vision = vision
	}
	return nil
}

var _ repositories.ProjectRepository = (*mockProjectRepo)(nil)

// mockEscalationRepo records created escalations.
type mockEscalationRepo struct {
	created []*models.Escalation
}

func (m *mockEscalationRepo) Create(ctx context.Context, escalation *models.Escalation) error {
	m.created = append(m.created, escalation)
	return nil
}

func (m *mockEscalationRepo) GetByID(ctx context.Context, escalationID uuid.UUID) (*models.Escalation, error) {
	return nil, apperrors.ErrNotFound
}

func (m *mockEscalationRepo) GetPendingByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Escalation, error) {
	return m.created, nil
}

func (m *mockEscalationRepo) Resolve(ctx context.Context, escalationID uuid.UUID, status string, reviewedBy string) error {
	return nil
}

var _ repositories.EscalationRepository = (*mockEscalationRepo)(nil)

// mockRevisionRepo records revisions and evidence links.
type mockRevisionRepo struct {
	revisions []*models.StateRevision
	links     []*models.EvidenceLink
}

func (m *mockRevisionRepo) CreateRevision(ctx context.Context, revision *models.StateRevision) error {
	m.revisions = append(m.revisions, revision)
	return nil
}

func (m *mockRevisionRepo) GetRevisionsByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*models.StateRevision, error) {
	return m.revisions, nil
}

func (m *mockRevisionRepo) CreateEvidenceLink(ctx context.Context, link *models.EvidenceLink) error {
	m.links = append(m.links, link)
	return nil
}

func (m *mockRevisionRepo) GetEvidenceLinksByEntity(ctx context.Context, entityID uuid.UUID) ([]*models.EvidenceLink, error) {
	return m.links, nil
}

var _ repositories.RevisionRepository = (*mockRevisionRepo)(nil)

// mockSignalRepo is an in-memory signal repository.
type mockSignalRepo struct {
	signals  map[uuid.UUID]*models.Signal
	statuses []string
}

func newMockSignalRepo() *mockSignalRepo {
	return &mockSignalRepo{signals: map[uuid.UUID]*models.Signal{}}
}

func (m *mockSignalRepo) add(signal *models.Signal) *models.Signal {
	if signal.ID == uuid.Nil {
		signal.ID = uuid.New()
	}
	m.signals[signal.ID] = signal
	return signal
}

func (m *mockSignalRepo) Create(ctx context.Context, signal *models.Signal) error {
	m.add(signal)
	return nil
}

func (m *mockSignalRepo) GetByID(ctx context.Context, signalID uuid.UUID) (*models.Signal, error) {
	signal, ok := m.signals[signalID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return signal, nil
}

func (m *mockSignalRepo) GetByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Signal, error) {
	var out []*models.Signal
	for _, signal := range m.signals {
		if signal.ProjectID == projectID {
			out = append(out, signal)
		}
	}
	return out, nil
}

func (m *mockSignalRepo) UpdateStatus(ctx context.Context, signalID uuid.UUID, status string, errorMessage *string) error {
	m.statuses = append(m.statuses, status)
	if signal, ok := m.signals[signalID]; ok {
		signal.Status = status
		signal.ErrorMessage = errorMessage
	}
	return nil
}

func (m *mockSignalRepo) MarkProcessed(ctx context.Context, signalID uuid.UUID) error {
	m.statuses = append(m.statuses, models.SignalStatusProcessed)
	if signal, ok := m.signals[signalID]; ok {
		signal.Status = models.SignalStatusProcessed
	}
	return nil
}

var _ repositories.SignalRepository = (*mockSignalRepo)(nil)

// mockBeliefRepo is an in-memory belief and open-question repository.
type mockBeliefRepo struct {
	beliefs   []*models.Belief
	questions []*models.OpenQuestion
	appended  map[uuid.UUID][]string
	answered  []uuid.UUID
}

func newMockBeliefRepo() *mockBeliefRepo {
	return &mockBeliefRepo{appended: map[uuid.UUID][]string{}}
}

func (m *mockBeliefRepo) Create(ctx context.Context, belief *models.Belief) error {
	if belief.ID == uuid.Nil {
		belief.ID = uuid.New()
	}
	m.beliefs = append(m.beliefs, belief)
	return nil
}

func (m *mockBeliefRepo) GetActiveByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Belief, error) {
	return m.beliefs, nil
}

func (m *mockBeliefRepo) AppendEvidence(ctx context.Context, beliefID uuid.UUID, evidence string) error {
	m.appended[beliefID] = append(m.appended[beliefID], evidence)
	return nil
}

func (m *mockBeliefRepo) UpdateStatus(ctx context.Context, beliefID uuid.UUID, status string) error {
	return nil
}

func (m *mockBeliefRepo) CreateQuestion(ctx context.Context, question *models.OpenQuestion) error {
	if question.ID == uuid.Nil {
		question.ID = uuid.New()
	}
	m.questions = append(m.questions, question)
	return nil
}

func (m *mockBeliefRepo) GetOpenQuestions(ctx context.Context, projectID uuid.UUID) ([]*models.OpenQuestion, error) {
	return m.questions, nil
}

func (m *mockBeliefRepo) MarkAnswered(ctx context.Context, questionID uuid.UUID, signalID uuid.UUID) error {
	m.answered = append(m.answered, questionID)
	return nil
}

var _ repositories.BeliefRepository = (*mockBeliefRepo)(nil)

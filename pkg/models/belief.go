package models

import (
	"time"

	"github.com/google/uuid"
)

// Belief status constants.
const (
	BeliefStatusActive  = "active"
	BeliefStatusRetired = "retired"
)

// Belief is a standing proposition in the project's memory store that new
// patches may support, contradict, or refine.
// Stored in the engine_beliefs table.
type Belief struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Summary   string    `json:"summary"`
	Status    string    `json:"status"`
	Evidence  []string  `json:"evidence"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open question status constants.
const (
	QuestionStatusOpen     = "open"
	QuestionStatusAnswered = "answered"
)

// OpenQuestion is a known gap in the requirements model that a patch may
// resolve. Stored in the engine_open_questions table.
type OpenQuestion struct {
	ID                 uuid.UUID  `json:"id"`
	ProjectID          uuid.UUID  `json:"project_id"`
	Question           string     `json:"question"`
	Status             string     `json:"status"`
	AnsweredBySignalID *uuid.UUID `json:"answered_by_signal_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

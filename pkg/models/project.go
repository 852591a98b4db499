package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is the owning record for a requirements model. Vision is a
// singleton field here rather than an entity row: vision patches resolve to
// this record. Stored in the engine_projects table.
type Project struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Vision          string     `json:"vision"`
	VisionUpdatedAt *time.Time `json:"vision_updated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

package dto

import (
	"github.com/shopstr-eng/shopstr-cache/internal/domain"
)

// EntityListResponse is the body of the entity list endpoints
type EntityListResponse struct {
	Class    domain.EntityClass `json:"class"`
	Count    int                `json:"count"`
	Entities []domain.Entity    `json:"entities"`
}

// NewEntityListResponse wraps entities, never encoding a null list
func NewEntityListResponse(class domain.EntityClass, entities []domain.Entity) *EntityListResponse {
	if entities == nil {
		entities = []domain.Entity{}
	}
	return &EntityListResponse{
		Class:    class,
		Count:    len(entities),
		Entities: entities,
	}
}

// EntityResponse is the body of GET /entities/:class/:id
type EntityResponse struct {
	Class  domain.EntityClass `json:"class"`
	Entity domain.Entity      `json:"entity"`
}

// IngestResponse is the body of POST /ingest/:class
type IngestResponse struct {
	// Skipped is set when the pass joined a refresh that found the class fresh
	Skipped bool                    `json:"skipped"`
	Report  *domain.IngestionReport `json:"report,omitempty"`
}

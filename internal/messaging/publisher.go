package messaging

import (
	"context"
	"time"

	"github.com/shopstr-eng/shopstr-cache/internal/domain"
)

// EntitiesUpdated is published after an ingestion pass stores new rows of a class
type EntitiesUpdated struct {
	Class    domain.EntityClass `json:"class"`
	PassID   string             `json:"pass_id"`
	Accepted int64              `json:"accepted"`
	At       time.Time          `json:"at"`
}

// Publisher defines the interface for publishing entity notifications to the message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishEntitiesUpdated publishes a notification for a class
	PublishEntitiesUpdated(ctx context.Context, event *EntitiesUpdated) error
	// Close closes the connection
	Close()
}

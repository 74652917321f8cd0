package service

import (
	"context"
	"time"

	"pricetrack/tracker-service/internal/app/tracker/entity"
)

// Scorer rates how likely two product names describe the same item,
// 0..100. Unscorable names (empty after normalization) return an error.
type Scorer interface {
	Score(a, b string) (int, error)
}

// MessagePublisher sends run lifecycle events to the message broker.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, key string, value []byte) error
	Close() error
}

// GroupCache fronts the group listing only. Price data is never cached:
// history reads always hit the database.
type GroupCache interface {
	GetGroups(ctx context.Context) ([]entity.GroupSummary, error)
	SetGroups(ctx context.Context, groups []entity.GroupSummary, ttl time.Duration) error
	DeleteGroups(ctx context.Context) error
	Close() error
}

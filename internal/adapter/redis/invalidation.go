package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

const invalidationChannel = "blueprint:invalidate"

type invalidationMessage struct {
	Origin     string `json:"origin"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// InvalidationPublisher announces document changes. Origin identifies this process
// so its own subscriber can skip the echo.
type InvalidationPublisher struct {
	rdb    *goredis.Client
	origin string
}

var _ domain.CacheInvalidator = (*InvalidationPublisher)(nil)

func NewInvalidationPublisher(rdb *goredis.Client, origin string) *InvalidationPublisher {
	return &InvalidationPublisher{rdb: rdb, origin: origin}
}

func (p *InvalidationPublisher) PublishInvalidation(ctx context.Context, collection, id string) error {
	payload, err := json.Marshal(invalidationMessage{Origin: p.origin, Collection: collection, ID: id})
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation: %w", err)
	}
	if err := p.rdb.Publish(ctx, invalidationChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Invalidator drops a locally cached document.
type Invalidator interface {
	Invalidate(collection, id string) error
}

type InvalidationSubscriber struct {
	rdb    *goredis.Client
	target Invalidator
	origin string
}

func NewInvalidationSubscriber(rdb *goredis.Client, target Invalidator, origin string) *InvalidationSubscriber {
	return &InvalidationSubscriber{rdb: rdb, target: target, origin: origin}
}

// Start blocks until ctx is cancelled or the subscription closes.
func (s *InvalidationSubscriber) Start(ctx context.Context) {
	pubsub := s.rdb.Subscribe(ctx, invalidationChannel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			s.handleInvalidation(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (s *InvalidationSubscriber) handleInvalidation(payload string) {
	var msg invalidationMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		slog.Warn("Malformed invalidation message", "error", err)
		return
	}
	if msg.ID == "" {
		slog.Warn("Empty invalidation message", "collection", msg.Collection)
		return
	}
	if msg.Origin != "" && msg.Origin == s.origin {
		return
	}

	if err := s.target.Invalidate(msg.Collection, msg.ID); err != nil {
		slog.Warn("Failed to invalidate cache via pub/sub", "collection", msg.Collection, "id", msg.ID, "error", err)
		return
	}
	slog.Debug("Cache invalidated via pub/sub", "collection", msg.Collection, "id", msg.ID)
}

package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ct-watchtower/watchtower/internal/model"
)

// PubSub publishes each match to a Redis channel and, when listKey is set,
// also left-pushes it onto a list, trimming to maxQueueSize when
// maxQueueSize > 0.
type PubSub struct {
	client       *redis.Client
	channel      string
	listKey      string
	maxQueueSize int64
}

// NewPubSub creates a PubSub sink. listKey == "" disables the capped-list
// write; only the channel publish happens.
func NewPubSub(client *redis.Client, channel, listKey string, maxQueueSize int64) *PubSub {
	return &PubSub{
		client:       client,
		channel:      channel,
		listKey:      listKey,
		maxQueueSize: maxQueueSize,
	}
}

func (p *PubSub) Emit(ctx context.Context, rec model.MatchRecord) error {
	body, err := json.Marshal(toPayload(rec))
	if err != nil {
		return fmt.Errorf("pubsub: marshal: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("pubsub: publish: %w", err)
	}

	if p.listKey == "" {
		return nil
	}

	pipe := p.client.TxPipeline()
	pipe.LPush(ctx, p.listKey, body)

	if p.maxQueueSize > 0 {
		pipe.LTrim(ctx, p.listKey, 0, p.maxQueueSize-1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pubsub: list push: %w", err)
	}

	return nil
}

func (p *PubSub) Flush(context.Context) error { return nil }

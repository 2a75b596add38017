// Package telemetry publishes decoded register snapshots to Redis, for
// collaborators that want to observe pack state without holding the
// serial port themselves. It is optional: a Session works with or without
// a Publisher attached.
package telemetry

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mnh-jansson/m18-protocol/pkg/schema"
)

// Key is the Redis hash decoded register values are written to, and the
// channel they are published on.
const Key = "m18:registers"

// Publisher writes decoded register values to Redis, both as hash fields
// (for point-in-time queries) and as pub/sub messages (for subscribers
// that want updates as they happen).
type Publisher struct {
	client *redis.Client
	ctx    context.Context
}

// New connects to a Redis instance at addr and returns a Publisher.
func New(addr, password string, db int) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return &Publisher{client: client, ctx: ctx}, nil
}

// PublishValue writes a single decoded value to the hash and publishes its
// rendered form.
func (p *Publisher) PublishValue(id schema.ID, v schema.Value) error {
	rendered := v.String()
	pipe := p.client.Pipeline()
	pipe.HSet(p.ctx, Key, string(id), rendered)
	pipe.Publish(p.ctx, Key, fmt.Sprintf("%s:%s", id, rendered))
	_, err := pipe.Exec(p.ctx)
	return err
}

// PublishSnapshot writes every value in snapshot, in a single pipeline.
func (p *Publisher) PublishSnapshot(snapshot map[schema.ID]schema.Value) error {
	pipe := p.client.Pipeline()
	for id, v := range snapshot {
		rendered := v.String()
		pipe.HSet(p.ctx, Key, string(id), rendered)
		pipe.Publish(p.ctx, Key, fmt.Sprintf("%s:%s", id, rendered))
	}
	_, err := pipe.Exec(p.ctx)
	return err
}

// Close closes the underlying Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

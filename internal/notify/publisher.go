// Package notify delivers best-effort booking events to interested
// listeners. Delivery is fire-and-forget: a failed publish is logged by
// the caller and never fails the request that produced the event.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Topics carried over the publisher. WebSocket clients subscribe by
// these names.
const (
	TopicAppointmentCreated     = "appointments.created"
	TopicAppointmentStatus      = "appointments.status_changed"
	TopicAppointmentRescheduled = "appointments.rescheduled"
	TopicFollowUpDue            = "appointments.followup_due"
)

// Publisher is injected into the scheduling service so the core stays
// testable without a real transport.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// RedisPublisher broadcasts events over Redis pub/sub, fanning out to
// other service instances (each instance bridges its subscribers through
// its local hub).
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if err := p.client.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Fanout publishes to every wrapped publisher, returning the first error
// after attempting all of them.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, topic string, payload any) error {
	var firstErr error
	for _, p := range f {
		if err := p.Publish(ctx, topic, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Nop discards every event. Used in tests and the worker when no
// downstream transport is wired.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

package events

import (
	"context"
	"encoding/json"
	"fmt"

	model "github.com/Olivier33jnspe/bidmenow/internal/models"

	"github.com/go-redis/redis/v8"
)

// DefaultChannel is the pub/sub channel engine events are published on
const DefaultChannel = "auction_events"

// Publisher delivers committed engine events to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, event model.Event) error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.Event) error { return nil }

// RedisPublisher publishes events as JSON on a Redis pub/sub channel
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher on channel, defaulting to DefaultChannel
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Publish encodes and publishes one event
func (p *RedisPublisher) Publish(ctx context.Context, event model.Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("events: publish %s for auction %s: %w", event.Type, event.AuctionID, err)
	}
	return nil
}

// Channel returns the channel events are published on
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Encode renders an event as its wire payload
func Encode(event model.Event) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("events: encode %s: %w", event.Type, err)
	}
	return string(data), nil
}

// Decode parses a wire payload back into an event
func Decode(payload string) (model.Event, error) {
	var event model.Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return model.Event{}, fmt.Errorf("events: decode payload: %w", err)
	}
	if event.Type == "" || event.AuctionID == "" {
		return model.Event{}, fmt.Errorf("events: decode payload: missing type or auction id")
	}
	return event, nil
}

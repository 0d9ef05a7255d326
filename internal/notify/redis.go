package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultStream receives notifications for downstream delivery channels.
const DefaultStream = "job-autopilot:notifications"

// Redis appends notifications to a stream consumed by the delivery services.
type Redis struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedis(client *redis.Client, stream string) *Redis {
	if stream == "" {
		stream = DefaultStream
	}
	return &Redis{client: client, stream: stream, maxLen: 10000}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Send(ctx context.Context, userID string, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"user_id":      userID,
			"kind":         string(n.Kind),
			"priority":     string(n.Priority),
			"notification": string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to stream: %w", err)
	}
	return nil
}

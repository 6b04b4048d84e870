package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
	"github.com/sirupsen/logrus"

	"whatado/event-service/internal/models"
)

// Publisher hands push notification triggers to the delivery side
type Publisher interface {
	Publish(ctx context.Context, n models.PushNotification) error
	Close() error
}

// Encode renders the wire payload for n
func Encode(n models.PushNotification) ([]byte, error) {
	if n.Data == nil {
		n.Data = map[string]string{}
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}
	return payload, nil
}

type redisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher connects to redisURL and publishes on channel
func NewRedisPublisher(ctx context.Context, redisURL, channel string) (Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.MaintNotificationsConfig = &maintnotifications.Config{
		Mode: maintnotifications.ModeDisabled,
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisPublisherWithClient(client, channel), nil
}

func NewRedisPublisherWithClient(client *redis.Client, channel string) Publisher {
	return &redisPublisher{client: client, channel: channel}
}

func (p *redisPublisher) Publish(ctx context.Context, n models.PushNotification) error {
	if len(n.Recipients) == 0 {
		return nil
	}
	payload, err := Encode(n)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}
	return nil
}

func (p *redisPublisher) Close() error {
	return p.client.Close()
}

type logPublisher struct {
	log *logrus.Logger
}

// NewLogPublisher writes notifications to the log instead of delivering them.
// Used when no Redis URL is configured.
func NewLogPublisher(log *logrus.Logger) Publisher {
	return &logPublisher{log: log}
}

func (p *logPublisher) Publish(_ context.Context, n models.PushNotification) error {
	p.log.WithFields(logrus.Fields{
		"recipients": n.Recipients,
		"title":      n.Title,
		"data":       n.Data,
	}).Info("push notification")
	return nil
}

func (p *logPublisher) Close() error { return nil }

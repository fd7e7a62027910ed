package notification

import (
    "context"
    "encoding/json"
    "fmt"
    "log/slog"

    "github.com/redis/go-redis/v9"
)

const (
    // KindTokenReceived tells an account it was credited by a transfer.
    KindTokenReceived = "token_received"
    // KindTokenMinted tells an account it was credited by a mint.
    KindTokenMinted = "token_minted"

    // Channel is the Redis pub/sub channel RedisNotifier publishes to.
    Channel = "token:notifications"
)

// Message describes a notification payload.
type Message struct {
    Kind        string `json:"kind"`
    Destination string `json:"destination"`
    Body        string `json:"body"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
    Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
    logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
    return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
    if n == nil || n.logger == nil {
        return nil
    }
    n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
    return nil
}

// RedisNotifier publishes notifications as JSON on a Redis channel.
type RedisNotifier struct {
    client  *redis.Client
    channel string
}

// NewRedisNotifier publishes on Channel through client.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
    return &RedisNotifier{client: client, channel: Channel}
}

// Send publishes the message.
func (n *RedisNotifier) Send(ctx context.Context, message Message) error {
    payload, err := json.Marshal(message)
    if err != nil {
        return fmt.Errorf("encode notification: %w", err)
    }
    if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
        return fmt.Errorf("publish notification: %w", err)
    }
    return nil
}

// New picks the Redis notifier when a client is available and falls back to
// the logger otherwise.
func New(client *redis.Client, logger *slog.Logger) Notifier {
    if client == nil {
        return NewLoggerNotifier(logger)
    }
    return NewRedisNotifier(client)
}

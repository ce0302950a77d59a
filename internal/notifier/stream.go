package notifier

import (
	"context"
	"fmt"

	rediscommon "github.com/Nordur12/SmartAquaria/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamNotifier appends alerts to a Redis Stream consumed by a delivery worker
type StreamNotifier struct {
	redisClient *redis.Client
	stream      string
	logger      *zap.Logger
}

// NewStreamNotifier creates a stream notifier
func NewStreamNotifier(redisClient *redis.Client, stream string, logger *zap.Logger) *StreamNotifier {
	return &StreamNotifier{
		redisClient: redisClient,
		stream:      stream,
		logger:      logger,
	}
}

// Send XADDs the alert to the stream
func (n *StreamNotifier) Send(ctx context.Context, target, title, body string) error {
	msg := newMessage(target, title, body)

	id, err := rediscommon.PublishToStream(ctx, n.redisClient, n.stream, map[string]interface{}{
		"target":  msg.Target,
		"title":   msg.Title,
		"message": msg.Message,
		"popup":   msg.Popup,
		"sent_at": msg.SentAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", n.stream, err)
	}

	n.logger.Debug("Alert appended to stream",
		zap.String("stream", n.stream),
		zap.String("message_id", id),
	)
	return nil
}

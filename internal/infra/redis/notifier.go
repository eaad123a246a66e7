package redis

import (
	"context"
	"encoding/json"

	"exam-reward-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Notifier publishes notifications as JSON on a pub/sub channel. Delivery is
// best effort; failures are logged and never surface to the caller.
type Notifier struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

func NewNotifier(client *redis.Client, channel string, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{client: client, channel: channel, log: log}
}

func (n *Notifier) Notify(ctx context.Context, msg domain.Notification) {
	raw, err := json.Marshal(msg)
	if err != nil {
		n.log.Error("encode notification", zap.Error(err))
		return
	}
	if err := n.client.Publish(ctx, n.channel, raw).Err(); err != nil {
		n.log.Warn("publish notification",
			zap.String("userId", msg.UserID),
			zap.String("kind", string(msg.Kind)),
			zap.Error(err),
		)
	}
}

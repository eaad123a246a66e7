// Package notify holds Notifier implementations that do not need a broker.
package notify

import (
	"context"

	"exam-reward-service/internal/app"
	"exam-reward-service/internal/domain"
	"go.uber.org/zap"
)

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, msg domain.Notification) {
	n.log.Info("notification",
		zap.String("id", msg.ID),
		zap.String("userId", msg.UserID),
		zap.String("kind", string(msg.Kind)),
		zap.String("title", msg.Title),
		zap.String("message", msg.Message),
		zap.String("link", msg.Link),
	)
}

// Fanout delivers each notification to every wrapped notifier in order.
type Fanout []app.Notifier

func (f Fanout) Notify(ctx context.Context, msg domain.Notification) {
	for _, n := range f {
		if n != nil {
			n.Notify(ctx, msg)
		}
	}
}

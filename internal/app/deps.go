package app

import (
	"context"
	"time"

	"exam-reward-service/internal/domain"
	"exam-reward-service/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Deps carries the collaborators shared by the use-case services.
type Deps struct {
	Sessions SessionRepository
	Exams    ExamRepository
	Store    Transactor
	Notifier Notifier
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	// Now is injectable for deterministic timestamps in tests.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Notifier == nil {
		d.Notifier = discardNotifier{}
	}
	return d
}

func (d Deps) notify(ctx context.Context, userID, title, message string, kind domain.NotificationKind, link string) {
	d.Notifier.Notify(ctx, domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Kind:      kind,
		Link:      link,
		CreatedAt: d.Now(),
	})
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, domain.Notification) {}

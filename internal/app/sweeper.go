package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically finalises sessions abandoned past their deadline.
type Sweeper struct {
	exams    *ExamService
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(exams *ExamService, interval time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{exams: exams, interval: interval, log: log}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one pass and returns how many sessions were finalised.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	n, err := s.exams.FinalizeExpired(ctx)
	if err != nil {
		s.log.Error("session sweep failed", zap.Error(err))
	}
	if n > 0 {
		s.log.Info("expired sessions finalised", zap.Int("count", n))
	}
	return n
}

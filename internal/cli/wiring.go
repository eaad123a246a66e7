package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"exam-reward-service/internal/app"
	"exam-reward-service/internal/config"
	"exam-reward-service/internal/infra/memory"
	"exam-reward-service/internal/infra/postgres"
	infraredis "exam-reward-service/internal/infra/redis"
	"exam-reward-service/internal/logging"
	"exam-reward-service/internal/metrics"
	"exam-reward-service/internal/notify"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// services is the wired application shared by every command.
type services struct {
	cfg      config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	exams    *app.ExamService
	ledger   *app.Ledger
	contests *app.ContestService
	closers  []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	_ = s.log.Sync()
}

// loadConfig falls back to defaults when the config file does not exist.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

// buildServices picks Postgres when a URL is configured (the in-memory store with
// sample data otherwise) and Redis for sessions, exam cache and notifications when
// an address is configured.
func buildServices(ctx context.Context, cfg config.Config) (*services, error) {
	log := logging.New(cfg.Log)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s := &services{cfg: cfg, log: log, registry: registry, metrics: metrics.New(registry)}

	cacheTTL := config.TTLDuration(cfg.Exam.CacheTTL, 10*time.Minute)

	var (
		store  app.Transactor
		loader memory.ExamLoader
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		store = postgres.NewStore(pool)
		loader = postgres.NewExamLoader(pool)
		log.Info("using postgres store")
	} else {
		mem := memory.NewStore()
		seedSampleData(mem)
		store, loader = mem, mem
		log.Warn("postgres url not configured, using in-memory store with sample data")
	}

	notifiers := notify.Fanout{notify.NewLogNotifier(log.Named("notify"))}
	var (
		sessions app.SessionRepository
		exams    app.ExamRepository
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		sessions = infraredis.NewSessionStore(client, 30*24*time.Hour)
		exams = infraredis.NewExamRepository(client, loader, cacheTTL, log)
		if cfg.Redis.Channel != "" {
			notifiers = append(notifiers, infraredis.NewNotifier(client, cfg.Redis.Channel, log))
		}
	} else {
		sessions = memory.NewSessionStore()
		exams = memory.NewExamRepository(loader, cacheTTL)
	}

	deps := app.Deps{
		Sessions: sessions,
		Exams:    exams,
		Store:    store,
		Notifier: notifiers,
		Metrics:  s.metrics,
		Logger:   log,
	}
	rules := app.Rules{
		MinElapsed: config.TTLDuration(cfg.Exam.MinElapsed, 10*time.Second),
		Grace:      config.TTLDuration(cfg.Exam.Grace, 30*time.Second),
	}
	s.exams = app.NewExamService(deps, rules)
	s.ledger = app.NewLedger(deps, app.EconomyRules{
		AdWatchReward:       cfg.Economy.AdWatchReward,
		ReferralReward:      cfg.Economy.ReferralReward,
		PointConversionRate: decimal.NewFromFloat(cfg.Economy.PointConversionRate),
		CommissionPercent:   decimal.NewFromFloat(cfg.Economy.CommissionPercent),
		Shop:                cfg.Economy.Shop,
	})
	s.contests = app.NewContestService(deps, nil)
	return s, nil
}

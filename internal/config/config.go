package config

import (
	"os"
	"time"

	"exam-reward-service/internal/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		// Channel receives JSON notifications when set.
		Channel string `yaml:"channel"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Exam struct {
		CacheTTL      string `yaml:"cache_ttl"`
		MinElapsed    string `yaml:"min_elapsed"`
		Grace         string `yaml:"grace"`
		SweepInterval string `yaml:"sweep_interval"`
	} `yaml:"exam"`
	Economy Economy `yaml:"economy"`
	Log     Log     `yaml:"log"`
}

// Economy holds the fixed amounts and rates of the points economy.
type Economy struct {
	AdWatchReward       int               `yaml:"ad_watch_reward"`
	ReferralReward      int               `yaml:"referral_reward"`
	PointConversionRate float64           `yaml:"point_conversion_rate"`
	CommissionPercent   float64           `yaml:"commission_percent"`
	Shop                []domain.ShopItem `yaml:"shop"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File enables a rotated JSON log file next to the console output.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used when no file overrides a value.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Redis.Channel = "notifications"
	cfg.Exam.CacheTTL = "10m"
	cfg.Exam.MinElapsed = "10s"
	cfg.Exam.Grace = "30s"
	cfg.Exam.SweepInterval = "1m"
	cfg.Economy = Economy{
		AdWatchReward:       5,
		ReferralReward:      50,
		PointConversionRate: 0.01,
		CommissionPercent:   20,
	}
	cfg.Log = Log{Level: "info", Format: "json", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30}
	return cfg
}

// Load reads YAML config from path on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

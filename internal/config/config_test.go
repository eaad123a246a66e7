package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
server:
  port: "9090"
exam:
  grace: 45s
economy:
  ad_watch_reward: 7
  commission_percent: 15
  shop:
    - id: avatar-gold
      name: Gold avatar
      price: 120
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %s", cfg.Server.Port)
	}
	if got := TTLDuration(cfg.Exam.Grace, 0); got != 45*time.Second {
		t.Fatalf("expected 45s grace, got %s", got)
	}
	if cfg.Exam.MinElapsed != "10s" {
		t.Fatalf("expected default min elapsed, got %q", cfg.Exam.MinElapsed)
	}
	if cfg.Economy.AdWatchReward != 7 || cfg.Economy.ReferralReward != 50 {
		t.Fatalf("unexpected economy %+v", cfg.Economy)
	}
	if len(cfg.Economy.Shop) != 1 || cfg.Economy.Shop[0].Price != 120 {
		t.Fatalf("unexpected shop %+v", cfg.Economy.Shop)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log config %+v", cfg.Log)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback on parse error, got %s", got)
	}
	if got := TTLDuration("2s", time.Minute); got != 2*time.Second {
		t.Fatalf("expected 2s, got %s", got)
	}
}

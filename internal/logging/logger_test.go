package logging

import (
	"os"
	"path/filepath"
	"testing"

	"exam-reward-service/internal/config"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "debug",
		"WARN":    "warn",
		"error":   "error",
		"":        "info",
		"verbose": "info",
	}
	for raw, want := range cases {
		if got := ParseLevel(raw).String(); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log := New(config.Log{Level: "info", Format: "console", File: path, MaxSizeMB: 1})
	log.Info("session started", zap.String("examId", "exam-1"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log output in %s", path)
	}
}

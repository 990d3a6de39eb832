package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
log:
  level: debug
auth:
  secret: s3cret
  ttl: 2h
redis:
  addr: localhost:6379
  db: 2
  channel: events
bank:
  ttl: 30s
engine:
  joinCodeAttempts: 5
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected server/log section: %+v", cfg)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 || cfg.Redis.Channel != "events" {
		t.Fatalf("unexpected redis section: %+v", cfg.Redis)
	}
	if cfg.Engine.JoinCodeAttempts != 5 || cfg.Engine.LeaderboardLimit != 0 {
		t.Fatalf("unexpected engine section: %+v", cfg.Engine)
	}
	if got := TTLDuration(cfg.Bank.TTL, time.Minute); got != 30*time.Second {
		t.Fatalf("expected bank ttl 30s, got %v", got)
	}
	if got := TTLDuration(cfg.Auth.TTL, time.Minute); got != 2*time.Hour {
		t.Fatalf("expected auth ttl 2h, got %v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", 10*time.Minute); got != 10*time.Minute {
		t.Fatalf("empty: got %v", got)
	}
	if got := TTLDuration("soon", 10*time.Minute); got != 10*time.Minute {
		t.Fatalf("garbage: got %v", got)
	}
}

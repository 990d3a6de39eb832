package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quiz-session-engine/internal/auth"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTokenCommandIssuesParsableToken(t *testing.T) {
	path := writeConfig(t, "auth:\n  secret: dev-secret\n  issuer: quiz-engine\n")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "token", "--actor", "host-7", "--name", "Ada"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	tokens := auth.NewTokens("dev-secret", "quiz-engine", time.Hour)
	claims, err := tokens.Parse(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.Subject != "host-7" || claims.Name != "Ada" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenCommandRequiresSecret(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"8080\"\n")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "token", "--actor", "host-7"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected missing secret error")
	}
}

func TestMigrateRequiresPostgres(t *testing.T) {
	path := writeConfig(t, "log:\n  level: error\n")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "migrate"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "postgres url") {
		t.Fatalf("expected postgres url error, got %v", err)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/knightmint/knightmint/internal/domain"
)

// validJSON returns a minimal valid configuration JSON string.
func validJSON() string {
	return `{
		"db_path": "/tmp/knightmint.db",
		"recipient_address": "0x7f1a2b3c4d5e6f708192a3b4c5d6e7f809a0b1c2",
		"portal_base_url": "https://portal.example.com/api/v2/minikit"
	}`
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "config.json")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Valid(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, validJSON())

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/knightmint.db" {
		t.Errorf("DBPath = %q, want /tmp/knightmint.db", cfg.DBPath)
	}
	if cfg.RecipientAddress == "" {
		t.Error("RecipientAddress is empty")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{not valid json}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestLoad_MissingDBPath(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{
		"recipient_address": "0xabc",
		"portal_base_url": "https://portal.example.com"
	}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing db_path, got nil")
	}
	appErr, ok := err.(*domain.AppError)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != domain.ErrConfigInvalid.Code {
		t.Errorf("Code = %d, want %d", appErr.Code, domain.ErrConfigInvalid.Code)
	}
}

func TestLoad_MissingRecipient(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{
		"db_path": "/tmp/knightmint.db",
		"portal_base_url": "https://portal.example.com"
	}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing recipient_address, got nil")
	}
	appErr, ok := err.(*domain.AppError)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != domain.ErrConfigInvalid.Code {
		t.Errorf("Code = %d, want %d", appErr.Code, domain.ErrConfigInvalid.Code)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, validJSON())

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9480" {
		t.Errorf("ListenAddr = %q, want :9480", cfg.ListenAddr)
	}
	if cfg.PollIntervalMs != 2000 {
		t.Errorf("PollIntervalMs = %d, want 2000", cfg.PollIntervalMs)
	}
	if cfg.PollMaxAttempts != 15 {
		t.Errorf("PollMaxAttempts = %d, want 15", cfg.PollMaxAttempts)
	}
	if cfg.AdvanceDelayMs != 1500 {
		t.Errorf("AdvanceDelayMs = %d, want 1500", cfg.AdvanceDelayMs)
	}
	if cfg.RateLimitPerMinute != 10 {
		t.Errorf("RateLimitPerMinute = %d, want 10", cfg.RateLimitPerMinute)
	}
	if cfg.Prices.Answer != 1.0 {
		t.Errorf("Prices.Answer = %f, want 1.0", cfg.Prices.Answer)
	}
}

func TestLoad_EnvOverridesAPIKey(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, validJSON())

	t.Setenv("KNIGHTMINT_PORTAL_API_KEY", "env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PortalAPIKey != "env-secret" {
		t.Errorf("PortalAPIKey = %q, want env-secret", cfg.PortalAPIKey)
	}
}

package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.Backend != BackendFile {
		t.Errorf("Backend = %s, want %s", cfg.Storage.Backend, BackendFile)
	}
	if cfg.App.Port != "3001" {
		t.Errorf("Port = %s, want 3001", cfg.App.Port)
	}
	if cfg.RateLimit.Limit != 10 {
		t.Errorf("RateLimit.Limit = %d, want 10", cfg.RateLimit.Limit)
	}
	if cfg.App.DefaultSource == "" {
		t.Error("DefaultSource empty")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "mongodb")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadPostgresRequiresDSN(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", BackendPostgres)
	t.Setenv("POSTGRES_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when POSTGRES_DSN missing")
	}
}

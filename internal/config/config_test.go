package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabasePath != defaultDatabasePath {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("unexpected token ttl %s", cfg.TokenTTL)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected allowed origins %v", cfg.AllowedOrigins)
	}
	if err := cfg.RequireSigningSecret(); err == nil {
		t.Fatalf("expected missing signing secret to be reported")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SYNCRESET_DATABASE_PATH", "/tmp/resets.db")
	t.Setenv("SYNCRESET_AUTH_SIGNING_SECRET", "secret")
	t.Setenv("SYNCRESET_LOG_FORMAT", "console")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabasePath != "/tmp/resets.db" {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.LogFormat != "console" {
		t.Fatalf("unexpected log format %q", cfg.LogFormat)
	}
	if err := cfg.RequireSigningSecret(); err != nil {
		t.Fatalf("unexpected signing secret error: %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{name: "empty database path", key: "database.path", value: " "},
		{name: "unknown log format", key: "log.format", value: "xml"},
		{name: "non-positive ttl", key: "auth.token_ttl_minutes", value: 0},
		{name: "empty issuer", key: "auth.issuer", value: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configViper := NewViper()
			configViper.Set(tt.key, tt.value)
			if _, err := Load(configViper); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

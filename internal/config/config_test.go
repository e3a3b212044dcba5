package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DataFile != "appointment_data.json" {
		t.Errorf("DataFile = %q, want appointment_data.json", cfg.DataFile)
	}
	if cfg.ExtractorTimeout != 30*time.Second {
		t.Errorf("ExtractorTimeout = %v, want 30s", cfg.ExtractorTimeout)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v, want 2h", cfg.SessionTTL)
	}
	if cfg.LLMProvider != "auto" {
		t.Errorf("LLMProvider = %q, want auto", cfg.LLMProvider)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("DATABASE_URL", "postgres://localhost/concierge")
	t.Setenv("EXTRACTOR_TIMEOUT", "5s")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("LLM_PROVIDER", " OpenAI ")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Errorf("Port = %q, want 9999", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://localhost/concierge" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.ExtractorTimeout != 5*time.Second {
		t.Errorf("ExtractorTimeout = %v, want 5s", cfg.ExtractorTimeout)
	}
	if !cfg.RedisTLS {
		t.Error("RedisTLS should be true")
	}
	if cfg.LLMProvider != "openai" {
		t.Errorf("LLMProvider = %q, want openai", cfg.LLMProvider)
	}
}

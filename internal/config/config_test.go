package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("olive", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Pipeline.SampleRows != 3 {
		t.Fatalf("Pipeline.SampleRows = %d", cfg.Pipeline.SampleRows)
	}
	if cfg.LLM.MaxTokens != 150 {
		t.Fatalf("LLM.MaxTokens = %d", cfg.LLM.MaxTokens)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if len(cfg.HTTP.CORSOrigins) != 1 || cfg.HTTP.CORSOrigins[0] != "*" {
		t.Fatalf("CORSOrigins = %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.Sessions.TTL != time.Hour {
		t.Fatalf("Sessions.TTL = %v", cfg.Sessions.TTL)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	cfg, err := Load("olive", mapLookup(map[string]string{
		"OLIVE_ADDR":               ":9090",
		"OLIVE_FETCH_TIMEOUT":      "3s",
		"OLIVE_MAX_ROWS":           "500",
		"OLIVE_CORS_ORIGINS":       "https://a.example, https://b.example",
		"OLIVE_LOG_LEVEL":          "warning",
		"OLIVE_LOG_JSON":           "false",
		"LLM_PROVIDER":             "anthropic",
		"LLM_API_KEY":              "ak",
		"OLIVE_COMPLETION_TIMEOUT": "20s",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9090" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Pipeline.FetchTimeout != 3*time.Second || cfg.Pipeline.CompletionTimeout != 20*time.Second {
		t.Fatalf("Pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.MaxRows != 500 {
		t.Fatalf("Pipeline.MaxRows = %d", cfg.Pipeline.MaxRows)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 || cfg.HTTP.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("CORSOrigins = %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.Observability.LogLevel != slog.LevelWarn || cfg.Observability.LogJSON {
		t.Fatalf("Observability = %+v", cfg.Observability)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.APIKey != "ak" {
		t.Fatalf("LLM = %+v", cfg.LLM)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"OLIVE_FETCH_TIMEOUT", "soon"},
		{"OLIVE_MAX_ROWS", "many"},
		{"OLIVE_LOG_JSON", "maybe"},
		{"OLIVE_LOG_LEVEL", "loud"},
		{"OLIVE_SAMPLE_ROWS", "0"},
		{"OLIVE_SAMPLE_ROWS", "4"},
		{"OLIVE_ADDR", " "},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			if _, err := Load("olive", mapLookup(map[string]string{tt.key: tt.value})); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoadAcceptsSmallerSample(t *testing.T) {
	cfg, err := Load("olive", mapLookup(map[string]string{"OLIVE_SAMPLE_ROWS": "1"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pipeline.SampleRows != 1 {
		t.Fatalf("Pipeline.SampleRows = %d", cfg.Pipeline.SampleRows)
	}
}

func TestLoadRequiresLookup(t *testing.T) {
	if _, err := Load("olive", nil); err == nil {
		t.Fatal("expected error for nil lookup")
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

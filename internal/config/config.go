// Package config loads Olive's runtime configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/olive/internal/llm"
	"github.com/JonMunkholm/olive/internal/schema"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	Service       ServiceConfig
	HTTP          HTTPConfig
	Pipeline      PipelineConfig
	Sessions      SessionConfig
	LLM           llm.Config
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

type PipelineConfig struct {
	SampleRows        int
	FetchTimeout      time.Duration
	CompletionTimeout time.Duration
	MaxRows           int
}

type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := defaults()
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "OLIVE_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "OLIVE_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "OLIVE_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "OLIVE_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyList(lookup, "OLIVE_CORS_ORIGINS", &cfg.HTTP.CORSOrigins); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "OLIVE_SAMPLE_ROWS", &cfg.Pipeline.SampleRows); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "OLIVE_FETCH_TIMEOUT", &cfg.Pipeline.FetchTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "OLIVE_COMPLETION_TIMEOUT", &cfg.Pipeline.CompletionTimeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "OLIVE_MAX_ROWS", &cfg.Pipeline.MaxRows); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "OLIVE_SESSION_TTL", &cfg.Sessions.TTL); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "OLIVE_SESSION_SWEEP_INTERVAL", &cfg.Sessions.SweepInterval); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "OLIVE_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "OLIVE_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	cfg.LLM = llm.ConfigFromLookup(lookup)
	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = llm.DefaultMaxTokens
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Pipeline.SampleRows < 1 || cfg.Pipeline.SampleRows > schema.SampleSize {
		return Config{}, fmt.Errorf("OLIVE_SAMPLE_ROWS must be between 1 and %d", schema.SampleSize)
	}
	if cfg.Sessions.TTL <= 0 {
		return Config{}, fmt.Errorf("OLIVE_SESSION_TTL must be > 0")
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Service: ServiceConfig{Name: "olive"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORSOrigins:  []string{"*"},
		},
		Pipeline: PipelineConfig{
			SampleRows:        schema.SampleSize,
			FetchTimeout:      15 * time.Second,
			CompletionTimeout: 60 * time.Second,
			MaxRows:           0,
		},
		Sessions: SessionConfig{
			TTL:           60 * time.Minute,
			SweepInterval: time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelInfo,
			LogJSON:  true,
		},
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
